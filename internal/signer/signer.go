// Package signer produces detached Ed25519 signatures over canonical
// license payload bytes. The private key is loaded once at process start
// and held only in memory; nothing in this package logs, returns, or
// persists key material.
package signer

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/botzrDev/mcp-guard-license/pkg/licensing"
)

// ErrSigningUnavailable is returned when key material is corrupt or
// missing. It is fatal to the request being signed, not to the process.
var ErrSigningUnavailable = errors.New("signing key unavailable")

// Signer signs license payloads with a single Ed25519 private key. The
// issuer never operates with more than one private key loaded at a time;
// key rotation swaps the key between process restarts, never alongside
// another.
type Signer struct {
	key ed25519.PrivateKey
}

// New creates a Signer from a private key.
func New(key ed25519.PrivateKey) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrSigningUnavailable, ed25519.PrivateKeySize, len(key))
	}
	return &Signer{key: key}, nil
}

// Sign canonicalizes the payload and returns the exact signed bytes plus
// the detached signature over them. The payload is normalized first so
// the bytes are reproducible from the decoded payload.
func (s *Signer) Sign(payload licensing.Payload) (payloadBytes, signature []byte, err error) {
	if len(s.key) != ed25519.PrivateKeySize {
		return nil, nil, ErrSigningUnavailable
	}

	payloadBytes, err = payload.Normalize().CanonicalBytes()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSigningUnavailable, err)
	}

	signature = ed25519.Sign(s.key, payloadBytes)
	return payloadBytes, signature, nil
}

// Issue signs a payload and encodes the full license key string.
func (s *Signer) Issue(payload licensing.Payload) (string, error) {
	payloadBytes, signature, err := s.Sign(payload)
	if err != nil {
		return "", err
	}
	return licensing.EncodeToken(payload.Tier, payloadBytes, signature), nil
}

// PublicKey returns the public half of the signing key, used by the
// issuer's own /validate endpoint to verify licenses it minted.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}
