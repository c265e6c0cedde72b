package licensing

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// EmbeddedPublicKey is the production Ed25519 public key (base64 encoded),
// set at build time via -ldflags:
//
//	go build -ldflags "-X github.com/botzrDev/mcp-guard-license/pkg/licensing.EmbeddedPublicKey=BASE64_KEY"
var EmbeddedPublicKey string

// EmbeddedLegacyPublicKey is the previous production public key (base64
// encoded), kept trusted during key rotation so licenses signed under the
// old key keep validating until the overlap period ends. Set via -ldflags
// alongside EmbeddedPublicKey; leave empty outside rotation.
var EmbeddedLegacyPublicKey string

const (
	// EnvPublicKey overrides the embedded primary public key.
	EnvPublicKey = "MCP_GUARD_LICENSE_PUBLIC_KEY"
	// EnvLegacyPublicKey overrides the embedded legacy public key.
	EnvLegacyPublicKey = "MCP_GUARD_LICENSE_LEGACY_PUBLIC_KEY"
)

// TrustedKeys resolves the verifier's trusted public key set. Primary key
// priority is the environment variable, then the embedded build-time key;
// same for the legacy key. The returned slice is ordered primary-first.
func TrustedKeys() ([]ed25519.PublicKey, error) {
	var keys []ed25519.PublicKey

	primary, err := resolveKey(EnvPublicKey, EmbeddedPublicKey)
	if err != nil {
		return nil, fmt.Errorf("primary public key: %w", err)
	}
	if primary != nil {
		keys = append(keys, primary)
	}

	legacy, err := resolveKey(EnvLegacyPublicKey, EmbeddedLegacyPublicKey)
	if err != nil {
		return nil, fmt.Errorf("legacy public key: %w", err)
	}
	if legacy != nil {
		keys = append(keys, legacy)
	}

	switch {
	case primary != nil && legacy != nil:
		log.Info().Msg("Dual-key license verification enabled (primary + legacy)")
	case primary != nil:
		log.Debug().Msg("Single-key license verification enabled")
	case legacy != nil:
		log.Warn().Msg("Only legacy license key loaded - newly issued licenses will not validate")
	default:
		return nil, ErrNoTrustedKeys
	}

	return keys, nil
}

// NewVerifierFromEnv builds a Verifier from the embedded/env key set.
func NewVerifierFromEnv() (*Verifier, error) {
	keys, err := TrustedKeys()
	if err != nil {
		return nil, err
	}
	return NewVerifier(keys...), nil
}

func resolveKey(envName, embedded string) (ed25519.PublicKey, error) {
	if encoded := os.Getenv(envName); strings.TrimSpace(encoded) != "" {
		key, err := DecodePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", envName, err)
		}
		return key, nil
	}
	if embedded != "" {
		key, err := DecodePublicKey(embedded)
		if err != nil {
			return nil, fmt.Errorf("decode embedded key: %w", err)
		}
		return key, nil
	}
	return nil, nil
}

// DecodePublicKey decodes a base64-encoded Ed25519 public key. Standard
// and raw URL-safe alphabets are both accepted since keys travel through
// env files, ldflags, and shell pipelines.
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("public key is not valid base64: %w", err)
		}
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
	}

	return ed25519.PublicKey(decoded), nil
}
