package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvSigningKey holds the base64-encoded private key (32-byte seed or
	// full 64-byte key).
	EnvSigningKey = "MCP_GUARD_SIGNING_KEY"
	// EnvSigningKeyFile points at a file containing the same.
	EnvSigningKeyFile = "MCP_GUARD_SIGNING_KEY_FILE"
)

// LoadPrivateKey resolves the issuer's private key from the environment:
// EnvSigningKey first, then the contents of EnvSigningKeyFile. Exactly
// one key is ever loaded.
func LoadPrivateKey() (ed25519.PrivateKey, error) {
	if encoded := strings.TrimSpace(os.Getenv(EnvSigningKey)); encoded != "" {
		return decodePrivateKey(encoded)
	}
	if path := os.Getenv(EnvSigningKeyFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read key file: %v", ErrSigningUnavailable, err)
		}
		return decodePrivateKey(strings.TrimSpace(string(data)))
	}
	return nil, fmt.Errorf("%w: set %s or %s", ErrSigningUnavailable, EnvSigningKey, EnvSigningKeyFile)
}

// decodePrivateKey accepts a base64-encoded 32-byte Ed25519 seed or a
// full 64-byte private key, in standard or raw URL-safe alphabets.
func decodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: key is not valid base64", ErrSigningUnavailable)
		}
	}

	switch len(decoded) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(decoded), nil
	}
	return nil, fmt.Errorf("%w: key must be %d or %d bytes, got %d",
		ErrSigningUnavailable, ed25519.SeedSize, ed25519.PrivateKeySize, len(decoded))
}

// Keypair is a freshly generated signing keypair in the encodings the
// rest of the system consumes.
type Keypair struct {
	// Seed is the base64 private key seed the issuer loads.
	Seed string
	// PublicKey is the base64 public key verifiers embed or read from env.
	PublicKey string
}

// GenerateKeypair mints a new Ed25519 keypair for rotation or first
// deployment. The caller is responsible for storing the seed in the
// secret store; it is never written to disk here.
func GenerateKeypair() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{
		Seed:      base64.StdEncoding.EncodeToString(priv.Seed()),
		PublicKey: base64.StdEncoding.EncodeToString(pub),
	}, nil
}
