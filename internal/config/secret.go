package config

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Secret holds a shared secret or other credential as an owned,
// non-exported value. It never round-trips through logs or JSON: both
// String and MarshalJSON render a redaction marker.
type Secret struct {
	value string
}

// NewSecret wraps a credential string.
func NewSecret(value string) Secret {
	return Secret{value: strings.TrimSpace(value)}
}

// IsZero reports whether no secret is configured.
func (s Secret) IsZero() bool {
	return s.value == ""
}

// Matches compares a caller-supplied candidate against the secret in
// constant time. When the configured value is a bcrypt hash the candidate
// is checked against the hash instead, so deployments can avoid keeping
// the plaintext secret in their environment at all.
func (s Secret) Matches(candidate string) bool {
	if s.value == "" {
		return false
	}
	if isBcryptHash(s.value) {
		return bcrypt.CompareHashAndPassword([]byte(s.value), []byte(candidate)) == nil
	}
	// Hash both sides first so the comparison leaks neither content nor
	// length.
	want := sha256.Sum256([]byte(s.value))
	got := sha256.Sum256([]byte(candidate))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

func (s Secret) String() string {
	return "[redacted]"
}

// MarshalJSON renders the redaction marker, never the value.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[redacted]"`), nil
}

func isBcryptHash(v string) bool {
	return strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$")
}
