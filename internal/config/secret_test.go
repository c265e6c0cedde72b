package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestSecretMatches(t *testing.T) {
	t.Run("plaintext", func(t *testing.T) {
		s := NewSecret("hunter2")
		if !s.Matches("hunter2") {
			t.Error("Matches rejected the correct secret")
		}
		if s.Matches("hunter3") {
			t.Error("Matches accepted a wrong secret")
		}
		if s.Matches("") {
			t.Error("Matches accepted an empty candidate")
		}
	})

	t.Run("configured value is trimmed", func(t *testing.T) {
		s := NewSecret("  hunter2\n")
		if !s.Matches("hunter2") {
			t.Error("Matches rejected after trimming")
		}
	})

	t.Run("bcrypt hash", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		s := NewSecret(string(hash))
		if !s.Matches("hunter2") {
			t.Error("Matches rejected the password behind the bcrypt hash")
		}
		if s.Matches("hunter3") {
			t.Error("Matches accepted a wrong password against the bcrypt hash")
		}
		if s.Matches(string(hash)) {
			t.Error("Matches accepted the hash itself as a credential")
		}
	})

	t.Run("empty secret matches nothing", func(t *testing.T) {
		var s Secret
		if s.Matches("") {
			t.Error("zero secret matched an empty candidate")
		}
		if s.Matches("anything") {
			t.Error("zero secret matched a candidate")
		}
	})
}

func TestSecretNeverLeaks(t *testing.T) {
	s := NewSecret("super-sensitive-value")

	if got := s.String(); strings.Contains(got, "sensitive") {
		t.Errorf("String() leaked the secret: %q", got)
	}
	if got := fmt.Sprintf("secret=%v config=%+v", s, struct{ S Secret }{s}); strings.Contains(got, "sensitive") {
		t.Errorf("fmt verbs leaked the secret: %q", got)
	}

	data, err := json.Marshal(struct {
		Listen string `json:"listen"`
		Secret Secret `json:"secret"`
	}{":8787", s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sensitive") {
		t.Errorf("JSON leaked the secret: %s", data)
	}
	if !strings.Contains(string(data), "[redacted]") {
		t.Errorf("JSON missing redaction marker: %s", data)
	}
}

func TestSecretIsZero(t *testing.T) {
	if !NewSecret("").IsZero() {
		t.Error("empty secret not zero")
	}
	if !NewSecret("   ").IsZero() {
		t.Error("whitespace secret not zero")
	}
	if NewSecret("x").IsZero() {
		t.Error("configured secret reported zero")
	}
}
