package licensing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodePublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("standard base64", func(t *testing.T) {
		key, err := DecodePublicKey(base64.StdEncoding.EncodeToString(pub))
		if err != nil {
			t.Fatalf("DecodePublicKey: %v", err)
		}
		if !key.Equal(pub) {
			t.Error("decoded key does not match")
		}
	})

	t.Run("raw url base64", func(t *testing.T) {
		key, err := DecodePublicKey(base64.RawURLEncoding.EncodeToString(pub))
		if err != nil {
			t.Fatalf("DecodePublicKey: %v", err)
		}
		if !key.Equal(pub) {
			t.Error("decoded key does not match")
		}
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		if _, err := DecodePublicKey("  " + base64.StdEncoding.EncodeToString(pub) + "\n"); err != nil {
			t.Errorf("DecodePublicKey with whitespace: %v", err)
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		if _, err := DecodePublicKey(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
			t.Error("DecodePublicKey accepted a short key")
		}
	})

	t.Run("not base64", func(t *testing.T) {
		if _, err := DecodePublicKey("!!not-base64!!"); err == nil {
			t.Error("DecodePublicKey accepted junk")
		}
	})
}

func TestTrustedKeysFromEnv(t *testing.T) {
	primary, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	legacy, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("no keys anywhere", func(t *testing.T) {
		t.Setenv(EnvPublicKey, "")
		t.Setenv(EnvLegacyPublicKey, "")
		if _, err := TrustedKeys(); !errors.Is(err, ErrNoTrustedKeys) {
			t.Errorf("err = %v, want ErrNoTrustedKeys", err)
		}
	})

	t.Run("primary only", func(t *testing.T) {
		t.Setenv(EnvPublicKey, base64.StdEncoding.EncodeToString(primary))
		t.Setenv(EnvLegacyPublicKey, "")
		keys, err := TrustedKeys()
		if err != nil {
			t.Fatalf("TrustedKeys: %v", err)
		}
		if len(keys) != 1 || !keys[0].Equal(primary) {
			t.Errorf("keys = %v", keys)
		}
	})

	t.Run("primary plus legacy for rotation", func(t *testing.T) {
		t.Setenv(EnvPublicKey, base64.StdEncoding.EncodeToString(primary))
		t.Setenv(EnvLegacyPublicKey, base64.StdEncoding.EncodeToString(legacy))
		keys, err := TrustedKeys()
		if err != nil {
			t.Fatalf("TrustedKeys: %v", err)
		}
		if len(keys) != 2 {
			t.Fatalf("got %d keys, want 2", len(keys))
		}
		if !keys[0].Equal(primary) || !keys[1].Equal(legacy) {
			t.Error("keys not ordered primary-first")
		}
	})

	t.Run("undecodable primary is an error", func(t *testing.T) {
		t.Setenv(EnvPublicKey, "not base64")
		if _, err := TrustedKeys(); err == nil {
			t.Error("TrustedKeys accepted junk primary key")
		}
	})

	t.Run("verifier from env", func(t *testing.T) {
		t.Setenv(EnvPublicKey, base64.StdEncoding.EncodeToString(primary))
		t.Setenv(EnvLegacyPublicKey, base64.StdEncoding.EncodeToString(legacy))
		v, err := NewVerifierFromEnv()
		if err != nil {
			t.Fatalf("NewVerifierFromEnv: %v", err)
		}
		if v.TrustedKeyCount() != 2 {
			t.Errorf("trusted keys = %d, want 2", v.TrustedKeyCount())
		}
	})
}

func TestNewVerifierDropsBadKeys(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	v := NewVerifier(pub, nil, ed25519.PublicKey("short"))
	if v.TrustedKeyCount() != 1 {
		t.Errorf("trusted keys = %d, want 1", v.TrustedKeyCount())
	}
}
