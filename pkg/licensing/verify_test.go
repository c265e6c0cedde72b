package licensing

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return pub, priv
}

// mintLicense signs a payload the way the issuer does and returns the
// encoded license key.
func mintLicense(t *testing.T, priv ed25519.PrivateKey, p Payload) string {
	t.Helper()
	p = p.Normalize()
	data, err := p.CanonicalBytes()
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	sig := ed25519.Sign(priv, data)
	return EncodeToken(p.Tier, data, sig)
}

func proPayload(now time.Time) Payload {
	return Payload{
		Tier:      TierPro,
		IssuedAt:  now,
		ExpiresAt: now.Add(365 * 24 * time.Hour),
		Licensee:  "acme@example.com",
		Features:  DefaultFeatures(TierPro),
	}
}

func entPayload(now time.Time, seats int) Payload {
	return Payload{
		Tier:      TierEnterprise,
		IssuedAt:  now,
		ExpiresAt: now.Add(365 * 24 * time.Hour),
		Licensee:  "Acme Corp",
		Features:  DefaultFeatures(TierEnterprise),
		Seats:     seats,
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now()
	payload := proPayload(now)
	key := mintLicense(t, priv, payload)

	lic, err := NewVerifier(pub).Verify(key, VerifyOptions{Now: now})
	if err != nil {
		t.Fatalf("Verify() error = %v, want nil", err)
	}

	if lic.Payload.Tier != TierPro {
		t.Errorf("tier = %q, want %q", lic.Payload.Tier, TierPro)
	}
	if lic.Payload.Licensee != "acme@example.com" {
		t.Errorf("licensee = %q", lic.Payload.Licensee)
	}
	features := lic.EnabledFeatures()
	if len(features) != len(DefaultFeatures(TierPro)) {
		t.Errorf("features = %v, want default pro set", features)
	}
	for _, f := range DefaultFeatures(TierPro) {
		if !lic.HasFeature(f) {
			t.Errorf("missing feature %q", f)
		}
	}
	if lic.Fingerprint != Fingerprint(key) {
		t.Errorf("fingerprint mismatch")
	}
}

func TestVerifyTamperDetection(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now()
	key := mintLicense(t, priv, proPayload(now))
	verifier := NewVerifier(pub)

	body := strings.TrimPrefix(key, "pro_")
	payloadB64, _, _ := strings.Cut(body, ".")
	prefixLen := len("pro_")

	// Skip the final character of each base64 segment: its unused
	// trailing bits do not survive decoding, so flipping them yields the
	// same decoded bytes.
	skip := map[int]bool{
		prefixLen + len(payloadB64) - 1: true,
		len(key) - 1:                    true,
	}

	for i := prefixLen; i < len(key); i++ {
		if skip[i] || key[i] == '.' {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			mutated := []byte(key)
			mutated[i] ^= 1 << bit
			if string(mutated) == key {
				continue
			}
			_, err := verifier.Verify(string(mutated), VerifyOptions{Now: now})
			if err == nil {
				t.Fatalf("bit %d of byte %d flipped: Verify() = nil error, want failure", bit, i)
			}
			if !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrMalformed) && !errors.Is(err, ErrNoLicense) {
				t.Fatalf("bit %d of byte %d flipped: err = %v, want InvalidSignature or Malformed", bit, i, err)
			}
		}
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	pub, priv := testKeypair(t)
	expiry := time.Now().UTC().Truncate(time.Second)

	payload := proPayload(expiry.Add(-24 * time.Hour))
	payload.ExpiresAt = expiry
	key := mintLicense(t, priv, payload)
	verifier := NewVerifier(pub)

	// Exactly at expiry: expired (exclusive upper bound).
	if _, err := verifier.Verify(key, VerifyOptions{Now: expiry}); !errors.Is(err, ErrExpired) {
		t.Errorf("at expiry instant: err = %v, want ErrExpired", err)
	}

	// One second before: valid.
	if _, err := verifier.Verify(key, VerifyOptions{Now: expiry.Add(-time.Second)}); err != nil {
		t.Errorf("one second before expiry: err = %v, want nil", err)
	}

	// After expiry: expired.
	if _, err := verifier.Verify(key, VerifyOptions{Now: expiry.Add(time.Hour)}); !errors.Is(err, ErrExpired) {
		t.Errorf("after expiry: err = %v, want ErrExpired", err)
	}
}

func TestVerifyMinimumTier(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now()
	verifier := NewVerifier(pub)

	proKey := mintLicense(t, priv, proPayload(now))
	entKey := mintLicense(t, priv, entPayload(now, 10))

	if _, err := verifier.Verify(proKey, VerifyOptions{Now: now, MinTier: TierEnterprise}); !errors.Is(err, ErrInsufficientTier) {
		t.Errorf("pro license with enterprise minimum: err = %v, want ErrInsufficientTier", err)
	}
	if _, err := verifier.Verify(entKey, VerifyOptions{Now: now, MinTier: TierEnterprise}); err != nil {
		t.Errorf("enterprise license with enterprise minimum: err = %v, want nil", err)
	}
	if _, err := verifier.Verify(proKey, VerifyOptions{Now: now, MinTier: TierPro}); err != nil {
		t.Errorf("pro license with pro minimum: err = %v, want nil", err)
	}
}

func TestVerifySeatEnforcement(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now()
	verifier := NewVerifier(pub)
	key := mintLicense(t, priv, entPayload(now, 5))

	tests := []struct {
		name       string
		seatsInUse int
		wantErr    error
	}{
		{"usage under bound", 4, nil},
		{"usage at bound", 5, nil},
		{"usage over bound", 6, ErrSeatLimitExceeded},
		{"usage unreported", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(key, VerifyOptions{Now: now, SeatsInUse: tt.seatsInUse})
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifySeatsIgnoredForPro(t *testing.T) {
	pub, priv := testKeypair(t)
	now := time.Now()
	key := mintLicense(t, priv, proPayload(now))

	if _, err := NewVerifier(pub).Verify(key, VerifyOptions{Now: now, SeatsInUse: 100}); err != nil {
		t.Errorf("pro license with reported seats: err = %v, want nil", err)
	}
}

func TestVerifyKeyRotation(t *testing.T) {
	oldPub, oldPriv := testKeypair(t)
	newPub, newPriv := testKeypair(t)
	now := time.Now()

	oldKey := mintLicense(t, oldPriv, proPayload(now))
	newKey := mintLicense(t, newPriv, proPayload(now))

	// Verifier build from before rotation shipped: trusts only the old key.
	preRotation := NewVerifier(oldPub)
	if _, err := preRotation.Verify(newKey, VerifyOptions{Now: now}); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("new-keyed license on pre-rotation verifier: err = %v, want ErrInvalidSignature", err)
	}

	// Overlap build: trusts both, so both vintages validate.
	overlap := NewVerifier(newPub, oldPub)
	if _, err := overlap.Verify(oldKey, VerifyOptions{Now: now}); err != nil {
		t.Errorf("old-keyed license on overlap verifier: err = %v, want nil", err)
	}
	if _, err := overlap.Verify(newKey, VerifyOptions{Now: now}); err != nil {
		t.Errorf("new-keyed license on overlap verifier: err = %v, want nil", err)
	}

	// Post-overlap build: old key retired, old licenses must reissue.
	postRotation := NewVerifier(newPub)
	if _, err := postRotation.Verify(oldKey, VerifyOptions{Now: now}); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("old-keyed license on post-rotation verifier: err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyNoTrustedKeys(t *testing.T) {
	_, priv := testKeypair(t)
	key := mintLicense(t, priv, proPayload(time.Now()))

	if _, err := NewVerifier().Verify(key, VerifyOptions{}); !errors.Is(err, ErrNoTrustedKeys) {
		t.Errorf("err = %v, want ErrNoTrustedKeys", err)
	}
}

func TestVerifyMalformedKeys(t *testing.T) {
	pub, priv := testKeypair(t)
	verifier := NewVerifier(pub)
	valid := mintLicense(t, priv, proPayload(time.Now()))

	payloadSeg := strings.TrimPrefix(strings.Split(valid, ".")[0], "pro_")

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty", "", ErrNoLicense},
		{"whitespace", "   ", ErrNoLicense},
		{"no prefix", "nounderscorehere", ErrMalformed},
		{"unknown prefix", "xyz_abc.def", ErrMalformed},
		{"missing separator", "pro_onlyonepart", ErrMalformed},
		{"empty signature", "pro_" + payloadSeg + ".", ErrMalformed},
		{"non-base64 payload", "pro_!!!.c2ln", ErrMalformed},
		{"non-base64 signature", "pro_" + payloadSeg + ".!!!", ErrMalformed},
		{"payload not json", "pro_bm90anNvbg." + strings.Repeat("A", 86), ErrMalformed},
		{"prefix tier mismatch", "ent_" + strings.TrimPrefix(valid, "pro_"), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.key, VerifyOptions{})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify(%q) err = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestCanonicalBytesDeterministic(t *testing.T) {
	now := time.Now()
	payload := entPayload(now, 3).Normalize()

	first, err := payload.CanonicalBytes()
	if err != nil {
		t.Fatalf("canonical bytes: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := payload.Normalize().CanonicalBytes()
		if err != nil {
			t.Fatalf("canonical bytes: %v", err)
		}
		if string(first) != string(again) {
			t.Fatalf("canonical encoding is not stable:\n%s\n%s", first, again)
		}
	}
}

func TestNormalizeFeatures(t *testing.T) {
	p := Payload{
		Tier:     TierPro,
		Features: []string{"b", "a", "b", " a ", "", "c"},
	}
	got := p.Normalize().Features
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("features = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("features = %v, want %v", got, want)
		}
	}
}
