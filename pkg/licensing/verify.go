package licensing

import (
	"crypto/ed25519"
	"fmt"
	"time"
)

// VerifyOptions carries caller policy for a single verification attempt.
type VerifyOptions struct {
	// MinTier, when set, rejects licenses below this tier with
	// ErrInsufficientTier.
	MinTier Tier

	// SeatsInUse, when positive, is the caller-reported count of
	// concurrently licensed seats. Enterprise licenses reject counts
	// above their seat bound with ErrSeatLimitExceeded.
	SeatsInUse int

	// Now overrides the verification clock. Zero means time.Now().
	Now time.Time
}

func (o VerifyOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Verifier authenticates license keys against a set of trusted Ed25519
// public keys. During key rotation the set holds both the current and the
// previous key so already-issued licenses keep validating; outside
// rotation it holds exactly one.
//
// All checks are pure and local. The Verifier never touches the network;
// online/offline orchestration for Enterprise licenses is the Service's
// job.
type Verifier struct {
	keys []ed25519.PublicKey
}

// NewVerifier creates a verifier trusting the given public keys, in
// order. Nil or wrongly-sized keys are dropped.
func NewVerifier(keys ...ed25519.PublicKey) *Verifier {
	v := &Verifier{}
	for _, key := range keys {
		if len(key) == ed25519.PublicKeySize {
			v.keys = append(v.keys, key)
		}
	}
	return v
}

// TrustedKeyCount returns how many public keys the verifier trusts.
func (v *Verifier) TrustedKeyCount() int {
	return len(v.keys)
}

// Verify runs the full local verification state machine over a license
// key: parse, decode, signature check against every trusted key, expiry,
// minimum tier, and seat bound. On success it returns the validated
// license with its enabled feature set.
func (v *Verifier) Verify(licenseKey string, opts VerifyOptions) (*License, error) {
	if len(v.keys) == 0 {
		return nil, ErrNoTrustedKeys
	}

	payloadBytes, signature, payload, err := DecodeToken(licenseKey)
	if err != nil {
		return nil, err
	}

	if !v.signatureValid(payloadBytes, signature) {
		return nil, ErrInvalidSignature
	}

	now := opts.now()
	if payload.Expired(now) {
		return nil, fmt.Errorf("%w: expired at %s", ErrExpired, payload.ExpiresAt.Format(time.RFC3339))
	}

	if opts.MinTier != "" && !payload.Tier.AtLeast(opts.MinTier) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientTier, payload.Tier, opts.MinTier)
	}

	if payload.Tier == TierEnterprise && payload.Seats > 0 && opts.SeatsInUse > payload.Seats {
		return nil, fmt.Errorf("%w: %d in use, %d licensed", ErrSeatLimitExceeded, opts.SeatsInUse, payload.Seats)
	}

	return &License{
		Payload:     payload,
		Fingerprint: Fingerprint(licenseKey),
		ValidatedAt: now,
	}, nil
}

// signatureValid tries each trusted key in order; any match accepts.
func (v *Verifier) signatureValid(message, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	for _, key := range v.keys {
		if ed25519.Verify(key, message, signature) {
			return true
		}
	}
	return false
}
