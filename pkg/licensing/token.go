package licensing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// License keys are tier-tagged two-part tokens:
//
//	<prefix>_<base64url(payload)>.<base64url(signature)>
//
// where prefix is "pro" or "ent", both segments use unpadded base64url,
// and the signature is a detached Ed25519 signature over the exact
// payload bytes inside the first segment.

// EncodeToken assembles a license key from signed payload bytes and the
// detached signature. The payload bytes must be the canonical encoding
// the signature was computed over.
func EncodeToken(tier Tier, payloadBytes, signature []byte) string {
	return tier.Prefix() + "_" +
		base64.RawURLEncoding.EncodeToString(payloadBytes) + "." +
		base64.RawURLEncoding.EncodeToString(signature)
}

// DecodeToken splits and decodes a license key without verifying
// anything cryptographic. It returns the raw payload bytes (the signed
// message), the detached signature, and the decoded payload. Any
// structural defect, including a prefix that disagrees with the payload's
// own tier, is reported as ErrMalformed.
func DecodeToken(licenseKey string) (payloadBytes, signature []byte, payload Payload, err error) {
	licenseKey = strings.TrimSpace(licenseKey)
	if licenseKey == "" {
		return nil, nil, Payload{}, ErrNoLicense
	}

	prefix, body, found := strings.Cut(licenseKey, "_")
	if !found {
		return nil, nil, Payload{}, fmt.Errorf("%w: missing tier prefix", ErrMalformed)
	}
	prefixTier, ok := TierFromPrefix(prefix)
	if !ok {
		return nil, nil, Payload{}, fmt.Errorf("%w: unknown tier prefix %q", ErrMalformed, prefix)
	}

	payloadB64, sigB64, found := strings.Cut(body, ".")
	if !found || payloadB64 == "" || sigB64 == "" {
		return nil, nil, Payload{}, fmt.Errorf("%w: expected <payload>.<signature>", ErrMalformed)
	}

	payloadBytes, err = base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, nil, Payload{}, fmt.Errorf("%w: invalid payload encoding", ErrMalformed)
	}
	signature, err = base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, nil, Payload{}, fmt.Errorf("%w: invalid signature encoding", ErrMalformed)
	}

	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, nil, Payload{}, fmt.Errorf("%w: invalid payload JSON", ErrMalformed)
	}
	if !payload.Tier.Valid() {
		return nil, nil, Payload{}, fmt.Errorf("%w: unknown tier %q", ErrMalformed, payload.Tier)
	}
	if payload.Tier != prefixTier {
		return nil, nil, Payload{}, fmt.Errorf("%w: prefix %q does not match payload tier %q", ErrMalformed, prefix, payload.Tier)
	}
	if strings.TrimSpace(payload.Licensee) == "" {
		return nil, nil, Payload{}, fmt.Errorf("%w: missing licensee", ErrMalformed)
	}
	if payload.IssuedAt.IsZero() || payload.ExpiresAt.IsZero() {
		return nil, nil, Payload{}, fmt.Errorf("%w: missing validity window", ErrMalformed)
	}

	return payloadBytes, signature, payload, nil
}
