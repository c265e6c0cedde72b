package licensing

import "errors"

// Verification errors. All are terminal for the attempt; none are retried
// inside this package except the online revalidation call, which retries
// with backoff before falling back to cache-or-fail-closed.
var (
	// ErrNoLicense means no license key was supplied at all.
	ErrNoLicense = errors.New("no license key configured")

	// ErrMalformed means the key does not parse as the expected
	// tier-prefixed two-part base64url structure.
	ErrMalformed = errors.New("malformed license key")

	// ErrInvalidSignature means the signature matched none of the trusted
	// public keys. Never retried.
	ErrInvalidSignature = errors.New("license signature invalid")

	// ErrExpired means the payload's stated expiry has passed.
	ErrExpired = errors.New("license has expired")

	// ErrInsufficientTier means the license is valid but below the tier
	// the caller requires.
	ErrInsufficientTier = errors.New("license tier insufficient")

	// ErrSeatLimitExceeded means reported seat usage exceeds the
	// Enterprise license's seat bound.
	ErrSeatLimitExceeded = errors.New("license seat limit exceeded")

	// ErrNoTrustedKeys means the verifier was built without any trusted
	// public key, so no signature can ever be accepted.
	ErrNoTrustedKeys = errors.New("no trusted public keys configured")

	// ErrOfflineGraceExpired means an Enterprise license needed online
	// revalidation, the network check could not complete, and the offline
	// grace window has lapsed. Callers must fail closed.
	ErrOfflineGraceExpired = errors.New("offline grace period expired")

	// ErrRevoked is returned when the issuing authority rejects a license
	// during online revalidation.
	ErrRevoked = errors.New("license revoked by issuer")

	// ErrRevalidationUnavailable wraps transport failures of the online
	// check; it feeds the cache-or-fail-closed fallback and is never
	// surfaced to callers directly.
	ErrRevalidationUnavailable = errors.New("license revalidation unavailable")
)
