// Package licensing implements offline verification of mcp-guard license
// keys, plus the online-revalidation and offline-cache orchestration used
// for Enterprise licenses. It is embedded in the gateway binary; the
// signing side lives in the issuer service and is not part of this package.
package licensing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Tier represents a purchased license tier.
type Tier string

const (
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// tierRank orders tiers for minimum-tier checks.
var tierRank = map[Tier]int{
	TierPro:        1,
	TierEnterprise: 2,
}

// Valid reports whether the tier is a known license tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether the tier satisfies the given minimum tier.
func (t Tier) AtLeast(min Tier) bool {
	return tierRank[t] >= tierRank[min]
}

// Prefix returns the wire prefix for license keys of this tier.
func (t Tier) Prefix() string {
	switch t {
	case TierEnterprise:
		return "ent"
	default:
		return "pro"
	}
}

// TierFromPrefix resolves a wire prefix back to its tier.
func TierFromPrefix(prefix string) (Tier, bool) {
	switch prefix {
	case "pro":
		return TierPro, true
	case "ent":
		return TierEnterprise, true
	}
	return "", false
}

// DisplayName returns a human-readable tier name for UI and log output.
func (t Tier) DisplayName() string {
	switch t {
	case TierPro:
		return "Pro"
	case TierEnterprise:
		return "Enterprise"
	}
	return string(t)
}

// Payload is the signed license claim. Field order is load-bearing: the
// canonical encoding marshals fields in declaration order and the issuer
// signs exactly those bytes, so this struct must not be reordered once
// licenses are in the wild.
type Payload struct {
	Tier      Tier      `json:"tier"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Licensee  string    `json:"licensee"`
	Features  []string  `json:"features"`
	Seats     int       `json:"seats,omitempty"`
}

// CanonicalBytes returns the deterministic serialization of the payload.
// Timestamps must already be UTC and truncated to whole seconds; the
// issuer's payload builder guarantees that, and Normalize enforces it for
// payloads constructed by hand.
func (p Payload) CanonicalBytes() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal license payload: %w", err)
	}
	return data, nil
}

// Normalize returns a copy with UTC second-resolution timestamps and a
// sorted, de-duplicated feature list. Signing a non-normalized payload
// would produce bytes the issuer cannot reproduce later.
func (p Payload) Normalize() Payload {
	p.IssuedAt = p.IssuedAt.UTC().Truncate(time.Second)
	p.ExpiresAt = p.ExpiresAt.UTC().Truncate(time.Second)
	p.Features = normalizeFeatures(p.Features)
	return p
}

// Expired reports whether the payload's validity window has closed at the
// given instant. The bound is exclusive: a license expiring exactly now is
// already expired.
func (p Payload) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// HasFeature reports whether the payload grants a feature.
func (p Payload) HasFeature(feature string) bool {
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}

func normalizeFeatures(features []string) []string {
	seen := make(map[string]struct{}, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// License is the result of a successful verification.
type License struct {
	// Payload is the verified license claim.
	Payload Payload

	// Fingerprint is the SHA-256 hex digest of the license key string.
	// It keys the offline cache; the raw key is never persisted.
	Fingerprint string

	// ValidatedAt is when this verification completed.
	ValidatedAt time.Time

	// FromCache is true when an Enterprise license was trusted via the
	// offline cache instead of a fresh online check.
	FromCache bool
}

// EnabledFeatures returns the feature set unlocked by this license.
func (l *License) EnabledFeatures() []string {
	out := make([]string, len(l.Payload.Features))
	copy(out, l.Payload.Features)
	return out
}

// HasFeature reports whether the license grants a feature.
func (l *License) HasFeature(feature string) bool {
	return l.Payload.HasFeature(feature)
}

// DaysRemaining returns whole days until expiry, never negative.
func (l *License) DaysRemaining() int {
	remaining := time.Until(l.Payload.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}

// ExpiringSoon reports whether the license expires within 30 days.
func (l *License) ExpiringSoon() bool {
	return l.DaysRemaining() <= 30
}

// Fingerprint returns the SHA-256 hex digest of a license key string.
// Cache entries and revocation lists are keyed by this digest so the raw
// key never has to be stored.
func Fingerprint(licenseKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(licenseKey)))
	return hex.EncodeToString(sum[:])
}

// MaskKey returns a short, log-safe rendering of a license key.
func MaskKey(licenseKey string) string {
	licenseKey = strings.TrimSpace(licenseKey)
	if len(licenseKey) <= 12 {
		return "***"
	}
	return licenseKey[:8] + "..." + licenseKey[len(licenseKey)-4:]
}
