package licensing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// EnvLicenseKey is where the gateway reads its license key from.
	EnvLicenseKey = "MCP_GUARD_LICENSE_KEY"
	// EnvLicenseFile points at a file containing the license key, for
	// deployments that mount secrets as files.
	EnvLicenseFile = "MCP_GUARD_LICENSE_FILE"
)

// Service orchestrates license validation for the gateway binary.
//
// Pro licenses are verified purely locally. Enterprise licenses must
// additionally pass an online check against the issuing authority before
// first trust; the outcome is cached so the gateway keeps operating
// through network loss for up to the offline grace window, after which
// validation fails closed.
type Service struct {
	verifier *Verifier
	cache    *Cache
	client   RevalidationClient

	mu       sync.RWMutex
	license  *License
	onChange func(*License)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache sets the offline validation cache. Without one, Enterprise
// validation requires a successful online check on every run.
func WithCache(cache *Cache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithRevalidationClient sets the online check client.
func WithRevalidationClient(client RevalidationClient) ServiceOption {
	return func(s *Service) { s.client = client }
}

// WithChangeCallback registers a callback invoked whenever the active
// license changes (including to nil on Clear).
func WithChangeCallback(cb func(*License)) ServiceOption {
	return func(s *Service) { s.onChange = cb }
}

// NewService creates a license service around a verifier.
func NewService(verifier *Verifier, opts ...ServiceOption) *Service {
	s := &Service{verifier: verifier}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate verifies a license key end to end and, on success, makes it
// the service's active license. The context bounds only the optional
// online revalidation; local checks never block.
func (s *Service) Validate(ctx context.Context, licenseKey string, opts VerifyOptions) (*License, error) {
	lic, err := s.verifier.Verify(licenseKey, opts)
	if err != nil {
		return nil, err
	}

	if lic.Payload.Tier == TierEnterprise {
		lic, err = s.confirmEnterprise(ctx, licenseKey, lic, opts)
		if err != nil {
			return nil, err
		}
	}

	s.setLicense(lic)
	return lic, nil
}

// confirmEnterprise applies the cache-or-online discipline on top of an
// already locally-verified Enterprise license.
func (s *Service) confirmEnterprise(ctx context.Context, licenseKey string, lic *License, opts VerifyOptions) (*License, error) {
	now := opts.now()

	var cached *CacheEntry
	if s.cache != nil {
		if entry, ok := s.cache.Load(lic.Fingerprint); ok {
			if entry.Fresh(now) {
				log.Debug().
					Str("licensee", entry.Licensee).
					Time("validated_at", entry.ValidatedAt).
					Msg("Trusting cached Enterprise license validation")
				fromCache := *lic
				fromCache.FromCache = true
				return &fromCache, nil
			}
			cached = entry
		}
	}

	if s.client == nil {
		return nil, fmt.Errorf("%w: no revalidation endpoint configured", ErrOfflineGraceExpired)
	}

	result, err := s.client.Revalidate(ctx, licenseKey, opts.SeatsInUse)
	switch {
	case err == nil:
		if !result.Valid {
			s.purgeCached(lic.Fingerprint)
			if result.Message != "" {
				return nil, fmt.Errorf("%w: %s", ErrRevoked, result.Message)
			}
			return nil, ErrRevoked
		}
		if s.cache != nil {
			if err := s.cache.Store(NewCacheEntry(lic, now)); err != nil {
				log.Warn().Err(err).Msg("Failed to persist license validation cache")
			}
		}
		return lic, nil

	case errors.Is(err, ErrRevalidationUnavailable):
		if cached != nil {
			// Stale cache plus no network: the grace window has lapsed.
			log.Warn().
				Time("validated_at", cached.ValidatedAt).
				Msg("License revalidation unreachable and cached validation is outside the grace window")
		}
		return nil, fmt.Errorf("%w: %v", ErrOfflineGraceExpired, err)

	default:
		return nil, err
	}
}

func (s *Service) purgeCached(fingerprint string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(fingerprint); err != nil {
		log.Warn().Err(err).Msg("Failed to purge license validation cache")
	}
}

func (s *Service) setLicense(lic *License) {
	s.mu.Lock()
	s.license = lic
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(lic)
	}
}

// Clear drops the active license.
func (s *Service) Clear() {
	s.setLicense(nil)
}

// Current returns the active license, or nil.
func (s *Service) Current() *License {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.license
}

// HasFeature reports whether the active license grants a feature. With no
// active license nothing is granted: verification failures must disable
// gated features, never silently enable them.
func (s *Service) HasFeature(feature string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.license == nil {
		return false
	}
	if s.license.Payload.Expired(time.Now()) {
		return false
	}
	return s.license.HasFeature(feature)
}

// RequireFeature returns an error when a feature is not available.
func (s *Service) RequireFeature(feature string) error {
	if !s.HasFeature(feature) {
		return fmt.Errorf("%s requires an active license with %q", FeatureDisplayName(feature), feature)
	}
	return nil
}

// Tier returns the active license tier, or "" when none is active.
func (s *Service) Tier() Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.license == nil {
		return ""
	}
	return s.license.Payload.Tier
}

// KeyFromEnv resolves the configured license key: EnvLicenseKey first,
// then the contents of the file named by EnvLicenseFile.
func KeyFromEnv() (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvLicenseKey)); key != "" {
		return key, nil
	}
	if path := os.Getenv(EnvLicenseFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read license file: %w", err)
		}
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}
	return "", ErrNoLicense
}

// ValidateFromEnv reads the license key from the environment and
// validates it.
func (s *Service) ValidateFromEnv(ctx context.Context, opts VerifyOptions) (*License, error) {
	key, err := KeyFromEnv()
	if err != nil {
		return nil, err
	}
	return s.Validate(ctx, key, opts)
}
