package licensing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// OfflineGraceWindow bounds how long a cached Enterprise validation
	// stays trusted without a fresh online check.
	OfflineGraceWindow = 30 * 24 * time.Hour

	// cacheSchemaVersion is bumped whenever the on-disk record changes
	// incompatibly; readers treat unknown versions as "no cache".
	cacheSchemaVersion = 1

	cacheDirPerm  = 0o700
	cacheFilePerm = 0o600

	// EnvCacheDir overrides the default offline cache location.
	EnvCacheDir = "MCP_GUARD_CACHE_DIR"
)

// CacheEntry is the persisted outcome of a successful online validation.
// It is keyed by the license fingerprint, never the raw key.
type CacheEntry struct {
	Version     int       `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	Tier        Tier      `json:"tier"`
	Licensee    string    `json:"licensee"`
	Features    []string  `json:"features"`
	Seats       int       `json:"seats,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	ValidatedAt time.Time `json:"validated_at"`
	GraceSecs   int64     `json:"grace_window_seconds"`
}

// GraceWindow returns the entry's grace window duration.
func (e *CacheEntry) GraceWindow() time.Duration {
	if e.GraceSecs <= 0 {
		return OfflineGraceWindow
	}
	return time.Duration(e.GraceSecs) * time.Second
}

// Fresh reports whether the entry can still be trusted offline: the
// validation is inside the grace window and the license itself has not
// expired.
func (e *CacheEntry) Fresh(now time.Time) bool {
	if now.Sub(e.ValidatedAt) > e.GraceWindow() {
		return false
	}
	if !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt) {
		return false
	}
	return true
}

// Cache persists Enterprise validation outcomes for offline operation.
// Writes are single-writer atomic (temp file then rename) so a crash
// mid-write can never leave a torn record; a corrupt or unparseable
// record is treated as absent, forcing revalidation.
type Cache struct {
	dir string
}

// DefaultCacheDir returns the offline cache directory: EnvCacheDir if
// set, otherwise the user cache dir under an mcp-guard subdirectory.
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(base, "mcp-guard"), nil
}

// NewCache creates a cache rooted at dir. An empty dir selects
// DefaultCacheDir.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		var err error
		dir, err = DefaultCacheDir()
		if err != nil {
			return nil, err
		}
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) entryPath(fingerprint string) string {
	// 16 hex chars is plenty to avoid collisions between the handful of
	// licenses a single host will ever see.
	name := fingerprint
	if len(name) > 16 {
		name = name[:16]
	}
	return filepath.Join(c.dir, "license-"+name+".json")
}

// Load reads the cache entry for a fingerprint. Missing, unreadable,
// corrupt, version-mismatched, or foreign-fingerprint records all return
// ok=false rather than an error: the caller's recovery is identical in
// every case (revalidate online).
func (c *Cache) Load(fingerprint string) (*CacheEntry, bool) {
	path := c.entryPath(fingerprint)

	info, err := os.Lstat(path)
	if err != nil {
		return nil, false
	}
	if !info.Mode().IsRegular() {
		log.Warn().Str("path", path).Msg("License cache entry is not a regular file, ignoring")
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Warn().Str("path", path).Msg("License cache entry is corrupt, will revalidate")
		return nil, false
	}
	if entry.Version != cacheSchemaVersion || entry.Fingerprint != fingerprint {
		return nil, false
	}

	return &entry, true
}

// Store atomically writes a cache entry.
func (c *Cache) Store(entry *CacheEntry) error {
	if entry.Fingerprint == "" {
		return errors.New("cache entry missing fingerprint")
	}
	entry.Version = cacheSchemaVersion
	if entry.GraceSecs <= 0 {
		entry.GraceSecs = int64(OfflineGraceWindow / time.Second)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := os.MkdirAll(c.dir, cacheDirPerm); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	path := c.entryPath(entry.Fingerprint)
	tmp, err := os.CreateTemp(c.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(cacheFilePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace cache entry: %w", err)
	}
	cleanup = false
	return nil
}

// Purge removes the cache entry for a fingerprint, if any.
func (c *Cache) Purge(fingerprint string) error {
	err := os.Remove(c.entryPath(fingerprint))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("purge cache entry: %w", err)
	}
	return nil
}

// NewCacheEntry builds a cache entry from a verified license.
func NewCacheEntry(lic *License, validatedAt time.Time) *CacheEntry {
	return &CacheEntry{
		Version:     cacheSchemaVersion,
		Fingerprint: lic.Fingerprint,
		Tier:        lic.Payload.Tier,
		Licensee:    lic.Payload.Licensee,
		Features:    lic.EnabledFeatures(),
		Seats:       lic.Payload.Seats,
		ExpiresAt:   lic.Payload.ExpiresAt,
		ValidatedAt: validatedAt.UTC().Truncate(time.Second),
		GraceSecs:   int64(OfflineGraceWindow / time.Second),
	}
}
