package issuer

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RevocationList is the issuing authority's set of revoked license
// fingerprints, consulted only by the online /validate endpoint. The
// verifier embedded in gateways has no revocation concept; revocation
// takes effect when an Enterprise deployment's offline grace window
// forces it back online.
//
// The backing file is newline-delimited fingerprints; '#' starts a
// comment. It is re-read at most once per refresh interval, so an
// operator can revoke a compromised license by appending a line without
// restarting the issuer.
type RevocationList struct {
	path    string
	refresh time.Duration

	mu       sync.Mutex
	loadedAt time.Time
	revoked  map[string]struct{}
}

// NewRevocationList creates a list backed by path. An empty path means
// nothing is ever revoked.
func NewRevocationList(path string) *RevocationList {
	return &RevocationList{
		path:    path,
		refresh: 30 * time.Second,
	}
}

// Revoked reports whether a license fingerprint is on the list.
func (r *RevocationList) Revoked(fingerprint string) bool {
	if r.path == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.loadedAt) >= r.refresh {
		r.reload()
	}
	_, revoked := r.revoked[fingerprint]
	return revoked
}

// reload re-reads the backing file. Must be called with r.mu held. A
// missing file means an empty list; a read error keeps the previous list.
func (r *RevocationList) reload() {
	r.loadedAt = time.Now()

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.revoked = nil
			return
		}
		log.Warn().Err(err).Str("path", r.path).Msg("Failed to read revocation list, keeping previous entries")
		return
	}
	defer f.Close()

	revoked := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		revoked[strings.ToLower(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("Failed to scan revocation list, keeping previous entries")
		return
	}

	r.revoked = revoked
}
