package issuer

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/botzrDev/mcp-guard-license/internal/config"
)

// secretHeader carries the caller's shared secret on issuance requests.
const secretHeader = "X-API-Secret"

// requireSecret rejects requests whose shared secret is missing or wrong
// before any request body is read: authentication precedes all other
// validation, so an unauthenticated caller can never trigger payload
// construction or a signing operation.
func requireSecret(secret config.Secret, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secret.Matches(r.Header.Get(secretHeader)) {
				metrics.AuthFailures.Inc()
				log.Warn().
					Str("remote", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("Rejected request with missing or invalid API secret")
				writeError(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid "+secretHeader+" header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
