package issuer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/botzrDev/mcp-guard-license/pkg/licensing"
)

// ServiceName identifies the issuer in health responses and logs.
const ServiceName = "mcp-guard-licensed"

const maxRequestBody = 64 * 1024

// LicenseIssuer mints encoded license keys from validated payloads. The
// production implementation is *signer.Signer.
type LicenseIssuer interface {
	Issue(payload licensing.Payload) (string, error)
}

// Handlers implements the issuer endpoints.
type Handlers struct {
	issuer   LicenseIssuer
	verifier *licensing.Verifier
	revoked  *RevocationList
	metrics  *Metrics
	now      func() time.Time
}

// NewHandlers wires the issuance handlers. The verifier must trust the
// issuer's own public key so /validate can authenticate the licenses this
// service minted.
func NewHandlers(iss LicenseIssuer, verifier *licensing.Verifier, revoked *RevocationList, metrics *Metrics) *Handlers {
	return &Handlers{
		issuer:   iss,
		verifier: verifier,
		revoked:  revoked,
		metrics:  metrics,
		now:      time.Now,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type signResponse struct {
	LicenseKey string            `json:"license_key"`
	Payload    licensing.Payload `json:"payload"`
	ExpiresAt  string            `json:"expires_at"`
}

// HandleSign handles POST /sign. Authentication has already happened in
// middleware; every call mints a new, independent license.
func (h *Handlers) HandleSign(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.metrics.IssueFailures.WithLabelValues("bad_json").Inc()
		writeError(w, http.StatusBadRequest, "Invalid request", "request body is not valid JSON: "+err.Error())
		return
	}

	payload, err := BuildPayload(req, h.now())
	if err != nil {
		h.metrics.IssueFailures.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	licenseKey, err := h.issuer.Issue(payload)
	if err != nil {
		h.metrics.IssueFailures.WithLabelValues("signing").Inc()
		log.Error().Err(err).Msg("License signing failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Message: "license signing failed",
			Details: err.Error(),
		})
		return
	}

	h.metrics.LicensesIssued.WithLabelValues(string(payload.Tier)).Inc()
	log.Info().
		Str("tier", string(payload.Tier)).
		Str("licensee", payload.Licensee).
		Time("expires_at", payload.ExpiresAt).
		Str("fingerprint", licensing.Fingerprint(licenseKey)).
		Msg("Issued license")

	writeJSON(w, http.StatusOK, signResponse{
		LicenseKey: licenseKey,
		Payload:    payload,
		ExpiresAt:  payload.ExpiresAt.Format(time.RFC3339),
	})
}

// HandleHealth handles GET /health, unauthenticated.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": ServiceName,
	})
}

type validateRequest struct {
	LicenseKey string `json:"license_key"`
	SeatsInUse int    `json:"seats_in_use,omitempty"`
}

// HandleValidate handles POST /validate, the online check Enterprise
// verifiers call before first trust and after their offline grace window
// lapses. It re-verifies the signature and expiry and consults the
// revocation list. Unauthenticated: possession of the license key is the
// credential, exactly as on the verifier side.
func (h *Handlers) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		h.metrics.ValidateRequests.WithLabelValues("bad_json").Inc()
		writeError(w, http.StatusBadRequest, "Invalid request", "request body is not valid JSON")
		return
	}

	lic, err := h.verifier.Verify(req.LicenseKey, licensing.VerifyOptions{
		SeatsInUse: req.SeatsInUse,
		Now:        h.now(),
	})
	if err != nil {
		h.metrics.ValidateRequests.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusOK, licensing.RevalidationResult{
			Valid:   false,
			Message: err.Error(),
		})
		return
	}

	if h.revoked.Revoked(lic.Fingerprint) {
		h.metrics.ValidateRequests.WithLabelValues("revoked").Inc()
		log.Warn().
			Str("fingerprint", lic.Fingerprint).
			Str("licensee", lic.Payload.Licensee).
			Msg("Rejected revoked license")
		writeJSON(w, http.StatusOK, licensing.RevalidationResult{
			Valid:   false,
			Message: "license has been revoked; contact support for reissue",
		})
		return
	}

	h.metrics.ValidateRequests.WithLabelValues("valid").Inc()
	writeJSON(w, http.StatusOK, licensing.RevalidationResult{
		Valid:     true,
		Tier:      lic.Payload.Tier,
		Features:  lic.EnabledFeatures(),
		ExpiresAt: lic.Payload.ExpiresAt,
	})
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
