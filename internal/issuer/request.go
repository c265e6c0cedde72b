package issuer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botzrDev/mcp-guard-license/pkg/licensing"
)

// ErrInvalidRequest marks issuance parameter failures; handlers map it to
// HTTP 400.
var ErrInvalidRequest = errors.New("invalid request")

// defaultValidity is applied when an issuance request omits expires_at.
const defaultValidity = 365 * 24 * time.Hour

// IssueRequest is the JSON body of POST /sign. It is an explicit tagged
// structure rather than a generic map so the canonical payload encoding
// can never become order-dependent on caller input.
type IssueRequest struct {
	Licensee  string   `json:"licensee"`
	Tier      string   `json:"tier"`
	ExpiresAt string   `json:"expires_at,omitempty"`
	Features  []string `json:"features,omitempty"`
	Seats     int      `json:"seats,omitempty"`
}

// BuildPayload validates an issuance request and produces a fully
// populated, normalized payload stamped at now. Pure construction, no
// side effects.
func BuildPayload(req IssueRequest, now time.Time) (licensing.Payload, error) {
	licensee := strings.TrimSpace(req.Licensee)
	if licensee == "" {
		return licensing.Payload{}, fmt.Errorf("%w: licensee required", ErrInvalidRequest)
	}

	tier := licensing.Tier(strings.ToLower(strings.TrimSpace(req.Tier)))
	if !tier.Valid() {
		return licensing.Payload{}, fmt.Errorf("%w: tier must be %q or %q", ErrInvalidRequest, licensing.TierPro, licensing.TierEnterprise)
	}

	issuedAt := now.UTC().Truncate(time.Second)

	expiresAt := issuedAt.Add(defaultValidity)
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return licensing.Payload{}, fmt.Errorf("%w: expires_at must be an RFC 3339 timestamp", ErrInvalidRequest)
		}
		if !parsed.After(now) {
			return licensing.Payload{}, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidRequest)
		}
		expiresAt = parsed.UTC().Truncate(time.Second)
	}

	switch tier {
	case licensing.TierEnterprise:
		if req.Seats <= 0 {
			return licensing.Payload{}, fmt.Errorf("%w: seats must be a positive integer for enterprise licenses", ErrInvalidRequest)
		}
	case licensing.TierPro:
		if req.Seats != 0 {
			return licensing.Payload{}, fmt.Errorf("%w: seats is not valid for pro licenses", ErrInvalidRequest)
		}
	}

	features := req.Features
	if len(features) == 0 {
		features = licensing.DefaultFeatures(tier)
	}

	payload := licensing.Payload{
		Tier:      tier,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Licensee:  licensee,
		Features:  features,
		Seats:     req.Seats,
	}
	return payload.Normalize(), nil
}
