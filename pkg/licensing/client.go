package licensing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RevalidationResult is the issuing authority's verdict on a license.
type RevalidationResult struct {
	Valid     bool      `json:"valid"`
	Tier      Tier      `json:"tier,omitempty"`
	Features  []string  `json:"features,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// RevalidationClient performs the online check Enterprise licenses need
// before their first trust and after the offline grace window lapses.
type RevalidationClient interface {
	// Revalidate asks the issuing authority whether the license is still
	// good. Transport failures must be reported wrapped in
	// ErrRevalidationUnavailable so the caller can fall back to the
	// offline cache; an authoritative "no" is any other error or a
	// result with Valid=false.
	Revalidate(ctx context.Context, licenseKey string, seatsInUse int) (*RevalidationResult, error)
}

const (
	defaultRevalidateTimeout  = 10 * time.Second
	defaultRevalidateAttempts = 3
	defaultRevalidateBackoff  = 2 * time.Second
)

// HTTPRevalidationClient revalidates against the issuer's /validate
// endpoint with a bounded timeout and retry-with-backoff. Timeouts are
// treated identically to "network unavailable".
type HTTPRevalidationClient struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewHTTPRevalidationClient creates a client for the issuing authority at
// baseURL (e.g. "https://license.mcp-guard.io").
func NewHTTPRevalidationClient(baseURL string) *HTTPRevalidationClient {
	return &HTTPRevalidationClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: defaultRevalidateTimeout},
		maxAttempts: defaultRevalidateAttempts,
		backoff:     defaultRevalidateBackoff,
	}
}

type revalidateRequest struct {
	LicenseKey string `json:"license_key"`
	SeatsInUse int    `json:"seats_in_use,omitempty"`
}

// Revalidate implements RevalidationClient.
func (c *HTTPRevalidationClient) Revalidate(ctx context.Context, licenseKey string, seatsInUse int) (*RevalidationResult, error) {
	body, err := json.Marshal(revalidateRequest{LicenseKey: licenseKey, SeatsInUse: seatsInUse})
	if err != nil {
		return nil, fmt.Errorf("marshal revalidation request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff * time.Duration(1<<(attempt-2))
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying license revalidation")
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrRevalidationUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := c.revalidateOnce(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Authoritative rejections are terminal; only transport-level
		// failures are worth another attempt.
		if !isUnavailable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *HTTPRevalidationClient) revalidateOnce(ctx context.Context, body []byte) (*RevalidationResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build revalidation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRevalidationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: issuer returned HTTP %d", ErrRevalidationUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRevalidationUnavailable, err)
	}

	var result RevalidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: undecodable response", ErrRevalidationUnavailable)
	}
	return &result, nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrRevalidationUnavailable)
}
