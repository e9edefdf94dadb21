package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/g-k/tecken/internal/orchestrator"
)

// HTTPClient probes an HTTP endpoint, used for the emulated S3 storage
// backend and for any http:// wait target. Object-store roots commonly
// answer 403 or 404 to anonymous GETs, so any status below 500 counts as up.
type HTTPClient struct {
	name   string
	url    string
	cb     *gobreaker.CircuitBreaker
	httpDo func(req *http.Request) (*http.Response, error)
}

// NewHTTPClient constructs an HTTPClient. No HTTP calls are made at
// construction time; they happen lazily inside Probe.
func NewHTTPClient(name, url string, cb *gobreaker.CircuitBreaker) *HTTPClient {
	return &HTTPClient{
		name:   name,
		url:    url,
		cb:     cb,
		httpDo: http.DefaultClient.Do,
	}
}

// Probe issues a GET against the configured URL. Transport failures and
// HTTP 5xx responses count as down; everything else counts as up. The call
// is wrapped in the circuit breaker.
func (c *HTTPClient) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, fmt.Errorf("building probe request: %w", err)
		}

		resp, err := c.httpDo(req)
		if err != nil {
			return nil, fmt.Errorf("probe request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
		}

		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return orchestrator.ProbeResult{
			Name:      c.name,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return orchestrator.ProbeResult{
		Name:      c.name,
		OK:        true,
		LatencyMs: latency,
	}
}
