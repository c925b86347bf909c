package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a single readiness request.
const DefaultRequestTimeout = 5 * time.Second

// HTTPChecker performs HTTP readiness checks. Only a 2xx response counts
// as ready; the body is ignored.
type HTTPChecker struct {
	// URL is the full readiness URL, e.g. http://localhost:8000/health/ready
	URL string

	// Headers are added to every request
	Headers map[string]string

	// Client is the HTTP client to use
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP readiness checker
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:     url,
		Headers: make(map[string]string),
		Client: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
	}
}

// Check performs one GET against the readiness URL
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused by the next attempt.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	healthy := resp.StatusCode >= 200 && resp.StatusCode <= 299

	message := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message += " (expected 2xx)"
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// WithHeader adds a custom HTTP header
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithTimeout sets the per-request timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	if timeout > 0 {
		h.Client.Timeout = timeout
	}
	return h
}
