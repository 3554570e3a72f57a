package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/kjstillabower/rent-lookup-service/internal/circuitbreaker"
	"github.com/kjstillabower/rent-lookup-service/internal/observability"
)

var (
	ErrNotConfigured     = errors.New("API credential not configured")
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

// RetryConfig controls retries of one upstream call.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetry is used when a zero RetryConfig is passed.
var DefaultRetry = RetryConfig{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.Attempts <= 0 {
		r.Attempts = DefaultRetry.Attempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = DefaultRetry.BaseDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = DefaultRetry.MaxDelay
	}
	return r
}

// caller runs GET requests against one upstream with per-attempt timeout, retry with
// exponential backoff and jitter, an optional circuit breaker, and metrics labelled by source.
type caller struct {
	source  string
	client  *http.Client
	timeout time.Duration
	retry   RetryConfig
	breaker *circuitbreaker.CircuitBreaker
}

func newCaller(source string, timeout time.Duration, retry RetryConfig) *caller {
	return &caller{
		source:  source,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		retry:   retry.withDefaults(),
	}
}

// get fetches rawURL and hands the body to decode. Retries on rate limiting, 5xx and timeouts.
func (c *caller) get(ctx context.Context, rawURL string, decode func([]byte) error) error {
	var lastErr error
	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(c.source).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		err := c.callOnce(ctx, rawURL, decode)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *caller) callOnce(ctx context.Context, rawURL string, decode func([]byte) error) error {
	if c.breaker == nil {
		return c.doRequest(ctx, rawURL, decode)
	}
	return c.breaker.Call(ctx, func() error {
		return c.doRequest(ctx, rawURL, decode)
	})
}

func (c *caller) doRequest(ctx context.Context, rawURL string, decode func([]byte) error) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(c.source, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(c.source, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(c.source, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(c.source, status).Inc()
	observability.UpstreamDuration.WithLabelValues(c.source, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	return decode(body)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded")
}

func (c *caller) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retry.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 4xx other than auth/rate limit will not improve on retry.
		return fmt.Errorf("unexpected status: HTTP %d", resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
