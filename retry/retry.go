// Package retry implements retry with exponential backoff and jitter for
// calls against third-party HTTP APIs.
package retry

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 1 * time.Second
)

// Option configures a call to Do.
type Option func(*settings)

type settings struct {
	maxRetries int
	baseWait   time.Duration
}

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.maxRetries = n }
}

// WithBaseWait sets the backoff base wait duration.
func WithBaseWait(d time.Duration) Option {
	return func(s *settings) { s.baseWait = d }
}

// Do executes f, retrying on failure with exponential backoff plus jitter.
// Errors implementing APIError short-circuit retries when their status code
// is not retryable. Context cancellation aborts the wait between attempts.
func Do(ctx context.Context, f func() error, opts ...Option) error {
	s := &settings{maxRetries: DefaultMaxRetries, baseWait: DefaultBaseWait}
	for _, opt := range opts {
		opt(s)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(s.baseWait) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(backoff) * 0.1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
		if err := f(); err != nil {
			lastErr = err
			if apiErr, ok := err.(APIError); ok && !ShouldRetry(apiErr.StatusCode()) {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}

// ShouldRetry reports whether the given HTTP status code warrants a retry.
func ShouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// APIError is implemented by errors that carry an HTTP status code.
type APIError interface {
	error
	StatusCode() int
}
