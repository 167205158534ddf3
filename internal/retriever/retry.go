package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"
)

// RetryConfig controls retry behavior.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultRetryConfig is suitable for most HTTP calls.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     10 * time.Second,
	Multiplier:  2.0,
}

// RetryDo retries fn up to MaxRetries times with exponential backoff.
// Retries only on retryable errors; returns immediately on non-retryable or context cancellation.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}

		if attempt < rc.MaxRetries {
			wait := time.Duration(float64(rc.InitialWait) * math.Pow(rc.Multiplier, float64(attempt)))
			if wait > rc.MaxWait {
				wait = rc.MaxWait
			}
			slog.Debug("retrying", slog.Int("attempt", attempt+1), slog.Duration("wait", wait), slog.Any("error", err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}

// RetryHTTP executes an HTTP request function with retry logic.
// The function should build and send the request; RetryHTTP handles response status checks.
func RetryHTTP(ctx context.Context, rc RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return RetryDo(ctx, rc, func() (*http.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, &HTTPStatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// HTTPStatusError reports a non-success HTTP status.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.StatusCode)
}

// IsRetryableStatus reports whether an HTTP status is worth retrying.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryable(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.StatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || !errors.Is(err, context.Canceled)
	}
	return false
}
