package util

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"
)

const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
)

// RetryWithBackoff calls fn up to maxRetries+1 times with exponential backoff
// and up to 10% jitter. fn receives the current attempt number (0-indexed) and
// should return nil on success. A non-retryable error aborts immediately.
// If the context is cancelled, RetryWithBackoff returns the context error.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}

		// Don't wait after the last attempt
		if attempt == maxRetries {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
		wait := delay + jitter
		if wait > retryMaxDelay {
			wait = retryMaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(delay*2, retryMaxDelay)
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// ErrTransient marks an error as retryable regardless of its text.
var ErrTransient = errors.New("transient error")

// IsRetryable reports whether an error is worth retrying: rate limiting,
// server-side failures, timeouts, and connection problems. Authentication
// and not-found conditions are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"rate limit", "ratelimit", "too many requests",
		"timeout", "timed out",
		"connection reset", "connection refused", "connection error", "broken pipe",
		"temporary", "transient",
		"status 500", "status 502", "status 503", "status 504",
		"server error", "service unavailable",
		"please try again later",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
