// Package retry provides a small backoff helper for outbound calls that
// are worth a second attempt (media uploads, Telegram sends). Page fetches
// are deliberately not retried: a dropped candidate is re-offered by its
// source on the next run.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/getjobwire/jobwire/internal/model"
)

// Do calls fn up to 1+maxRetries times, sleeping with exponential backoff
// and ±30% jitter between attempts. A Retry-After carried by an HTTPError
// overrides the computed delay. Context cancellation and non-retryable
// errors stop immediately.
func Do(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	err := fn()
	if err == nil || !isRetryable(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= maxRetries; attempt++ {
		delay := backoffDelay(baseDelay, attempt, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// backoffDelay computes baseDelay * 2^(attempt-1) with ±30% jitter, unless
// the error carries an explicit Retry-After.
func backoffDelay(baseDelay time.Duration, attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// permanentError marks an error that must not be retried even though it is
// not an HTTP 4xx (e.g. an API that rejects in a 200 body).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// isRetryable reports whether err represents a transient failure.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		return false
	}

	// Non-HTTP errors (network, DNS, etc.) are worth retrying.
	return true
}
