package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/concept-rag/conceptrag/internal/domainerr"
)

// RetryConfig configures exponential backoff retry, per spec.md section
// 4.5: `1s * 2^attempt`, capped at 30s, max 3 attempts.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches spec.md section 4.5's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// delayFor computes 1s * 2^attempt, capped at MaxDelay.
func (c RetryConfig) delayFor(attempt int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * pow2(attempt))
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

func pow2(n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

// Retry runs fn up to cfg.MaxAttempts times with exponential backoff.
// Validation errors (anything not a retryable domain error) are not
// retried. A CodeRateLimit error's RetryAfter, if set, overrides the
// computed backoff delay for that attempt.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !domainerr.IsRetryable(err) {
			return err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		wait := cfg.delayFor(attempt)
		if de, ok := err.(*domainerr.Error); ok && de.Code == domainerr.CodeRateLimit && de.RetryAfter > 0 {
			wait = de.RetryAfter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// RetryWithResult is Retry for functions that also return a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
		}

		r, err := fn()
		if err == nil {
			return r, nil
		}
		result = r
		lastErr = err

		if !domainerr.IsRetryable(err) {
			return result, err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		wait := cfg.delayFor(attempt)
		if de, ok := err.(*domainerr.Error); ok && de.Code == domainerr.CodeRateLimit && de.RetryAfter > 0 {
			wait = de.RetryAfter
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}

	var zero T
	return zero, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
