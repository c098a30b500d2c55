package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return domainerr.New(domainerr.CodeTimeout, "slow", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryNeverRetriesNonRetryableError(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig()

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return domainerr.New(domainerr.CodeInvalidQuery, "bad input", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryNeverRetriesPlainError(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig()

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("unstructured failure")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return domainerr.New(domainerr.CodeTimeout, "slow", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryHonorsRateLimitRetryAfter(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: time.Hour, MaxDelay: time.Hour}
	start := time.Now()

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts == 1 {
			de := domainerr.New(domainerr.CodeRateLimit, "slow down", nil)
			de.RetryAfter = 5 * time.Millisecond
			return de
		}
		return nil
	})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "RetryAfter should override the hour-long backoff")
}

func TestDelayForCapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	assert.Equal(t, time.Second, cfg.delayFor(0))
	assert.Equal(t, 2*time.Second, cfg.delayFor(1))
	assert.Equal(t, 4*time.Second, cfg.delayFor(2))
	assert.Equal(t, 30*time.Second, cfg.delayFor(10))
}

func TestRetryWithResultReturnsValue(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	attempts := 0

	result, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, domainerr.New(domainerr.CodeTimeout, "slow", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := DefaultRetryConfig()

	err := Retry(ctx, cfg, func() error {
		t.Fatal("fn should not run once context is cancelled")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
