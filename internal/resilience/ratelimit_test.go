package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "burst tokens should not wait")
}

func TestRateLimiterThrottlesBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(20, 1)
	ctx := context.Background()

	require.NoError(t, rl.Wait(ctx))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.Greater(t, time.Since(start), 10*time.Millisecond, "second call should wait for refill")
}

func TestRateLimiterRespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Wait(cancelCtx)
	assert.Error(t, err)
}
