package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the shared token-bucket limiter gating all LLM and
// embedding calls across ingestion workers (spec.md section 5: "tokens/sec
// per API key"). One instance is shared across every worker for a given
// endpoint; workers block when empty and unblock as cancellation
// propagates through ctx.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing tokensPerSec sustained rate
// with the given burst capacity.
func NewRateLimiter(tokensPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(tokensPerSec), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
