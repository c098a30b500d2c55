package resilience

import (
	"context"
	"time"

	"github.com/concept-rag/conceptrag/internal/domainerr"
)

// EndpointConfig configures one Executor instance for one outbound
// collaborator (LLM, embedding, store), per spec.md section 4.5.
type EndpointConfig struct {
	Name string

	BulkheadSlots int
	Timeout       time.Duration

	FailureThreshold int
	HalfOpenAfter    time.Duration

	Retry RetryConfig

	// RateLimiter is optional; when set, every call waits for a token
	// before acquiring a bulkhead slot (spec.md section 5's shared
	// token-bucket limiter for LLM/embedding calls).
	RateLimiter *RateLimiter
}

// Executor composes bulkhead -> circuit breaker -> timeout -> retry into
// a single call wrapper for one endpoint, grounded on the teacher's
// separate CircuitBreaker/Retry primitives generalized into one type
// (SPEC_FULL.md section 4.5).
type Executor struct {
	name     string
	bulkhead *Bulkhead
	breaker  *CircuitBreaker
	timeout  time.Duration
	retry    RetryConfig
	limiter  *RateLimiter
}

// NewExecutor builds an Executor from an EndpointConfig.
func NewExecutor(cfg EndpointConfig) *Executor {
	return &Executor{
		name:     cfg.Name,
		bulkhead: NewBulkhead(cfg.BulkheadSlots),
		breaker:  NewCircuitBreaker(cfg.Name, cfg.FailureThreshold, cfg.HalfOpenAfter),
		timeout:  cfg.Timeout,
		retry:    cfg.Retry,
		limiter:  cfg.RateLimiter,
	}
}

// Do runs fn under the full resilience composition: rate limit (if
// configured) -> bulkhead slot -> circuit breaker -> per-call timeout,
// retried per cfg.Retry for transient failures only.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Retry(ctx, e.retry, func() error {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return domainerr.Wrap(domainerr.CodeTimeout, err)
			}
		}

		if err := e.bulkhead.Acquire(ctx); err != nil {
			return domainerr.Wrap(domainerr.CodeTimeout, err)
		}
		defer e.bulkhead.Release()

		return e.breaker.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			err := fn(callCtx)
			if err != nil && callCtx.Err() != nil {
				return domainerr.New(domainerr.CodeTimeout, "call to "+e.name+" timed out", err)
			}
			return err
		})
	})
}

// DoWithResult runs fn under the same composition, returning a value.
func DoWithResult[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithResult(ctx, e.retry, func() (T, error) {
		var zero T
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return zero, domainerr.Wrap(domainerr.CodeTimeout, err)
			}
		}

		if err := e.bulkhead.Acquire(ctx); err != nil {
			return zero, domainerr.Wrap(domainerr.CodeTimeout, err)
		}
		defer e.bulkhead.Release()

		var result T
		err := e.breaker.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			r, callErr := fn(callCtx)
			result = r
			if callErr != nil && callCtx.Err() != nil {
				return domainerr.New(domainerr.CodeTimeout, "call to "+e.name+" timed out", callErr)
			}
			return callErr
		})
		return result, err
	})
}

// State returns the executor's circuit breaker state, for diagnostics.
func (e *Executor) State() State {
	return e.breaker.State()
}
