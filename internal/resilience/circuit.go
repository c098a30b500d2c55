// Package resilience wraps every outbound call (LLM, embedding, store) with
// a circuit breaker, bulkhead, timeout, and retry, composed into a single
// Executor per endpoint (spec.md section 4.5). Adapted from the teacher's
// separate CircuitBreaker/Retry primitives in internal/errors.
package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/concept-rag/conceptrag/internal/domainerr"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements the closed/open/half-open state machine from
// spec.md section 4.5: trip after FailureThreshold consecutive failures,
// half-open after ResetTimeout, one probe on half-open (success closes,
// failure reopens).
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// NewCircuitBreaker creates a circuit breaker for the named endpoint.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Name returns the endpoint name this breaker protects.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current observed state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if from != to {
		slog.Info("circuit breaker state transition", "endpoint", cb.name, "from", from.String(), "to", to.String())
	}
}

// Execute runs fn through the breaker. Returns a domainerr with
// CodeCircuitOpen without invoking fn when the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	state := cb.currentStateLocked()

	if state == StateOpen {
		cb.mu.Unlock()
		return domainerr.New(domainerr.CodeCircuitOpen, "circuit open for "+cb.name, nil)
	}

	if state == StateHalfOpen {
		if cb.state == StateHalfOpen {
			// A probe is already in flight; only one call probes at a time.
			cb.mu.Unlock()
			return domainerr.New(domainerr.CodeCircuitOpen, "circuit half-open for "+cb.name+", probe in flight", nil)
		}
		cb.transition(StateHalfOpen)
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.transition(StateOpen)
		}
		return err
	}

	cb.failures = 0
	cb.transition(StateClosed)
	return nil
}
