package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Bulkhead bounds the number of concurrent in-flight calls to one
// endpoint, per spec.md section 4.5 (LLM: 10, embedding: 20, store: 50).
// Built on golang.org/x/sync/semaphore, already transitively available via
// the teacher's errgroup dependency on golang.org/x/sync.
type Bulkhead struct {
	sem *semaphore.Weighted
}

// NewBulkhead creates a bulkhead with the given number of concurrent slots.
func NewBulkhead(slots int) *Bulkhead {
	return &Bulkhead{sem: semaphore.NewWeighted(int64(slots))}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	return b.sem.Acquire(ctx, 1)
}

// Release returns a slot to the pool.
func (b *Bulkhead) Release() {
	b.sem.Release(1)
}
