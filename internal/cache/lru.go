// Package cache provides the generic LRU, search-result cache, embedding
// cache, and concept/category id caches (spec.md section 4.4), grounded on
// the teacher's embed.CachedEmbedder (internal/embed/cached.go) and
// search.queryClassifier (internal/search/classifier.go) LRU usage,
// generalized from their single-purpose caches into a reusable Cache[K,V].
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats reports cumulative hit/miss/eviction counts for a Cache.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Cache is a generic bounded LRU with hit/miss/eviction tracking, backed by
// hashicorp/golang-lru/v2's O(1) hashmap+doubly-linked-list implementation
// (spec.md section 4.4: "O(1) get/set via hash map + doubly linked list;
// tracks hits/misses/evictions. On get, move node to head; on set past
// capacity, evict tail" -- both properties come directly from the
// underlying library, not reimplemented here).
type Cache[K comparable, V any] struct {
	inner *lru.Cache[K, V]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a bounded LRU of the given capacity.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	c := &Cache[K, V]{}
	inner, err := lru.NewWithEvict[K, V](capacity, func(K, V) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.inner = inner
	return c, nil
}

// Get returns the cached value for key, tracking a hit or miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add inserts or replaces key's value.
func (c *Cache[K, V]) Add(key K, value V) {
	c.inner.Add(key, value)
}

// Remove evicts key, if present.
func (c *Cache[K, V]) Remove(key K) {
	c.inner.Remove(key)
}

// Len returns the number of entries currently cached.
func (c *Cache[K, V]) Len() int {
	return c.inner.Len()
}

// Purge clears every entry. The library's eviction callback fires for each
// purged entry, so every removal is counted as an eviction.
func (c *Cache[K, V]) Purge() {
	c.inner.Purge()
}

// Stats returns a snapshot of cumulative hit/miss/eviction counts.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
