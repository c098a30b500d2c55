package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultResultCacheCapacity and DefaultResultCacheTTL are spec.md section
// 4.4's search-result cache defaults.
const (
	DefaultResultCacheCapacity = 1000
	DefaultResultCacheTTL      = 5 * time.Minute
)

// SearchCacheKey is the set of fields a search-result cache entry is keyed
// on, per spec.md section 4.4: "SHA-256 of (query_text, limit,
// source_filter, profile, excludeMetaContent, excludeReferences)".
type SearchCacheKey struct {
	QueryText          string
	Limit              int
	SourceFilter       string
	Profile            string
	ExcludeMetaContent bool
	ExcludeReferences  bool
}

// Fingerprint returns the SHA-256 hex digest identifying this key, mirroring
// the teacher's embed.CachedEmbedder.cacheKey SHA-256 convention but over
// the full query-shape tuple instead of just (text, model).
func (k SearchCacheKey) Fingerprint() string {
	raw := fmt.Sprintf("%s\x00%d\x00%s\x00%s\x00%t\x00%t",
		k.QueryText, k.Limit, k.SourceFilter, k.Profile, k.ExcludeMetaContent, k.ExcludeReferences)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ResultCache caches ranked search results behind a TTL, using
// hashicorp/golang-lru/v2/expirable (same module as the generic LRU --
// spec.md section 4.4's "default TTL 5 min, capacity 1000"). V is the
// ranked-result list type, left generic so this package has no dependency
// on internal/search.
type ResultCache[V any] struct {
	inner *expirable.LRU[string, V]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a TTL-bounded result cache. capacity <= 0 and
// ttl <= 0 fall back to spec.md's defaults.
func NewResultCache[V any](capacity int, ttl time.Duration) *ResultCache[V] {
	if capacity <= 0 {
		capacity = DefaultResultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultResultCacheTTL
	}
	return &ResultCache[V]{inner: expirable.NewLRU[string, V](capacity, nil, ttl)}
}

// Get looks up the cached result list for key, cache-aside (spec.md section
// 4.4: "Lookups are always cache-aside: check -> compute -> store").
func (c *ResultCache[V]) Get(key SearchCacheKey) (V, bool) {
	v, ok := c.inner.Get(key.Fingerprint())
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add stores value under key's fingerprint.
func (c *ResultCache[V]) Add(key SearchCacheKey, value V) {
	c.inner.Add(key.Fingerprint(), value)
}

// Invalidate removes every cached entry, used after an ingestion batch
// changes the underlying corpus (spec.md section 9: result cache entries
// become stale the moment new chunks are written).
func (c *ResultCache[V]) Invalidate() {
	c.inner.Purge()
}

// Len returns the number of entries currently cached (including entries
// past TTL but not yet swept).
func (c *ResultCache[V]) Len() int {
	return c.inner.Len()
}

// Stats returns a snapshot of cumulative hit/miss counts.
func (c *ResultCache[V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
