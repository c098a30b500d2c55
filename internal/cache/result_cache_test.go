package cache

import (
	"testing"
	"time"
)

func TestSearchCacheKey_FingerprintIsStableAndDistinguishesFields(t *testing.T) {
	base := SearchCacheKey{QueryText: "neural networks", Limit: 10, Profile: "broad"}
	same := SearchCacheKey{QueryText: "neural networks", Limit: 10, Profile: "broad"}
	if base.Fingerprint() != same.Fingerprint() {
		t.Fatalf("identical keys produced different fingerprints")
	}

	variants := []SearchCacheKey{
		{QueryText: "other query", Limit: 10, Profile: "broad"},
		{QueryText: "neural networks", Limit: 20, Profile: "broad"},
		{QueryText: "neural networks", Limit: 10, Profile: "narrow"},
		{QueryText: "neural networks", Limit: 10, Profile: "broad", SourceFilter: "book.pdf"},
		{QueryText: "neural networks", Limit: 10, Profile: "broad", ExcludeMetaContent: true},
		{QueryText: "neural networks", Limit: 10, Profile: "broad", ExcludeReferences: true},
	}
	for _, v := range variants {
		if v.Fingerprint() == base.Fingerprint() {
			t.Fatalf("variant %+v collided with base fingerprint", v)
		}
	}
}

func TestResultCache_AddAndGetRoundTrips(t *testing.T) {
	c := NewResultCache[[]string](10, time.Minute)
	key := SearchCacheKey{QueryText: "machine learning", Limit: 5}

	if _, ok := c.Get(key); ok {
		t.Fatalf("expected miss before Add")
	}

	c.Add(key, []string{"chunk-1", "chunk-2"})
	got, ok := c.Get(key)
	if !ok {
		t.Fatalf("expected hit after Add")
	}
	if len(got) != 2 || got[0] != "chunk-1" {
		t.Fatalf("Get = %v, want [chunk-1 chunk-2]", got)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("Stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestResultCache_EntriesExpireAfterTTL(t *testing.T) {
	c := NewResultCache[int](10, 10*time.Millisecond)
	key := SearchCacheKey{QueryText: "expiring"}
	c.Add(key, 42)

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestResultCache_InvalidatePurgesAllEntries(t *testing.T) {
	c := NewResultCache[int](10, time.Minute)
	c.Add(SearchCacheKey{QueryText: "a"}, 1)
	c.Add(SearchCacheKey{QueryText: "b"}, 2)

	c.Invalidate()

	if c.Len() != 0 {
		t.Fatalf("Len after Invalidate = %d, want 0", c.Len())
	}
}

func TestNewResultCache_DefaultsAppliedOnNonPositiveArgs(t *testing.T) {
	c := NewResultCache[int](0, 0)
	c.Add(SearchCacheKey{QueryText: "x"}, 1)
	if _, ok := c.Get(SearchCacheKey{QueryText: "x"}); !ok {
		t.Fatalf("expected cache to function with default capacity/ttl")
	}
}
