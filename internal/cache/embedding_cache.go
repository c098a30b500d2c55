package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/concept-rag/conceptrag/internal/embedding"
)

// DefaultEmbeddingCacheCapacity is spec.md section 4.4's embedding cache
// size: "capacity 10 000".
const DefaultEmbeddingCacheCapacity = 10000

// EmbeddingCache wraps an embedding.Embedder with an LRU cache keyed on
// SHA-256(text, model) -- no TTL, since embeddings are pure functions of
// their input (spec.md section 4.4). Directly grounded on the teacher's
// embed.CachedEmbedder (internal/embed/cached.go), generalized to this
// module's fixed-dimension Embedder interface.
type EmbeddingCache struct {
	inner embedding.Embedder
	cache *Cache[string, []float32]
}

// NewEmbeddingCache wraps inner with a capacity-bounded cache.
func NewEmbeddingCache(inner embedding.Embedder, capacity int) (*EmbeddingCache, error) {
	if capacity <= 0 {
		capacity = DefaultEmbeddingCacheCapacity
	}
	cache, err := New[string, []float32](capacity)
	if err != nil {
		return nil, err
	}
	return &EmbeddingCache{inner: inner, cache: cache}, nil
}

func (c *EmbeddingCache) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached embedding for text if present, otherwise
// computes and caches it.
func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch checks the cache for each text individually, computing only
// the texts that miss, matching the teacher's per-text cache reuse.
func (c *EmbeddingCache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	computed, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = computed[j]
		c.cache.Add(c.cacheKey(texts[idx]), computed[j])
	}
	return results, nil
}

// Dimensions passes through to the inner embedder.
func (c *EmbeddingCache) Dimensions() int { return c.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (c *EmbeddingCache) ModelName() string { return c.inner.ModelName() }

// Available passes through to the inner embedder.
func (c *EmbeddingCache) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

// Close closes the inner embedder.
func (c *EmbeddingCache) Close() error { return c.inner.Close() }

// Stats returns cumulative hit/miss/eviction counts for the embedding cache.
func (c *EmbeddingCache) Stats() Stats { return c.cache.Stats() }

var _ embedding.Embedder = (*EmbeddingCache)(nil)
