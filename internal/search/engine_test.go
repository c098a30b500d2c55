package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concept-rag/conceptrag/internal/cache"
	"github.com/concept-rag/conceptrag/internal/config"
	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/store"
)

const testDims = 4

// stubEmbedder returns a fixed direction per text, grounded on the cache
// package's fakeEmbedder convention (internal/cache/embedding_cache_test.go):
// deterministic, no network, distinguishable by keyword so cosine similarity
// is meaningful in assertions.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if containsWholeWord(text, "architecture") {
		return []float32{1, 0, 0, 0}, nil
	}
	return []float32{0, 1, 0, 0}, nil
}

func (e stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (stubEmbedder) Dimensions() int                  { return testDims }
func (stubEmbedder) ModelName() string                { return "stub" }
func (stubEmbedder) Available(ctx context.Context) bool { return true }
func (stubEmbedder) Close() error                     { return nil }

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir(), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.NewConfig().Search
	e := NewEngine(st, stubEmbedder{}, nil, cache.NewIDCache(), cfg, nil)
	return e, st
}

func seedCatalogRow(t *testing.T, st store.Store, source, text string, vector []float32) *domain.Catalog {
	t.Helper()
	ctx := context.Background()
	c := &domain.Catalog{
		ID:         domain.NewCatalogID(source),
		Source:     source,
		Title:      domain.DeriveTitle(source),
		Text:       text,
		Hash:       fmt.Sprintf("%x", domain.StableHash(text)),
		Vector:     vector,
		IngestedAt: time.Now(),
	}
	require.NoError(t, st.Catalog().Insert(ctx, c))
	require.NoError(t, st.CatalogVectors().Add(ctx, []uint32{c.ID}, [][]float32{vector}))
	require.NoError(t, st.CatalogBM25().Index(ctx, []*store.BM25Document{{ID: c.ID, Content: text}}))
	return c
}

func seedChunk(t *testing.T, st store.Store, source, text string, vector []float32, conceptIDs []uint32, density float64) *domain.Chunk {
	t.Helper()
	ctx := context.Background()
	c := &domain.Chunk{
		ID:             domain.NewChunkID(source+text, 0),
		Source:         source,
		Text:           text,
		Vector:         vector,
		ConceptIDs:     conceptIDs,
		ConceptDensity: density,
	}
	require.NoError(t, st.Chunks().Insert(ctx, c))
	require.NoError(t, st.ChunkVectors().Add(ctx, []uint32{c.ID}, [][]float32{vector}))
	require.NoError(t, st.ChunkBM25().Index(ctx, []*store.BM25Document{{ID: c.ID, Content: text}}))
	return c
}

func TestEngine_SearchCatalogRanksTitleMatchFirst(t *testing.T) {
	e, st := newTestEngine(t)
	seedCatalogRow(t, st, "/library/architecture_guide.pdf", "an overview of software architecture patterns", []float32{1, 0, 0, 0})
	seedCatalogRow(t, st, "/library/cooking.pdf", "a guide to cooking pasta", []float32{0, 1, 0, 0})

	rs, err := e.SearchCatalog(context.Background(), "architecture", 2)
	require.NoError(t, err)
	require.Len(t, rs.Results, 2)

	assert.Contains(t, rs.Results[0].Source, "architecture")
	assert.Greater(t, rs.Results[0].Score, 0.3)
}

func TestEngine_SearchCatalogEmptyQueryIsMissingParameter(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.SearchCatalog(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestEngine_SearchChunksBroadExcludesMetaContent(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	tocChunk := seedChunk(t, st, "/library/book.pdf", "chapter one .... 1 chapter two .... 5", []float32{1, 0, 0, 0}, nil, 0)
	tocChunk.IsMetaContent = true
	require.NoError(t, st.Chunks().DeleteBySource(ctx, tocChunk.Source))
	require.NoError(t, st.Chunks().Insert(ctx, tocChunk))

	seedChunk(t, st, "/library/book.pdf", "chapter one begins with a discussion of architecture", []float32{1, 0, 0, 0}, nil, 0)

	rs, err := e.SearchChunksBroad(ctx, "chapter", 10, true, false)
	require.NoError(t, err)
	for _, r := range rs.Results {
		assert.NotEqual(t, tocChunk.ID, r.ID, "meta-content chunk must be excluded")
	}
}

func TestEngine_SearchChunksInSourceRequiresSource(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.SearchChunksInSource(context.Background(), "architecture", "", 5)
	assert.Error(t, err)
}

func TestEngine_SearchConceptReturnsChunksCarryingConcept(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	conceptID := domain.StableHash("dependency injection")
	concept := &domain.Concept{
		ID:         conceptID,
		Concept:    "dependency injection",
		Vector:     []float32{1, 0, 0, 0},
		Weight:     1,
		ChunkCount: 1,
		CatalogIDs: []uint32{},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	handle, err := st.Concepts().BeginRebuild(ctx)
	require.NoError(t, err)
	require.NoError(t, handle.Insert(ctx, concept))
	require.NoError(t, handle.Commit(ctx))

	seedChunk(t, st, "/library/patterns.pdf", "dependency injection decouples construction from use", []float32{1, 0, 0, 0}, []uint32{conceptID}, 0.2)
	seedChunk(t, st, "/library/cooking.pdf", "a recipe with no relation to the concept", []float32{0, 1, 0, 0}, nil, 0)

	rs, err := e.SearchConcept(ctx, "dependency injection", 5)
	require.NoError(t, err)
	require.Len(t, rs.Results, 1)
	assert.Contains(t, rs.Results[0].MatchedConceptIDs, conceptID)
}

func TestEngine_SearchConceptUnknownNameReturnsConceptNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.SearchConcept(context.Background(), "nonexistent concept", 5)
	assert.Error(t, err)
}

func TestEngine_InvalidateResultCacheClearsCache(t *testing.T) {
	e, st := newTestEngine(t)
	seedCatalogRow(t, st, "/library/architecture_guide.pdf", "an overview of software architecture patterns", []float32{1, 0, 0, 0})

	ctx := context.Background()
	_, err := e.SearchCatalog(ctx, "architecture", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, e.results.Len())

	e.InvalidateResultCache()
	assert.Equal(t, 0, e.results.Len())
}
