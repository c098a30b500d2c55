package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBM25Index_SearchRanksByScore(t *testing.T) {
	idx := NewMemoryBM25Index(DefaultBM25Config())
	ctx := context.Background()

	err := idx.Index(ctx, []*BM25Document{
		{ID: 1, Content: "concept extraction uses a large language model"},
		{ID: 2, Content: "the weather today is sunny with a chance of rain"},
		{ID: 3, Content: "concept extraction and concept density are core to the engine"},
	})
	require.NoError(t, err)

	results, err := idx.Search(ctx, "concept extraction", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Doc 1 matches both query terms at a shorter-than-average document
	// length, so BM25's length normalization ranks it above doc 3 despite
	// doc 3 repeating "concept".
	assert.Equal(t, uint32(1), results[0].DocID)
	assert.Equal(t, uint32(3), results[1].DocID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryBM25Index_ReindexingReplacesDocument(t *testing.T) {
	idx := NewMemoryBM25Index(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*BM25Document{{ID: 1, Content: "alpha beta"}}))
	require.NoError(t, idx.Index(ctx, []*BM25Document{{ID: 1, Content: "gamma delta"}}))

	results, err := idx.Search(ctx, "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(ctx, "gamma", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(1), results[0].DocID)
}

func TestMemoryBM25Index_DeleteRemovesFromPostings(t *testing.T) {
	idx := NewMemoryBM25Index(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*BM25Document{
		{ID: 1, Content: "retrieval engine"},
		{ID: 2, Content: "retrieval engine ranking"},
	}))
	require.NoError(t, idx.Delete(ctx, []uint32{1}))

	results, err := idx.Search(ctx, "retrieval", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(2), results[0].DocID)
	assert.ElementsMatch(t, []uint32{2}, idx.AllIDs())
}

func TestMemoryBM25Index_SearchOnEmptyQueryOrIndex(t *testing.T) {
	idx := NewMemoryBM25Index(DefaultBM25Config())
	ctx := context.Background()

	results, err := idx.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, idx.Index(ctx, []*BM25Document{{ID: 1, Content: "hello world"}}))
	results, err = idx.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryBM25Index_StatsReflectsCorpus(t *testing.T) {
	idx := NewMemoryBM25Index(DefaultBM25Config())
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*BM25Document{
		{ID: 1, Content: "one two three four"},
		{ID: 2, Content: "one two"},
	}))

	stats := idx.Stats()
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 3.0, stats.AvgDocLength)
}

func TestMemoryBM25Index_OperationsFailAfterClose(t *testing.T) {
	idx := NewMemoryBM25Index(DefaultBM25Config())
	ctx := context.Background()
	require.NoError(t, idx.Close())

	assert.Error(t, idx.Index(ctx, []*BM25Document{{ID: 1, Content: "x"}}))
	_, err := idx.Search(ctx, "x", 10)
	assert.Error(t, err)
}

func TestIdfFor_FloorsNegativeIDF(t *testing.T) {
	// A term appearing in every document would produce a negative raw IDF;
	// idfFor floors it at a small positive constant instead.
	idf := idfFor(10, 10)
	assert.Equal(t, 0.01, idf)
}

func TestIdfFor_RareTermScoresHigherThanCommonTerm(t *testing.T) {
	rare := idfFor(100, 2)
	common := idfFor(100, 50)
	assert.Greater(t, rare, common)
}
