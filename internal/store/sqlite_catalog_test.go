package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
)

func testCatalog(id uint32, source string) *domain.Catalog {
	return &domain.Catalog{
		ID:          id,
		Source:      source,
		Title:       "A Title",
		Text:        "full document text",
		Hash:        "hash-" + source,
		Vector:      []float32{0.1, 0.2, 0.3, 0.4},
		ConceptIDs:  []uint32{1, 2},
		CategoryIDs: []uint32{10},
		IngestedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteCatalogRepository_InsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := testCatalog(1, "/library/book.pdf")
	require.NoError(t, s.Catalog().Insert(ctx, c))

	got, err := s.Catalog().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, c.Source, got.Source)
	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, c.Vector, got.Vector)
	assert.Equal(t, c.ConceptIDs, got.ConceptIDs)
	assert.Equal(t, c.CategoryIDs, got.CategoryIDs)
}

func TestSQLiteCatalogRepository_GetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Catalog().Get(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, domainerr.CodeSourceNotFound, domainerr.GetCode(err))
}

func TestSQLiteCatalogRepository_GetBySourceAndHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Catalog().Insert(ctx, testCatalog(1, "/library/a.pdf")))

	bySource, err := s.Catalog().GetBySource(ctx, "/library/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), bySource.ID)

	byHash, err := s.Catalog().GetByHash(ctx, "hash-/library/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), byHash.ID)
}

func TestSQLiteCatalogRepository_GetByHashMissingReturnsNilNil(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.Catalog().GetByHash(ctx, "no-such-hash")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSQLiteCatalogRepository_WhereFiltersByContains(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testCatalog(1, "/library/a.pdf")
	a.CategoryIDs = []uint32{10, 20}
	b := testCatalog(2, "/library/b.pdf")
	b.CategoryIDs = []uint32{30}

	require.NoError(t, s.Catalog().Insert(ctx, a))
	require.NoError(t, s.Catalog().Insert(ctx, b))

	results, err := s.Catalog().Where(ctx, []Filter{{Field: "category_ids", Op: "contains", Value: 10}}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(1), results[0].ID)
}

func TestSQLiteCatalogRepository_AllAndCountAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Catalog().Insert(ctx, testCatalog(1, "/library/a.pdf")))
	require.NoError(t, s.Catalog().Insert(ctx, testCatalog(2, "/library/b.pdf")))

	all, err := s.Catalog().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	n, err := s.Catalog().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Catalog().Delete(ctx, 1))
	n, err = s.Catalog().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
