package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
)

func testCategory(id uint32, name string, parent *uint32) *domain.Category {
	return &domain.Category{
		ID:            id,
		Name:          name,
		Aliases:       []string{name + " (alias)"},
		ParentID:      parent,
		DocumentCount: 1,
		ChunkCount:    5,
	}
}

func TestSQLiteCategoryRepository_UpsertInsertsThenUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Categories().Upsert(ctx, testCategory(1, "physics", nil)))

	got, err := s.Categories().GetByName(ctx, "physics")
	require.NoError(t, err)
	assert.Equal(t, 1, got.DocumentCount)
	assert.Nil(t, got.ParentID)

	updated := testCategory(1, "physics", nil)
	updated.DocumentCount = 7
	require.NoError(t, s.Categories().Upsert(ctx, updated))

	got, err = s.Categories().GetByName(ctx, "physics")
	require.NoError(t, err)
	assert.Equal(t, 7, got.DocumentCount)
}

func TestSQLiteCategoryRepository_ParentIDRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Categories().Upsert(ctx, testCategory(1, "science", nil)))
	parentID := uint32(1)
	require.NoError(t, s.Categories().Upsert(ctx, testCategory(2, "physics", &parentID)))

	got, err := s.Categories().Get(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, uint32(1), *got.ParentID)
}

func TestSQLiteCategoryRepository_GetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Categories().Get(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, domainerr.CodeSourceNotFound, domainerr.GetCode(err))
}

func TestSQLiteCategoryRepository_AllReturnsEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Categories().Upsert(ctx, testCategory(1, "physics", nil)))
	require.NoError(t, s.Categories().Upsert(ctx, testCategory(2, "chemistry", nil)))

	all, err := s.Categories().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteCategoryRepository_UpdateCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Categories().Upsert(ctx, testCategory(1, "physics", nil)))
	require.NoError(t, s.Categories().UpdateCounts(ctx, 1, 42, 314))

	got, err := s.Categories().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 42, got.DocumentCount)
	assert.Equal(t, 314, got.ChunkCount)
}
