package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(t.TempDir(), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesSchemaAndIsUsable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Catalog().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen_CreatesVectorSidecarDirLazily(t *testing.T) {
	dataDir := t.TempDir()
	s, err := Open(dataDir, 4)
	require.NoError(t, err)
	defer s.Close()

	assert.NoDirExists(t, filepath.Join(dataDir, "vectors"))

	path := s.vectorSidecarPath(TableChunks)
	assert.Equal(t, filepath.Join(dataDir, "vectors", "chunks.hnsw"), path)
}

func TestSQLiteStore_SaveVectorSidecarsThenReopenLoads(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dataDir, 4)
	require.NoError(t, err)
	require.NoError(t, s.ChunkVectors().Add(ctx, []uint32{1}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.SaveVectorSidecars())
	require.NoError(t, s.Close())

	reopened, err := Open(dataDir, 4)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.ChunkVectors().Contains(1))
}

func TestSqliteStateStore_GetSetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.State().GetState(ctx, StateKeyEmbeddingDimension)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.State().SetState(ctx, StateKeyEmbeddingDimension, "4"))
	value, ok, err := s.State().GetState(ctx, StateKeyEmbeddingDimension)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4", value)

	// Upsert on conflict.
	require.NoError(t, s.State().SetState(ctx, StateKeyEmbeddingDimension, "8"))
	value, _, err = s.State().GetState(ctx, StateKeyEmbeddingDimension)
	require.NoError(t, err)
	assert.Equal(t, "8", value)
}

func TestDimensionsMatch_NoPriorStateMatchesAnything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	match, err := DimensionsMatch(ctx, s.State(), 384)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestDimensionsMatch_DetectsMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.State().SetState(ctx, StateKeyEmbeddingDimension, "384"))

	match, err := DimensionsMatch(ctx, s.State(), 384)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = DimensionsMatch(ctx, s.State(), 768)
	require.NoError(t, err)
	assert.False(t, match)
}
