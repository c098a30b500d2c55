package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1.5, cfg.Search.BM25K1)
	assert.Equal(t, 0.75, cfg.Search.BM25B)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 3, cfg.Search.CandidateOverfetch)

	assert.InDelta(t, 1.0,
		cfg.Search.CatalogWeights.Vector+cfg.Search.CatalogWeights.BM25+
			cfg.Search.CatalogWeights.Title+cfg.Search.CatalogWeights.ConceptAlignment+
			cfg.Search.CatalogWeights.Thesaurus, 0.001)

	assert.Equal(t, 0.40, cfg.Search.ChunkWeights.Vector)
	assert.Equal(t, 0.0, cfg.Search.ChunkWeights.Title)

	assert.Equal(t, 10, cfg.Resilience.LLM.BulkheadSlots)
	assert.Equal(t, 20, cfg.Resilience.Embedding.BulkheadSlots)
	assert.Equal(t, 50, cfg.Resilience.Store.BulkheadSlots)
	assert.Equal(t, 5, cfg.Resilience.LLM.FailureThreshold)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("rejects non-positive bm25 k1", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Search.BM25K1 = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects out of range bm25 b", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Search.BM25B = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects weight sum far from 1.0", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Search.CatalogWeights.Vector = 0.9
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects chunk overlap >= chunk size", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Ingestion.ChunkOverlap = cfg.Ingestion.ChunkSize
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects zero workers", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Ingestion.Workers = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadFromProjectFile(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
search:
  bm25_k1: 1.2
  max_results: 5
ingestion:
  workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".concept-rag.yaml"), []byte(yamlContent), 0644))

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1.2, cfg.Search.BM25K1)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 4, cfg.Ingestion.Workers)
	// Untouched fields keep their defaults.
	assert.Equal(t, 0.75, cfg.Search.BM25B)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()

	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", t.TempDir())
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	os.Setenv("CONCEPTRAG_BM25_K1", "2.0")
	os.Setenv("CONCEPTRAG_INGEST_WORKERS", "8")
	defer os.Unsetenv("CONCEPTRAG_BM25_K1")
	defer os.Unsetenv("CONCEPTRAG_INGEST_WORKERS")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Search.BM25K1)
	assert.Equal(t, 8, cfg.Ingestion.Workers)
}

func TestAPIKeyResolvesFromConfiguredEnvVar(t *testing.T) {
	cfg := NewConfig()
	cfg.LLM.APIKeyEnv = "TEST_CONCEPTRAG_API_KEY"
	os.Setenv("TEST_CONCEPTRAG_API_KEY", "sk-test")
	defer os.Unsetenv("TEST_CONCEPTRAG_API_KEY")

	assert.Equal(t, "sk-test", cfg.APIKey())
}

func TestGetUserConfigPathRespectsXDG(t *testing.T) {
	origXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	defer os.Setenv("XDG_CONFIG_HOME", origXDG)

	path := GetUserConfigPath()
	assert.Equal(t, "/tmp/xdgtest/concept-rag/config.yaml", path)
}
