// Package cmd provides the CLI commands for conceptrag, grounded on the
// teacher's cmd/amanmcp/cmd package (cobra root command plus subcommands,
// persistent --debug logging flag) but trimmed of the daemon/session/MCP
// transport commands that are out of scope here (spec.md section 1).
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/concept-rag/conceptrag/internal/cache"
	"github.com/concept-rag/conceptrag/internal/conceptindex"
	"github.com/concept-rag/conceptrag/internal/config"
	"github.com/concept-rag/conceptrag/internal/embedding"
	"github.com/concept-rag/conceptrag/internal/ingest"
	"github.com/concept-rag/conceptrag/internal/llm"
	"github.com/concept-rag/conceptrag/internal/resilience"
	"github.com/concept-rag/conceptrag/internal/search"
	"github.com/concept-rag/conceptrag/internal/store"
	"github.com/concept-rag/conceptrag/internal/toolsurface"
)

// app bundles every wired collaborator a subcommand needs, assembled once
// from Config per spec.md section 2's component table.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	embedder embedding.Embedder
	names    *cache.IDCache
	engine   *search.Engine
	surface  *toolsurface.Surface
	llm      *llm.Client
	builder  *conceptindex.Builder
	logger   *slog.Logger
}

func endpointConfig(name string, r config.EndpointResilience, limiter *resilience.RateLimiter) resilience.EndpointConfig {
	return resilience.EndpointConfig{
		Name:             name,
		BulkheadSlots:    r.BulkheadSlots,
		Timeout:          r.Timeout,
		FailureThreshold: r.FailureThreshold,
		HalfOpenAfter:    r.HalfOpenAfter,
		Retry: resilience.RetryConfig{
			MaxAttempts: r.RetryMaxAttempts,
			BaseDelay:   r.RetryBaseDelay,
			MaxDelay:    r.RetryMaxDelay,
		},
		RateLimiter: limiter,
	}
}

// newApp wires the full dependency graph: store, cache-aside embedder, LLM
// client, concept index builder, and the search engine/tool surface atop
// them, per SPEC_FULL.md section 2's "Config -> Store -> Caches -> Engine"
// composition order.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.Paths.DataDir, cfg.Embeddings.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sharedLimiter := resilience.NewRateLimiter(cfg.Resilience.RateLimitTokensPerSec, cfg.Resilience.RateLimitBurst)

	ollamaCfg := embedding.OllamaConfig{
		Host:      cfg.Embeddings.OllamaHost,
		Model:     cfg.Embeddings.Model,
		BatchSize: cfg.Embeddings.BatchSize,
		Executor:  endpointConfig("embedding", cfg.Resilience.Embedding, sharedLimiter),
	}
	rawEmbedder, err := embedding.NewOllamaEmbedder(ctx, ollamaCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	cachedEmbedder, err := cache.NewEmbeddingCache(rawEmbedder, cfg.Cache.EmbeddingCacheSize)
	if err != nil {
		st.Close()
		rawEmbedder.Close()
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	names := cache.NewIDCache()
	if err := primeNameCache(ctx, st, names); err != nil {
		logger.Warn("failed to prime concept/category name cache from existing store", "error", err)
	}

	llmClient := llm.NewClient(llm.Config{
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		APIKey:   os.Getenv(cfg.LLM.APIKeyEnv),
		Executor: endpointConfig("llm", cfg.Resilience.LLM, sharedLimiter),
	})

	builder := conceptindex.NewBuilder(st, cachedEmbedder, names, logger)

	var embedExec *resilience.Executor
	if cfg.Resilience.Embedding.Timeout > 0 {
		embedExec = resilience.NewExecutor(endpointConfig("query-embedding", cfg.Resilience.Embedding, nil))
	}
	engine := search.NewEngine(st, cachedEmbedder, embedExec, names, cfg.Search, logger)

	return &app{
		cfg:      cfg,
		store:    st,
		embedder: cachedEmbedder,
		names:    names,
		engine:   engine,
		surface:  toolsurface.New(engine),
		llm:      llmClient,
		builder:  builder,
		logger:   logger,
	}, nil
}

// primeNameCache loads the current Concepts table's id->name map into names,
// so a process restart doesn't require a fresh ingestion batch before
// concept_alignment scoring and name-resolving tool-surface calls work.
func primeNameCache(ctx context.Context, st *store.SQLiteStore, names *cache.IDCache) error {
	concepts, err := st.Concepts().All(ctx)
	if err != nil {
		return err
	}
	byID := make(map[uint32]string, len(concepts))
	for _, c := range concepts {
		byID[c.ID] = c.Concept
	}
	names.Swap(byID)
	return nil
}

func (a *app) Close() {
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) pipeline() *ingest.Pipeline {
	checkpointPath := a.cfg.Ingestion.CheckpointPath
	if checkpointPath == "" {
		checkpointPath = defaultCheckpointPath(a.cfg.Paths.DataDir)
	}
	checkpoint := ingest.NewCheckpointStore(checkpointPath)
	extractor := ingest.NewConceptExtractor(a.llm, a.store)
	return ingest.NewPipeline(a.store, a.embedder, extractor, checkpoint, a.builder, ingest.NoOpOCR, a.cfg.Ingestion.OCRPageThreshold, a.logger)
}

func defaultCheckpointPath(dataDir string) string {
	return dataDir + string(os.PathSeparator) + "checkpoint.json"
}

// withTimeout is a small helper for CLI commands that shouldn't block
// forever on a misbehaving endpoint.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
