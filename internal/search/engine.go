package search

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/concept-rag/conceptrag/internal/cache"
	"github.com/concept-rag/conceptrag/internal/config"
	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/concept-rag/conceptrag/internal/embedding"
	"github.com/concept-rag/conceptrag/internal/resilience"
	"github.com/concept-rag/conceptrag/internal/store"
)

// Engine answers the four query shapes of spec.md section 4.1 over a single
// Store, directly grounded on the teacher's internal/search/engine.go
// Engine (bm25/vector/embedder/metadata fields, parallel-then-fuse shape),
// regeared from one flat code-chunk index to the Catalog/Chunk/Concept
// trio, with the teacher's classifier-driven dynamic weights replaced by
// spec.md's four fixed, profile-selected weight sets.
type Engine struct {
	store     store.Store
	embedder  embedding.Embedder
	embedExec *resilience.Executor // optional; wraps the query-embedding call

	conceptNames *cache.IDCache // concept id -> canonical name, for concept_alignment

	results *cache.ResultCache[*ResultSet]

	fusion   *RRFFusion
	expander *QueryExpander
	cfg      config.SearchConfig

	logger *slog.Logger
}

// NewEngine wires a scoring engine over store, embedder, and the concept
// name cache used to resolve concept_ids to names for concept_alignment.
// embedExec may be nil (no resilience wrapping around query embedding,
// e.g. in tests with a deterministic stub embedder).
func NewEngine(
	st store.Store,
	embedder embedding.Embedder,
	embedExec *resilience.Executor,
	conceptNames *cache.IDCache,
	cfg config.SearchConfig,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:        st,
		embedder:     embedder,
		embedExec:    embedExec,
		conceptNames: conceptNames,
		results:      cache.NewResultCache[*ResultSet](1000, 0),
		fusion:       NewRRFFusion(cfg.RRFConstant),
		expander:     NewQueryExpander(),
		cfg:          cfg,
		logger:       logger,
	}
}

// embedQuery resolves a query embedding, through the resilience executor
// when configured. Returns (nil, err) on failure -- callers degrade to
// BM25-only rather than fail the whole query (spec.md section 4.1 failure
// semantics).
func (e *Engine) embedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.embedExec == nil {
		return e.embedder.Embed(ctx, text)
	}
	return resilience.DoWithResult(ctx, e.embedExec, func(ctx context.Context) ([]float32, error) {
		return e.embedder.Embed(ctx, text)
	})
}

// candidatePool runs vector search and BM25 search for query and fuses them
// via RRF, per spec.md section 4.1's candidate-generation step. degraded
// reports whether vector search failed and the pool is BM25-only.
func (e *Engine) candidatePool(ctx context.Context, query string, vec store.VectorStore, bm25 store.BM25Index, overfetch int) ([]*fusedCandidate, bool, error) {
	degraded := false

	var vecResults []*store.VectorResult
	if match, err := store.DimensionsMatch(ctx, e.store.State(), e.embedder.Dimensions()); err != nil {
		e.logger.Warn("dimension check failed, degrading to BM25-only", "error", err)
		degraded = true
	} else if !match {
		e.logger.Warn("embedder dimension does not match indexed vectors, degrading to BM25-only",
			"active_dimensions", e.embedder.Dimensions())
		degraded = true
	} else if qv, err := e.embedQuery(ctx, query); err != nil {
		e.logger.Warn("query embedding failed, degrading to BM25-only", "error", err)
		degraded = true
	} else if vecResults, err = vec.Search(ctx, qv, overfetch); err != nil {
		e.logger.Warn("vector search failed, degrading to BM25-only", "error", err)
		degraded = true
		vecResults = nil
	}

	bm25Results, err := bm25.Search(ctx, query, overfetch)
	if err != nil {
		if degraded {
			return nil, true, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		e.logger.Warn("bm25 search failed, continuing with vector-only candidates", "error", err)
		bm25Results = nil
	}

	return e.fusion.Fuse(bm25Results, vecResults), degraded, nil
}

// overfetchLimit applies spec.md section 4.1's candidate overfetch
// multiplier m (default 3) to the requested limit K.
func (e *Engine) overfetchLimit(limit int) int {
	m := e.cfg.CandidateOverfetch
	if m < 1 {
		m = 3
	}
	return limit * m
}

// scoreComponents computes the five composite-score components shared by
// every profile, per spec.md section 4.1's component scoring rules.
type scoreComponents struct {
	vector     float64
	bm25       float64
	title      float64
	concept    float64
	thesaurus  float64
	conceptIDs []uint32
}

func (e *Engine) componentsFor(c *fusedCandidate, queryTokens []string, source, text string, conceptIDs []uint32) scoreComponents {
	alignment, matched := conceptAlignment(queryTokens, conceptIDs, e.conceptNames.Name)
	return scoreComponents{
		vector:     c.VectorScore,
		bm25:       normalizeBM25(c.BM25Score),
		title:      titleMatch(queryTokens, source),
		concept:    alignment,
		thesaurus:  thesaurusExpansion(e.expander, queryTokens, text),
		conceptIDs: matched,
	}
}

func composite(w config.ScoreWeights, s scoreComponents) float64 {
	return w.Vector*s.vector + w.BM25*s.bm25 + w.Title*s.title +
		w.ConceptAlignment*s.concept + w.Thesaurus*s.thesaurus
}

// SearchCatalog implements catalog_search(text, limit): whole-document
// search over the Catalog table, using the catalog composite weights
// (spec.md section 4.1's catalog profile, title match included).
func (e *Engine) SearchCatalog(ctx context.Context, query string, limit int) (*ResultSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domainerr.MissingParameter("text")
	}
	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	cacheKey := cache.SearchCacheKey{QueryText: query, Limit: limit, Profile: string(ProfileCatalog)}
	if cached, ok := e.results.Get(cacheKey); ok {
		return cached, nil
	}

	candidates, degraded, err := e.candidatePool(ctx, query, e.store.CatalogVectors(), e.store.CatalogBM25(), e.overfetchLimit(limit))
	if err != nil {
		return nil, err
	}

	queryTokens := tokenizeQuery(query)
	weights := weightsFor(e.cfg, ProfileCatalog)

	var out []*Result
	for _, c := range candidates {
		row, err := e.store.Catalog().Get(ctx, c.ID)
		if err != nil {
			e.logger.Warn("skipping catalog candidate: lookup failed", "id", c.ID, "error", err)
			continue
		}
		r := catalogResult(row)
		comps := e.componentsFor(c, queryTokens, row.Source, row.Text, row.ConceptIDs)
		r.VectorScore, r.BM25Score, r.TitleScore, r.ConceptScore, r.ThesaurusScore =
			comps.vector, comps.bm25, comps.title, comps.concept, comps.thesaurus
		r.MatchedConceptIDs = comps.conceptIDs
		r.Score = clampScore(composite(weights, comps))
		out = append(out, r)
	}

	SortDeterministic(out)
	if len(out) > limit {
		out = out[:limit]
	}

	rs := &ResultSet{Results: out, VectorDegraded: degraded}
	e.results.Add(cacheKey, rs)
	return rs, nil
}

// chunkSearch is the shared candidate-scoring path for chunk-profile
// queries (within-source and broad), differing only in the metadata
// filters applied after candidate generation (spec.md section 4.1).
func (e *Engine) chunkSearch(ctx context.Context, query string, limit int, sourceFilter string, excludeMetaContent, excludeReferences bool) (*ResultSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domainerr.MissingParameter("text")
	}
	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	profile := ProfileChunkBroad
	if sourceFilter != "" {
		profile = ProfileChunkInSource
	}

	cacheKey := cache.SearchCacheKey{
		QueryText: query, Limit: limit, SourceFilter: sourceFilter, Profile: string(profile),
		ExcludeMetaContent: excludeMetaContent, ExcludeReferences: excludeReferences,
	}
	if cached, ok := e.results.Get(cacheKey); ok {
		return cached, nil
	}

	// A source-scoped query overfetches harder since the vector/BM25 indexes
	// are corpus-wide and the source filter is applied after the fact.
	overfetch := e.overfetchLimit(limit)
	if sourceFilter != "" {
		overfetch *= 4
	}

	candidates, degraded, err := e.candidatePool(ctx, query, e.store.ChunkVectors(), e.store.ChunkBM25(), overfetch)
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	rows, err := e.store.Chunks().GetByIDs(ctx, ids)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	rowByID := make(map[uint32]*domain.Chunk, len(rows))
	for _, r := range rows {
		rowByID[r.ID] = r
	}

	queryTokens := tokenizeQuery(query)
	weights := weightsFor(e.cfg, profile)

	var out []*Result
	for _, c := range candidates {
		row, ok := rowByID[c.ID]
		if !ok {
			continue
		}
		if sourceFilter != "" && row.Source != sourceFilter {
			continue
		}
		if excludeMetaContent && row.IsMetaContent {
			continue
		}
		if excludeReferences && row.IsReference {
			continue
		}

		r := chunkResult(row)
		comps := e.componentsFor(c, queryTokens, row.Source, row.Text, row.ConceptIDs)
		r.VectorScore, r.BM25Score, r.ConceptScore, r.ThesaurusScore =
			comps.vector, comps.bm25, comps.concept, comps.thesaurus
		r.MatchedConceptIDs = comps.conceptIDs
		r.Score = clampScore(composite(weights, comps))
		out = append(out, r)
	}

	SortDeterministic(out)
	if len(out) > limit {
		out = out[:limit]
	}

	rs := &ResultSet{Results: out, VectorDegraded: degraded}
	e.results.Add(cacheKey, rs)
	return rs, nil
}

// SearchChunksInSource implements chunks_search(text, source, limit):
// chunk search scoped to one source document. is_meta_content chunks are
// excluded by default, per spec.md section 4.1's candidate-generation step.
func (e *Engine) SearchChunksInSource(ctx context.Context, query, source string, limit int) (*ResultSet, error) {
	if source == "" {
		return nil, domainerr.MissingParameter("source")
	}
	return e.chunkSearch(ctx, query, limit, source, true, false)
}

// SearchChunksBroad implements broad_chunks_search(text, limit,
// excludeMetaContent?, excludeReferences?): chunk search across the whole
// corpus.
func (e *Engine) SearchChunksBroad(ctx context.Context, query string, limit int, excludeMetaContent, excludeReferences bool) (*ResultSet, error) {
	return e.chunkSearch(ctx, query, limit, "", excludeMetaContent, excludeReferences)
}

// SearchConcept implements concept_search(concept, limit): chunks ranked by
// cos(concept.vector, chunk.vector) * (1 + log(1 + concept_density))
// (spec.md section 4.1). The results are one flat list in score order; they
// are not grouped by source.
func (e *Engine) SearchConcept(ctx context.Context, conceptName string, limit int) (*ResultSet, error) {
	conceptName = strings.TrimSpace(conceptName)
	if conceptName == "" {
		return nil, domainerr.MissingParameter("concept")
	}
	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	cacheKey := cache.SearchCacheKey{QueryText: conceptName, Limit: limit, Profile: string(ProfileConcept)}
	if cached, ok := e.results.Get(cacheKey); ok {
		return cached, nil
	}

	concept, err := e.store.Concepts().GetByName(ctx, strings.ToLower(conceptName))
	if err != nil {
		if domainerr.GetCode(err) == domainerr.CodeSourceNotFound {
			return nil, domainerr.ConceptNotFound(conceptName)
		}
		return nil, err
	}

	rows, err := e.store.Chunks().Where(ctx, []store.Filter{
		{Field: "concept_ids", Op: "contains", Value: concept.ID},
	}, 0)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	var out []*Result
	for _, row := range rows {
		score := domain.CosineSimilarity(concept.Vector, row.Vector) * (1 + math.Log(1+row.ConceptDensity))
		r := chunkResult(row)
		r.Score = clampScore(score)
		r.ConceptScore = score
		r.MatchedConceptIDs = []uint32{concept.ID}
		out = append(out, r)
	}

	SortDeterministic(out)
	if len(out) > limit {
		out = out[:limit]
	}

	rs := &ResultSet{Results: out}
	e.results.Add(cacheKey, rs)
	return rs, nil
}

// SourceConcepts implements source_concepts(concept, limit): sources
// featuring a concept, in the order of the concept's CatalogIDs. Sources are
// not ranked; catalog ids that no longer resolve are skipped.
func (e *Engine) SourceConcepts(ctx context.Context, conceptName string, limit int) ([]string, error) {
	conceptName = strings.TrimSpace(conceptName)
	if conceptName == "" {
		return nil, domainerr.MissingParameter("concept")
	}

	concept, err := e.store.Concepts().GetByName(ctx, strings.ToLower(conceptName))
	if err != nil {
		if domainerr.GetCode(err) == domainerr.CodeSourceNotFound {
			return nil, domainerr.ConceptNotFound(conceptName)
		}
		return nil, err
	}

	var sources []string
	for _, id := range concept.CatalogIDs {
		row, err := e.store.Catalog().Get(ctx, id)
		if err != nil {
			continue
		}
		sources = append(sources, row.Source)
	}
	if limit > 0 && len(sources) > limit {
		sources = sources[:limit]
	}
	return sources, nil
}

// InvalidateResultCache purges every cached search result, called after an
// ingestion batch commits (spec.md section 9: cached entries go stale the
// moment new chunks are written).
func (e *Engine) InvalidateResultCache() {
	e.results.Invalidate()
}
