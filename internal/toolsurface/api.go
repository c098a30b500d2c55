// Package toolsurface exposes the nine retrieval operations spec.md
// section 6 names as plain Go methods over internal/search.Engine,
// grounded on the teacher's internal/mcp tool-handler layer (thin
// request/response shaping, no scoring logic of its own) but stripped of
// the teacher's MCP transport wiring, which is out of scope (spec.md
// section 1's Non-goals).
package toolsurface

import (
	"context"

	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/concept-rag/conceptrag/internal/search"
)

// CatalogHit and ChunkHit are the tool-surface's response shapes: plain
// data, no internal scoring-engine types, so a future transport layer
// (MCP, HTTP, gRPC) can serialize them directly.
type CatalogHit struct {
	Source         string  `json:"source"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
	ConceptDensity float64 `json:"concept_density"`
}

type ChunkHit struct {
	Source     string  `json:"source"`
	Text       string  `json:"text"`
	PageNumber int     `json:"page_number"`
	Score      float64 `json:"score"`
}

// Surface wires the nine tool-surface operations over a single Engine.
type Surface struct {
	engine *search.Engine
}

// New binds a Surface to engine.
func New(engine *search.Engine) *Surface {
	return &Surface{engine: engine}
}

func toCatalogHits(rs *search.ResultSet) []CatalogHit {
	if rs == nil {
		return nil
	}
	out := make([]CatalogHit, len(rs.Results))
	for i, r := range rs.Results {
		out[i] = CatalogHit{Source: r.Source, Text: r.Text, Score: r.Score, ConceptDensity: r.ConceptDensity}
	}
	return out
}

func toChunkHits(rs *search.ResultSet) []ChunkHit {
	if rs == nil {
		return nil
	}
	out := make([]ChunkHit, len(rs.Results))
	for i, r := range rs.Results {
		out[i] = ChunkHit{Source: r.Source, Text: r.Text, Score: r.Score}
	}
	return out
}

// CatalogSearch implements catalog_search(text, limit).
func (s *Surface) CatalogSearch(ctx context.Context, text string, limit int) ([]CatalogHit, bool, error) {
	rs, err := s.engine.SearchCatalog(ctx, text, limit)
	if err != nil {
		return nil, false, err
	}
	return toCatalogHits(rs), rs.VectorDegraded, nil
}

// ChunksSearch implements chunks_search(text, source, limit).
func (s *Surface) ChunksSearch(ctx context.Context, text, source string, limit int) ([]ChunkHit, bool, error) {
	if source == "" {
		return nil, false, domainerr.MissingParameter("source")
	}
	rs, err := s.engine.SearchChunksInSource(ctx, text, source, limit)
	if err != nil {
		return nil, false, err
	}
	return toChunkHits(rs), rs.VectorDegraded, nil
}

// BroadChunksSearch implements broad_chunks_search(text, limit,
// excludeMetaContent?, excludeReferences?).
func (s *Surface) BroadChunksSearch(ctx context.Context, text string, limit int, excludeMetaContent, excludeReferences bool) ([]ChunkHit, bool, error) {
	rs, err := s.engine.SearchChunksBroad(ctx, text, limit, excludeMetaContent, excludeReferences)
	if err != nil {
		return nil, false, err
	}
	return toChunkHits(rs), rs.VectorDegraded, nil
}

// ConceptSearch implements concept_search(concept, limit).
func (s *Surface) ConceptSearch(ctx context.Context, concept string, limit int) ([]ChunkHit, error) {
	rs, err := s.engine.SearchConcept(ctx, concept, limit)
	if err != nil {
		return nil, err
	}
	return toChunkHits(rs), nil
}

// ExtractConcepts implements extract_concepts(source).
func (s *Surface) ExtractConcepts(ctx context.Context, source string) (*search.ConceptBundle, error) {
	return s.engine.ExtractConcepts(ctx, source)
}

// SourceConcepts implements source_concepts(concept, limit).
func (s *Surface) SourceConcepts(ctx context.Context, concept string, limit int) ([]string, error) {
	return s.engine.SourceConcepts(ctx, concept, limit)
}

// CategorySearch implements category_search(category, limit).
func (s *Surface) CategorySearch(ctx context.Context, category string, limit int) ([]CatalogHit, error) {
	results, err := s.engine.CategorySearch(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogHit, len(results))
	for i, r := range results {
		out[i] = CatalogHit{Source: r.Source, Text: r.Text, Score: r.Score, ConceptDensity: r.ConceptDensity}
	}
	return out, nil
}

// ListCategories implements list_categories().
func (s *Surface) ListCategories(ctx context.Context) ([]*search.CategorySummary, error) {
	return s.engine.ListCategories(ctx)
}

// ListConceptsInCategory implements list_concepts_in_category(category).
func (s *Surface) ListConceptsInCategory(ctx context.Context, category string) ([]string, error) {
	return s.engine.ListConceptsInCategory(ctx, category)
}
