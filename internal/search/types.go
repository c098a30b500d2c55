// Package search implements the hybrid ranking engine (spec.md section 4.1):
// four query shapes sharing one composite-score formula over vector
// similarity, BM25, title matching, concept alignment, and thesaurus
// expansion, fronted by Reciprocal Rank Fusion as a secondary candidate
// merge stage. Grounded on the teacher's internal/search/engine.go
// (parallelSearch, graceful degradation, validateDimensions) and
// internal/search/fusion.go (RRF), regeared from code/docs search to
// catalog/chunk/concept document retrieval.
package search

import (
	"github.com/concept-rag/conceptrag/internal/config"
	"github.com/concept-rag/conceptrag/internal/domain"
)

// Profile names the query shape driving which composite weights apply
// (spec.md section 4.1: "four query shapes ... share one ranking formula;
// the weights and the candidate pool differ").
type Profile string

const (
	ProfileCatalog       Profile = "catalog"
	ProfileChunkInSource Profile = "chunk_in_source"
	ProfileChunkBroad    Profile = "chunk_broad"
	ProfileConcept       Profile = "concept"
)

// Result is one ranked hit, carrying the composite score plus its
// component breakdown for debugging/testing.
type Result struct {
	ID     uint32
	Source string
	Text   string

	ConceptDensity float64

	Score          float64
	VectorScore    float64
	BM25Score      float64
	TitleScore     float64
	ConceptScore   float64
	ThesaurusScore float64

	MatchedConceptIDs []uint32
}

// ResultSet is the outcome of a single query, including the degraded-mode
// flag spec.md section 4.1's failure semantics require: "if vector search
// fails, fall back to BM25-only with a flag on the result set."
type ResultSet struct {
	Results        []*Result
	VectorDegraded bool
}

// catalogResult adapts a domain.Catalog row into a search.Result; the
// caller fills in the component scores.
func catalogResult(c *domain.Catalog) *Result {
	density := 0.0
	if c.ConceptDensity != nil {
		density = *c.ConceptDensity
	}
	return &Result{
		ID:             c.ID,
		Source:         c.Source,
		Text:           c.Text,
		ConceptDensity: density,
	}
}

func chunkResult(c *domain.Chunk) *Result {
	return &Result{
		ID:             c.ID,
		Source:         c.Source,
		Text:           c.Text,
		ConceptDensity: c.ConceptDensity,
	}
}

// weightsFor resolves the composite weights for a query shape.
func weightsFor(cfg config.SearchConfig, p Profile) config.ScoreWeights {
	switch p {
	case ProfileCatalog:
		return cfg.CatalogWeights
	default:
		return cfg.ChunkWeights
	}
}
