package ingest

import (
	"context"

	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/concept-rag/conceptrag/internal/llm"
	"github.com/concept-rag/conceptrag/internal/store"
)

// ConceptExtractor resolves LLM-extracted concept/category names to stable
// ids, per spec.md section 4.3 step 7 and section 3's `::n` collision
// scheme (invariant I7).
type ConceptExtractor struct {
	client *llm.Client
	store  store.Store
}

// NewConceptExtractor wires an LLM client to id resolution against the
// store's current Concepts/Categories tables.
func NewConceptExtractor(client *llm.Client, st store.Store) *ConceptExtractor {
	return &ConceptExtractor{client: client, store: st}
}

// Resolved is one document's concept/category extraction, with names
// resolved to the ids that will be written onto its Catalog and Chunk
// rows. ExtractedNames accumulates the id->name map conceptindex.Builder
// needs to rebuild the Concepts table without a second LLM round-trip.
type Resolved struct {
	ConceptIDs      []uint32
	CategoryIDs     []uint32
	ExtractedNames  map[uint32]string
	CategoryNames   map[uint32]string
}

// Extract runs the LLM concept-extraction call and resolves every returned
// name to a stable id, consulting the store for existing names so a
// collision extends the name with a `::n` suffix rather than overwriting
// an unrelated concept (spec.md section 3 invariant I7).
func (e *ConceptExtractor) Extract(ctx context.Context, documentText string) (*Resolved, error) {
	bundle, err := e.client.ExtractConcepts(ctx, documentText)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{
		ExtractedNames: make(map[uint32]string),
		CategoryNames:  make(map[uint32]string),
	}

	seenConcept := make(map[uint32]bool)
	for _, name := range append(bundle.PrimaryConcepts, bundle.RelatedConcepts...) {
		if name == "" {
			continue
		}
		id := domain.ResolveCollision(name, e.existingConceptName(ctx))
		if !seenConcept[id] {
			seenConcept[id] = true
			resolved.ConceptIDs = append(resolved.ConceptIDs, id)
			resolved.ExtractedNames[id] = domain.NormalizeName(name)
		}
	}

	seenCategory := make(map[uint32]bool)
	for _, name := range bundle.Categories {
		if name == "" {
			continue
		}
		id := domain.NewCategoryID(name, e.existingCategoryName(ctx))
		if !seenCategory[id] {
			seenCategory[id] = true
			resolved.CategoryIDs = append(resolved.CategoryIDs, id)
			resolved.CategoryNames[id] = domain.NormalizeName(name)
		}
	}

	resolved.ConceptIDs = domain.SortUint32Unique(resolved.ConceptIDs)
	resolved.CategoryIDs = domain.SortUint32Unique(resolved.CategoryIDs)
	return resolved, nil
}

// existingConceptName looks up a candidate concept id against the
// Concepts table, satisfying domain.ResolveCollision's `taken` callback.
func (e *ConceptExtractor) existingConceptName(ctx context.Context) func(uint32) (string, bool) {
	return func(id uint32) (string, bool) {
		c, err := e.store.Concepts().Get(ctx, id)
		if err != nil {
			return "", false
		}
		return domain.NormalizeName(c.Concept), true
	}
}

// existingCategoryName is existingConceptName's Category-table counterpart.
func (e *ConceptExtractor) existingCategoryName(ctx context.Context) func(uint32) (string, bool) {
	return func(id uint32) (string, bool) {
		c, err := e.store.Categories().Get(ctx, id)
		if err != nil {
			return "", false
		}
		return domain.NormalizeName(c.Name), true
	}
}

// UpsertCategories writes every newly-seen category name into the
// Categories table (categories are upserted during ingestion, not derived
// by the concept index rebuild -- SPEC_FULL.md section 4.2).
func (e *ConceptExtractor) UpsertCategories(ctx context.Context, r *Resolved) error {
	for id, name := range r.CategoryNames {
		if _, err := e.store.Categories().Get(ctx, id); err == nil {
			continue
		}
		if err := e.store.Categories().Upsert(ctx, &domain.Category{ID: id, Name: name}); err != nil {
			return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
	}
	return nil
}
