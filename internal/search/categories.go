package search

import (
	"context"
	"sort"
	"strings"

	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/concept-rag/conceptrag/internal/store"
)

// CategorySearch implements category_search(category, limit): documents
// belonging to a category, ranked by the catalog row's concept_density
// (spec.md section 6). Mirrors SearchConcept's lookup-then-filter shape
// but scopes to Catalog rather than Chunks, since a category groups whole
// documents.
func (e *Engine) CategorySearch(ctx context.Context, categoryName string, limit int) ([]*Result, error) {
	categoryName = strings.TrimSpace(categoryName)
	if categoryName == "" {
		return nil, domainerr.MissingParameter("category")
	}
	if limit <= 0 {
		limit = e.cfg.MaxResults
	}

	category, err := e.store.Categories().GetByName(ctx, strings.ToLower(categoryName))
	if err != nil {
		if domainerr.GetCode(err) == domainerr.CodeSourceNotFound {
			return nil, domainerr.New(domainerr.CodeSourceNotFound, "category not found: "+categoryName, nil)
		}
		return nil, err
	}

	rows, err := e.store.Catalog().Where(ctx, []store.Filter{
		{Field: "category_ids", Op: "contains", Value: category.ID},
	}, 0)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	var out []*Result
	for _, row := range rows {
		r := catalogResult(row)
		r.Score = r.ConceptDensity
		out = append(out, r)
	}

	SortDeterministic(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListCategories implements list_categories(): every known category with
// its current document/chunk counts, sorted by name for stable output.
func (e *Engine) ListCategories(ctx context.Context) ([]*CategorySummary, error) {
	categories, err := e.store.Categories().All(ctx)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	out := make([]*CategorySummary, len(categories))
	for i, c := range categories {
		out[i] = &CategorySummary{
			ID:            c.ID,
			Name:          c.Name,
			DocumentCount: c.DocumentCount,
			ChunkCount:    c.ChunkCount,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CategorySummary is one list_categories() row.
type CategorySummary struct {
	ID            uint32
	Name          string
	DocumentCount int
	ChunkCount    int
}

// ListConceptsInCategory implements list_concepts_in_category(category):
// every concept referenced by a chunk belonging to the category, since
// Concept rows themselves carry no direct category link (spec.md section
// 3: categories attach to Catalog/Chunk rows, not Concept rows).
func (e *Engine) ListConceptsInCategory(ctx context.Context, categoryName string) ([]string, error) {
	categoryName = strings.TrimSpace(categoryName)
	if categoryName == "" {
		return nil, domainerr.MissingParameter("category")
	}

	category, err := e.store.Categories().GetByName(ctx, strings.ToLower(categoryName))
	if err != nil {
		if domainerr.GetCode(err) == domainerr.CodeSourceNotFound {
			return nil, domainerr.New(domainerr.CodeSourceNotFound, "category not found: "+categoryName, nil)
		}
		return nil, err
	}

	chunks, err := e.store.Chunks().Where(ctx, []store.Filter{
		{Field: "category_ids", Op: "contains", Value: category.ID},
	}, 0)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	seen := make(map[uint32]bool)
	var names []string
	for _, chunk := range chunks {
		for _, id := range chunk.ConceptIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if name, ok := e.conceptNames.Name(id); ok {
				names = append(names, name)
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

// ConceptBundle is extract_concepts(source)'s return shape: the concept
// and category names already attached to a previously-ingested document.
type ConceptBundle struct {
	PrimaryConcepts []string
	Categories      []string
}

// ExtractConcepts implements extract_concepts(source): the concept and
// category names recorded on source's Catalog row at ingestion time. This
// reads already-extracted state rather than re-running the LLM call,
// since spec.md section 4.3 runs concept extraction once per document
// during ingestion, not on demand.
func (e *Engine) ExtractConcepts(ctx context.Context, source string) (*ConceptBundle, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, domainerr.MissingParameter("source")
	}

	row, err := e.store.Catalog().GetBySource(ctx, source)
	if err != nil {
		if domainerr.GetCode(err) == domainerr.CodeSourceNotFound {
			return nil, domainerr.SourceNotFound(source)
		}
		return nil, err
	}

	bundle := &ConceptBundle{}
	for _, id := range row.ConceptIDs {
		if name, ok := e.conceptNames.Name(id); ok {
			bundle.PrimaryConcepts = append(bundle.PrimaryConcepts, name)
		}
	}
	for _, id := range row.CategoryIDs {
		if category, err := e.store.Categories().Get(ctx, id); err == nil {
			bundle.Categories = append(bundle.Categories, category.Name)
		}
	}
	return bundle, nil
}
