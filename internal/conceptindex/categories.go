package conceptindex

import (
	"context"

	"github.com/concept-rag/conceptrag/internal/domainerr"
)

// RebuildCategoryStats recomputes DocumentCount/ChunkCount for every
// Category row, run immediately after the concept index rebuild per
// spec.md section 4.3: "After the batch: run concept index builder,
// then category stats...". Categories themselves are upserted during
// ingestion (not here); this only refreshes the aggregate counts.
func (b *Builder) RebuildCategoryStats(ctx context.Context) error {
	categories, err := b.store.Categories().All(ctx)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if len(categories) == 0 {
		return nil
	}

	catalogs, err := b.store.Catalog().All(ctx)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	chunks, err := b.store.Chunks().All(ctx)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	docCounts := make(map[uint32]int, len(categories))
	for _, c := range catalogs {
		for _, id := range c.CategoryIDs {
			docCounts[id]++
		}
	}
	chunkCounts := make(map[uint32]int, len(categories))
	for _, c := range chunks {
		for _, id := range c.CategoryIDs {
			chunkCounts[id]++
		}
	}

	for _, cat := range categories {
		if err := b.store.Categories().UpdateCounts(ctx, cat.ID, docCounts[cat.ID], chunkCounts[cat.ID]); err != nil {
			return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
	}
	return nil
}
