// Package conceptindex rebuilds the derived Concepts table from the
// Catalog and Chunks tables after an ingestion batch (spec.md section 4.2).
// There is no teacher equivalent -- the teacher's code-search schema has no
// derived-entity rebuild step -- so the rebuild algorithm is grounded
// directly on spec.md section 4.2; the shadow-write-then-atomic-rename
// mechanism mirrors the teacher's staged-rewrite pattern in
// internal/daemon/compaction.go (write to a side location, then swap).
package conceptindex

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/concept-rag/conceptrag/internal/cache"
	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/concept-rag/conceptrag/internal/embedding"
	"github.com/concept-rag/conceptrag/internal/store"
)

// Builder rebuilds the Concepts table. Stateless across calls except for
// the id/name cache it swaps on success.
type Builder struct {
	store    store.Store
	embedder embedding.Embedder
	names    *cache.IDCache
	logger   *slog.Logger
}

// NewBuilder wires a Builder over store, an embedder for concept-phrase
// vectors (pass a cache.EmbeddingCache to get spec.md section 4.2 step 2's
// "embed n, cache-checked" for free), and the id/name cache to swap after a
// successful rebuild.
func NewBuilder(st store.Store, embedder embedding.Embedder, names *cache.IDCache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: st, embedder: embedder, names: names, logger: logger}
}

// Stats summarizes one rebuild.
type Stats struct {
	ConceptCount int
	ChunkCount   int
	CatalogCount int
}

// Rebuild performs the full truncate-and-rebuild described in spec.md
// section 4.2. extractedNames supplies the concept names discovered during
// the ingestion batch that just completed (id -> canonical display name);
// names for concepts that already existed before this batch and were not
// re-extracted are recovered from the current Concepts table before it is
// truncated, since the Catalog/Chunk rows themselves carry only ids
// (spec.md section 3 invariant I7: "names are resolved via caches only").
func (b *Builder) Rebuild(ctx context.Context, extractedNames map[uint32]string) (Stats, error) {
	prior, err := b.loadPrior(ctx)
	if err != nil {
		return Stats{}, err
	}
	priorNames := make(map[uint32]string, len(prior))
	for id, p := range prior {
		priorNames[id] = p.name
	}
	names := mergeNames(priorNames, extractedNames)
	now := time.Now()

	catalogs, err := b.store.Catalog().All(ctx)
	if err != nil {
		return Stats{}, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	chunks, err := b.store.Chunks().All(ctx)
	if err != nil {
		return Stats{}, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	referenced := referencedConceptIDs(catalogs, chunks)

	handle, err := b.store.Concepts().BeginRebuild(ctx)
	if err != nil {
		return Stats{}, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	newNameByID := make(map[uint32]string, len(referenced))
	built := 0
	for id := range referenced {
		name, ok := names[id]
		if !ok {
			b.logger.Warn("concept id has no resolvable name, skipping rebuild entry", "concept_id", id)
			continue
		}

		catalogIDs := catalogIDsContaining(catalogs, id)
		chunkCount := countChunksContaining(chunks, id)
		vector, err := b.embedder.Embed(ctx, name)
		if err != nil {
			_ = handle.Rollback(ctx)
			return Stats{}, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}

		createdAt := now
		if p, ok := prior[id]; ok && !p.createdAt.IsZero() {
			createdAt = p.createdAt
		}

		concept := &domain.Concept{
			ID:              id,
			Concept:         name,
			Vector:          vector,
			Weight:          domain.ComputeWeight(chunkCount, len(catalogIDs)),
			ChunkCount:      chunkCount,
			CatalogIDs:      catalogIDs,
			RelatedConcepts: relatedConcepts(id, catalogIDs, catalogs, names),
			CreatedAt:       createdAt,
			UpdatedAt:       now,
		}
		if err := handle.Insert(ctx, concept); err != nil {
			_ = handle.Rollback(ctx)
			return Stats{}, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		newNameByID[id] = name
		built++
	}

	if err := handle.Commit(ctx); err != nil {
		return Stats{}, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}

	if b.names != nil {
		b.names.Swap(newNameByID)
	}

	return Stats{ConceptCount: built, ChunkCount: len(chunks), CatalogCount: len(catalogs)}, nil
}

// priorState is what a rebuild recovers from the about-to-be-truncated
// Concepts table for each id: its name (since Catalog/Chunk rows carry only
// ids) and its original CreatedAt (so re-extraction doesn't reset it).
type priorState struct {
	name      string
	createdAt time.Time
}

// loadPrior snapshots id->priorState from the Concepts table before it is
// truncated by BeginRebuild's shadow-table swap.
func (b *Builder) loadPrior(ctx context.Context) (map[uint32]priorState, error) {
	existing, err := b.store.Concepts().All(ctx)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	prior := make(map[uint32]priorState, len(existing))
	for _, c := range existing {
		prior[c.ID] = priorState{name: c.Concept, createdAt: c.CreatedAt}
	}
	return prior, nil
}

// mergeNames lets extracted (this batch's freshly extracted names) win over
// prior (the previous rebuild's names) on id collision, since the LLM's
// most recent canonicalization of a name is authoritative.
func mergeNames(prior, extracted map[uint32]string) map[uint32]string {
	out := make(map[uint32]string, len(prior)+len(extracted))
	for id, name := range prior {
		out[id] = name
	}
	for id, name := range extracted {
		out[id] = name
	}
	return out
}

// referencedConceptIDs unions every concept_id appearing on any catalog or
// chunk row -- the universe of concepts spec.md section 4.2's "for each
// distinct concept name n" ranges over.
func referencedConceptIDs(catalogs []*domain.Catalog, chunks []*domain.Chunk) map[uint32]struct{} {
	ids := make(map[uint32]struct{})
	for _, c := range catalogs {
		for _, id := range c.ConceptIDs {
			ids[id] = struct{}{}
		}
	}
	for _, c := range chunks {
		for _, id := range c.ConceptIDs {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// catalogIDsContaining returns the sorted, deduplicated catalog ids whose
// concept_ids contain id (spec.md section 4.2 step 3).
func catalogIDsContaining(catalogs []*domain.Catalog, id uint32) []uint32 {
	var ids []uint32
	for _, c := range catalogs {
		for _, cid := range c.ConceptIDs {
			if cid == id {
				ids = append(ids, c.ID)
				break
			}
		}
	}
	return domain.SortUint32Unique(ids)
}

// countChunksContaining implements spec.md section 4.2 step 4: an exact
// recount over the chunk table, never trusted incrementally (section 9).
func countChunksContaining(chunks []*domain.Chunk, id uint32) int {
	n := 0
	for _, c := range chunks {
		for _, cid := range c.ConceptIDs {
			if cid == id {
				n++
				break
			}
		}
	}
	return n
}

// relatedConcepts implements spec.md section 4.2 step 6: for every document
// this concept appears in, collect the other concept names on that
// document, keep the top 32 by cross-document co-occurrence frequency
// (ties broken alphabetically for determinism).
func relatedConcepts(id uint32, catalogIDs []uint32, catalogs []*domain.Catalog, names map[uint32]string) []string {
	byID := make(map[uint32]*domain.Catalog, len(catalogs))
	for _, c := range catalogs {
		byID[c.ID] = c
	}

	freq := make(map[string]int)
	for _, catalogID := range catalogIDs {
		row, ok := byID[catalogID]
		if !ok {
			continue
		}
		for _, cid := range row.ConceptIDs {
			if cid == id {
				continue
			}
			name, ok := names[cid]
			if !ok {
				continue
			}
			freq[name]++
		}
	}

	type scored struct {
		name string
		n    int
	}
	var ranked []scored
	for name, n := range freq {
		ranked = append(ranked, scored{name, n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].n != ranked[j].n {
			return ranked[i].n > ranked[j].n
		}
		return ranked[i].name < ranked[j].name
	})

	const maxRelated = 32
	if len(ranked) > maxRelated {
		ranked = ranked[:maxRelated]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.name
	}
	return out
}
