package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/concept-rag/conceptrag/internal/classify"
	"github.com/concept-rag/conceptrag/internal/conceptindex"
	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
	"github.com/concept-rag/conceptrag/internal/embedding"
	"github.com/concept-rag/conceptrag/internal/store"
)

// Options configures one ingestion run.
type Options struct {
	LibraryDir      string
	ExcludePatterns []string
	Workers         int
	ChunkTokens     int
	OverlapTokens   int
	OCRPageThreshold float64
	Overwrite       bool
	MaxRetries      int // failed-file retries before quarantine, spec.md section 4.3 default 1
}

// Pipeline wires the discover/load/chunk/classify/embed/extract/commit
// stages together, grounded on the teacher's errgroup.SetLimit worker-pool
// shape in search/engine.go's parallelSearch (SPEC_FULL.md section 4.3
// supplement).
type Pipeline struct {
	store      store.Store
	embedder   embedding.Embedder
	classifier *classify.Classifier
	extractor  *ConceptExtractor
	loaders    []Loader
	checkpoint *CheckpointStore
	builder    *conceptindex.Builder
	logger     *slog.Logger
}

// NewPipeline wires a Pipeline from its collaborators.
func NewPipeline(st store.Store, embedder embedding.Embedder, extractor *ConceptExtractor, checkpoint *CheckpointStore, builder *conceptindex.Builder, ocr OCRFunc, ocrThreshold float64, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      st,
		embedder:   embedder,
		classifier: classify.NewClassifier(),
		extractor:  extractor,
		loaders:    []Loader{NewPDFLoader(ocr, ocrThreshold), NewEPUBLoader()},
		checkpoint: checkpoint,
		builder:    builder,
		logger:     logger,
	}
}

// Stats summarizes one ingestion run.
type Stats struct {
	Discovered  int
	Processed   int
	Skipped     int
	Failed      int
	Quarantined int
}

// committed is one document's fully-prepared write, handed from a worker
// to the single committer goroutine (spec.md section 5: "stage 8 (commit)
// serializes through a single writer").
type committed struct {
	catalog *domain.Catalog
	chunks  []*domain.Chunk
	names   map[uint32]string
	path    string
}

// Run executes the ingestion pipeline end to end: discover, fan out N
// document workers through stages 2-7, commit serially through one
// writer, then rebuild the concept index and category stats.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Stats, error) {
	if err := p.recordEmbeddingState(ctx); err != nil {
		return Stats{}, err
	}

	files, err := Discover(DiscoverOptions{RootDir: opts.LibraryDir, ExcludePatterns: opts.ExcludePatterns})
	if err != nil {
		return Stats{}, fmt.Errorf("discover library: %w", err)
	}

	cp, err := p.checkpoint.Load()
	if err != nil {
		return Stats{}, err
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	// A file is quarantined after its first failure plus maxRetries retries.
	pending, quarantined := cp.Pending(files, fileFingerprint, maxRetries+1)

	stats := Stats{Discovered: len(files), Quarantined: len(quarantined)}
	if len(pending) == 0 {
		return stats, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make(chan committed, workers)
	commitDone := make(chan error, 1)
	go p.commitLoop(ctx, cp, results, commitDone, &stats)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range pending {
		path := path
		g.Go(func() error {
			doc, skip, err := p.processDocument(gctx, opts, path)
			if err != nil {
				p.logger.Warn("document ingestion failed", "path", path, "error", err)
				cp.MarkFailed(path)
				stats.Failed++
				return nil // a single document's failure never cancels siblings (spec.md section 5)
			}
			if skip {
				stats.Skipped++
				return nil
			}
			select {
			case results <- *doc:
			case <-gctx.Done():
				return gctx.Err()
			}
			return nil
		})
	}

	workerErr := g.Wait()
	close(results)
	commitErr := <-commitDone
	if workerErr != nil {
		return stats, workerErr
	}
	if commitErr != nil {
		return stats, commitErr
	}

	if err := p.checkpoint.Save(cp); err != nil {
		return stats, err
	}

	if err := p.rebuildDerivedState(ctx); err != nil {
		return stats, err
	}

	return stats, nil
}

// recordEmbeddingState persists the active embedder's dimension and model
// name into the shared state table so a later search.Engine can detect an
// embedder swap before trusting the existing vector index (SPEC_FULL.md
// section 4.0's index-versioning rule).
func (p *Pipeline) recordEmbeddingState(ctx context.Context) error {
	dims := fmt.Sprintf("%d", p.embedder.Dimensions())
	if err := p.store.State().SetState(ctx, store.StateKeyEmbeddingDimension, dims); err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if err := p.store.State().SetState(ctx, store.StateKeyEmbeddingModel, p.embedder.ModelName()); err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	return nil
}

// processDocument runs stages 2-7 for one file and returns nil, true if it
// should be skipped (already ingested, unless overwrite).
func (p *Pipeline) processDocument(ctx context.Context, opts Options, path string) (*committed, bool, error) {
	loader := LoaderFor(p.loaders, path)
	if loader == nil {
		return nil, true, fmt.Errorf("no loader for %s", path)
	}

	loaded, err := loader.Load(ctx, path)
	if err != nil {
		return nil, false, err
	}

	hash := domain.StableHash(loaded.Text)
	hashStr := fmt.Sprintf("%x", hash)

	if !opts.Overwrite {
		if existing, err := p.store.Catalog().GetByHash(ctx, hashStr); err == nil {
			if chunks, err := p.store.Chunks().GetBySource(ctx, existing.Source); err == nil && len(chunks) > 0 {
				return nil, true, nil
			}
		}
	}

	windows := SlidingWindow(loaded.Text, opts.ChunkTokens, opts.OverlapTokens)

	resolved, err := p.extractor.Extract(ctx, loaded.Text)
	if err != nil {
		return nil, false, err
	}
	if err := p.extractor.UpsertCategories(ctx, resolved); err != nil {
		return nil, false, err
	}

	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, false, domainerr.Wrap(domainerr.CodeInvalidEmbeddings, err)
	}

	chunks := make([]*domain.Chunk, len(windows))
	for i, w := range windows {
		classification := p.classifier.Classify(w.Text, pageForOffset(w.Offset, len(windows), loaded.TotalPages), loaded.TotalPages)
		chunks[i] = &domain.Chunk{
			ID:             domain.NewChunkID(path, w.Offset),
			Source:         path,
			Text:           w.Text,
			PageNumber:     pageForOffset(w.Offset, len(windows), loaded.TotalPages),
			Loc:            w.Offset,
			Vector:         vectors[i],
			ConceptIDs:     resolved.ConceptIDs,
			CategoryIDs:    resolved.CategoryIDs,
			ConceptDensity: domain.ConceptDensityFor(resolved.ConceptIDs, EstimateTokens(w.Text)),
			IsToC:          classification.IsToC,
			IsFrontMatter:  classification.IsFrontMatter,
			IsBackMatter:   classification.IsBackMatter,
			IsMetaContent:  classification.IsMetaContent,
			IsReference:    classification.IsReference,
			HasMathIssues:  classification.HasMathIssues,
			Model:          p.embedder.ModelName(),
		}
	}

	summary := documentSummary(loaded.Text, resolved.ExtractedNames)
	summaryVector, err := p.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, false, domainerr.Wrap(domainerr.CodeInvalidEmbeddings, err)
	}

	catalog := &domain.Catalog{
		ID:          domain.NewCatalogID(path),
		Source:      path,
		Title:       domain.DeriveTitle(path),
		Text:        summary,
		Hash:        hashStr,
		Vector:      summaryVector,
		ConceptIDs:  resolved.ConceptIDs,
		CategoryIDs: resolved.CategoryIDs,
		OCRUsed:     loaded.OCRUsed,
	}

	return &committed{catalog: catalog, chunks: chunks, names: resolved.ExtractedNames, path: path}, false, nil
}

// commitLoop is the single writer stage 8 requires: it drains results
// serially so catalog+chunk writes for one document never interleave with
// another's (spec.md section 4.3 step 8: "atomic per-document write...no
// batch-wide transactions across documents").
func (p *Pipeline) commitLoop(ctx context.Context, cp *Checkpoint, results <-chan committed, done chan<- error, stats *Stats) {
	for r := range results {
		if err := p.store.Catalog().Insert(ctx, r.catalog); err != nil {
			done <- domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
			return
		}
		if err := p.store.Chunks().InsertBatch(ctx, r.chunks); err != nil {
			done <- domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
			return
		}
		if err := p.store.CatalogVectors().Add(ctx, []uint32{r.catalog.ID}, [][]float32{r.catalog.Vector}); err != nil {
			done <- domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
			return
		}

		ids := make([]uint32, len(r.chunks))
		vectors := make([][]float32, len(r.chunks))
		docs := make([]*store.BM25Document, len(r.chunks))
		for i, c := range r.chunks {
			ids[i] = c.ID
			vectors[i] = c.Vector
			docs[i] = &store.BM25Document{ID: c.ID, Content: c.Text}
		}
		if len(ids) > 0 {
			if err := p.store.ChunkVectors().Add(ctx, ids, vectors); err != nil {
				done <- domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
				return
			}
			if err := p.store.ChunkBM25().Index(ctx, docs); err != nil {
				done <- domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
				return
			}
		}
		if err := p.store.CatalogBM25().Index(ctx, []*store.BM25Document{{ID: r.catalog.ID, Content: r.catalog.Text}}); err != nil {
			done <- domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
			return
		}

		// Record the same fingerprint Pending checks on resume.
		if fp, err := fileFingerprint(r.path); err == nil {
			cp.MarkProcessed(r.path, fp)
		}
		stats.Processed++
	}
	done <- nil
}

// rebuildDerivedState runs the post-batch stages spec.md section 4.3
// names: concept index rebuild, then category stats, then vector-index
// creation on any table whose row count crossed the 256-row threshold.
func (p *Pipeline) rebuildDerivedState(ctx context.Context) error {
	names, err := p.collectExtractedNames(ctx)
	if err != nil {
		return err
	}
	if _, err := p.builder.Rebuild(ctx, names); err != nil {
		return err
	}
	if err := p.builder.RebuildCategoryStats(ctx); err != nil {
		return err
	}
	return p.createVectorIndexesIfDue(ctx)
}

// collectExtractedNames re-derives the id->name map for concepts written
// during this run by re-reading the catalog rows just committed -- the
// per-document ExtractedNames maps are not threaded through the channel
// past the commit loop, so this reconstructs the same information the
// concept index builder needs from what is now durable in the store.
func (p *Pipeline) collectExtractedNames(ctx context.Context) (map[uint32]string, error) {
	catalogs, err := p.store.Catalog().All(ctx)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	names := make(map[uint32]string)
	for _, c := range catalogs {
		for _, id := range c.ConceptIDs {
			if _, ok := names[id]; !ok {
				if concept, err := p.store.Concepts().Get(ctx, id); err == nil {
					names[id] = concept.Concept
				}
			}
		}
	}
	return names, nil
}

const vectorIndexRowThreshold = 256

// createVectorIndexesIfDue implements spec.md section 4.3's "vector-index
// (IVF_PQ) creation on each table where row count >= 256; partitions
// computed as max(2, min(256, rows/300))".
func (p *Pipeline) createVectorIndexesIfDue(ctx context.Context) error {
	tables := []struct {
		name  string
		store store.VectorStore
		count func() (int, error)
	}{
		{store.TableCatalog, p.store.CatalogVectors(), p.store.Catalog().Count},
		{store.TableChunks, p.store.ChunkVectors(), p.store.Chunks().Count},
		{store.TableConcepts, p.store.ConceptVectors(), p.store.Concepts().Count},
	}

	for _, t := range tables {
		rows, err := t.count()
		if err != nil {
			return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		if rows < vectorIndexRowThreshold {
			continue
		}
		partitions := rows / 300
		if partitions < 2 {
			partitions = 2
		}
		if partitions > 256 {
			partitions = 256
		}
		if err := t.store.CreateIndex(partitions, 16); err != nil {
			return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
	}
	return nil
}

// pageForOffset approximates a chunk's page number from its ordinal
// position among totalWindows windows spread across totalPages, since the
// sliding window operates on the whole document's text rather than
// per-page text.
func pageForOffset(offset, totalWindows, totalPages int) int {
	if totalWindows <= 1 || totalPages <= 0 {
		return 1
	}
	page := (offset*totalPages)/totalWindows + 1
	if page > totalPages {
		page = totalPages
	}
	return page
}

// documentSummary builds the Catalog.Text summary: the document's
// primary concept names prefixed to a leading excerpt, approximating
// spec.md section 3's "LLM-generated summary enriched with primary
// concepts" without a second LLM round-trip per document.
func documentSummary(text string, extractedNames map[uint32]string) string {
	const excerptChars = 2000
	excerpt := text
	if len(excerpt) > excerptChars {
		excerpt = excerpt[:excerptChars]
	}

	names := make([]string, 0, len(extractedNames))
	for _, n := range extractedNames {
		names = append(names, n)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return excerpt
	}
	return fmt.Sprintf("Concepts: %s\n\n%s", joinComma(names), excerpt)
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// fileFingerprint hashes path + size + mtime for a cheap pre-load resume
// check (spec.md section 4.3's checkpoint "processedHashes"), distinct
// from Catalog.Hash's content hash computed from decoded text: this one
// avoids re-decoding a file already known to be committed.
func fileFingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())))
	return hex.EncodeToString(h[:]), nil
}
