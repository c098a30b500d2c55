// Package store provides the persistence layer: SQL-backed row storage for
// Catalog/Chunk/Concept/Category, an in-memory HNSW vector index per table,
// and a hand-rolled BM25 index. Grounded on the teacher's
// MetadataStore/VectorStore/BM25Index interface trio (internal/store/types.go),
// generalized from the teacher's code-search schema to this module's
// document-retrieval schema (spec.md section 3, section 6).
package store

import (
	"context"
	"fmt"

	"github.com/concept-rag/conceptrag/internal/domain"
)

// Table names, used to key per-table vector indexes and as SQL table names.
const (
	TableCatalog    = "catalog"
	TableChunks     = "chunks"
	TableConcepts   = "concepts"
	TableCategories = "categories"
)

// State keys for the shared key/value state table, mirroring the teacher's
// StateKeyIndexDimension/StateKeyIndexModel pattern (SPEC_FULL.md section 4.0).
const (
	StateKeyEmbeddingDimension = "embedding_dimension"
	StateKeyEmbeddingModel     = "embedding_model"
)

// Filter describes a scalar where-clause predicate, per spec.md section 6's
// "SQL-style where filter over scalar fields with array-contains predicates".
type Filter struct {
	Field    string
	Op       string // "=", "!=", "<", ">", "contains" (array-contains)
	Value    any
}

// CatalogRepository persists Catalog rows (spec.md section 3).
type CatalogRepository interface {
	Insert(ctx context.Context, c *domain.Catalog) error
	Get(ctx context.Context, id uint32) (*domain.Catalog, error)
	GetBySource(ctx context.Context, source string) (*domain.Catalog, error)
	GetByHash(ctx context.Context, hash string) (*domain.Catalog, error)
	Where(ctx context.Context, filters []Filter, limit int) ([]*domain.Catalog, error)
	All(ctx context.Context) ([]*domain.Catalog, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id uint32) error
}

// ChunkRepository persists Chunk rows.
type ChunkRepository interface {
	Insert(ctx context.Context, c *domain.Chunk) error
	InsertBatch(ctx context.Context, chunks []*domain.Chunk) error
	Get(ctx context.Context, id uint32) (*domain.Chunk, error)
	GetByIDs(ctx context.Context, ids []uint32) ([]*domain.Chunk, error)
	GetBySource(ctx context.Context, source string) ([]*domain.Chunk, error)
	Where(ctx context.Context, filters []Filter, limit int) ([]*domain.Chunk, error)
	All(ctx context.Context) ([]*domain.Chunk, error)
	Count(ctx context.Context) (int, error)
	DeleteBySource(ctx context.Context, source string) error
}

// ConceptRepository persists Concept rows. The table is a derived
// projection (spec.md section 3): Truncate+rebuild happens through
// BeginRebuild and the returned RebuildHandle's Commit, never incremental
// updates to ChunkCount.
type ConceptRepository interface {
	Get(ctx context.Context, id uint32) (*domain.Concept, error)
	GetByName(ctx context.Context, name string) (*domain.Concept, error)
	All(ctx context.Context) ([]*domain.Concept, error)
	Count(ctx context.Context) (int, error)

	// BeginRebuild returns a handle to a shadow table that can be populated
	// and then atomically swapped in via the handle's Commit, per spec.md section 7's
	// shadow-table rollback requirement.
	BeginRebuild(ctx context.Context) (RebuildHandle, error)
}

// RebuildHandle stages rows into a shadow table during a concept index
// rebuild (SPEC_FULL.md section 4.2 supplement).
type RebuildHandle interface {
	Insert(ctx context.Context, c *domain.Concept) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CategoryRepository persists Category rows.
type CategoryRepository interface {
	Upsert(ctx context.Context, c *domain.Category) error
	Get(ctx context.Context, id uint32) (*domain.Category, error)
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	All(ctx context.Context) ([]*domain.Category, error)
	UpdateCounts(ctx context.Context, id uint32, documentCount, chunkCount int) error
}

// StateStore is the shared key/value table used for dimension/model
// tracking (section 4.0) and ingestion checkpoints (section 4.3).
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
}

// Store is the facade aggregating every repository plus lifecycle control,
// the module's concrete realization of spec.md section 6's opaque store
// interface (open table, count, append, drop, where-filter, vector search,
// create index).
type Store interface {
	Catalog() CatalogRepository
	Chunks() ChunkRepository
	Concepts() ConceptRepository
	Categories() CategoryRepository
	State() StateStore

	CatalogVectors() VectorStore
	ChunkVectors() VectorStore
	ConceptVectors() VectorStore

	// CatalogBM25/ChunkBM25 are independent BM25 indexes, one per table, so
	// each keeps its own corpus statistics (spec.md section 4.1: "IDF
	// computed from the active table's corpus statistics") -- a single
	// shared index would mix catalog-summary and chunk-text document
	// frequencies and let catalog/chunk ids collide in one postings space.
	CatalogBM25() BM25Index
	ChunkBM25() BM25Index

	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID       uint32
	Distance float32
	Score    float32 // normalized similarity, 0-1
}

// VectorStoreConfig configures an HNSW-backed vector index, per spec.md
// section 6's "create IVF_PQ index with numPartitions and
// numSubVectors=16" contract. The in-process backing (coder/hnsw) does not
// itself implement IVF_PQ; NumPartitions/NumSubVectors are recorded as
// index metadata so CreateIndex's contract is honored even though the
// in-memory backing graph doesn't need partitioning at this module's scale
// (see DESIGN.md).
type VectorStoreConfig struct {
	Dimensions     int
	Metric         string // "cos" (only metric spec.md's cosine scoring needs)
	M              int
	EfConstruction int
	EfSearch       int

	NumPartitions  int
	NumSubVectors  int
}

// DefaultVectorStoreConfig returns defaults matching domain.VectorDimensions
// and spec.md section 6's numSubVectors=16 convention.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
		NumPartitions:  1,
		NumSubVectors:  16,
	}
}

// VectorStore provides approximate nearest-neighbor search over 32-bit
// domain ids, per spec.md section 6 (f) vector search and (g) index
// creation.
type VectorStore interface {
	Add(ctx context.Context, ids []uint32, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []uint32) error
	AllIDs() []uint32
	Contains(id uint32) bool
	Count() int

	// CreateIndex applies IVF_PQ-shaped index parameters per spec.md
	// section 6 (g). HNSWStore records them as config and builds no
	// partition structure.
	CreateIndex(numPartitions, numSubVectors int) error

	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Document is a document fed to the BM25 index.
type BM25Document struct {
	ID      uint32
	Content string
}

// BM25Result is a single BM25 search hit.
type BM25Result struct {
	DocID        uint32
	Score        float64
	MatchedTerms []string
}

// BM25Stats summarizes corpus statistics used for IDF computation.
type BM25Stats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Config tunes the scorer. Defaults (k1=1.5, b=0.75) override the
// teacher's code-search defaults (k1=1.2) per spec.md section 4.1.
type BM25Config struct {
	K1             float64
	B              float64
	MinTokenLength int
}

// DefaultBM25Config returns spec.md section 4.1's BM25 defaults.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.5, B: 0.75, MinTokenLength: 2}
}

// BM25Index provides keyword search, scoped to one logical table (catalog
// text, chunk text) since each table keeps independent corpus statistics
// (spec.md section 4.1: "IDF computed from the active table's corpus
// statistics, refreshed lazily per table generation").
type BM25Index interface {
	Index(ctx context.Context, docs []*BM25Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, ids []uint32) error
	AllIDs() []uint32
	Stats() *BM25Stats
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector's length does not match the
// store's configured dimensionality. It is not mapped to
// domainerr.CodeInvalidEmbeddings: ingestion wraps it as
// domainerr.CodeDatabaseOperationErr, and search treats it as a vector-search
// failure and degrades to BM25-only.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
