package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go driver, matches the teacher's CGO-free preference
)

// schema creates the four row tables plus the shared state table. Vectors
// are stored as JSON-encoded float32 arrays (SPEC_FULL.md section 6): the
// SQL tables hold scalar/array metadata while HNSWStore holds the actual
// ANN graphs, mirroring the teacher's split between MetadataStore (SQLite)
// and VectorStore (HNSW).
const schema = `
CREATE TABLE IF NOT EXISTS catalog (
	id INTEGER PRIMARY KEY,
	source TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	hash TEXT NOT NULL UNIQUE,
	vector TEXT NOT NULL,
	concept_ids TEXT NOT NULL,
	category_ids TEXT NOT NULL,
	concept_density REAL,
	ingested_at DATETIME NOT NULL,
	ocr_used INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY,
	source TEXT NOT NULL,
	text TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	loc INTEGER NOT NULL,
	vector TEXT NOT NULL,
	concept_ids TEXT NOT NULL,
	category_ids TEXT NOT NULL,
	concept_density REAL NOT NULL,
	is_toc INTEGER NOT NULL DEFAULT 0,
	is_front_matter INTEGER NOT NULL DEFAULT 0,
	is_back_matter INTEGER NOT NULL DEFAULT 0,
	is_meta_content INTEGER NOT NULL DEFAULT 0,
	is_reference INTEGER NOT NULL DEFAULT 0,
	has_math_issues INTEGER NOT NULL DEFAULT 0,
	model TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);

CREATE TABLE IF NOT EXISTS concepts (
	id INTEGER PRIMARY KEY,
	concept TEXT NOT NULL,
	vector TEXT NOT NULL,
	weight REAL NOT NULL,
	chunk_count INTEGER NOT NULL,
	catalog_ids TEXT NOT NULL,
	related_concepts TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_concepts_name ON concepts(concept);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	aliases TEXT NOT NULL,
	parent_id INTEGER,
	document_count INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteStore wires the four row repositories, the shared state table, and
// the per-table vector/BM25 indexes behind the Store facade.
type SQLiteStore struct {
	db *sql.DB

	dataDir string

	catalog    *sqliteCatalogRepository
	chunks     *sqliteChunkRepository
	concepts   *sqliteConceptRepository
	categories *sqliteCategoryRepository
	state      *sqliteStateStore

	catalogVectors *HNSWStore
	chunkVectors   *HNSWStore
	conceptVectors *HNSWStore

	catalogBM25 *MemoryBM25Index
	chunkBM25   *MemoryBM25Index
}

// Open creates or opens the SQLite-backed store rooted at dataDir (default
// ~/.concept_rag, per spec.md section 6's persisted-state layout), applying
// the same WAL/busy-timeout pragmas as the teacher's sqlite_bm25.go so
// concurrent ingestion workers and a concurrent search query don't lock
// each other out.
func Open(dataDir string, dimensions int) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "concept_rag.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	cfg := DefaultVectorStoreConfig(dimensions)

	s := &SQLiteStore{
		db:             db,
		dataDir:        dataDir,
		catalogVectors: NewHNSWStore(cfg),
		chunkVectors:   NewHNSWStore(cfg),
		conceptVectors: NewHNSWStore(cfg),
		catalogBM25:    NewMemoryBM25Index(DefaultBM25Config()),
		chunkBM25:      NewMemoryBM25Index(DefaultBM25Config()),
	}
	s.catalog = &sqliteCatalogRepository{db: db}
	s.chunks = &sqliteChunkRepository{db: db}
	s.concepts = &sqliteConceptRepository{db: db}
	s.categories = &sqliteCategoryRepository{db: db}
	s.state = &sqliteStateStore{db: db}

	if err := s.loadVectorSidecars(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) vectorSidecarPath(name string) string {
	return filepath.Join(s.dataDir, "vectors", name+".hnsw")
}

func (s *SQLiteStore) loadVectorSidecars() error {
	for name, vs := range map[string]*HNSWStore{
		TableCatalog:  s.catalogVectors,
		TableChunks:   s.chunkVectors,
		TableConcepts: s.conceptVectors,
	} {
		path := s.vectorSidecarPath(name)
		if _, err := os.Stat(path); err == nil {
			if err := vs.Load(path); err != nil {
				return fmt.Errorf("load %s vector sidecar: %w", name, err)
			}
		}
	}
	return nil
}

// SaveVectorSidecars persists every in-memory vector index to disk. Callers
// (ingestion commit, graceful shutdown) invoke this after mutating vectors.
func (s *SQLiteStore) SaveVectorSidecars() error {
	for name, vs := range map[string]*HNSWStore{
		TableCatalog:  s.catalogVectors,
		TableChunks:   s.chunkVectors,
		TableConcepts: s.conceptVectors,
	} {
		if err := vs.Save(s.vectorSidecarPath(name)); err != nil {
			return fmt.Errorf("save %s vector sidecar: %w", name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Catalog() CatalogRepository     { return s.catalog }
func (s *SQLiteStore) Chunks() ChunkRepository        { return s.chunks }
func (s *SQLiteStore) Concepts() ConceptRepository    { return s.concepts }
func (s *SQLiteStore) Categories() CategoryRepository { return s.categories }
func (s *SQLiteStore) State() StateStore              { return s.state }

func (s *SQLiteStore) CatalogVectors() VectorStore { return s.catalogVectors }
func (s *SQLiteStore) ChunkVectors() VectorStore   { return s.chunkVectors }
func (s *SQLiteStore) ConceptVectors() VectorStore { return s.conceptVectors }

func (s *SQLiteStore) CatalogBM25() BM25Index { return s.catalogBM25 }
func (s *SQLiteStore) ChunkBM25() BM25Index   { return s.chunkBM25 }

// Close releases the database handle and every vector/BM25 index.
func (s *SQLiteStore) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(s.catalogVectors.Close())
	record(s.chunkVectors.Close())
	record(s.conceptVectors.Close())
	record(s.catalogBM25.Close())
	record(s.chunkBM25.Close())
	record(s.db.Close())
	return firstErr
}

var _ Store = (*SQLiteStore)(nil)

// sqliteStateStore implements StateStore over the shared key/value table.
type sqliteStateStore struct{ db *sql.DB }

func (s *sqliteStateStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

func (s *sqliteStateStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

// DimensionsMatch compares a stored dimension state value against the
// active embedder, per SPEC_FULL.md section 4.0's index-versioning rule.
// Callers (search.Engine, ingest.Pipeline) use this to detect an embedder
// swap before trusting the existing vector index.
func DimensionsMatch(ctx context.Context, s StateStore, activeDimensions int) (bool, error) {
	value, ok, err := s.GetState(ctx, StateKeyEmbeddingDimension)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil // no prior index: nothing to mismatch against
	}
	var stored int
	if _, err := fmt.Sscanf(value, "%d", &stored); err != nil {
		return false, fmt.Errorf("parse stored dimension %q: %w", value, err)
	}
	return stored == activeDimensions, nil
}
