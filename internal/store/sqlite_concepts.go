package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
)

type sqliteConceptRepository struct{ db *sql.DB }

const conceptSelectColumns = `id, concept, vector, weight, chunk_count, catalog_ids, related_concepts, created_at, updated_at`

func (r *sqliteConceptRepository) scanRow(row interface {
	Scan(dest ...any) error
}) (*domain.Concept, error) {
	var c domain.Concept
	var vectorJSON, catalogIDsJSON, relatedJSON string

	err := row.Scan(&c.ID, &c.Concept, &vectorJSON, &c.Weight, &c.ChunkCount,
		&catalogIDsJSON, &relatedJSON, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan concept row: %w", err)
	}

	if err := json.Unmarshal([]byte(vectorJSON), &c.Vector); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	if err := json.Unmarshal([]byte(catalogIDsJSON), &c.CatalogIDs); err != nil {
		return nil, fmt.Errorf("unmarshal catalog_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(relatedJSON), &c.RelatedConcepts); err != nil {
		return nil, fmt.Errorf("unmarshal related_concepts: %w", err)
	}
	return &c, nil
}

func (r *sqliteConceptRepository) Get(ctx context.Context, id uint32) (*domain.Concept, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conceptSelectColumns+` FROM concepts WHERE id = ?`, id)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if c == nil {
		return nil, domainerr.New(domainerr.CodeSourceNotFound, fmt.Sprintf("concept id %d not found", id), nil)
	}
	return c, nil
}

func (r *sqliteConceptRepository) GetByName(ctx context.Context, name string) (*domain.Concept, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conceptSelectColumns+` FROM concepts WHERE concept = ?`, name)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if c == nil {
		return nil, domainerr.New(domainerr.CodeSourceNotFound, fmt.Sprintf("concept %q not found", name), nil)
	}
	return c, nil
}

func (r *sqliteConceptRepository) All(ctx context.Context) ([]*domain.Concept, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conceptSelectColumns+` FROM concepts`)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	defer rows.Close()

	var results []*domain.Concept
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *sqliteConceptRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concepts`).Scan(&n)
	if err != nil {
		return 0, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	return n, nil
}

const conceptsRebuildTable = "concepts__rebuild"

// BeginRebuild stages the full rebuild into a shadow table and only swaps it
// in on Commit, per spec.md section 7: "rolls back to the prior Concepts
// table by keeping the old table until the new one is written under a
// shadow name and atomically renamed" -- a crash or error mid-rebuild
// leaves the live concepts table untouched.
func (r *sqliteConceptRepository) BeginRebuild(ctx context.Context) (RebuildHandle, error) {
	if _, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+conceptsRebuildTable); err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("drop stale shadow table: %w", err))
	}

	createStmt := `
	CREATE TABLE ` + conceptsRebuildTable + ` (
		id INTEGER PRIMARY KEY,
		concept TEXT NOT NULL,
		vector TEXT NOT NULL,
		weight REAL NOT NULL,
		chunk_count INTEGER NOT NULL,
		catalog_ids TEXT NOT NULL,
		related_concepts TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`
	if _, err := r.db.ExecContext(ctx, createStmt); err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("create shadow table: %w", err))
	}

	return &sqliteConceptRebuildHandle{db: r.db}, nil
}

type sqliteConceptRebuildHandle struct {
	db   *sql.DB
	done bool
}

func (h *sqliteConceptRebuildHandle) Insert(ctx context.Context, c *domain.Concept) error {
	vectorJSON, err := json.Marshal(c.Vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	catalogIDs, err := json.Marshal(c.CatalogIDs)
	if err != nil {
		return fmt.Errorf("marshal catalog_ids: %w", err)
	}
	related, err := json.Marshal(c.RelatedConcepts)
	if err != nil {
		return fmt.Errorf("marshal related_concepts: %w", err)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO `+conceptsRebuildTable+`(id, concept, vector, weight, chunk_count, catalog_ids, related_concepts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Concept, string(vectorJSON), c.Weight, c.ChunkCount, string(catalogIDs), string(related),
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("insert shadow concept: %w", err))
	}
	return nil
}

// Commit atomically swaps the shadow table in for the live concepts table.
func (h *sqliteConceptRebuildHandle) Commit(ctx context.Context) error {
	if h.done {
		return nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("begin commit tx: %w", err))
	}
	defer tx.Rollback()

	stmts := []string{
		`DROP TABLE IF EXISTS concepts`,
		`ALTER TABLE ` + conceptsRebuildTable + ` RENAME TO concepts`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_concepts_name ON concepts(concept)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("rebuild swap %q: %w", stmt, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("commit rebuild swap: %w", err))
	}
	h.done = true
	return nil
}

// Rollback discards the shadow table, leaving the live concepts table
// untouched.
func (h *sqliteConceptRebuildHandle) Rollback(ctx context.Context) error {
	if h.done {
		return nil
	}
	_, err := h.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+conceptsRebuildTable)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("drop shadow table: %w", err))
	}
	h.done = true
	return nil
}

var _ ConceptRepository = (*sqliteConceptRepository)(nil)
var _ RebuildHandle = (*sqliteConceptRebuildHandle)(nil)
