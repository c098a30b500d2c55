package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
)

type sqliteCategoryRepository struct{ db *sql.DB }

const categorySelectColumns = `id, name, aliases, parent_id, document_count, chunk_count`

func (r *sqliteCategoryRepository) scanRow(row interface {
	Scan(dest ...any) error
}) (*domain.Category, error) {
	var c domain.Category
	var aliasesJSON string
	var parentID sql.NullInt64

	err := row.Scan(&c.ID, &c.Name, &aliasesJSON, &parentID, &c.DocumentCount, &c.ChunkCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan category row: %w", err)
	}

	if err := json.Unmarshal([]byte(aliasesJSON), &c.Aliases); err != nil {
		return nil, fmt.Errorf("unmarshal aliases: %w", err)
	}
	if parentID.Valid {
		id := uint32(parentID.Int64)
		c.ParentID = &id
	}
	return &c, nil
}

// Upsert inserts a category or updates its aliases/parent if the name
// already exists, per spec.md section 3's category tree construction
// (categories are built incrementally as documents are classified, not
// truncate-and-rebuilt like concepts).
func (r *sqliteCategoryRepository) Upsert(ctx context.Context, c *domain.Category) error {
	aliasesJSON, err := json.Marshal(c.Aliases)
	if err != nil {
		return fmt.Errorf("marshal aliases: %w", err)
	}

	var parentID any
	if c.ParentID != nil {
		parentID = *c.ParentID
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO categories(id, name, aliases, parent_id, document_count, chunk_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			aliases = excluded.aliases,
			parent_id = excluded.parent_id,
			document_count = excluded.document_count,
			chunk_count = excluded.chunk_count`,
		c.ID, c.Name, string(aliasesJSON), parentID, c.DocumentCount, c.ChunkCount)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("upsert category: %w", err))
	}
	return nil
}

func (r *sqliteCategoryRepository) Get(ctx context.Context, id uint32) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categorySelectColumns+` FROM categories WHERE id = ?`, id)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if c == nil {
		return nil, domainerr.New(domainerr.CodeSourceNotFound, fmt.Sprintf("category id %d not found", id), nil)
	}
	return c, nil
}

func (r *sqliteCategoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+categorySelectColumns+` FROM categories WHERE name = ?`, name)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if c == nil {
		return nil, domainerr.New(domainerr.CodeSourceNotFound, fmt.Sprintf("category %q not found", name), nil)
	}
	return c, nil
}

func (r *sqliteCategoryRepository) All(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categorySelectColumns+` FROM categories`)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	defer rows.Close()

	var results []*domain.Category
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *sqliteCategoryRepository) UpdateCounts(ctx context.Context, id uint32, documentCount, chunkCount int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE categories SET document_count = ?, chunk_count = ? WHERE id = ?`,
		documentCount, chunkCount, id)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("update category counts: %w", err))
	}
	return nil
}

var _ CategoryRepository = (*sqliteCategoryRepository)(nil)
