package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/concept-rag/conceptrag/internal/domain"
	"github.com/concept-rag/conceptrag/internal/domainerr"
)

type sqliteCatalogRepository struct{ db *sql.DB }

func (r *sqliteCatalogRepository) Insert(ctx context.Context, c *domain.Catalog) error {
	vectorJSON, err := json.Marshal(c.Vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	conceptIDs, err := json.Marshal(c.ConceptIDs)
	if err != nil {
		return fmt.Errorf("marshal concept_ids: %w", err)
	}
	categoryIDs, err := json.Marshal(c.CategoryIDs)
	if err != nil {
		return fmt.Errorf("marshal category_ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO catalog(id, source, title, text, hash, vector, concept_ids, category_ids, concept_density, ingested_at, ocr_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Source, c.Title, c.Text, c.Hash, string(vectorJSON), string(conceptIDs), string(categoryIDs),
		c.ConceptDensity, c.IngestedAt, boolToInt(c.OCRUsed))
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("insert catalog row: %w", err))
	}
	return nil
}

func (r *sqliteCatalogRepository) scanRow(row interface {
	Scan(dest ...any) error
}) (*domain.Catalog, error) {
	var c domain.Catalog
	var vectorJSON, conceptIDsJSON, categoryIDsJSON string
	var ocrUsed int

	err := row.Scan(&c.ID, &c.Source, &c.Title, &c.Text, &c.Hash, &vectorJSON,
		&conceptIDsJSON, &categoryIDsJSON, &c.ConceptDensity, &c.IngestedAt, &ocrUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan catalog row: %w", err)
	}

	if err := json.Unmarshal([]byte(vectorJSON), &c.Vector); err != nil {
		return nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	if err := json.Unmarshal([]byte(conceptIDsJSON), &c.ConceptIDs); err != nil {
		return nil, fmt.Errorf("unmarshal concept_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(categoryIDsJSON), &c.CategoryIDs); err != nil {
		return nil, fmt.Errorf("unmarshal category_ids: %w", err)
	}
	c.OCRUsed = ocrUsed != 0
	return &c, nil
}

func (r *sqliteCatalogRepository) Get(ctx context.Context, id uint32) (*domain.Catalog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source, title, text, hash, vector, concept_ids, category_ids, concept_density, ingested_at, ocr_used
		FROM catalog WHERE id = ?`, id)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if c == nil {
		return nil, domainerr.New(domainerr.CodeSourceNotFound, fmt.Sprintf("catalog id %d not found", id), nil)
	}
	return c, nil
}

func (r *sqliteCatalogRepository) GetBySource(ctx context.Context, source string) (*domain.Catalog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source, title, text, hash, vector, concept_ids, category_ids, concept_density, ingested_at, ocr_used
		FROM catalog WHERE source = ?`, source)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if c == nil {
		return nil, domainerr.SourceNotFound(source)
	}
	return c, nil
}

func (r *sqliteCatalogRepository) GetByHash(ctx context.Context, hash string) (*domain.Catalog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source, title, text, hash, vector, concept_ids, category_ids, concept_density, ingested_at, ocr_used
		FROM catalog WHERE hash = ?`, hash)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	return c, nil // nil, nil is a valid "no dup" answer for dedup checks
}

func (r *sqliteCatalogRepository) Where(ctx context.Context, filters []Filter, limit int) ([]*domain.Catalog, error) {
	query, args := buildWhereQuery(`
		SELECT id, source, title, text, hash, vector, concept_ids, category_ids, concept_density, ingested_at, ocr_used
		FROM catalog`, filters, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("where catalog: %w", err))
	}
	defer rows.Close()

	var results []*domain.Catalog
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *sqliteCatalogRepository) All(ctx context.Context) ([]*domain.Catalog, error) {
	return r.Where(ctx, nil, 0)
}

func (r *sqliteCatalogRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog`).Scan(&n)
	if err != nil {
		return 0, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	return n, nil
}

func (r *sqliteCatalogRepository) Delete(ctx context.Context, id uint32) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM catalog WHERE id = ?`, id)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	return nil
}

var _ CatalogRepository = (*sqliteCatalogRepository)(nil)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// buildWhereQuery appends scalar/array-contains predicates to baseQuery,
// per spec.md section 6 (e)'s "SQL-style where filter over scalar fields
// with array-contains predicates". "contains" is implemented against the
// JSON-encoded id-array columns via SQLite's json_each table function.
func buildWhereQuery(baseQuery string, filters []Filter, limit int) (string, []any) {
	var clauses []string
	var args []any

	for _, f := range filters {
		switch f.Op {
		case "contains":
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", f.Field))
			args = append(args, f.Value)
		default:
			op := f.Op
			if op == "" {
				op = "="
			}
			clauses = append(clauses, fmt.Sprintf("%s %s ?", f.Field, op))
			args = append(args, f.Value)
		}
	}

	query := baseQuery
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, args
}
