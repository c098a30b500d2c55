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

type sqliteChunkRepository struct{ db *sql.DB }

func (r *sqliteChunkRepository) Insert(ctx context.Context, c *domain.Chunk) error {
	return r.InsertBatch(ctx, []*domain.Chunk{c})
}

// InsertBatch writes chunks in one transaction, grounded on the teacher's
// SaveChunks batch pattern (internal/store/types.go MetadataStore.SaveChunks)
// -- ingestion always writes a document's chunks together (spec.md section 3:
// "Chunks are written in the same transaction that writes their catalog row").
func (r *sqliteChunkRepository) InsertBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(id, source, text, page_number, loc, vector, concept_ids, category_ids,
			concept_density, is_toc, is_front_matter, is_back_matter, is_meta_content, is_reference,
			has_math_issues, model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	for _, c := range chunks {
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

		_, err = stmt.ExecContext(ctx, c.ID, c.Source, c.Text, c.PageNumber, c.Loc, string(vectorJSON),
			string(conceptIDs), string(categoryIDs), c.ConceptDensity, boolToInt(c.IsToC),
			boolToInt(c.IsFrontMatter), boolToInt(c.IsBackMatter), boolToInt(c.IsMetaContent),
			boolToInt(c.IsReference), boolToInt(c.HasMathIssues), c.Model)
		if err != nil {
			return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("insert chunk %d: %w", c.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *sqliteChunkRepository) scanRow(row interface {
	Scan(dest ...any) error
}) (*domain.Chunk, error) {
	var c domain.Chunk
	var vectorJSON, conceptIDsJSON, categoryIDsJSON string
	var isTOC, isFront, isBack, isMeta, isRef, hasMath int

	err := row.Scan(&c.ID, &c.Source, &c.Text, &c.PageNumber, &c.Loc, &vectorJSON,
		&conceptIDsJSON, &categoryIDsJSON, &c.ConceptDensity, &isTOC, &isFront, &isBack,
		&isMeta, &isRef, &hasMath, &c.Model)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chunk row: %w", err)
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
	c.IsToC = isTOC != 0
	c.IsFrontMatter = isFront != 0
	c.IsBackMatter = isBack != 0
	c.IsMetaContent = isMeta != 0
	c.IsReference = isRef != 0
	c.HasMathIssues = hasMath != 0
	return &c, nil
}

const chunkSelectColumns = `id, source, text, page_number, loc, vector, concept_ids, category_ids,
	concept_density, is_toc, is_front_matter, is_back_matter, is_meta_content, is_reference,
	has_math_issues, model`

func (r *sqliteChunkRepository) Get(ctx context.Context, id uint32) (*domain.Chunk, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chunkSelectColumns+` FROM chunks WHERE id = ?`, id)
	c, err := r.scanRow(row)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	if c == nil {
		return nil, domainerr.New(domainerr.CodeSourceNotFound, fmt.Sprintf("chunk id %d not found", id), nil)
	}
	return c, nil
}

func (r *sqliteChunkRepository) GetByIDs(ctx context.Context, ids []uint32) ([]*domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + chunkSelectColumns + ` FROM chunks WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	defer rows.Close()

	var results []*domain.Chunk
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *sqliteChunkRepository) GetBySource(ctx context.Context, source string) ([]*domain.Chunk, error) {
	return r.Where(ctx, []Filter{{Field: "source", Op: "=", Value: source}}, 0)
}

func (r *sqliteChunkRepository) Where(ctx context.Context, filters []Filter, limit int) ([]*domain.Chunk, error) {
	query, args := buildWhereQuery(`SELECT `+chunkSelectColumns+` FROM chunks`, filters, limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, fmt.Errorf("where chunks: %w", err))
	}
	defer rows.Close()

	var results []*domain.Chunk
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *sqliteChunkRepository) All(ctx context.Context) ([]*domain.Chunk, error) {
	return r.Where(ctx, nil, 0)
}

func (r *sqliteChunkRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	return n, nil
}

func (r *sqliteChunkRepository) DeleteBySource(ctx context.Context, source string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeDatabaseOperationErr, err)
	}
	return nil
}

var _ ChunkRepository = (*sqliteChunkRepository)(nil)
