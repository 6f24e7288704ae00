package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/database"
	"github.com/schemalink/schemalink-engine/pkg/models"
)

// ColumnWithTable is a column joined with its owning table's identity, used
// when results are rendered outside the table's own context.
type ColumnWithTable struct {
	models.Column
	TableSlug    string
	TableName    string
	DatasourceID uuid.UUID
}

// ColumnRepository provides data access for schema columns.
type ColumnRepository interface {
	Create(ctx context.Context, column *models.Column) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Column, error)
	GetBySlug(ctx context.Context, tableID uuid.UUID, slug string) (*models.Column, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*ColumnWithTable, error)
	ListByTableIDs(ctx context.Context, tableIDs []uuid.UUID) ([]*models.Column, error)
	List(ctx context.Context, scope SearchScope, limit, offset int) ([]*ColumnWithTable, error)
	Count(ctx context.Context, scope SearchScope) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type columnRepository struct {
	db *database.DB
}

// NewColumnRepository creates a new ColumnRepository.
func NewColumnRepository(db *database.DB) ColumnRepository {
	return &columnRepository{db: db}
}

var _ ColumnRepository = (*columnRepository)(nil)

const columnColumns = `c.id, c.table_id, c.slug, c.name, c.semantic_name, c.data_type, c.is_primary_key, c.description, c.context_note, c.embedding, c.embedding_hash, c.created_at, c.updated_at`

func (r *columnRepository) Create(ctx context.Context, column *models.Column) error {
	if column.ID == uuid.Nil {
		column.ID = uuid.New()
	}
	now := time.Now()
	column.CreatedAt = now
	column.UpdatedAt = now

	query := `
		INSERT INTO schema_columns (id, table_id, slug, name, semantic_name, data_type, is_primary_key, description, context_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		column.ID, column.TableID, column.Slug, column.Name, column.SemanticName,
		column.DataType, column.IsPrimaryKey, column.Description, column.ContextNote,
		column.CreatedAt, column.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create column: %w", err)
	}
	return nil
}

func (r *columnRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	query := `SELECT ` + columnColumns + ` FROM schema_columns c WHERE c.id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *columnRepository) GetBySlug(ctx context.Context, tableID uuid.UUID, slug string) (*models.Column, error) {
	// Physical name doubles as a fallback reference, mirroring table lookup.
	query := `
		SELECT ` + columnColumns + `
		FROM schema_columns c
		WHERE c.table_id = $1 AND (c.slug = $2 OR c.name = $2)
		ORDER BY (c.slug = $2) DESC
		LIMIT 1`
	return r.scanOne(r.db.QueryRow(ctx, query, tableID, slug))
}

func (r *columnRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*ColumnWithTable, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + columnColumns + `, t.slug, t.physical_name, t.datasource_id
		FROM schema_columns c
		JOIN schema_tables t ON t.id = c.table_id
		WHERE c.id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns by ids: %w", err)
	}
	return r.scanManyWithTable(rows)
}

func (r *columnRepository) ListByTableIDs(ctx context.Context, tableIDs []uuid.UUID) ([]*models.Column, error) {
	if len(tableIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + columnColumns + ` FROM schema_columns c WHERE c.table_id = ANY($1) ORDER BY c.table_id, c.slug`
	rows, err := r.db.Query(ctx, query, tableIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}

	defer rows.Close()
	var out []*models.Column
	for rows.Next() {
		c, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return out, nil
}

func (r *columnRepository) List(ctx context.Context, scope SearchScope, limit, offset int) ([]*ColumnWithTable, error) {
	where, args := columnScopeClause(scope)
	query := fmt.Sprintf(`
		SELECT `+columnColumns+`, t.slug, t.physical_name, t.datasource_id
		FROM schema_columns c
		JOIN schema_tables t ON t.id = c.table_id
		%s ORDER BY t.slug, c.slug LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	return r.scanManyWithTable(rows)
}

func (r *columnRepository) Count(ctx context.Context, scope SearchScope) (int, error) {
	where, args := columnScopeClause(scope)
	query := `SELECT COUNT(*) FROM schema_columns c JOIN schema_tables t ON t.id = c.table_id ` + where

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count columns: %w", err)
	}
	return count, nil
}

func (r *columnRepository) VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error) {
	where, args := columnScopeClause(scope)
	if where == "" {
		where = "WHERE c.embedding IS NOT NULL"
	} else {
		where += " AND c.embedding IS NOT NULL"
	}

	query := fmt.Sprintf(`
		SELECT c.id
		FROM schema_columns c
		JOIN schema_tables t ON t.id = c.table_id
		%s ORDER BY c.embedding <=> $%d, c.id LIMIT $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pgvector.NewVector(embedding), k)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search columns: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *columnRepository) LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error) {
	where, args := columnScopeClause(scope)
	tsq := fmt.Sprintf("websearch_to_tsquery('simple', $%d)", len(args)+1)
	if where == "" {
		where = "WHERE c.search_tsv @@ " + tsq
	} else {
		where += " AND c.search_tsv @@ " + tsq
	}

	sqlQuery := fmt.Sprintf(`
		SELECT c.id
		FROM schema_columns c
		JOIN schema_tables t ON t.id = c.table_id
		%s ORDER BY ts_rank_cd(c.search_tsv, %s) DESC, c.id LIMIT $%d`,
		where, tsq, len(args)+2,
	)
	args = append(args, query, k)

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search columns: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *columnRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE schema_columns SET embedding = $2, embedding_hash = $3, updated_at = $4 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update column embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// columnScopeClause narrows to a table or, via the join, a datasource.
func columnScopeClause(scope SearchScope) (string, []any) {
	switch {
	case scope.TableID != nil:
		return "WHERE c.table_id = $1", []any{*scope.TableID}
	case scope.DatasourceID != nil:
		return "WHERE t.datasource_id = $1", []any{*scope.DatasourceID}
	default:
		return "", nil
	}
}

func (r *columnRepository) scanOne(row pgx.Row) (*models.Column, error) {
	var c models.Column
	var emb *pgvector.Vector

	err := row.Scan(
		&c.ID, &c.TableID, &c.Slug, &c.Name, &c.SemanticName, &c.DataType,
		&c.IsPrimaryKey, &c.Description, &c.ContextNote, &emb, &c.EmbeddingHash,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan column: %w", err)
	}
	if emb != nil {
		c.Embedding = emb.Slice()
	}
	return &c, nil
}

func (r *columnRepository) scanManyWithTable(rows pgx.Rows) ([]*ColumnWithTable, error) {
	defer rows.Close()

	var out []*ColumnWithTable
	for rows.Next() {
		var c ColumnWithTable
		var emb *pgvector.Vector

		err := rows.Scan(
			&c.ID, &c.TableID, &c.Slug, &c.Name, &c.SemanticName, &c.DataType,
			&c.IsPrimaryKey, &c.Description, &c.ContextNote, &emb, &c.EmbeddingHash,
			&c.CreatedAt, &c.UpdatedAt,
			&c.TableSlug, &c.TableName, &c.DatasourceID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if emb != nil {
			c.Embedding = emb.Slice()
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return out, nil
}
