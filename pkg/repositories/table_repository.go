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

// TableRepository provides data access for schema tables.
type TableRepository interface {
	Create(ctx context.Context, table *models.Table) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Table, error)
	// GetBySlugOrPhysicalName resolves a table reference by slug first,
	// falling back to the physical name. Both are unique per datasource.
	GetBySlugOrPhysicalName(ctx context.Context, datasourceID uuid.UUID, ref string) (*models.Table, error)
	// FindBySlugOrPhysicalName resolves a table reference across all
	// datasources. Callers decide how to treat multiple matches.
	FindBySlugOrPhysicalName(ctx context.Context, ref string) ([]*models.Table, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Table, error)
	ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.Table, error)
	List(ctx context.Context, scope SearchScope, limit, offset int) ([]*models.Table, error)
	Count(ctx context.Context, scope SearchScope) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type tableRepository struct {
	db *database.DB
}

// NewTableRepository creates a new TableRepository.
func NewTableRepository(db *database.DB) TableRepository {
	return &tableRepository{db: db}
}

var _ TableRepository = (*tableRepository)(nil)

const tableColumns = `id, datasource_id, slug, physical_name, semantic_name, description, ddl_context, embedding, embedding_hash, created_at, updated_at`

func (r *tableRepository) Create(ctx context.Context, table *models.Table) error {
	if table.ID == uuid.Nil {
		table.ID = uuid.New()
	}
	now := time.Now()
	table.CreatedAt = now
	table.UpdatedAt = now

	query := `
		INSERT INTO schema_tables (id, datasource_id, slug, physical_name, semantic_name, description, ddl_context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		table.ID, table.DatasourceID, table.Slug, table.PhysicalName,
		table.SemanticName, table.Description, table.DDLContext,
		table.CreatedAt, table.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (r *tableRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM schema_tables WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *tableRepository) GetBySlugOrPhysicalName(ctx context.Context, datasourceID uuid.UUID, ref string) (*models.Table, error) {
	// Slug match wins over physical-name match when both exist.
	query := `
		SELECT ` + tableColumns + `
		FROM schema_tables
		WHERE datasource_id = $1 AND (slug = $2 OR physical_name = $2)
		ORDER BY (slug = $2) DESC
		LIMIT 1`
	return r.scanOne(r.db.QueryRow(ctx, query, datasourceID, ref))
}

func (r *tableRepository) FindBySlugOrPhysicalName(ctx context.Context, ref string) ([]*models.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM schema_tables
		WHERE slug = $1 OR physical_name = $1
		ORDER BY (slug = $1) DESC, id`
	rows, err := r.db.Query(ctx, query, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to find tables by reference: %w", err)
	}
	return r.scanMany(rows)
}

func (r *tableRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Table, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + tableColumns + ` FROM schema_tables WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables by ids: %w", err)
	}
	return r.scanMany(rows)
}

func (r *tableRepository) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM schema_tables WHERE datasource_id = $1 ORDER BY slug`
	rows, err := r.db.Query(ctx, query, datasourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return r.scanMany(rows)
}

func (r *tableRepository) List(ctx context.Context, scope SearchScope, limit, offset int) ([]*models.Table, error) {
	where, args := tableScopeClause(scope, 0)
	query := fmt.Sprintf(
		`SELECT `+tableColumns+` FROM schema_tables %s ORDER BY slug LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return r.scanMany(rows)
}

func (r *tableRepository) Count(ctx context.Context, scope SearchScope) (int, error) {
	where, args := tableScopeClause(scope, 0)
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM schema_tables `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tables: %w", err)
	}
	return count, nil
}

func (r *tableRepository) VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error) {
	where, args := tableScopeClause(scope, 0)
	if where == "" {
		where = "WHERE embedding IS NOT NULL"
	} else {
		where += " AND embedding IS NOT NULL"
	}

	query := fmt.Sprintf(
		`SELECT id FROM schema_tables %s ORDER BY embedding <=> $%d, id LIMIT $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pgvector.NewVector(embedding), k)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search tables: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *tableRepository) LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error) {
	where, args := tableScopeClause(scope, 0)
	tsq := fmt.Sprintf("websearch_to_tsquery('simple', $%d)", len(args)+1)
	if where == "" {
		where = "WHERE search_tsv @@ " + tsq
	} else {
		where += " AND search_tsv @@ " + tsq
	}

	sqlQuery := fmt.Sprintf(
		`SELECT id FROM schema_tables %s ORDER BY ts_rank_cd(search_tsv, %s) DESC, id LIMIT $%d`,
		where, tsq, len(args)+2,
	)
	args = append(args, query, k)

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search tables: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *tableRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE schema_tables SET embedding = $2, embedding_hash = $3, updated_at = $4 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update table embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// tableScopeClause builds a WHERE clause for the scope fields tables honor.
// argOffset is how many positional args precede the clause's own.
func tableScopeClause(scope SearchScope, argOffset int) (string, []any) {
	if scope.DatasourceID == nil {
		return "", nil
	}
	return fmt.Sprintf("WHERE datasource_id = $%d", argOffset+1), []any{*scope.DatasourceID}
}

func (r *tableRepository) scanOne(row pgx.Row) (*models.Table, error) {
	var t models.Table
	var emb *pgvector.Vector

	err := row.Scan(
		&t.ID, &t.DatasourceID, &t.Slug, &t.PhysicalName, &t.SemanticName,
		&t.Description, &t.DDLContext, &emb, &t.EmbeddingHash,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan table: %w", err)
	}
	if emb != nil {
		t.Embedding = emb.Slice()
	}
	return &t, nil
}

func (r *tableRepository) scanMany(rows pgx.Rows) ([]*models.Table, error) {
	defer rows.Close()

	var out []*models.Table
	for rows.Next() {
		t, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	return out, nil
}
