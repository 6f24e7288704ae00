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

// ExampleQueryRepository provides data access for curated example queries.
type ExampleQueryRepository interface {
	Create(ctx context.Context, eq *models.ExampleQuery) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExampleQuery, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.ExampleQuery, error)
	ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.ExampleQuery, error)
	Count(ctx context.Context, scope SearchScope) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type exampleQueryRepository struct {
	db *database.DB
}

// NewExampleQueryRepository creates a new ExampleQueryRepository.
func NewExampleQueryRepository(db *database.DB) ExampleQueryRepository {
	return &exampleQueryRepository{db: db}
}

var _ ExampleQueryRepository = (*exampleQueryRepository)(nil)

const exampleQueryColumns = `id, datasource_id, slug, prompt_text, sql_query, complexity_score, verified, embedding, embedding_hash, created_at, updated_at`

func (r *exampleQueryRepository) Create(ctx context.Context, eq *models.ExampleQuery) error {
	if eq.ID == uuid.Nil {
		eq.ID = uuid.New()
	}
	now := time.Now()
	eq.CreatedAt = now
	eq.UpdatedAt = now

	query := `
		INSERT INTO example_queries (id, datasource_id, slug, prompt_text, sql_query, complexity_score, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		eq.ID, eq.DatasourceID, eq.Slug, eq.PromptText, eq.SQLQuery,
		eq.ComplexityScore, eq.Verified, eq.CreatedAt, eq.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create example query: %w", err)
	}
	return nil
}

func (r *exampleQueryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExampleQuery, error) {
	query := `SELECT ` + exampleQueryColumns + ` FROM example_queries WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *exampleQueryRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.ExampleQuery, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+exampleQueryColumns+` FROM example_queries WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get example queries by ids: %w", err)
	}
	return r.scanMany(rows)
}

func (r *exampleQueryRepository) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.ExampleQuery, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+exampleQueryColumns+` FROM example_queries WHERE datasource_id = $1 ORDER BY slug`,
		datasourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list example queries: %w", err)
	}
	return r.scanMany(rows)
}

func (r *exampleQueryRepository) Count(ctx context.Context, scope SearchScope) (int, error) {
	where, args := exampleQueryScopeClause(scope)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM example_queries `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count example queries: %w", err)
	}
	return count, nil
}

func (r *exampleQueryRepository) VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error) {
	where, args := exampleQueryScopeClause(scope)
	if where == "" {
		where = "WHERE embedding IS NOT NULL"
	} else {
		where += " AND embedding IS NOT NULL"
	}

	query := fmt.Sprintf(
		`SELECT id FROM example_queries %s ORDER BY embedding <=> $%d, id LIMIT $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pgvector.NewVector(embedding), k)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search example queries: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *exampleQueryRepository) LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error) {
	where, args := exampleQueryScopeClause(scope)
	tsq := fmt.Sprintf("websearch_to_tsquery('simple', $%d)", len(args)+1)
	if where == "" {
		where = "WHERE search_tsv @@ " + tsq
	} else {
		where += " AND search_tsv @@ " + tsq
	}

	sqlQuery := fmt.Sprintf(
		`SELECT id FROM example_queries %s ORDER BY ts_rank_cd(search_tsv, %s) DESC, id LIMIT $%d`,
		where, tsq, len(args)+2,
	)
	args = append(args, query, k)

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search example queries: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *exampleQueryRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE example_queries SET embedding = $2, embedding_hash = $3, updated_at = $4 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update example query embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func exampleQueryScopeClause(scope SearchScope) (string, []any) {
	if scope.DatasourceID == nil {
		return "", nil
	}
	return "WHERE datasource_id = $1", []any{*scope.DatasourceID}
}

func (r *exampleQueryRepository) scanOne(row pgx.Row) (*models.ExampleQuery, error) {
	var eq models.ExampleQuery
	var emb *pgvector.Vector

	err := row.Scan(
		&eq.ID, &eq.DatasourceID, &eq.Slug, &eq.PromptText, &eq.SQLQuery,
		&eq.ComplexityScore, &eq.Verified, &emb, &eq.EmbeddingHash,
		&eq.CreatedAt, &eq.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan example query: %w", err)
	}
	if emb != nil {
		eq.Embedding = emb.Slice()
	}
	return &eq, nil
}

func (r *exampleQueryRepository) scanMany(rows pgx.Rows) ([]*models.ExampleQuery, error) {
	defer rows.Close()

	var out []*models.ExampleQuery
	for rows.Next() {
		eq, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, eq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read example queries: %w", err)
	}
	return out, nil
}
