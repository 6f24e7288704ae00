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

// MetricRepository provides data access for metric definitions.
type MetricRepository interface {
	Create(ctx context.Context, metric *models.Metric) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Metric, error)
	GetBySlug(ctx context.Context, datasourceID uuid.UUID, slug string) (*models.Metric, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Metric, error)
	ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.Metric, error)
	List(ctx context.Context, scope SearchScope, limit, offset int) ([]*models.Metric, error)
	Count(ctx context.Context, scope SearchScope) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type metricRepository struct {
	db *database.DB
}

// NewMetricRepository creates a new MetricRepository.
func NewMetricRepository(db *database.DB) MetricRepository {
	return &metricRepository{db: db}
}

var _ MetricRepository = (*metricRepository)(nil)

const metricColumns = `id, datasource_id, slug, name, description, calculation_sql, required_tables, filter_condition, embedding, embedding_hash, created_at, updated_at`

func (r *metricRepository) Create(ctx context.Context, metric *models.Metric) error {
	if metric.ID == uuid.Nil {
		metric.ID = uuid.New()
	}
	now := time.Now()
	metric.CreatedAt = now
	metric.UpdatedAt = now

	query := `
		INSERT INTO metrics (id, datasource_id, slug, name, description, calculation_sql, required_tables, filter_condition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		metric.ID, metric.DatasourceID, metric.Slug, metric.Name, metric.Description,
		metric.CalculationSQL, metric.RequiredTables, metric.FilterCondition,
		metric.CreatedAt, metric.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create metric: %w", err)
	}
	return nil
}

func (r *metricRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *metricRepository) GetBySlug(ctx context.Context, datasourceID uuid.UUID, slug string) (*models.Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM metrics WHERE datasource_id = $1 AND slug = $2`
	return r.scanOne(r.db.QueryRow(ctx, query, datasourceID, slug))
}

func (r *metricRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Metric, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+metricColumns+` FROM metrics WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics by ids: %w", err)
	}
	return r.scanMany(rows)
}

func (r *metricRepository) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*models.Metric, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+metricColumns+` FROM metrics WHERE datasource_id = $1 ORDER BY slug`,
		datasourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	return r.scanMany(rows)
}

func (r *metricRepository) List(ctx context.Context, scope SearchScope, limit, offset int) ([]*models.Metric, error) {
	where, args := metricScopeClause(scope)
	query := fmt.Sprintf(
		`SELECT `+metricColumns+` FROM metrics %s ORDER BY slug LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	return r.scanMany(rows)
}

func (r *metricRepository) Count(ctx context.Context, scope SearchScope) (int, error) {
	where, args := metricScopeClause(scope)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM metrics `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count metrics: %w", err)
	}
	return count, nil
}

func (r *metricRepository) VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error) {
	where, args := metricScopeClause(scope)
	if where == "" {
		where = "WHERE embedding IS NOT NULL"
	} else {
		where += " AND embedding IS NOT NULL"
	}

	query := fmt.Sprintf(
		`SELECT id FROM metrics %s ORDER BY embedding <=> $%d, id LIMIT $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pgvector.NewVector(embedding), k)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search metrics: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *metricRepository) LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error) {
	where, args := metricScopeClause(scope)
	tsq := fmt.Sprintf("websearch_to_tsquery('simple', $%d)", len(args)+1)
	if where == "" {
		where = "WHERE search_tsv @@ " + tsq
	} else {
		where += " AND search_tsv @@ " + tsq
	}

	sqlQuery := fmt.Sprintf(
		`SELECT id FROM metrics %s ORDER BY ts_rank_cd(search_tsv, %s) DESC, id LIMIT $%d`,
		where, tsq, len(args)+2,
	)
	args = append(args, query, k)

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search metrics: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *metricRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE metrics SET embedding = $2, embedding_hash = $3, updated_at = $4 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update metric embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func metricScopeClause(scope SearchScope) (string, []any) {
	if scope.DatasourceID == nil {
		return "", nil
	}
	return "WHERE datasource_id = $1", []any{*scope.DatasourceID}
}

func (r *metricRepository) scanOne(row pgx.Row) (*models.Metric, error) {
	var m models.Metric
	var emb *pgvector.Vector

	err := row.Scan(
		&m.ID, &m.DatasourceID, &m.Slug, &m.Name, &m.Description,
		&m.CalculationSQL, &m.RequiredTables, &m.FilterCondition,
		&emb, &m.EmbeddingHash, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan metric: %w", err)
	}
	if emb != nil {
		m.Embedding = emb.Slice()
	}
	return &m, nil
}

func (r *metricRepository) scanMany(rows pgx.Rows) ([]*models.Metric, error) {
	defer rows.Close()

	var out []*models.Metric
	for rows.Next() {
		m, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}
	return out, nil
}
