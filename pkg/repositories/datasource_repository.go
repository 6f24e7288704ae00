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

// DatasourceRepository provides data access for datasources.
type DatasourceRepository interface {
	Create(ctx context.Context, ds *models.Datasource) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, error)
	GetBySlug(ctx context.Context, slug string) (*models.Datasource, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Datasource, error)
	List(ctx context.Context, limit, offset int) ([]*models.Datasource, error)
	Count(ctx context.Context) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, k int) ([]RankedID, error)
	CountLexicalMatches(ctx context.Context, query string) (int, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type datasourceRepository struct {
	db *database.DB
}

// NewDatasourceRepository creates a new DatasourceRepository.
func NewDatasourceRepository(db *database.DB) DatasourceRepository {
	return &datasourceRepository{db: db}
}

var _ DatasourceRepository = (*datasourceRepository)(nil)

const datasourceColumns = `id, name, slug, description, engine, context_signature, embedding, embedding_hash, created_at, updated_at`

func (r *datasourceRepository) Create(ctx context.Context, ds *models.Datasource) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	query := `
		INSERT INTO datasources (id, name, slug, description, engine, context_signature, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		ds.ID, ds.Name, ds.Slug, ds.Description, ds.Engine, ds.ContextSignature,
		ds.CreatedAt, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create datasource: %w", err)
	}
	return nil
}

func (r *datasourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	query := `SELECT ` + datasourceColumns + ` FROM datasources WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *datasourceRepository) GetBySlug(ctx context.Context, slug string) (*models.Datasource, error) {
	query := `SELECT ` + datasourceColumns + ` FROM datasources WHERE slug = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, slug))
}

func (r *datasourceRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Datasource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + datasourceColumns + ` FROM datasources WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get datasources by ids: %w", err)
	}
	return r.scanMany(rows)
}

func (r *datasourceRepository) List(ctx context.Context, limit, offset int) ([]*models.Datasource, error) {
	query := `SELECT ` + datasourceColumns + ` FROM datasources ORDER BY slug LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasources: %w", err)
	}
	return r.scanMany(rows)
}

func (r *datasourceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM datasources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count datasources: %w", err)
	}
	return count, nil
}

func (r *datasourceRepository) VectorSearch(ctx context.Context, embedding []float32, k int) ([]RankedID, error) {
	query := `
		SELECT id FROM datasources
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search datasources: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *datasourceRepository) LexicalSearch(ctx context.Context, query string, k int) ([]RankedID, error) {
	sqlQuery := `
		SELECT id FROM datasources
		WHERE search_tsv @@ websearch_to_tsquery('simple', $1)
		ORDER BY ts_rank_cd(search_tsv, websearch_to_tsquery('simple', $1)) DESC, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, sqlQuery, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search datasources: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *datasourceRepository) CountLexicalMatches(ctx context.Context, query string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM datasources WHERE search_tsv @@ websearch_to_tsquery('simple', $1)`,
		query,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count datasource matches: %w", err)
	}
	return count, nil
}

func (r *datasourceRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE datasources SET embedding = $2, embedding_hash = $3, updated_at = $4 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update datasource embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *datasourceRepository) scanOne(row pgx.Row) (*models.Datasource, error) {
	var ds models.Datasource
	var emb *pgvector.Vector

	err := row.Scan(
		&ds.ID, &ds.Name, &ds.Slug, &ds.Description, &ds.Engine, &ds.ContextSignature,
		&emb, &ds.EmbeddingHash, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan datasource: %w", err)
	}
	if emb != nil {
		ds.Embedding = emb.Slice()
	}
	return &ds, nil
}

func (r *datasourceRepository) scanMany(rows pgx.Rows) ([]*models.Datasource, error) {
	defer rows.Close()

	var out []*models.Datasource
	for rows.Next() {
		ds, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read datasources: %w", err)
	}
	return out, nil
}
