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

// SynonymRepository provides data access for vocabulary synonyms. Synonyms
// are global: their targets live inside datasources but the terms themselves
// are not scoped.
type SynonymRepository interface {
	Create(ctx context.Context, synonym *models.Synonym) error
	GetBySlug(ctx context.Context, slug string) (*models.Synonym, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Synonym, error)
	List(ctx context.Context, limit, offset int) ([]*models.Synonym, error)
	Count(ctx context.Context) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, k int) ([]RankedID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type synonymRepository struct {
	db *database.DB
}

// NewSynonymRepository creates a new SynonymRepository.
func NewSynonymRepository(db *database.DB) SynonymRepository {
	return &synonymRepository{db: db}
}

var _ SynonymRepository = (*synonymRepository)(nil)

const synonymColumns = `id, slug, term, term_normalized, target_kind, target_id, embedding, embedding_hash, created_at`

func (r *synonymRepository) Create(ctx context.Context, synonym *models.Synonym) error {
	if synonym.ID == uuid.Nil {
		synonym.ID = uuid.New()
	}
	synonym.CreatedAt = time.Now()
	synonym.TermNormalized = models.NormalizeTerm(synonym.Term)

	query := `
		INSERT INTO synonyms (id, slug, term, term_normalized, target_kind, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		synonym.ID, synonym.Slug, synonym.Term, synonym.TermNormalized,
		synonym.TargetKind, synonym.TargetID, synonym.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create synonym: %w", err)
	}
	return nil
}

func (r *synonymRepository) GetBySlug(ctx context.Context, slug string) (*models.Synonym, error) {
	query := `SELECT ` + synonymColumns + ` FROM synonyms WHERE slug = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, slug))
}

func (r *synonymRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Synonym, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+synonymColumns+` FROM synonyms WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get synonyms by ids: %w", err)
	}
	return r.scanMany(rows)
}

func (r *synonymRepository) List(ctx context.Context, limit, offset int) ([]*models.Synonym, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+synonymColumns+` FROM synonyms ORDER BY term LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list synonyms: %w", err)
	}
	return r.scanMany(rows)
}

func (r *synonymRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM synonyms`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count synonyms: %w", err)
	}
	return count, nil
}

func (r *synonymRepository) VectorSearch(ctx context.Context, embedding []float32, k int) ([]RankedID, error) {
	query := `
		SELECT id FROM synonyms
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search synonyms: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *synonymRepository) LexicalSearch(ctx context.Context, query string, k int) ([]RankedID, error) {
	sqlQuery := `
		SELECT id FROM synonyms
		WHERE search_tsv @@ websearch_to_tsquery('simple', $1)
		ORDER BY ts_rank_cd(search_tsv, websearch_to_tsquery('simple', $1)) DESC, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, sqlQuery, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search synonyms: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *synonymRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE synonyms SET embedding = $2, embedding_hash = $3 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update synonym embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *synonymRepository) scanOne(row pgx.Row) (*models.Synonym, error) {
	var s models.Synonym
	var emb *pgvector.Vector

	err := row.Scan(
		&s.ID, &s.Slug, &s.Term, &s.TermNormalized, &s.TargetKind, &s.TargetID,
		&emb, &s.EmbeddingHash, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan synonym: %w", err)
	}
	if emb != nil {
		s.Embedding = emb.Slice()
	}
	return &s, nil
}

func (r *synonymRepository) scanMany(rows pgx.Rows) ([]*models.Synonym, error) {
	defer rows.Close()

	var out []*models.Synonym
	for rows.Next() {
		s, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read synonyms: %w", err)
	}
	return out, nil
}
