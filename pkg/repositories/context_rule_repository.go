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

// RuleWithColumn is a context rule joined with its column and table identity.
type RuleWithColumn struct {
	models.ContextRule
	ColumnSlug   string
	TableID      uuid.UUID
	TableSlug    string
	DatasourceID uuid.UUID
}

// ContextRuleRepository provides data access for column context rules.
type ContextRuleRepository interface {
	Create(ctx context.Context, rule *models.ContextRule) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*RuleWithColumn, error)
	ListByColumnIDs(ctx context.Context, columnIDs []uuid.UUID) ([]*models.ContextRule, error)
	List(ctx context.Context, scope SearchScope, limit, offset int) ([]*RuleWithColumn, error)
	Count(ctx context.Context, scope SearchScope) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type contextRuleRepository struct {
	db *database.DB
}

// NewContextRuleRepository creates a new ContextRuleRepository.
func NewContextRuleRepository(db *database.DB) ContextRuleRepository {
	return &contextRuleRepository{db: db}
}

var _ ContextRuleRepository = (*contextRuleRepository)(nil)

const ruleColumns = `r.id, r.column_id, r.slug, r.rule_text, r.embedding, r.embedding_hash, r.created_at, r.updated_at`

const ruleJoin = `
	FROM context_rules r
	JOIN schema_columns c ON c.id = r.column_id
	JOIN schema_tables t ON t.id = c.table_id`

func (r *contextRuleRepository) Create(ctx context.Context, rule *models.ContextRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO context_rules (id, column_id, slug, rule_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		rule.ID, rule.ColumnID, rule.Slug, rule.RuleText, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create context rule: %w", err)
	}
	return nil
}

func (r *contextRuleRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*RuleWithColumn, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + ruleColumns + `, c.slug, t.id, t.slug, t.datasource_id ` + ruleJoin + ` WHERE r.id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get context rules by ids: %w", err)
	}
	return r.scanManyWithColumn(rows)
}

func (r *contextRuleRepository) ListByColumnIDs(ctx context.Context, columnIDs []uuid.UUID) ([]*models.ContextRule, error) {
	if len(columnIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + ruleColumns + ` FROM context_rules r WHERE r.column_id = ANY($1) ORDER BY r.column_id, r.slug`
	rows, err := r.db.Query(ctx, query, columnIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list context rules: %w", err)
	}

	defer rows.Close()
	var out []*models.ContextRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read context rules: %w", err)
	}
	return out, nil
}

func (r *contextRuleRepository) List(ctx context.Context, scope SearchScope, limit, offset int) ([]*RuleWithColumn, error) {
	where, args := ruleScopeClause(scope)
	query := fmt.Sprintf(
		`SELECT `+ruleColumns+`, c.slug, t.id, t.slug, t.datasource_id `+ruleJoin+` %s ORDER BY t.slug, c.slug, r.slug LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list context rules: %w", err)
	}
	return r.scanManyWithColumn(rows)
}

func (r *contextRuleRepository) Count(ctx context.Context, scope SearchScope) (int, error) {
	where, args := ruleScopeClause(scope)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+ruleJoin+` `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count context rules: %w", err)
	}
	return count, nil
}

func (r *contextRuleRepository) VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error) {
	where, args := ruleScopeClause(scope)
	if where == "" {
		where = "WHERE r.embedding IS NOT NULL"
	} else {
		where += " AND r.embedding IS NOT NULL"
	}

	query := fmt.Sprintf(
		`SELECT r.id `+ruleJoin+` %s ORDER BY r.embedding <=> $%d, r.id LIMIT $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pgvector.NewVector(embedding), k)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search context rules: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *contextRuleRepository) LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error) {
	where, args := ruleScopeClause(scope)
	tsq := fmt.Sprintf("websearch_to_tsquery('simple', $%d)", len(args)+1)
	if where == "" {
		where = "WHERE r.search_tsv @@ " + tsq
	} else {
		where += " AND r.search_tsv @@ " + tsq
	}

	sqlQuery := fmt.Sprintf(
		`SELECT r.id `+ruleJoin+` %s ORDER BY ts_rank_cd(r.search_tsv, %s) DESC, r.id LIMIT $%d`,
		where, tsq, len(args)+2,
	)
	args = append(args, query, k)

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search context rules: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *contextRuleRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE context_rules SET embedding = $2, embedding_hash = $3, updated_at = $4 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update context rule embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func ruleScopeClause(scope SearchScope) (string, []any) {
	switch {
	case scope.ColumnID != nil:
		return "WHERE r.column_id = $1", []any{*scope.ColumnID}
	case scope.TableID != nil:
		return "WHERE c.table_id = $1", []any{*scope.TableID}
	case scope.DatasourceID != nil:
		return "WHERE t.datasource_id = $1", []any{*scope.DatasourceID}
	default:
		return "", nil
	}
}

func scanRule(row pgx.Row) (*models.ContextRule, error) {
	var rule models.ContextRule
	var emb *pgvector.Vector

	err := row.Scan(
		&rule.ID, &rule.ColumnID, &rule.Slug, &rule.RuleText,
		&emb, &rule.EmbeddingHash, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan context rule: %w", err)
	}
	if emb != nil {
		rule.Embedding = emb.Slice()
	}
	return &rule, nil
}

func (r *contextRuleRepository) scanManyWithColumn(rows pgx.Rows) ([]*RuleWithColumn, error) {
	defer rows.Close()

	var out []*RuleWithColumn
	for rows.Next() {
		var rule RuleWithColumn
		var emb *pgvector.Vector

		err := rows.Scan(
			&rule.ID, &rule.ColumnID, &rule.Slug, &rule.RuleText,
			&emb, &rule.EmbeddingHash, &rule.CreatedAt, &rule.UpdatedAt,
			&rule.ColumnSlug, &rule.TableID, &rule.TableSlug, &rule.DatasourceID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan context rule: %w", err)
		}
		if emb != nil {
			rule.Embedding = emb.Slice()
		}
		out = append(out, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read context rules: %w", err)
	}
	return out, nil
}
