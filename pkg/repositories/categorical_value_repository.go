package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/schemalink/schemalink-engine/pkg/database"
	"github.com/schemalink/schemalink-engine/pkg/models"
)

// ValueWithColumn is a categorical value joined with its column and table
// identity.
type ValueWithColumn struct {
	models.CategoricalValue
	ColumnSlug   string
	TableID      uuid.UUID
	TableSlug    string
	DatasourceID uuid.UUID
}

// CategoricalValueRepository provides data access for enumerated column
// values. Values carry no embeddings: short tokens like "AZ" or "pending"
// embed poorly, so retrieval is lexical only.
type CategoricalValueRepository interface {
	Create(ctx context.Context, value *models.CategoricalValue) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*ValueWithColumn, error)
	ListByColumnIDs(ctx context.Context, columnIDs []uuid.UUID) ([]*models.CategoricalValue, error)
	List(ctx context.Context, scope SearchScope, limit, offset int) ([]*ValueWithColumn, error)
	Count(ctx context.Context, scope SearchScope) (int, error)
	LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error)
}

type categoricalValueRepository struct {
	db *database.DB
}

// NewCategoricalValueRepository creates a new CategoricalValueRepository.
func NewCategoricalValueRepository(db *database.DB) CategoricalValueRepository {
	return &categoricalValueRepository{db: db}
}

var _ CategoricalValueRepository = (*categoricalValueRepository)(nil)

const valueColumns = `v.id, v.column_id, v.slug, v.value_raw, v.value_label, v.created_at, v.updated_at`

const valueJoin = `
	FROM categorical_values v
	JOIN schema_columns c ON c.id = v.column_id
	JOIN schema_tables t ON t.id = c.table_id`

func (r *categoricalValueRepository) Create(ctx context.Context, value *models.CategoricalValue) error {
	if value.ID == uuid.Nil {
		value.ID = uuid.New()
	}
	now := time.Now()
	value.CreatedAt = now
	value.UpdatedAt = now

	query := `
		INSERT INTO categorical_values (id, column_id, slug, value_raw, value_label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		value.ID, value.ColumnID, value.Slug, value.ValueRaw, value.ValueLabel,
		value.CreatedAt, value.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create categorical value: %w", err)
	}
	return nil
}

func (r *categoricalValueRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*ValueWithColumn, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + valueColumns + `, c.slug, t.id, t.slug, t.datasource_id ` + valueJoin + ` WHERE v.id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get categorical values by ids: %w", err)
	}
	return r.scanManyWithColumn(rows)
}

func (r *categoricalValueRepository) ListByColumnIDs(ctx context.Context, columnIDs []uuid.UUID) ([]*models.CategoricalValue, error) {
	if len(columnIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + valueColumns + ` FROM categorical_values v WHERE v.column_id = ANY($1) ORDER BY v.column_id, v.value_raw`
	rows, err := r.db.Query(ctx, query, columnIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list categorical values: %w", err)
	}

	defer rows.Close()
	var out []*models.CategoricalValue
	for rows.Next() {
		var v models.CategoricalValue
		if err := rows.Scan(&v.ID, &v.ColumnID, &v.Slug, &v.ValueRaw, &v.ValueLabel, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan categorical value: %w", err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read categorical values: %w", err)
	}
	return out, nil
}

func (r *categoricalValueRepository) List(ctx context.Context, scope SearchScope, limit, offset int) ([]*ValueWithColumn, error) {
	where, args := valueScopeClause(scope)
	query := fmt.Sprintf(
		`SELECT `+valueColumns+`, c.slug, t.id, t.slug, t.datasource_id `+valueJoin+` %s ORDER BY t.slug, c.slug, v.value_raw LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categorical values: %w", err)
	}
	return r.scanManyWithColumn(rows)
}

func (r *categoricalValueRepository) Count(ctx context.Context, scope SearchScope) (int, error) {
	where, args := valueScopeClause(scope)
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+valueJoin+` `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count categorical values: %w", err)
	}
	return count, nil
}

func (r *categoricalValueRepository) LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error) {
	where, args := valueScopeClause(scope)
	tsq := fmt.Sprintf("websearch_to_tsquery('simple', $%d)", len(args)+1)
	if where == "" {
		where = "WHERE v.search_tsv @@ " + tsq
	} else {
		where += " AND v.search_tsv @@ " + tsq
	}

	sqlQuery := fmt.Sprintf(
		`SELECT v.id `+valueJoin+` %s ORDER BY ts_rank_cd(v.search_tsv, %s) DESC, v.id LIMIT $%d`,
		where, tsq, len(args)+2,
	)
	args = append(args, query, k)

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search categorical values: %w", err)
	}
	return scanRankedIDs(rows)
}

func valueScopeClause(scope SearchScope) (string, []any) {
	switch {
	case scope.ColumnID != nil:
		return "WHERE v.column_id = $1", []any{*scope.ColumnID}
	case scope.TableID != nil:
		return "WHERE c.table_id = $1", []any{*scope.TableID}
	case scope.DatasourceID != nil:
		return "WHERE t.datasource_id = $1", []any{*scope.DatasourceID}
	default:
		return "", nil
	}
}

func (r *categoricalValueRepository) scanManyWithColumn(rows pgx.Rows) ([]*ValueWithColumn, error) {
	defer rows.Close()

	var out []*ValueWithColumn
	for rows.Next() {
		var v ValueWithColumn
		err := rows.Scan(
			&v.ID, &v.ColumnID, &v.Slug, &v.ValueRaw, &v.ValueLabel, &v.CreatedAt, &v.UpdatedAt,
			&v.ColumnSlug, &v.TableID, &v.TableSlug, &v.DatasourceID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan categorical value: %w", err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read categorical values: %w", err)
	}
	return out, nil
}
