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

// EdgeWithEndpoints is a schema edge joined with both endpoint columns and
// their owning tables. Traversal and result rendering both need endpoint
// identity without extra round trips.
type EdgeWithEndpoints struct {
	models.SchemaEdge
	DatasourceID     uuid.UUID
	SourceTableID    uuid.UUID
	SourceTableSlug  string
	SourceTableName  string
	SourceColumnSlug string
	SourceColumnName string
	TargetTableID    uuid.UUID
	TargetTableSlug  string
	TargetTableName  string
	TargetColumnSlug string
	TargetColumnName string
}

// EdgeRepository provides data access for schema edges.
type EdgeRepository interface {
	Create(ctx context.Context, edge *models.SchemaEdge) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*EdgeWithEndpoints, error)
	// ListByDatasource returns every edge in a datasource with endpoints
	// resolved, in deterministic order. This is the traversal adjacency set.
	ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*EdgeWithEndpoints, error)
	// ListAmongTables returns edges whose endpoints both fall inside the
	// given table set.
	ListAmongTables(ctx context.Context, tableIDs []uuid.UUID) ([]*EdgeWithEndpoints, error)
	List(ctx context.Context, scope SearchScope, limit, offset int) ([]*EdgeWithEndpoints, error)
	Count(ctx context.Context, scope SearchScope) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error)
	LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error
}

type edgeRepository struct {
	db *database.DB
}

// NewEdgeRepository creates a new EdgeRepository.
func NewEdgeRepository(db *database.DB) EdgeRepository {
	return &edgeRepository{db: db}
}

var _ EdgeRepository = (*edgeRepository)(nil)

const edgeSelect = `
	SELECT e.id, e.source_column_id, e.target_column_id, e.relationship_type,
	       e.is_inferred, e.description, e.context_note, e.embedding, e.embedding_hash, e.created_at,
	       st.datasource_id,
	       st.id, st.slug, st.physical_name, sc.slug, sc.name,
	       tt.id, tt.slug, tt.physical_name, tc.slug, tc.name
	FROM schema_edges e
	JOIN schema_columns sc ON sc.id = e.source_column_id
	JOIN schema_tables st ON st.id = sc.table_id
	JOIN schema_columns tc ON tc.id = e.target_column_id
	JOIN schema_tables tt ON tt.id = tc.table_id`

func (r *edgeRepository) Create(ctx context.Context, edge *models.SchemaEdge) error {
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	edge.CreatedAt = time.Now()

	query := `
		INSERT INTO schema_edges (id, source_column_id, target_column_id, relationship_type, is_inferred, description, context_note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		edge.ID, edge.SourceColumnID, edge.TargetColumnID, edge.RelationshipType,
		edge.Inferred, edge.Description, edge.ContextNote, edge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

func (r *edgeRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*EdgeWithEndpoints, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, edgeSelect+` WHERE e.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get edges by ids: %w", err)
	}
	return r.scanMany(rows)
}

func (r *edgeRepository) ListByDatasource(ctx context.Context, datasourceID uuid.UUID) ([]*EdgeWithEndpoints, error) {
	rows, err := r.db.Query(ctx, edgeSelect+` WHERE st.datasource_id = $1 ORDER BY e.id`, datasourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	return r.scanMany(rows)
}

func (r *edgeRepository) ListAmongTables(ctx context.Context, tableIDs []uuid.UUID) ([]*EdgeWithEndpoints, error) {
	if len(tableIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		edgeSelect+` WHERE st.id = ANY($1) AND tt.id = ANY($1) ORDER BY e.id`,
		tableIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges among tables: %w", err)
	}
	return r.scanMany(rows)
}

func (r *edgeRepository) List(ctx context.Context, scope SearchScope, limit, offset int) ([]*EdgeWithEndpoints, error) {
	where, args := edgeScopeClause(scope)
	query := fmt.Sprintf(`%s %s ORDER BY e.id LIMIT $%d OFFSET $%d`, edgeSelect, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	return r.scanMany(rows)
}

func (r *edgeRepository) Count(ctx context.Context, scope SearchScope) (int, error) {
	where, args := edgeScopeClause(scope)
	query := `
		SELECT COUNT(*)
		FROM schema_edges e
		JOIN schema_columns sc ON sc.id = e.source_column_id
		JOIN schema_tables st ON st.id = sc.table_id ` + where

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return count, nil
}

func (r *edgeRepository) VectorSearch(ctx context.Context, embedding []float32, scope SearchScope, k int) ([]RankedID, error) {
	where, args := edgeScopeClause(scope)
	if where == "" {
		where = "WHERE e.embedding IS NOT NULL"
	} else {
		where += " AND e.embedding IS NOT NULL"
	}

	query := fmt.Sprintf(`
		SELECT e.id
		FROM schema_edges e
		JOIN schema_columns sc ON sc.id = e.source_column_id
		JOIN schema_tables st ON st.id = sc.table_id
		%s ORDER BY e.embedding <=> $%d, e.id LIMIT $%d`,
		where, len(args)+1, len(args)+2,
	)
	args = append(args, pgvector.NewVector(embedding), k)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to vector-search edges: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *edgeRepository) LexicalSearch(ctx context.Context, query string, scope SearchScope, k int) ([]RankedID, error) {
	where, args := edgeScopeClause(scope)
	tsq := fmt.Sprintf("websearch_to_tsquery('simple', $%d)", len(args)+1)
	if where == "" {
		where = "WHERE e.search_tsv @@ " + tsq
	} else {
		where += " AND e.search_tsv @@ " + tsq
	}

	sqlQuery := fmt.Sprintf(`
		SELECT e.id
		FROM schema_edges e
		JOIN schema_columns sc ON sc.id = e.source_column_id
		JOIN schema_tables st ON st.id = sc.table_id
		%s ORDER BY ts_rank_cd(e.search_tsv, %s) DESC, e.id LIMIT $%d`,
		where, tsq, len(args)+2,
	)
	args = append(args, query, k)

	rows, err := r.db.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to text-search edges: %w", err)
	}
	return scanRankedIDs(rows)
}

func (r *edgeRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE schema_edges SET embedding = $2, embedding_hash = $3 WHERE id = $1`,
		id, pgvector.NewVector(embedding), hash,
	)
	if err != nil {
		return fmt.Errorf("failed to update edge embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// edgeScopeClause scopes edges through the source column's table.
func edgeScopeClause(scope SearchScope) (string, []any) {
	if scope.DatasourceID == nil {
		return "", nil
	}
	return "WHERE st.datasource_id = $1", []any{*scope.DatasourceID}
}

func (r *edgeRepository) scanMany(rows pgx.Rows) ([]*EdgeWithEndpoints, error) {
	defer rows.Close()

	var out []*EdgeWithEndpoints
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}
	return out, nil
}

func scanEdge(row pgx.Row) (*EdgeWithEndpoints, error) {
	var e EdgeWithEndpoints
	var emb *pgvector.Vector

	err := row.Scan(
		&e.ID, &e.SourceColumnID, &e.TargetColumnID, &e.RelationshipType,
		&e.Inferred, &e.Description, &e.ContextNote, &emb, &e.EmbeddingHash, &e.CreatedAt,
		&e.DatasourceID,
		&e.SourceTableID, &e.SourceTableSlug, &e.SourceTableName, &e.SourceColumnSlug, &e.SourceColumnName,
		&e.TargetTableID, &e.TargetTableSlug, &e.TargetTableName, &e.TargetColumnSlug, &e.TargetColumnName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan edge: %w", err)
	}
	if emb != nil {
		e.Embedding = emb.Slice()
	}
	return &e, nil
}
