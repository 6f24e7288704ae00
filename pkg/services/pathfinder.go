package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/config"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

// PathFinder enumerates join paths between two tables over the schema edge
// graph.
type PathFinder interface {
	// FindPaths returns every simple path (no repeated table) between the
	// source and target tables, up to maxDepth hops. maxDepth <= 0 selects
	// the configured default. Paths never cross datasources: a join across
	// physically separate datasources is not expressible in one statement.
	FindPaths(ctx context.Context, sourceRef, targetRef, datasourceSlug string, maxDepth int) (*models.PathResult, error)
}

type pathFinder struct {
	cfg         config.GraphConfig
	datasources repositories.DatasourceRepository
	tables      repositories.TableRepository
	edges       repositories.EdgeRepository
	logger      *zap.Logger
}

// NewPathFinder creates a PathFinder.
func NewPathFinder(
	cfg config.GraphConfig,
	datasources repositories.DatasourceRepository,
	tables repositories.TableRepository,
	edges repositories.EdgeRepository,
	logger *zap.Logger,
) PathFinder {
	return &pathFinder{
		cfg:         cfg,
		datasources: datasources,
		tables:      tables,
		edges:       edges,
		logger:      logger.Named("pathfinder"),
	}
}

var _ PathFinder = (*pathFinder)(nil)

// hop is one traversable direction of a schema edge. Every edge appears
// twice in the adjacency set, once per direction, with the cardinality
// reversed on the backward copy.
type hop struct {
	edge     *repositories.EdgeWithEndpoints
	from     uuid.UUID
	to       uuid.UUID
	reversed bool
}

func (p *pathFinder) FindPaths(ctx context.Context, sourceRef, targetRef, datasourceSlug string, maxDepth int) (*models.PathResult, error) {
	if maxDepth <= 0 {
		maxDepth = p.cfg.DefaultMaxDepth
	}
	if maxDepth > p.cfg.MaxDepthCeiling {
		return nil, fmt.Errorf("%w: max_depth %d exceeds ceiling %d", apperrors.ErrInvalidArgument, maxDepth, p.cfg.MaxDepthCeiling)
	}
	if sourceRef == "" || targetRef == "" {
		return nil, fmt.Errorf("%w: source and target tables are required", apperrors.ErrInvalidArgument)
	}

	source, err := p.resolveSource(ctx, sourceRef, datasourceSlug)
	if err != nil {
		return nil, err
	}

	target, err := p.tables.GetBySlugOrPhysicalName(ctx, source.DatasourceID, targetRef)
	if err != nil {
		return nil, fmt.Errorf("target table %q: %w", targetRef, err)
	}

	result := &models.PathResult{
		SourceTable: source.Slug,
		TargetTable: target.Slug,
		Paths:       [][]models.PathHop{},
	}

	// Already there: one path of zero hops.
	if source.ID == target.ID {
		result.Paths = append(result.Paths, []models.PathHop{})
		result.TotalPaths = 1
		return result, nil
	}

	adjacency, err := p.buildAdjacency(ctx, source.DatasourceID)
	if err != nil {
		return nil, err
	}

	paths, truncated := enumerateSimplePaths(adjacency, source.ID, target.ID, maxDepth, p.cfg.ExpansionBudget)
	if truncated {
		p.logger.Warn("path enumeration hit expansion budget",
			zap.String("source", source.Slug),
			zap.String("target", target.Slug),
			zap.Int("budget", p.cfg.ExpansionBudget))
	}

	for _, path := range paths {
		result.Paths = append(result.Paths, renderPath(path))
	}
	result.TotalPaths = len(result.Paths)
	result.Truncated = truncated
	return result, nil
}

// resolveSource finds the source table, inside the named datasource when one
// is given, otherwise globally. A global reference matching tables in more
// than one datasource is ambiguous and rejected rather than guessed at.
func (p *pathFinder) resolveSource(ctx context.Context, sourceRef, datasourceSlug string) (*models.Table, error) {
	if datasourceSlug != "" {
		ds, err := p.datasources.GetBySlug(ctx, datasourceSlug)
		if err != nil {
			return nil, fmt.Errorf("datasource %q: %w", datasourceSlug, err)
		}
		table, err := p.tables.GetBySlugOrPhysicalName(ctx, ds.ID, sourceRef)
		if err != nil {
			return nil, fmt.Errorf("source table %q: %w", sourceRef, err)
		}
		return table, nil
	}

	matches, err := p.tables.FindBySlugOrPhysicalName(ctx, sourceRef)
	if err != nil {
		return nil, err
	}
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("source table %q: %w", sourceRef, apperrors.ErrNotFound)
	case len(matches) > 1 && !sameDatasource(matches):
		return nil, fmt.Errorf("%w: table %q exists in multiple datasources, specify one", apperrors.ErrInvalidArgument, sourceRef)
	}
	return matches[0], nil
}

func sameDatasource(tables []*models.Table) bool {
	for _, t := range tables[1:] {
		if t.DatasourceID != tables[0].DatasourceID {
			return false
		}
	}
	return true
}

// buildAdjacency derives table-to-table adjacency from the datasource's
// column-level edges.
func (p *pathFinder) buildAdjacency(ctx context.Context, datasourceID uuid.UUID) (map[uuid.UUID][]hop, error) {
	edges, err := p.edges.ListByDatasource(ctx, datasourceID)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[uuid.UUID][]hop)
	for _, e := range edges {
		adjacency[e.SourceTableID] = append(adjacency[e.SourceTableID], hop{
			edge: e, from: e.SourceTableID, to: e.TargetTableID,
		})
		adjacency[e.TargetTableID] = append(adjacency[e.TargetTableID], hop{
			edge: e, from: e.TargetTableID, to: e.SourceTableID, reversed: true,
		})
	}
	return adjacency, nil
}

// enumerateSimplePaths walks breadth-first from source, collecting every
// path that reaches target without revisiting a table, up to maxDepth hops.
// Each dequeued frontier entry spends one unit of budget; exhausting the
// budget stops the walk and flags truncation.
func enumerateSimplePaths(adjacency map[uuid.UUID][]hop, source, target uuid.UUID, maxDepth, budget int) ([][]hop, bool) {
	type frontier struct {
		at      uuid.UUID
		path    []hop
		visited map[uuid.UUID]bool
	}

	queue := []frontier{{at: source, visited: map[uuid.UUID]bool{source: true}}}
	var found [][]hop
	truncated := false

	for len(queue) > 0 {
		if budget <= 0 {
			truncated = true
			break
		}
		budget--

		current := queue[0]
		queue = queue[1:]

		if len(current.path) >= maxDepth {
			continue
		}

		for _, next := range adjacency[current.at] {
			if current.visited[next.to] {
				continue
			}

			path := make([]hop, len(current.path)+1)
			copy(path, current.path)
			path[len(current.path)] = next

			if next.to == target {
				found = append(found, path)
				continue
			}

			visited := make(map[uuid.UUID]bool, len(current.visited)+1)
			for id := range current.visited {
				visited[id] = true
			}
			visited[next.to] = true

			queue = append(queue, frontier{at: next.to, path: path, visited: visited})
		}
	}

	return found, truncated
}

// renderPath converts traversal hops into the wire shape, flipping endpoint
// order and cardinality for edges walked backwards.
func renderPath(path []hop) []models.PathHop {
	rendered := make([]models.PathHop, len(path))
	for i, h := range path {
		e := h.edge
		source := models.PathEndpoint{
			TableSlug:  e.SourceTableSlug,
			ColumnSlug: e.SourceColumnSlug,
			TableName:  e.SourceTableName,
			ColumnName: e.SourceColumnName,
		}
		target := models.PathEndpoint{
			TableSlug:  e.TargetTableSlug,
			ColumnSlug: e.TargetColumnSlug,
			TableName:  e.TargetTableName,
			ColumnName: e.TargetColumnName,
		}
		relType := e.RelationshipType
		if h.reversed {
			source, target = target, source
			relType = relType.Reversed()
		}
		rendered[i] = models.PathHop{
			Source:           source,
			Target:           target,
			RelationshipType: relType,
			Inferred:         e.Inferred,
			Description:      e.Description,
		}
	}
	return rendered
}
