package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/config"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

// SearchFilter narrows a search by catalog slugs. Slugs are resolved to ids
// before querying; an unresolvable slug is a NotFound error, not an empty
// page.
type SearchFilter struct {
	DatasourceSlug string
	TableSlug      string
	ColumnSlug     string
}

// SearchService runs hybrid (vector + lexical) retrieval over every entity
// kind in the schema graph.
type SearchService interface {
	SearchDatasources(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.DatasourceHit], error)
	SearchTables(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.TableHit], error)
	SearchColumns(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ColumnHit], error)
	SearchEdges(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.EdgeHit], error)
	SearchMetrics(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.MetricHit], error)
	SearchSynonyms(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.SynonymHit], error)
	SearchContextRules(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ContextRuleHit], error)
	SearchCategoricalValues(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.CategoricalValueHit], error)
	SearchExampleQueries(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ExampleQueryHit], error)
}

type searchService struct {
	cfg      config.SearchConfig
	embedder QueryEmbedder

	datasources repositories.DatasourceRepository
	tables      repositories.TableRepository
	columns     repositories.ColumnRepository
	edges       repositories.EdgeRepository
	metrics     repositories.MetricRepository
	synonyms    repositories.SynonymRepository
	rules       repositories.ContextRuleRepository
	values      repositories.CategoricalValueRepository
	examples    repositories.ExampleQueryRepository

	logger *zap.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(
	cfg config.SearchConfig,
	embedder QueryEmbedder,
	datasources repositories.DatasourceRepository,
	tables repositories.TableRepository,
	columns repositories.ColumnRepository,
	edges repositories.EdgeRepository,
	metrics repositories.MetricRepository,
	synonyms repositories.SynonymRepository,
	rules repositories.ContextRuleRepository,
	values repositories.CategoricalValueRepository,
	examples repositories.ExampleQueryRepository,
	logger *zap.Logger,
) SearchService {
	return &searchService{
		cfg:         cfg,
		embedder:    embedder,
		datasources: datasources,
		tables:      tables,
		columns:     columns,
		edges:       edges,
		metrics:     metrics,
		synonyms:    synonyms,
		rules:       rules,
		values:      values,
		examples:    examples,
		logger:      logger.Named("search"),
	}
}

var _ SearchService = (*searchService)(nil)

// normalizePage validates pagination parameters, applying configured
// defaults and caps.
func (s *searchService) normalizePage(page models.PageRequest) (models.PageRequest, error) {
	if page.Page == 0 {
		page.Page = 1
	}
	if page.Page < 1 {
		return page, fmt.Errorf("%w: page must be >= 1, got %d", apperrors.ErrInvalidArgument, page.Page)
	}
	if page.Limit == 0 {
		page.Limit = s.cfg.DefaultLimit
	}
	if page.Limit < 0 {
		return page, fmt.Errorf("%w: limit must be positive, got %d", apperrors.ErrInvalidArgument, page.Limit)
	}
	if page.Limit > s.cfg.MaxLimit {
		page.Limit = s.cfg.MaxLimit
	}
	if page.MinRatioToBest < 0 || page.MinRatioToBest > 1 {
		return page, fmt.Errorf("%w: min_ratio_to_best must be in [0,1], got %g", apperrors.ErrInvalidArgument, page.MinRatioToBest)
	}
	return page, nil
}

// resolveScope turns filter slugs into a SearchScope of ids. The most
// specific slug wins; each level requires its parent so the lookup is
// unambiguous.
func (s *searchService) resolveScope(ctx context.Context, filter SearchFilter) (repositories.SearchScope, error) {
	var scope repositories.SearchScope

	if filter.DatasourceSlug == "" {
		if filter.TableSlug != "" || filter.ColumnSlug != "" {
			return scope, fmt.Errorf("%w: table or column filter requires a datasource filter", apperrors.ErrInvalidArgument)
		}
		return scope, nil
	}

	ds, err := s.datasources.GetBySlug(ctx, filter.DatasourceSlug)
	if err != nil {
		return scope, fmt.Errorf("datasource %q: %w", filter.DatasourceSlug, err)
	}
	scope.DatasourceID = &ds.ID

	if filter.TableSlug == "" {
		if filter.ColumnSlug != "" {
			return scope, fmt.Errorf("%w: column filter requires a table filter", apperrors.ErrInvalidArgument)
		}
		return scope, nil
	}

	table, err := s.tables.GetBySlugOrPhysicalName(ctx, ds.ID, filter.TableSlug)
	if err != nil {
		return scope, fmt.Errorf("table %q: %w", filter.TableSlug, err)
	}
	scope.TableID = &table.ID

	if filter.ColumnSlug == "" {
		return scope, nil
	}

	column, err := s.columns.GetBySlug(ctx, table.ID, filter.ColumnSlug)
	if err != nil {
		return scope, fmt.Errorf("column %q: %w", filter.ColumnSlug, err)
	}
	scope.ColumnID = &column.ID

	return scope, nil
}

// candidateK is how many candidates each branch fetches: enough to fill the
// requested page even if the two branches disagree completely.
func (s *searchService) candidateK(page models.PageRequest) int {
	return (page.Offset() + page.Limit) * s.cfg.CandidateMultiplier
}

// hybridCandidates runs the kind's branches and fuses them. A single failing
// branch degrades to single-branch ranking; when every branch the kind has
// failed, the failure surfaces as an upstream error.
func (s *searchService) hybridCandidates(
	ctx context.Context,
	kind models.EntityKind,
	query string,
	page models.PageRequest,
	vectorBranch func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error),
	lexicalBranch func(ctx context.Context, query string, k int) ([]repositories.RankedID, error),
) ([]fusedHit, error) {
	k := s.candidateK(page)

	if kind.SearchMode() == models.SearchModeLexicalOnly {
		vectorBranch = nil
	}

	var vectorIDs, lexicalIDs []repositories.RankedID
	var vectorErr, lexicalErr error

	if vectorBranch != nil {
		var embedding []float32
		embedding, vectorErr = s.embedder.EmbedQuery(ctx, query)
		if vectorErr == nil {
			vectorIDs, vectorErr = vectorBranch(ctx, embedding, k)
		}
	}

	lexicalIDs, lexicalErr = lexicalBranch(ctx, query, k)

	if lexicalErr != nil {
		// A lexical-only kind has no second branch to degrade to.
		if vectorBranch == nil {
			return nil, fmt.Errorf("%w: lexical branch: %v", apperrors.ErrUpstreamUnavailable, lexicalErr)
		}
		if vectorErr != nil {
			return nil, fmt.Errorf("%w: vector branch: %v; lexical branch: %v",
				apperrors.ErrUpstreamUnavailable, vectorErr, lexicalErr)
		}
		s.logger.Warn("lexical branch failed, degrading to vector-only ranking",
			zap.String("kind", string(kind)), zap.Error(lexicalErr))
		lexicalIDs = nil
	}
	if vectorErr != nil {
		s.logger.Warn("vector branch failed, degrading to lexical-only ranking",
			zap.String("kind", string(kind)), zap.Error(vectorErr))
	}

	fused := fuseRRF(s.cfg.RRFConstant, vectorIDs, lexicalIDs)
	return applyMinRatio(fused, page.MinRatioToBest), nil
}

// slicePage cuts one page out of the fused candidate list.
func slicePage(fused []fusedHit, page models.PageRequest) []fusedHit {
	start := page.Offset()
	if start >= len(fused) {
		return nil
	}
	end := start + page.Limit
	if end > len(fused) {
		end = len(fused)
	}
	return fused[start:end]
}

func fusedIDs(fused []fusedHit) []uuid.UUID {
	ids := make([]uuid.UUID, len(fused))
	for i, hit := range fused {
		ids[i] = hit.ID
	}
	return ids
}

func isBlank(query string) bool {
	return strings.TrimSpace(query) == ""
}

// listsOnBlank reports whether a blank query falls through to the kind's
// unranked listing path.
func listsOnBlank(kind models.EntityKind, query string) bool {
	return isBlank(query) && kind.EmptyQueryLists()
}

// emptyOnBlank reports whether a blank query short-circuits to an empty page
// for the kind.
func emptyOnBlank(kind models.EntityKind, query string) bool {
	return isBlank(query) && !kind.EmptyQueryLists()
}
