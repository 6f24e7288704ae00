package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/config"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

// ContextResolver fans a batch of context items out as concurrent searches
// and merges everything found into one deduplicated forest, rooted per
// datasource.
type ContextResolver interface {
	Resolve(ctx context.Context, items []models.ContextSearchItem) (*models.ContextGraph, error)
}

type contextResolver struct {
	cfg         config.ResolverConfig
	search      SearchService
	datasources repositories.DatasourceRepository
	tables      repositories.TableRepository
	columns     repositories.ColumnRepository
	edges       repositories.EdgeRepository
	metrics     repositories.MetricRepository
	values      repositories.CategoricalValueRepository
	logger      *zap.Logger
}

// NewContextResolver creates a ContextResolver.
func NewContextResolver(
	cfg config.ResolverConfig,
	search SearchService,
	datasources repositories.DatasourceRepository,
	tables repositories.TableRepository,
	columns repositories.ColumnRepository,
	edges repositories.EdgeRepository,
	metrics repositories.MetricRepository,
	values repositories.CategoricalValueRepository,
	logger *zap.Logger,
) ContextResolver {
	return &contextResolver{
		cfg:         cfg,
		search:      search,
		datasources: datasources,
		tables:      tables,
		columns:     columns,
		edges:       edges,
		metrics:     metrics,
		values:      values,
		logger:      logger.Named("context-resolver"),
	}
}

var _ ContextResolver = (*contextResolver)(nil)

// itemHits is one item's search output, typed per kind. Only the slice for
// the item's kind is populated.
type itemHits struct {
	datasources []models.DatasourceHit
	tables      []models.TableHit
	columns     []models.ColumnHit
	edges       []models.EdgeHit
	metrics     []models.MetricHit
	synonyms    []models.SynonymHit
	rules       []models.ContextRuleHit
	values      []models.CategoricalValueHit
	examples    []models.ExampleQueryHit
}

func (r *contextResolver) Resolve(ctx context.Context, items []models.ContextSearchItem) (*models.ContextGraph, error) {
	start := time.Now()

	for _, item := range items {
		if _, err := models.ParseEntityKind(string(item.Kind)); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
		}
	}

	graph := &models.ContextGraph{Datasources: []*models.DatasourceContext{}}
	if len(items) == 0 {
		graph.Elapsed = time.Since(start)
		graph.ElapsedMs = graph.Elapsed.Milliseconds()
		return graph, nil
	}

	gctx, cancel := context.WithTimeout(ctx, r.cfg.GlobalTimeout())
	defer cancel()

	tasks := make([]ScatterTask[*itemHits], len(items))
	for i, item := range items {
		tasks[i] = ScatterTask[*itemHits]{
			Name: string(item.Kind),
			Execute: func(taskCtx context.Context) (*itemHits, error) {
				return r.searchItem(taskCtx, item)
			},
		}
	}

	results, complete := Scatter(gctx, ScatterConfig{
		MaxConcurrent: r.cfg.MaxConcurrent,
		ItemTimeout:   r.cfg.ItemTimeout(),
	}, tasks)

	var completed []*itemHits
	failures := 0
	var firstErr error
	for _, result := range results {
		if result.Err != nil {
			failures++
			if firstErr == nil {
				firstErr = result.Err
			}
			r.logger.Warn("context item failed",
				zap.String("kind", result.Name),
				zap.Int("index", result.Index),
				zap.Error(result.Err))
			continue
		}
		completed = append(completed, result.Result)
	}

	// Only a total loss is an error; any completed subset is worth
	// returning to a caller assembling a prompt.
	if failures == len(items) {
		return nil, fmt.Errorf("all context items failed: %w", firstErr)
	}

	forest, err := r.merge(ctx, completed)
	if err != nil {
		return nil, err
	}

	graph.Datasources = forest
	graph.Partial = !complete || failures > 0
	graph.Elapsed = time.Since(start)
	graph.ElapsedMs = graph.Elapsed.Milliseconds()
	return graph, nil
}

// searchItem dispatches one item to the search executor for its kind.
func (r *contextResolver) searchItem(ctx context.Context, item models.ContextSearchItem) (*itemHits, error) {
	page := models.PageRequest{Page: 1, Limit: r.cfg.ItemLimit, MinRatioToBest: item.MinRatioToBest}
	hits := &itemHits{}

	switch item.Kind {
	case models.KindDatasource:
		res, err := r.search.SearchDatasources(ctx, item.SearchText, page)
		if err != nil {
			return nil, err
		}
		hits.datasources = res.Items
	case models.KindTable:
		res, err := r.search.SearchTables(ctx, item.SearchText, SearchFilter{}, page)
		if err != nil {
			return nil, err
		}
		hits.tables = res.Items
	case models.KindColumn:
		res, err := r.search.SearchColumns(ctx, item.SearchText, SearchFilter{}, page)
		if err != nil {
			return nil, err
		}
		hits.columns = res.Items
	case models.KindEdge:
		res, err := r.search.SearchEdges(ctx, item.SearchText, SearchFilter{}, page)
		if err != nil {
			return nil, err
		}
		hits.edges = res.Items
	case models.KindMetric:
		res, err := r.search.SearchMetrics(ctx, item.SearchText, SearchFilter{}, page)
		if err != nil {
			return nil, err
		}
		hits.metrics = res.Items
	case models.KindSynonym:
		res, err := r.search.SearchSynonyms(ctx, item.SearchText, page)
		if err != nil {
			return nil, err
		}
		hits.synonyms = res.Items
	case models.KindContextRule:
		res, err := r.search.SearchContextRules(ctx, item.SearchText, SearchFilter{}, page)
		if err != nil {
			return nil, err
		}
		hits.rules = res.Items
	case models.KindCategoricalValue:
		res, err := r.search.SearchCategoricalValues(ctx, item.SearchText, SearchFilter{}, page)
		if err != nil {
			return nil, err
		}
		hits.values = res.Items
	case models.KindExampleQuery:
		res, err := r.search.SearchExampleQueries(ctx, item.SearchText, SearchFilter{}, page)
		if err != nil {
			return nil, err
		}
		hits.examples = res.Items
	default:
		return nil, fmt.Errorf("%w: unknown entity kind %q", apperrors.ErrInvalidArgument, item.Kind)
	}

	return hits, nil
}

// scoreSet accumulates the best score seen per entity id. Retaining the max
// keeps the merge commutative across task completion orders.
type scoreSet map[uuid.UUID]float64

func (s scoreSet) bump(id uuid.UUID, score float64) {
	if current, ok := s[id]; !ok || score > current {
		s[id] = score
	}
}

func (s scoreSet) ptr(id uuid.UUID) *float64 {
	if score, ok := s[id]; ok {
		return &score
	}
	return nil
}

// merge folds all completed items into a per-datasource forest. Tables,
// columns, rules, and values deduplicate by id; a parent missing from the
// hits (the table of a surfaced column, the column of a surfaced rule) is
// pulled in by a batched lookup so every node hangs off a real ancestor.
func (r *contextResolver) merge(ctx context.Context, completed []*itemHits) ([]*models.DatasourceContext, error) {
	dsScore := scoreSet{}
	tableScore := scoreSet{}
	columnScore := scoreSet{}
	edgeScore := scoreSet{}
	metricScore := scoreSet{}
	valueScore := scoreSet{}

	ruleHits := map[uuid.UUID]models.ContextRuleHit{}
	valueHits := map[uuid.UUID]models.CategoricalValueHit{}
	metricHits := map[uuid.UUID]models.MetricHit{}
	exampleHits := map[uuid.UUID]models.ExampleQueryHit{}

	for _, hits := range completed {
		for _, h := range hits.datasources {
			dsScore.bump(h.ID, h.Score)
		}
		for _, h := range hits.tables {
			tableScore.bump(h.ID, h.Score)
		}
		for _, h := range hits.columns {
			columnScore.bump(h.ID, h.Score)
		}
		for _, h := range hits.edges {
			edgeScore.bump(h.ID, h.Score)
		}
		for _, h := range hits.metrics {
			metricScore.bump(h.ID, h.Score)
			if _, ok := metricHits[h.ID]; !ok {
				metricHits[h.ID] = h
			}
		}
		for _, h := range hits.rules {
			if existing, ok := ruleHits[h.ID]; !ok || h.Score > existing.Score {
				ruleHits[h.ID] = h
			}
		}
		for _, h := range hits.values {
			valueScore.bump(h.ID, h.Score)
			if _, ok := valueHits[h.ID]; !ok {
				valueHits[h.ID] = h
			}
		}
		for _, h := range hits.examples {
			if existing, ok := exampleHits[h.ID]; !ok || h.Score > existing.Score {
				exampleHits[h.ID] = h
			}
		}
		// Synonym hits bubble into their targets: the caller wants the
		// entity the term maps to, not the vocabulary row itself.
		for _, h := range hits.synonyms {
			switch h.TargetKind {
			case models.TargetTable:
				tableScore.bump(h.TargetID, h.Score)
			case models.TargetColumn:
				columnScore.bump(h.TargetID, h.Score)
			case models.TargetMetric:
				metricScore.bump(h.TargetID, h.Score)
			case models.TargetValue:
				valueScore.bump(h.TargetID, h.Score)
			}
		}
	}

	// Stage 2: batched parent resolution, leaves upward.

	columnIDs := make(map[uuid.UUID]struct{})
	for id := range columnScore {
		columnIDs[id] = struct{}{}
	}
	for _, h := range ruleHits {
		columnIDs[h.ColumnID] = struct{}{}
	}

	valueIDs := make(map[uuid.UUID]struct{})
	for id := range valueScore {
		valueIDs[id] = struct{}{}
	}
	missingValues := make([]uuid.UUID, 0)
	for id := range valueIDs {
		if _, ok := valueHits[id]; !ok {
			missingValues = append(missingValues, id)
		}
	}
	if len(missingValues) > 0 {
		fetched, err := r.values.GetByIDs(ctx, missingValues)
		if err != nil {
			return nil, err
		}
		for _, v := range fetched {
			valueHits[v.ID] = valueHit(v, valueScore[v.ID])
		}
	}
	for _, h := range valueHits {
		columnIDs[h.ColumnID] = struct{}{}
	}

	missingMetrics := make([]uuid.UUID, 0)
	for id := range metricScore {
		if _, ok := metricHits[id]; !ok {
			missingMetrics = append(missingMetrics, id)
		}
	}
	if len(missingMetrics) > 0 {
		fetched, err := r.metrics.GetByIDs(ctx, missingMetrics)
		if err != nil {
			return nil, err
		}
		requiredSlugs, err := r.tableSlugsFor(ctx, fetched)
		if err != nil {
			return nil, err
		}
		for _, m := range fetched {
			metricHits[m.ID] = metricHit(m, metricScore[m.ID], requiredSlugs)
		}
	}

	edgesByID := map[uuid.UUID]*repositories.EdgeWithEndpoints{}
	if len(edgeScore) > 0 {
		ids := make([]uuid.UUID, 0, len(edgeScore))
		for id := range edgeScore {
			ids = append(ids, id)
		}
		fetched, err := r.edges.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, e := range fetched {
			edgesByID[e.ID] = e
		}
	}

	columnsByID := map[uuid.UUID]*repositories.ColumnWithTable{}
	if len(columnIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(columnIDs))
		for id := range columnIDs {
			ids = append(ids, id)
		}
		fetched, err := r.columns.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, c := range fetched {
			columnsByID[c.ID] = c
		}
	}

	tableIDs := make(map[uuid.UUID]struct{})
	for id := range tableScore {
		tableIDs[id] = struct{}{}
	}
	for _, c := range columnsByID {
		tableIDs[c.TableID] = struct{}{}
	}

	tablesByID := map[uuid.UUID]*models.Table{}
	if len(tableIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(tableIDs))
		for id := range tableIDs {
			ids = append(ids, id)
		}
		fetched, err := r.tables.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, t := range fetched {
			tablesByID[t.ID] = t
		}
	}

	dsIDs := make(map[uuid.UUID]struct{})
	for id := range dsScore {
		dsIDs[id] = struct{}{}
	}
	for _, t := range tablesByID {
		dsIDs[t.DatasourceID] = struct{}{}
	}
	for _, m := range metricHits {
		dsIDs[m.DatasourceID] = struct{}{}
	}
	for _, e := range edgesByID {
		dsIDs[e.DatasourceID] = struct{}{}
	}
	for _, eq := range exampleHits {
		dsIDs[eq.DatasourceID] = struct{}{}
	}

	datasourcesByID := map[uuid.UUID]*models.Datasource{}
	if len(dsIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(dsIDs))
		for id := range dsIDs {
			ids = append(ids, id)
		}
		fetched, err := r.datasources.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, ds := range fetched {
			datasourcesByID[ds.ID] = ds
		}
	}

	// Stage 3: assemble the forest in deterministic order.

	columnContexts := map[uuid.UUID]*models.ColumnContext{}
	for id, c := range columnsByID {
		columnContexts[id] = &models.ColumnContext{
			Column:       c.Column,
			Score:        columnScore.ptr(id),
			ContextRules: []models.ContextRuleHit{},
			Values:       []models.CategoricalValueHit{},
		}
	}
	for _, h := range ruleHits {
		if cc, ok := columnContexts[h.ColumnID]; ok {
			cc.ContextRules = append(cc.ContextRules, h)
		}
	}
	for _, h := range valueHits {
		if cc, ok := columnContexts[h.ColumnID]; ok {
			cc.Values = append(cc.Values, h)
		}
	}
	for _, cc := range columnContexts {
		sort.Slice(cc.ContextRules, func(i, j int) bool { return cc.ContextRules[i].Slug < cc.ContextRules[j].Slug })
		sort.Slice(cc.Values, func(i, j int) bool { return cc.Values[i].ValueRaw < cc.Values[j].ValueRaw })
	}

	tableContexts := map[uuid.UUID]*models.TableContext{}
	for id, t := range tablesByID {
		tableContexts[id] = &models.TableContext{
			Table:   *t,
			Score:   tableScore.ptr(id),
			Columns: []*models.ColumnContext{},
		}
	}
	for id, cc := range columnContexts {
		if tc, ok := tableContexts[columnsByID[id].TableID]; ok {
			tc.Columns = append(tc.Columns, cc)
		}
	}
	for _, tc := range tableContexts {
		sort.Slice(tc.Columns, func(i, j int) bool { return tc.Columns[i].Slug < tc.Columns[j].Slug })
	}

	dsContexts := map[uuid.UUID]*models.DatasourceContext{}
	for id, ds := range datasourcesByID {
		dsContexts[id] = &models.DatasourceContext{
			Datasource:     *ds,
			Score:          dsScore.ptr(id),
			Tables:         []*models.TableContext{},
			Metrics:        []models.MetricHit{},
			Edges:          []models.EdgeHit{},
			ExampleQueries: []models.ExampleQueryHit{},
		}
	}
	for id, tc := range tableContexts {
		if dc, ok := dsContexts[tablesByID[id].DatasourceID]; ok {
			dc.Tables = append(dc.Tables, tc)
		}
	}
	for _, h := range metricHits {
		if dc, ok := dsContexts[h.DatasourceID]; ok {
			dc.Metrics = append(dc.Metrics, h)
		}
	}
	for _, e := range edgesByID {
		if dc, ok := dsContexts[e.DatasourceID]; ok {
			dc.Edges = append(dc.Edges, edgeHit(e, edgeScore[e.ID]))
		}
	}
	for _, h := range exampleHits {
		if dc, ok := dsContexts[h.DatasourceID]; ok {
			dc.ExampleQueries = append(dc.ExampleQueries, h)
		}
	}

	forest := make([]*models.DatasourceContext, 0, len(dsContexts))
	for _, dc := range dsContexts {
		sort.Slice(dc.Tables, func(i, j int) bool { return dc.Tables[i].Slug < dc.Tables[j].Slug })
		sort.Slice(dc.Metrics, func(i, j int) bool { return dc.Metrics[i].Slug < dc.Metrics[j].Slug })
		sort.Slice(dc.Edges, func(i, j int) bool { return dc.Edges[i].Source+dc.Edges[i].Target < dc.Edges[j].Source+dc.Edges[j].Target })
		sort.Slice(dc.ExampleQueries, func(i, j int) bool { return dc.ExampleQueries[i].Slug < dc.ExampleQueries[j].Slug })
		forest = append(forest, dc)
	}
	sort.Slice(forest, func(i, j int) bool { return forest[i].Slug < forest[j].Slug })

	return forest, nil
}

// tableSlugsFor resolves required-table ids for a metric batch.
func (r *contextResolver) tableSlugsFor(ctx context.Context, metrics []*models.Metric) (map[uuid.UUID]string, error) {
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, m := range metrics {
		for _, id := range m.RequiredTables {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	tables, err := r.tables.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	slugs := make(map[uuid.UUID]string, len(tables))
	for _, t := range tables {
		slugs[t.ID] = t.Slug
	}
	return slugs, nil
}
