package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

func (s *searchService) SearchDatasources(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.DatasourceHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}

	if listsOnBlank(models.KindDatasource, query) {
		total, err := s.datasources.Count(ctx)
		if err != nil {
			return nil, err
		}
		listed, err := s.datasources.List(ctx, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
		hits := make([]models.DatasourceHit, 0, len(listed))
		for _, ds := range listed {
			hits = append(hits, models.DatasourceHit{Datasource: *ds, Score: 1.0})
		}
		return models.NewPage(hits, total, page.Page, page.Limit), nil
	}

	fused, err := s.hybridCandidates(ctx, models.KindDatasource, query, page,
		func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
			return s.datasources.VectorSearch(ctx, embedding, k)
		},
		func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
			return s.datasources.LexicalSearch(ctx, q, k)
		})
	if err != nil {
		return nil, err
	}

	total := len(fused)
	window := slicePage(fused, page)

	entities, err := s.datasources.GetByIDs(ctx, fusedIDs(window))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Datasource, len(entities))
	for _, ds := range entities {
		byID[ds.ID] = ds
	}

	hits := make([]models.DatasourceHit, 0, len(window))
	for _, hit := range window {
		if ds, ok := byID[hit.ID]; ok {
			hits = append(hits, models.DatasourceHit{Datasource: *ds, Score: hit.Score})
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

func (s *searchService) SearchTables(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.TableHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, filter)
	if err != nil {
		return nil, err
	}

	if listsOnBlank(models.KindTable, query) {
		total, err := s.tables.Count(ctx, scope)
		if err != nil {
			return nil, err
		}
		listed, err := s.tables.List(ctx, scope, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
		hits := make([]models.TableHit, 0, len(listed))
		for _, t := range listed {
			hits = append(hits, models.TableHit{Table: *t, Score: 1.0})
		}
		return models.NewPage(hits, total, page.Page, page.Limit), nil
	}

	fused, err := s.hybridCandidates(ctx, models.KindTable, query, page,
		func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
			return s.tables.VectorSearch(ctx, embedding, scope, k)
		},
		func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
			return s.tables.LexicalSearch(ctx, q, scope, k)
		})
	if err != nil {
		return nil, err
	}

	total := len(fused)
	window := slicePage(fused, page)

	entities, err := s.tables.GetByIDs(ctx, fusedIDs(window))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Table, len(entities))
	for _, t := range entities {
		byID[t.ID] = t
	}

	hits := make([]models.TableHit, 0, len(window))
	for _, hit := range window {
		if t, ok := byID[hit.ID]; ok {
			hits = append(hits, models.TableHit{Table: *t, Score: hit.Score})
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

func (s *searchService) SearchColumns(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ColumnHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, filter)
	if err != nil {
		return nil, err
	}

	if listsOnBlank(models.KindColumn, query) {
		total, err := s.columns.Count(ctx, scope)
		if err != nil {
			return nil, err
		}
		listed, err := s.columns.List(ctx, scope, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
		hits := make([]models.ColumnHit, 0, len(listed))
		for _, c := range listed {
			hits = append(hits, columnHit(c, 1.0))
		}
		return models.NewPage(hits, total, page.Page, page.Limit), nil
	}

	fused, err := s.hybridCandidates(ctx, models.KindColumn, query, page,
		func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
			return s.columns.VectorSearch(ctx, embedding, scope, k)
		},
		func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
			return s.columns.LexicalSearch(ctx, q, scope, k)
		})
	if err != nil {
		return nil, err
	}

	total := len(fused)
	window := slicePage(fused, page)

	entities, err := s.columns.GetByIDs(ctx, fusedIDs(window))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*repositories.ColumnWithTable, len(entities))
	for _, c := range entities {
		byID[c.ID] = c
	}

	hits := make([]models.ColumnHit, 0, len(window))
	for _, hit := range window {
		if c, ok := byID[hit.ID]; ok {
			hits = append(hits, columnHit(c, hit.Score))
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

func columnHit(c *repositories.ColumnWithTable, score float64) models.ColumnHit {
	return models.ColumnHit{
		Column:    c.Column,
		TableSlug: c.TableSlug,
		TableName: c.TableName,
		Score:     score,
	}
}

func (s *searchService) SearchEdges(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.EdgeHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, filter)
	if err != nil {
		return nil, err
	}

	if listsOnBlank(models.KindEdge, query) {
		total, err := s.edges.Count(ctx, scope)
		if err != nil {
			return nil, err
		}
		listed, err := s.edges.List(ctx, scope, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
		hits := make([]models.EdgeHit, 0, len(listed))
		for _, e := range listed {
			hits = append(hits, edgeHit(e, 1.0))
		}
		return models.NewPage(hits, total, page.Page, page.Limit), nil
	}

	fused, err := s.hybridCandidates(ctx, models.KindEdge, query, page,
		func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
			return s.edges.VectorSearch(ctx, embedding, scope, k)
		},
		func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
			return s.edges.LexicalSearch(ctx, q, scope, k)
		})
	if err != nil {
		return nil, err
	}

	total := len(fused)
	window := slicePage(fused, page)

	entities, err := s.edges.GetByIDs(ctx, fusedIDs(window))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*repositories.EdgeWithEndpoints, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	hits := make([]models.EdgeHit, 0, len(window))
	for _, hit := range window {
		if e, ok := byID[hit.ID]; ok {
			hits = append(hits, edgeHit(e, hit.Score))
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

func edgeHit(e *repositories.EdgeWithEndpoints, score float64) models.EdgeHit {
	return models.EdgeHit{
		SchemaEdge: e.SchemaEdge,
		Source:     fmt.Sprintf("%s.%s", e.SourceTableSlug, e.SourceColumnSlug),
		Target:     fmt.Sprintf("%s.%s", e.TargetTableSlug, e.TargetColumnSlug),
		Score:      score,
	}
}

func (s *searchService) SearchMetrics(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.MetricHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, filter)
	if err != nil {
		return nil, err
	}

	var (
		total  int
		window []fusedHit
		listed []*models.Metric
	)

	if listsOnBlank(models.KindMetric, query) {
		total, err = s.metrics.Count(ctx, scope)
		if err != nil {
			return nil, err
		}
		listed, err = s.metrics.List(ctx, scope, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
	} else {
		fused, err := s.hybridCandidates(ctx, models.KindMetric, query, page,
			func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
				return s.metrics.VectorSearch(ctx, embedding, scope, k)
			},
			func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
				return s.metrics.LexicalSearch(ctx, q, scope, k)
			})
		if err != nil {
			return nil, err
		}
		total = len(fused)
		window = slicePage(fused, page)
		listed, err = s.metrics.GetByIDs(ctx, fusedIDs(window))
		if err != nil {
			return nil, err
		}
	}

	tableSlugs, err := s.requiredTableSlugs(ctx, listed)
	if err != nil {
		return nil, err
	}

	var hits []models.MetricHit
	if window == nil {
		hits = make([]models.MetricHit, 0, len(listed))
		for _, m := range listed {
			hits = append(hits, metricHit(m, 1.0, tableSlugs))
		}
	} else {
		byID := make(map[uuid.UUID]*models.Metric, len(listed))
		for _, m := range listed {
			byID[m.ID] = m
		}
		hits = make([]models.MetricHit, 0, len(window))
		for _, hit := range window {
			if m, ok := byID[hit.ID]; ok {
				hits = append(hits, metricHit(m, hit.Score, tableSlugs))
			}
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

// requiredTableSlugs batch-resolves every table id referenced by the page's
// metrics to its slug.
func (s *searchService) requiredTableSlugs(ctx context.Context, metrics []*models.Metric) (map[uuid.UUID]string, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, m := range metrics {
		for _, id := range m.RequiredTables {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	tables, err := s.tables.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	slugs := make(map[uuid.UUID]string, len(tables))
	for _, t := range tables {
		slugs[t.ID] = t.Slug
	}
	return slugs, nil
}

func metricHit(m *models.Metric, score float64, tableSlugs map[uuid.UUID]string) models.MetricHit {
	slugs := make([]string, 0, len(m.RequiredTables))
	for _, id := range m.RequiredTables {
		if slug, ok := tableSlugs[id]; ok {
			slugs = append(slugs, slug)
		}
	}
	return models.MetricHit{Metric: *m, RequiredTableSlugs: slugs, Score: score}
}

func (s *searchService) SearchSynonyms(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.SynonymHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}

	var (
		total  int
		window []fusedHit
		listed []*models.Synonym
	)

	if listsOnBlank(models.KindSynonym, query) {
		total, err = s.synonyms.Count(ctx)
		if err != nil {
			return nil, err
		}
		listed, err = s.synonyms.List(ctx, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
	} else {
		fused, err := s.hybridCandidates(ctx, models.KindSynonym, query, page,
			func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
				return s.synonyms.VectorSearch(ctx, embedding, k)
			},
			func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
				return s.synonyms.LexicalSearch(ctx, q, k)
			})
		if err != nil {
			return nil, err
		}
		total = len(fused)
		window = slicePage(fused, page)
		listed, err = s.synonyms.GetByIDs(ctx, fusedIDs(window))
		if err != nil {
			return nil, err
		}
	}

	targets, err := s.resolveSynonymTargets(ctx, listed)
	if err != nil {
		return nil, err
	}

	var hits []models.SynonymHit
	if window == nil {
		hits = make([]models.SynonymHit, 0, len(listed))
		for _, syn := range listed {
			hits = append(hits, models.SynonymHit{Synonym: *syn, MapsToSlug: targets[syn.ID], Score: 1.0})
		}
	} else {
		byID := make(map[uuid.UUID]*models.Synonym, len(listed))
		for _, syn := range listed {
			byID[syn.ID] = syn
		}
		hits = make([]models.SynonymHit, 0, len(window))
		for _, hit := range window {
			if syn, ok := byID[hit.ID]; ok {
				hits = append(hits, models.SynonymHit{Synonym: *syn, MapsToSlug: targets[syn.ID], Score: hit.Score})
			}
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

// resolveSynonymTargets batch-resolves each synonym's polymorphic target to
// a slug path, dispatching one lookup per target kind present.
func (s *searchService) resolveSynonymTargets(ctx context.Context, synonyms []*models.Synonym) (map[uuid.UUID]string, error) {
	byKind := make(map[models.SynonymTargetKind][]uuid.UUID)
	for _, syn := range synonyms {
		byKind[syn.TargetKind] = append(byKind[syn.TargetKind], syn.TargetID)
	}

	targetSlug := make(map[uuid.UUID]string)

	if ids := byKind[models.TargetTable]; len(ids) > 0 {
		tables, err := s.tables.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			targetSlug[t.ID] = t.Slug
		}
	}
	if ids := byKind[models.TargetColumn]; len(ids) > 0 {
		columns, err := s.columns.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, c := range columns {
			targetSlug[c.ID] = fmt.Sprintf("%s.%s", c.TableSlug, c.Slug)
		}
	}
	if ids := byKind[models.TargetMetric]; len(ids) > 0 {
		metrics, err := s.metrics.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, m := range metrics {
			targetSlug[m.ID] = m.Slug
		}
	}
	if ids := byKind[models.TargetValue]; len(ids) > 0 {
		values, err := s.values.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			targetSlug[v.ID] = fmt.Sprintf("%s.%s.%s", v.TableSlug, v.ColumnSlug, v.Slug)
		}
	}

	resolved := make(map[uuid.UUID]string, len(synonyms))
	for _, syn := range synonyms {
		resolved[syn.ID] = targetSlug[syn.TargetID]
	}
	return resolved, nil
}

func (s *searchService) SearchContextRules(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ContextRuleHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, filter)
	if err != nil {
		return nil, err
	}

	if listsOnBlank(models.KindContextRule, query) {
		total, err := s.rules.Count(ctx, scope)
		if err != nil {
			return nil, err
		}
		listed, err := s.rules.List(ctx, scope, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
		hits := make([]models.ContextRuleHit, 0, len(listed))
		for _, r := range listed {
			hits = append(hits, ruleHit(r, 1.0))
		}
		return models.NewPage(hits, total, page.Page, page.Limit), nil
	}

	fused, err := s.hybridCandidates(ctx, models.KindContextRule, query, page,
		func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
			return s.rules.VectorSearch(ctx, embedding, scope, k)
		},
		func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
			return s.rules.LexicalSearch(ctx, q, scope, k)
		})
	if err != nil {
		return nil, err
	}

	total := len(fused)
	window := slicePage(fused, page)

	entities, err := s.rules.GetByIDs(ctx, fusedIDs(window))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*repositories.RuleWithColumn, len(entities))
	for _, r := range entities {
		byID[r.ID] = r
	}

	hits := make([]models.ContextRuleHit, 0, len(window))
	for _, hit := range window {
		if r, ok := byID[hit.ID]; ok {
			hits = append(hits, ruleHit(r, hit.Score))
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

func ruleHit(r *repositories.RuleWithColumn, score float64) models.ContextRuleHit {
	return models.ContextRuleHit{
		ContextRule: r.ContextRule,
		ColumnSlug:  r.ColumnSlug,
		TableSlug:   r.TableSlug,
		Score:       score,
	}
}

// SearchCategoricalValues is lexical-only: short enumerated tokens embed
// poorly, so the vector branch is skipped entirely.
func (s *searchService) SearchCategoricalValues(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.CategoricalValueHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, filter)
	if err != nil {
		return nil, err
	}

	if listsOnBlank(models.KindCategoricalValue, query) {
		total, err := s.values.Count(ctx, scope)
		if err != nil {
			return nil, err
		}
		listed, err := s.values.List(ctx, scope, page.Limit, page.Offset())
		if err != nil {
			return nil, err
		}
		hits := make([]models.CategoricalValueHit, 0, len(listed))
		for _, v := range listed {
			hits = append(hits, valueHit(v, 1.0))
		}
		return models.NewPage(hits, total, page.Page, page.Limit), nil
	}

	fused, err := s.hybridCandidates(ctx, models.KindCategoricalValue, query, page,
		nil,
		func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
			return s.values.LexicalSearch(ctx, q, scope, k)
		})
	if err != nil {
		return nil, err
	}

	total := len(fused)
	window := slicePage(fused, page)

	entities, err := s.values.GetByIDs(ctx, fusedIDs(window))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*repositories.ValueWithColumn, len(entities))
	for _, v := range entities {
		byID[v.ID] = v
	}

	hits := make([]models.CategoricalValueHit, 0, len(window))
	for _, hit := range window {
		if v, ok := byID[hit.ID]; ok {
			hits = append(hits, valueHit(v, hit.Score))
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}

func valueHit(v *repositories.ValueWithColumn, score float64) models.CategoricalValueHit {
	return models.CategoricalValueHit{
		CategoricalValue: v.CategoricalValue,
		ColumnSlug:       v.ColumnSlug,
		TableSlug:        v.TableSlug,
		Score:            score,
	}
}

// SearchExampleQueries returns an empty page on a blank query: listing every
// saved example against no prompt helps nobody rank anything.
func (s *searchService) SearchExampleQueries(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ExampleQueryHit], error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolveScope(ctx, filter)
	if err != nil {
		return nil, err
	}

	if emptyOnBlank(models.KindExampleQuery, query) {
		return models.NewPage([]models.ExampleQueryHit{}, 0, page.Page, page.Limit), nil
	}

	fused, err := s.hybridCandidates(ctx, models.KindExampleQuery, query, page,
		func(ctx context.Context, embedding []float32, k int) ([]repositories.RankedID, error) {
			return s.examples.VectorSearch(ctx, embedding, scope, k)
		},
		func(ctx context.Context, q string, k int) ([]repositories.RankedID, error) {
			return s.examples.LexicalSearch(ctx, q, scope, k)
		})
	if err != nil {
		return nil, err
	}

	total := len(fused)
	window := slicePage(fused, page)

	entities, err := s.examples.GetByIDs(ctx, fusedIDs(window))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.ExampleQuery, len(entities))
	for _, eq := range entities {
		byID[eq.ID] = eq
	}

	hits := make([]models.ExampleQueryHit, 0, len(window))
	for _, hit := range window {
		if eq, ok := byID[hit.ID]; ok {
			hits = append(hits, models.ExampleQueryHit{ExampleQuery: *eq, Score: hit.Score})
		}
	}
	return models.NewPage(hits, total, page.Page, page.Limit), nil
}
