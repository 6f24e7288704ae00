package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/config"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/repositories"
)

// stubSearchService returns canned hits per entity kind, regardless of query.
type stubSearchService struct {
	datasourceHits []models.DatasourceHit
	tableHits      []models.TableHit
	columnHits     []models.ColumnHit
	edgeHits       []models.EdgeHit
	metricHits     []models.MetricHit
	synonymHits    []models.SynonymHit
	ruleHits       []models.ContextRuleHit
	valueHits      []models.CategoricalValueHit
	exampleHits    []models.ExampleQueryHit

	errByKind map[models.EntityKind]error
}

func stubPage[T any](items []T) *models.Page[T] {
	if items == nil {
		items = []T{}
	}
	return models.NewPage(items, len(items), 1, 10)
}

func (s *stubSearchService) kindErr(kind models.EntityKind) error {
	if s.errByKind == nil {
		return nil
	}
	return s.errByKind[kind]
}

func (s *stubSearchService) SearchDatasources(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.DatasourceHit], error) {
	if err := s.kindErr(models.KindDatasource); err != nil {
		return nil, err
	}
	return stubPage(s.datasourceHits), nil
}

func (s *stubSearchService) SearchTables(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.TableHit], error) {
	if err := s.kindErr(models.KindTable); err != nil {
		return nil, err
	}
	return stubPage(s.tableHits), nil
}

func (s *stubSearchService) SearchColumns(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ColumnHit], error) {
	if err := s.kindErr(models.KindColumn); err != nil {
		return nil, err
	}
	return stubPage(s.columnHits), nil
}

func (s *stubSearchService) SearchEdges(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.EdgeHit], error) {
	if err := s.kindErr(models.KindEdge); err != nil {
		return nil, err
	}
	return stubPage(s.edgeHits), nil
}

func (s *stubSearchService) SearchMetrics(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.MetricHit], error) {
	if err := s.kindErr(models.KindMetric); err != nil {
		return nil, err
	}
	return stubPage(s.metricHits), nil
}

func (s *stubSearchService) SearchSynonyms(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.SynonymHit], error) {
	if err := s.kindErr(models.KindSynonym); err != nil {
		return nil, err
	}
	return stubPage(s.synonymHits), nil
}

func (s *stubSearchService) SearchContextRules(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ContextRuleHit], error) {
	if err := s.kindErr(models.KindContextRule); err != nil {
		return nil, err
	}
	return stubPage(s.ruleHits), nil
}

func (s *stubSearchService) SearchCategoricalValues(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.CategoricalValueHit], error) {
	if err := s.kindErr(models.KindCategoricalValue); err != nil {
		return nil, err
	}
	return stubPage(s.valueHits), nil
}

func (s *stubSearchService) SearchExampleQueries(ctx context.Context, query string, filter SearchFilter, page models.PageRequest) (*models.Page[models.ExampleQueryHit], error) {
	if err := s.kindErr(models.KindExampleQuery); err != nil {
		return nil, err
	}
	return stubPage(s.exampleHits), nil
}

var _ SearchService = (*stubSearchService)(nil)

type resolverFixture struct {
	search      *stubSearchService
	datasources *fakeDatasourceRepo
	tables      *fakeTableRepo
	columns     *fakeColumnRepo
	edges       *fakeEdgeRepo
	metrics     *fakeMetricRepo
	values      *fakeValueRepo

	ds        *models.Datasource
	orders    *models.Table
	customers *models.Table
	email     *repositories.ColumnWithTable

	resolver ContextResolver
}

func testResolverConfig() config.ResolverConfig {
	return config.ResolverConfig{
		MaxConcurrent:        4,
		ItemTimeoutSeconds:   5,
		GlobalTimeoutSeconds: 10,
		ItemLimit:            5,
	}
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	f := &resolverFixture{
		search:      &stubSearchService{},
		datasources: &fakeDatasourceRepo{},
		tables:      &fakeTableRepo{},
		columns:     &fakeColumnRepo{},
		edges:       &fakeEdgeRepo{},
		metrics:     &fakeMetricRepo{},
		values:      &fakeValueRepo{},
	}

	ctx := context.Background()
	f.ds = &models.Datasource{ID: uuid.New(), Slug: "warehouse", Name: "Warehouse"}
	require.NoError(t, f.datasources.Create(ctx, f.ds))

	f.orders = &models.Table{ID: uuid.New(), DatasourceID: f.ds.ID, Slug: "orders", PhysicalName: "orders"}
	f.customers = &models.Table{ID: uuid.New(), DatasourceID: f.ds.ID, Slug: "customers", PhysicalName: "customers"}
	require.NoError(t, f.tables.Create(ctx, f.orders))
	require.NoError(t, f.tables.Create(ctx, f.customers))

	f.email = &repositories.ColumnWithTable{
		Column: models.Column{
			ID:      uuid.New(),
			TableID: f.customers.ID,
			Slug:    "email",
			Name:    "email",
		},
		TableSlug:    f.customers.Slug,
		TableName:    f.customers.PhysicalName,
		DatasourceID: f.ds.ID,
	}
	f.columns.items = append(f.columns.items, f.email)

	f.resolver = NewContextResolver(
		testResolverConfig(),
		f.search,
		f.datasources,
		f.tables,
		f.columns,
		f.edges,
		f.metrics,
		f.values,
		zap.NewNop(),
	)
	return f
}

func TestResolve_AssemblesForestWithParentBackfill(t *testing.T) {
	f := newResolverFixture(t)
	f.search.tableHits = []models.TableHit{{Table: *f.orders, Score: 0.8}}
	f.search.columnHits = []models.ColumnHit{{Column: f.email.Column, TableSlug: "customers", Score: 0.6}}

	graph, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: models.KindTable, SearchText: "orders"},
		{Kind: models.KindColumn, SearchText: "customer email"},
	})

	require.NoError(t, err)
	assert.False(t, graph.Partial)
	require.Len(t, graph.Datasources, 1)

	dc := graph.Datasources[0]
	assert.Equal(t, "warehouse", dc.Slug)
	require.Len(t, dc.Tables, 2)
	// Deterministic order: customers before orders.
	assert.Equal(t, "customers", dc.Tables[0].Slug)
	assert.Equal(t, "orders", dc.Tables[1].Slug)

	// The column's table was never hit directly, so it carries no score.
	customers := dc.Tables[0]
	assert.Nil(t, customers.Score)
	require.Len(t, customers.Columns, 1)
	assert.Equal(t, "email", customers.Columns[0].Slug)
	require.NotNil(t, customers.Columns[0].Score)
	assert.Equal(t, 0.6, *customers.Columns[0].Score)

	orders := dc.Tables[1]
	require.NotNil(t, orders.Score)
	assert.Equal(t, 0.8, *orders.Score)
	assert.Empty(t, orders.Columns)
}

func TestResolve_MergeIsIdempotent(t *testing.T) {
	f := newResolverFixture(t)
	f.search.tableHits = []models.TableHit{{Table: *f.orders, Score: 0.5}}

	// The same table surfacing from two items collapses into one node with
	// the best score.
	graph, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: models.KindTable, SearchText: "orders"},
		{Kind: models.KindTable, SearchText: "purchase records"},
	})

	require.NoError(t, err)
	require.Len(t, graph.Datasources, 1)
	require.Len(t, graph.Datasources[0].Tables, 1)
	assert.Equal(t, "orders", graph.Datasources[0].Tables[0].Slug)
	assert.Equal(t, 0.5, *graph.Datasources[0].Tables[0].Score)
}

func TestResolve_SynonymBubblesIntoTarget(t *testing.T) {
	f := newResolverFixture(t)
	f.search.synonymHits = []models.SynonymHit{{
		Synonym: models.Synonym{
			ID:         uuid.New(),
			Term:       "clients",
			TargetKind: models.TargetTable,
			TargetID:   f.customers.ID,
		},
		MapsToSlug: "customers",
		Score:      0.7,
	}}

	graph, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: models.KindSynonym, SearchText: "clients"},
	})

	require.NoError(t, err)
	require.Len(t, graph.Datasources, 1)
	require.Len(t, graph.Datasources[0].Tables, 1)

	// The vocabulary row itself never appears; its target does, scored.
	table := graph.Datasources[0].Tables[0]
	assert.Equal(t, "customers", table.Slug)
	require.NotNil(t, table.Score)
	assert.Equal(t, 0.7, *table.Score)
}

func TestResolve_RuleAttachesToFetchedColumn(t *testing.T) {
	f := newResolverFixture(t)
	rule := models.ContextRule{
		ID:       uuid.New(),
		ColumnID: f.email.ID,
		Slug:     "email-lowercase",
		RuleText: "Compare emails case-insensitively",
	}
	f.search.ruleHits = []models.ContextRuleHit{{
		ContextRule: rule,
		ColumnSlug:  "email",
		TableSlug:   "customers",
		Score:       0.9,
	}}

	graph, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: models.KindContextRule, SearchText: "email matching"},
	})

	require.NoError(t, err)
	require.Len(t, graph.Datasources, 1)
	require.Len(t, graph.Datasources[0].Tables, 1)
	require.Len(t, graph.Datasources[0].Tables[0].Columns, 1)

	column := graph.Datasources[0].Tables[0].Columns[0]
	assert.Equal(t, "email", column.Slug)
	require.Len(t, column.ContextRules, 1)
	assert.Equal(t, "email-lowercase", column.ContextRules[0].Slug)
}

func TestResolve_MetricAndEdgeHangOffDatasource(t *testing.T) {
	f := newResolverFixture(t)
	metric := models.Metric{ID: uuid.New(), DatasourceID: f.ds.ID, Slug: "total-revenue", Name: "Total revenue"}
	f.search.metricHits = []models.MetricHit{{Metric: metric, Score: 0.8}}

	edge := &repositories.EdgeWithEndpoints{
		SchemaEdge:       models.SchemaEdge{ID: uuid.New(), RelationshipType: models.ManyToOne},
		DatasourceID:     f.ds.ID,
		SourceTableID:    f.orders.ID,
		SourceTableSlug:  "orders",
		SourceColumnSlug: "customer_id",
		TargetTableID:    f.customers.ID,
		TargetTableSlug:  "customers",
		TargetColumnSlug: "id",
	}
	f.edges.items = append(f.edges.items, edge)
	f.search.edgeHits = []models.EdgeHit{{
		SchemaEdge: edge.SchemaEdge,
		Source:     "orders.customer_id",
		Target:     "customers.id",
		Score:      0.4,
	}}

	graph, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: models.KindMetric, SearchText: "revenue"},
		{Kind: models.KindEdge, SearchText: "orders to customers"},
	})

	require.NoError(t, err)
	require.Len(t, graph.Datasources, 1)

	dc := graph.Datasources[0]
	require.Len(t, dc.Metrics, 1)
	assert.Equal(t, "total-revenue", dc.Metrics[0].Slug)
	require.Len(t, dc.Edges, 1)
	assert.Equal(t, "orders.customer_id", dc.Edges[0].Source)
}

func TestResolve_PartialOnItemFailure(t *testing.T) {
	f := newResolverFixture(t)
	f.search.tableHits = []models.TableHit{{Table: *f.orders, Score: 0.5}}
	f.search.errByKind = map[models.EntityKind]error{
		models.KindMetric: errors.New("metric search exploded"),
	}

	graph, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: models.KindTable, SearchText: "orders"},
		{Kind: models.KindMetric, SearchText: "revenue"},
	})

	require.NoError(t, err)
	assert.True(t, graph.Partial)
	require.Len(t, graph.Datasources, 1)
	assert.Len(t, graph.Datasources[0].Tables, 1)
}

func TestResolve_AllItemsFailing(t *testing.T) {
	f := newResolverFixture(t)
	f.search.errByKind = map[models.EntityKind]error{
		models.KindTable:  errors.New("down"),
		models.KindMetric: errors.New("down"),
	}

	_, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: models.KindTable, SearchText: "orders"},
		{Kind: models.KindMetric, SearchText: "revenue"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all context items failed")
}

func TestResolve_UnknownKindRejected(t *testing.T) {
	f := newResolverFixture(t)

	_, err := f.resolver.Resolve(context.Background(), []models.ContextSearchItem{
		{Kind: "spreadsheets", SearchText: "q3 numbers"},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestResolve_NoItems(t *testing.T) {
	f := newResolverFixture(t)

	graph, err := f.resolver.Resolve(context.Background(), nil)

	require.NoError(t, err)
	assert.False(t, graph.Partial)
	assert.Empty(t, graph.Datasources)
	assert.GreaterOrEqual(t, graph.ElapsedMs, int64(0))
}
