package handlers

// Programmable service mocks shared by the handler tests.

import (
	"context"

	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/services"
)

type mockSearchService struct {
	err error

	// captured arguments from the last call
	lastQuery  string
	lastFilter services.SearchFilter
	lastPage   models.PageRequest

	tablePage *models.Page[models.TableHit]
}

func (m *mockSearchService) capture(query string, filter services.SearchFilter, page models.PageRequest) {
	m.lastQuery = query
	m.lastFilter = filter
	m.lastPage = page
}

func (m *mockSearchService) SearchDatasources(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.DatasourceHit], error) {
	m.capture(query, services.SearchFilter{}, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.DatasourceHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchTables(ctx context.Context, query string, filter services.SearchFilter, page models.PageRequest) (*models.Page[models.TableHit], error) {
	m.capture(query, filter, page)
	if m.err != nil {
		return nil, m.err
	}
	if m.tablePage != nil {
		return m.tablePage, nil
	}
	return models.NewPage([]models.TableHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchColumns(ctx context.Context, query string, filter services.SearchFilter, page models.PageRequest) (*models.Page[models.ColumnHit], error) {
	m.capture(query, filter, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.ColumnHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchEdges(ctx context.Context, query string, filter services.SearchFilter, page models.PageRequest) (*models.Page[models.EdgeHit], error) {
	m.capture(query, filter, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.EdgeHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchMetrics(ctx context.Context, query string, filter services.SearchFilter, page models.PageRequest) (*models.Page[models.MetricHit], error) {
	m.capture(query, filter, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.MetricHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchSynonyms(ctx context.Context, query string, page models.PageRequest) (*models.Page[models.SynonymHit], error) {
	m.capture(query, services.SearchFilter{}, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.SynonymHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchContextRules(ctx context.Context, query string, filter services.SearchFilter, page models.PageRequest) (*models.Page[models.ContextRuleHit], error) {
	m.capture(query, filter, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.ContextRuleHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchCategoricalValues(ctx context.Context, query string, filter services.SearchFilter, page models.PageRequest) (*models.Page[models.CategoricalValueHit], error) {
	m.capture(query, filter, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.CategoricalValueHit{}, 0, 1, 10), nil
}

func (m *mockSearchService) SearchExampleQueries(ctx context.Context, query string, filter services.SearchFilter, page models.PageRequest) (*models.Page[models.ExampleQueryHit], error) {
	m.capture(query, filter, page)
	if m.err != nil {
		return nil, m.err
	}
	return models.NewPage([]models.ExampleQueryHit{}, 0, 1, 10), nil
}

var _ services.SearchService = (*mockSearchService)(nil)

type mockPathFinder struct {
	err    error
	result *models.PathResult

	lastSource     string
	lastTarget     string
	lastDatasource string
	lastMaxDepth   int
}

func (m *mockPathFinder) FindPaths(ctx context.Context, sourceRef, targetRef, datasourceSlug string, maxDepth int) (*models.PathResult, error) {
	m.lastSource = sourceRef
	m.lastTarget = targetRef
	m.lastDatasource = datasourceSlug
	m.lastMaxDepth = maxDepth
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &models.PathResult{Paths: [][]models.PathHop{}}, nil
}

var _ services.PathFinder = (*mockPathFinder)(nil)

type mockContextResolver struct {
	err       error
	graph     *models.ContextGraph
	lastItems []models.ContextSearchItem
}

func (m *mockContextResolver) Resolve(ctx context.Context, items []models.ContextSearchItem) (*models.ContextGraph, error) {
	m.lastItems = items
	if m.err != nil {
		return nil, m.err
	}
	if m.graph != nil {
		return m.graph, nil
	}
	return &models.ContextGraph{Datasources: []*models.DatasourceContext{}}, nil
}

var _ services.ContextResolver = (*mockContextResolver)(nil)
