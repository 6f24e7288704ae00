package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/services"
)

// SearchToolDeps contains dependencies for the search tool.
type SearchToolDeps struct {
	SearchService services.SearchService
	Logger        *zap.Logger
}

// RegisterSearchTools registers search MCP tools.
func RegisterSearchTools(s *server.MCPServer, deps *SearchToolDeps) {
	registerSearchCatalogTool(s, deps)
}

// registerSearchCatalogTool adds the search_catalog tool for hybrid search
// over one catalog entity kind.
func registerSearchCatalogTool(s *server.MCPServer, deps *SearchToolDeps) {
	tool := mcp.NewTool(
		"search_catalog",
		mcp.WithDescription(
			"Hybrid semantic + keyword search over one kind of catalog entity. "+
				"Kinds: datasources, tables, columns, edges, metrics, synonyms, "+
				"context_rules, values, example_queries. Results are ranked by fused "+
				"relevance. Example: search_catalog(entity='tables', query='customer orders') "+
				"returns the tables most related to customer orders.",
		),
		mcp.WithString(
			"entity",
			mcp.Required(),
			mcp.Description("Entity kind to search (e.g., 'tables', 'columns', 'metrics')"),
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Natural-language search query (e.g., 'monthly revenue')"),
		),
		mcp.WithString(
			"datasource",
			mcp.Description("Optional datasource slug to scope the search"),
		),
		mcp.WithString(
			"table",
			mcp.Description("Optional table slug to scope the search (requires datasource)"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of results to return (default 10, max 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entityRaw, err := req.RequireString("entity")
		if err != nil {
			return nil, err
		}
		kind, err := models.ParseEntityKind(strings.ToLower(strings.TrimSpace(entityRaw)))
		if err != nil {
			return NewErrorResult("invalid_parameters", fmt.Sprintf("unknown entity kind %q", entityRaw)), nil
		}

		query, err := req.RequireString("query")
		if err != nil {
			return nil, err
		}

		args, _ := req.Params.Arguments.(map[string]any)
		filter := services.SearchFilter{}
		if v, ok := args["datasource"].(string); ok {
			filter.DatasourceSlug = v
		}
		if v, ok := args["table"].(string); ok {
			filter.TableSlug = v
		}

		page := models.PageRequest{Page: 1, Limit: 10}
		if limitVal, ok := args["limit"].(float64); ok {
			page.Limit = int(limitVal)
		}
		if page.Limit > 100 {
			page.Limit = 100
		}

		result, err := searchKind(ctx, deps.SearchService, kind, query, filter, page)
		if err != nil {
			if toolResult := AsToolResult(err); toolResult != nil {
				return toolResult, nil
			}
			return nil, err
		}

		return JSONResult(result)
	})
}

// searchKind dispatches a search to the per-kind service method.
func searchKind(
	ctx context.Context,
	search services.SearchService,
	kind models.EntityKind,
	query string,
	filter services.SearchFilter,
	page models.PageRequest,
) (any, error) {
	switch kind {
	case models.KindDatasource:
		return search.SearchDatasources(ctx, query, page)
	case models.KindTable:
		return search.SearchTables(ctx, query, filter, page)
	case models.KindColumn:
		return search.SearchColumns(ctx, query, filter, page)
	case models.KindEdge:
		return search.SearchEdges(ctx, query, filter, page)
	case models.KindMetric:
		return search.SearchMetrics(ctx, query, filter, page)
	case models.KindSynonym:
		return search.SearchSynonyms(ctx, query, page)
	case models.KindContextRule:
		return search.SearchContextRules(ctx, query, filter, page)
	case models.KindCategoricalValue:
		return search.SearchCategoricalValues(ctx, query, filter, page)
	case models.KindExampleQuery:
		return search.SearchExampleQueries(ctx, query, filter, page)
	default:
		return nil, fmt.Errorf("unhandled entity kind %q", kind)
	}
}
