package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/services"
)

// ContextToolDeps contains dependencies for the context resolution tool.
type ContextToolDeps struct {
	Resolver services.ContextResolver
	Logger   *zap.Logger
}

// RegisterContextTools registers context resolution MCP tools.
func RegisterContextTools(s *server.MCPServer, deps *ContextToolDeps) {
	registerResolveContextTool(s, deps)
}

// registerResolveContextTool adds the resolve_context tool.
func registerResolveContextTool(s *server.MCPServer, deps *ContextToolDeps) {
	tool := mcp.NewTool(
		"resolve_context",
		mcp.WithDescription(
			"Resolve a batch of extracted query concepts into one hierarchical schema "+
				"context graph (datasources > tables > columns, with rules, values, "+
				"metrics, edges, and example queries attached). Each item names an "+
				"entity kind and the text to search for. "+
				`Example: resolve_context(items='[{"entity":"tables","search_text":"orders"},`+
				`{"entity":"metrics","search_text":"net revenue"}]')`,
		),
		mcp.WithString(
			"items",
			mcp.Required(),
			mcp.Description(`JSON array of {"entity","search_text","min_ratio_to_best"} objects`),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		itemsRaw, err := req.RequireString("items")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(itemsRaw) == "" {
			return NewErrorResult("invalid_parameters", "items cannot be empty"), nil
		}

		var items []models.ContextSearchItem
		if err := json.Unmarshal([]byte(itemsRaw), &items); err != nil {
			return NewErrorResult("invalid_parameters", "items must be a JSON array of search items"), nil
		}

		graph, err := deps.Resolver.Resolve(ctx, items)
		if err != nil {
			if toolResult := AsToolResult(err); toolResult != nil {
				return toolResult, nil
			}
			return nil, err
		}

		return JSONResult(graph)
	})
}
