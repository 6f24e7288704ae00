package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/services"
)

// PathToolDeps contains dependencies for the join-path tool.
type PathToolDeps struct {
	PathFinder services.PathFinder
	Logger     *zap.Logger
}

// RegisterPathTools registers graph traversal MCP tools.
func RegisterPathTools(s *server.MCPServer, deps *PathToolDeps) {
	registerFindJoinPathsTool(s, deps)
}

// registerFindJoinPathsTool adds the find_join_paths tool.
func registerFindJoinPathsTool(s *server.MCPServer, deps *PathToolDeps) {
	tool := mcp.NewTool(
		"find_join_paths",
		mcp.WithDescription(
			"Find every join path between two tables in the schema graph, up to a "+
				"depth limit. Each path is an ordered list of column-to-column hops "+
				"with relationship cardinality, usable directly as JOIN clauses. "+
				"Example: find_join_paths(source='orders', target='customers') returns "+
				"the direct foreign-key path plus any indirect routes.",
		),
		mcp.WithString(
			"source",
			mcp.Required(),
			mcp.Description("Source table slug or physical name"),
		),
		mcp.WithString(
			"target",
			mcp.Required(),
			mcp.Description("Target table slug or physical name"),
		),
		mcp.WithString(
			"datasource",
			mcp.Description("Optional datasource slug; required when the table name is ambiguous across datasources"),
		),
		mcp.WithNumber(
			"max_depth",
			mcp.Description("Maximum number of hops per path (default 3)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("source")
		if err != nil {
			return nil, err
		}
		target, err := req.RequireString("target")
		if err != nil {
			return nil, err
		}
		source = strings.TrimSpace(source)
		target = strings.TrimSpace(target)
		if source == "" || target == "" {
			return NewErrorResult("invalid_parameters", "source and target cannot be empty"), nil
		}

		args, _ := req.Params.Arguments.(map[string]any)
		datasource := ""
		if v, ok := args["datasource"].(string); ok {
			datasource = v
		}
		maxDepth := 0
		if v, ok := args["max_depth"].(float64); ok {
			maxDepth = int(v)
		}

		result, err := deps.PathFinder.FindPaths(ctx, source, target, datasource, maxDepth)
		if err != nil {
			if toolResult := AsToolResult(err); toolResult != nil {
				return toolResult, nil
			}
			return nil, err
		}

		return JSONResult(result)
	})
}
