// Package tools provides MCP tool implementations for schemalink-engine.
package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results. Errors the
// model can act on are returned as successful tool results so the details
// stay visible instead of being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error. Use
// this for recoverable errors the model should see and can potentially fix
// (invalid parameters, unknown slugs). System failures still return Go
// errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// AsToolResult converts service sentinel errors into actionable tool
// results. It returns nil for system failures, which callers propagate as
// Go errors.
func AsToolResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return NewErrorResult("invalid_parameters", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error())
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return NewErrorResult("upstream_unavailable", err.Error())
	default:
		return nil
	}
}

// JSONResult marshals a value into a text tool result.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
