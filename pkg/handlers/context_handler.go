package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/services"
)

// ResolveContextRequest for POST /v1/context/resolve
type ResolveContextRequest struct {
	Items []models.ContextSearchItem `json:"search_items"`
}

// ContextHandler exposes the scatter-gather context resolver.
type ContextHandler struct {
	resolver services.ContextResolver
	logger   *zap.Logger
}

// NewContextHandler creates a new context handler.
func NewContextHandler(resolver services.ContextResolver, logger *zap.Logger) *ContextHandler {
	return &ContextHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// RegisterRoutes registers the context handler's routes on the given mux.
func (h *ContextHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/context/resolve", h.Resolve)
}

// Resolve handles POST /v1/context/resolve
func (h *ContextHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	graph, err := h.resolver.Resolve(r.Context(), req.Items)
	if err != nil {
		h.logger.Error("Context resolution failed",
			zap.Int("items", len(req.Items)),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "resolve_context_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: graph}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
