package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/services"
)

// GraphHandler exposes the join-path finder.
type GraphHandler struct {
	pathFinder services.PathFinder
	logger     *zap.Logger
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(pathFinder services.PathFinder, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		pathFinder: pathFinder,
		logger:     logger,
	}
}

// RegisterRoutes registers the graph handler's routes on the given mux.
func (h *GraphHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/graph/paths", h.FindPaths)
}

// FindPaths handles GET /v1/graph/paths?source=...&target=...
// Optional: datasource (scope slug), max_depth.
func (h *GraphHandler) FindPaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source := q.Get("source")
	target := q.Get("target")

	maxDepth := 0
	if raw := q.Get("max_depth"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_argument", "max_depth must be an integer"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return
		}
		maxDepth = v
	}

	result, err := h.pathFinder.FindPaths(r.Context(), source, target, q.Get("datasource"), maxDepth)
	if err != nil {
		h.logger.Error("Path search failed",
			zap.String("source", source),
			zap.String("target", target),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, "find_paths_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
