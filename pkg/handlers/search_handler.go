package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/logging"
	"github.com/schemalink/schemalink-engine/pkg/models"
	"github.com/schemalink/schemalink-engine/pkg/services"
)

// SearchHandler exposes the per-kind hybrid search endpoints.
type SearchHandler struct {
	searchService services.SearchService
	logger        *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchService services.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// RegisterRoutes registers the search handler's routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/search/datasources", h.Datasources)
	mux.HandleFunc("GET /v1/search/tables", h.Tables)
	mux.HandleFunc("GET /v1/search/columns", h.Columns)
	mux.HandleFunc("GET /v1/search/edges", h.Edges)
	mux.HandleFunc("GET /v1/search/metrics", h.Metrics)
	mux.HandleFunc("GET /v1/search/synonyms", h.Synonyms)
	mux.HandleFunc("GET /v1/search/context-rules", h.ContextRules)
	mux.HandleFunc("GET /v1/search/categorical-values", h.CategoricalValues)
	mux.HandleFunc("GET /v1/search/example-queries", h.ExampleQueries)
}

// parseSearchParams pulls the common query parameters: q, page, limit,
// min_ratio_to_best, and the scope filter slugs. Malformed numerics are a
// 400; range validation happens in the service.
func parseSearchParams(r *http.Request) (string, services.SearchFilter, models.PageRequest, error) {
	q := r.URL.Query()

	page := models.PageRequest{}
	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return "", services.SearchFilter{}, page, apperrors.ErrInvalidArgument
		}
		page.Page = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return "", services.SearchFilter{}, page, apperrors.ErrInvalidArgument
		}
		page.Limit = v
	}
	if raw := q.Get("min_ratio_to_best"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", services.SearchFilter{}, page, apperrors.ErrInvalidArgument
		}
		page.MinRatioToBest = v
	}

	filter := services.SearchFilter{
		DatasourceSlug: q.Get("datasource"),
		TableSlug:      q.Get("table"),
		ColumnSlug:     q.Get("column"),
	}
	return q.Get("q"), filter, page, nil
}

// serveSearch runs one kind's search and writes the page. The search
// closure hides the per-kind result type behind `any`.
func (h *SearchHandler) serveSearch(w http.ResponseWriter, r *http.Request, errorCode string,
	search func(query string, filter services.SearchFilter, page models.PageRequest) (any, error),
) {
	query, filter, page, err := parseSearchParams(r)
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_argument", "malformed query parameter"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	result, err := search(query, filter, page)
	if err != nil {
		h.logger.Error("Search failed",
			zap.String("path", r.URL.Path),
			zap.String("query", logging.SanitizeQuery(query)),
			zap.Error(err))
		WriteServiceError(w, h.logger, err, errorCode)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Datasources handles GET /v1/search/datasources
func (h *SearchHandler) Datasources(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_datasources_failed", func(query string, _ services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchDatasources(r.Context(), query, page)
	})
}

// Tables handles GET /v1/search/tables
func (h *SearchHandler) Tables(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_tables_failed", func(query string, filter services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchTables(r.Context(), query, filter, page)
	})
}

// Columns handles GET /v1/search/columns
func (h *SearchHandler) Columns(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_columns_failed", func(query string, filter services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchColumns(r.Context(), query, filter, page)
	})
}

// Edges handles GET /v1/search/edges
func (h *SearchHandler) Edges(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_edges_failed", func(query string, filter services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchEdges(r.Context(), query, filter, page)
	})
}

// Metrics handles GET /v1/search/metrics
func (h *SearchHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_metrics_failed", func(query string, filter services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchMetrics(r.Context(), query, filter, page)
	})
}

// Synonyms handles GET /v1/search/synonyms
func (h *SearchHandler) Synonyms(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_synonyms_failed", func(query string, _ services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchSynonyms(r.Context(), query, page)
	})
}

// ContextRules handles GET /v1/search/context-rules
func (h *SearchHandler) ContextRules(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_context_rules_failed", func(query string, filter services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchContextRules(r.Context(), query, filter, page)
	})
}

// CategoricalValues handles GET /v1/search/categorical-values
func (h *SearchHandler) CategoricalValues(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_categorical_values_failed", func(query string, filter services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchCategoricalValues(r.Context(), query, filter, page)
	})
}

// ExampleQueries handles GET /v1/search/example-queries
func (h *SearchHandler) ExampleQueries(w http.ResponseWriter, r *http.Request) {
	h.serveSearch(w, r, "search_example_queries_failed", func(query string, filter services.SearchFilter, page models.PageRequest) (any, error) {
		return h.searchService.SearchExampleQueries(r.Context(), query, filter, page)
	})
}
