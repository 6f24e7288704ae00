package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/schemalink/schemalink-engine/pkg/apperrors"
	"github.com/schemalink/schemalink-engine/pkg/logging"
	"github.com/schemalink/schemalink-engine/pkg/models"
)

func newSearchTestServer(mock *mockSearchService) *http.ServeMux {
	mux := http.NewServeMux()
	NewSearchHandler(mock, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ApiResponse {
	t.Helper()
	var resp ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSearchTablesEndpoint_Success(t *testing.T) {
	mock := &mockSearchService{
		tablePage: models.NewPage([]models.TableHit{
			{Table: models.Table{Slug: "orders"}, Score: 0.8},
		}, 1, 1, 10),
	}
	mux := newSearchTestServer(mock)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/search/tables?q=orders&page=2&limit=5&min_ratio_to_best=0.3&datasource=shop&table=orders&column=id", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Data)

	// All query parameters reach the service untouched.
	assert.Equal(t, "orders", mock.lastQuery)
	assert.Equal(t, "shop", mock.lastFilter.DatasourceSlug)
	assert.Equal(t, "orders", mock.lastFilter.TableSlug)
	assert.Equal(t, "id", mock.lastFilter.ColumnSlug)
	assert.Equal(t, 2, mock.lastPage.Page)
	assert.Equal(t, 5, mock.lastPage.Limit)
	assert.Equal(t, 0.3, mock.lastPage.MinRatioToBest)
}

func TestSearchEndpoint_LogsTruncatedQuery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	mock := &mockSearchService{err: assert.AnError}

	mux := http.NewServeMux()
	NewSearchHandler(mock, zap.New(core)).RegisterRoutes(mux)

	longQuery := strings.Repeat("q", logging.MaxQueryLogLength+80)
	req := httptest.NewRequest(http.MethodGet,
		"/v1/search/tables?q="+url.QueryEscape(longQuery), nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	entries := logs.FilterMessage("Search failed").All()
	require.Len(t, entries, 1)
	logged, ok := entries[0].ContextMap()["query"].(string)
	require.True(t, ok)
	assert.Len(t, logged, logging.MaxQueryLogLength+3)
	assert.True(t, strings.HasSuffix(logged, "..."))
}

func TestSearchEndpoint_MalformedParams(t *testing.T) {
	mux := newSearchTestServer(&mockSearchService{})

	for _, url := range []string{
		"/v1/search/tables?page=abc",
		"/v1/search/tables?limit=ten",
		"/v1/search/tables?min_ratio_to_best=half",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, url)
		resp := decodeEnvelope(t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, "invalid_argument", resp.Error)
	}
}

func TestSearchEndpoint_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid argument", apperrors.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
		{"upstream unavailable", apperrors.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "upstream_unavailable"},
		{"internal", assert.AnError, http.StatusInternalServerError, "search_tables_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newSearchTestServer(&mockSearchService{err: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/v1/search/tables?q=x", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeEnvelope(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error)
		})
	}
}

func TestSearchEndpoint_AllKindsRouted(t *testing.T) {
	mock := &mockSearchService{}
	mux := newSearchTestServer(mock)

	paths := []string{
		"/v1/search/datasources",
		"/v1/search/tables",
		"/v1/search/columns",
		"/v1/search/edges",
		"/v1/search/metrics",
		"/v1/search/synonyms",
		"/v1/search/context-rules",
		"/v1/search/categorical-values",
		"/v1/search/example-queries",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path+"?q=test", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestSearchEndpoint_MethodNotAllowed(t *testing.T) {
	mux := newSearchTestServer(&mockSearchService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search/tables", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
