package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/embeddings"
	"github.com/fyrsmithlabs/tenantrag/internal/formatter"
	"github.com/fyrsmithlabs/tenantrag/internal/indexer"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/retrieval"
	"github.com/fyrsmithlabs/tenantrag/internal/services"
	"github.com/fyrsmithlabs/tenantrag/internal/tenant"
	"github.com/fyrsmithlabs/tenantrag/internal/vectorstore"
)

type fakeBackend struct {
	err       error
	result    *retrieval.Result
	tenants   map[string]*tenant.Config
	retrieved services.RetrieveRequest
	indexed   []indexer.StructuredItem
	indexCT   string
	purged    string
	deleted   [2]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{tenants: map[string]*tenant.Config{}}
}

func (f *fakeBackend) Retrieve(_ context.Context, req services.RetrieveRequest) (*retrieval.Result, error) {
	f.retrieved = req
	return f.result, f.err
}

func (f *fakeBackend) IndexChunks(_ context.Context, tenantID string, items []indexer.StructuredItem, ct string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.indexed, f.indexCT = items, ct
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = chunk.DeriveID(tenantID, it.SourceFileID, chunk.ContentType(ct), i)
	}
	return ids, nil
}

func (f *fakeBackend) RegisterTenant(_ context.Context, cfg *tenant.Config) error {
	if f.err != nil {
		return f.err
	}
	f.tenants[cfg.TenantID] = cfg
	return nil
}

func (f *fakeBackend) Tenant(_ context.Context, id string) (*tenant.Config, error) {
	cfg, ok := f.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tenant.ErrTenantNotFound, id)
	}
	return cfg, nil
}

func (f *fakeBackend) PurgeTenant(_ context.Context, id string) error {
	f.purged = id
	return f.err
}

func (f *fakeBackend) DeleteSource(_ context.Context, id, source string) error {
	f.deleted = [2]string{id, source}
	return f.err
}

func setupTestServer(t *testing.T) (*Server, *fakeBackend, *logging.TestLogger) {
	t.Helper()
	backend := newFakeBackend()
	logger := logging.NewTestLogger()
	server, err := NewServer(backend, logger.Logger, nil)
	require.NoError(t, err)
	return server, backend, logger
}

func do(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(newFakeBackend(), logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8088, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(newFakeBackend(), nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})

	t.Run("returns error when backend is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		assert.ErrorContains(t, err, "backend cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _, logger := setupTestServer(t)

	rec := do(server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	logger.AssertLogged(t, zapcore.InfoLevel, "http request")
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)
	rec := do(server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPutTenant(t *testing.T) {
	server, backend, _ := setupTestServer(t)

	rec := do(server, http.MethodPut, "/api/v1/tenants/acme", TenantRequest{
		Industry:            "retail",
		DisplayName:         "Acme",
		AllowedContentTypes: []string{"product", "faq"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, backend.tenants, "acme")
	assert.Equal(t, []chunk.ContentType{chunk.Product, chunk.FAQ}, backend.tenants["acme"].AllowedContentTypes)

	rec = do(server, http.MethodGet, "/api/v1/tenants/acme", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(server, http.MethodPut, "/api/v1/tenants/acme", TenantRequest{Industry: "retail", AllowedContentTypes: []string{"brochure"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(server, http.MethodGet, "/api/v1/tenants/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetrieve(t *testing.T) {
	server, backend, _ := setupTestServer(t)
	backend.result = &retrieval.Result{
		Chunks: []formatter.ScoredChunk{{
			ChunkID:     "c1",
			ContentType: chunk.ExtractedProduct,
			Score:       1.04,
			RawScore:    0.8,
			Provenance:  formatter.Both,
			Minimal:     &formatter.Minimal{ChunkID: "c1", Score: 1.04, RetrievalText: "red jacket", ContentType: chunk.ExtractedProduct},
		}},
		Warnings: []retrieval.Warning{retrieval.WarningScanBoundExceeded},
	}

	threshold := 0.5
	rec := do(server, http.MethodPost, "/api/v1/tenants/acme/retrieve", RetrieveRequest{
		Query:          "red jacket",
		ContentTypes:   []string{"faq"},
		ScoreThreshold: &threshold,
		Limit:          5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "acme", backend.retrieved.TenantID)
	assert.Equal(t, "red jacket", backend.retrieved.Text)
	assert.Equal(t, []string{"faq"}, backend.retrieved.ContentTypes)
	assert.Equal(t, 5, backend.retrieved.Limit)
	require.NotNil(t, backend.retrieved.ScoreThreshold)
	assert.Equal(t, 0.5, *backend.retrieved.ScoreThreshold)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	chunks := body["chunks"].([]interface{})
	require.Len(t, chunks, 1)
	first := chunks[0].(map[string]interface{})
	assert.Equal(t, "both", first["provenance"])
	assert.NotContains(t, first, "chunk")
	assert.Equal(t, []interface{}{"scan_bound_exceeded"}, body["warnings"])
}

func TestIndexChunks(t *testing.T) {
	server, backend, _ := setupTestServer(t)

	rec := do(server, http.MethodPost, "/api/v1/tenants/acme/chunks", IndexRequest{
		ContentType: "faq",
		Items: []ItemRequest{{
			SourceFileID:   "faq.md",
			RawContent:     "When are you open? 9-5",
			StructuredData: json.RawMessage(`{"question":"When are you open?","answer":"9-5"}`),
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "faq", backend.indexCT)
	require.Len(t, backend.indexed, 1)
	assert.Equal(t, chunk.FAQData{Question: "When are you open?", Answer: "9-5"}, backend.indexed[0].Data)

	var resp IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{chunk.DeriveID("acme", "faq.md", chunk.FAQ, 0)}, resp.ChunkIDs)

	rec = do(server, http.MethodPost, "/api/v1/tenants/acme/chunks", IndexRequest{
		ContentType: "faq",
		Items:       []ItemRequest{{SourceFileID: "faq.md", StructuredData: json.RawMessage(`"not an object"`)}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(server, http.MethodPost, "/api/v1/tenants/acme/chunks", IndexRequest{ContentType: "brochure"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteRoutes(t *testing.T) {
	server, backend, _ := setupTestServer(t)

	rec := do(server, http.MethodDelete, "/api/v1/tenants/acme/chunks", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "acme", backend.purged)

	rec = do(server, http.MethodDelete, "/api/v1/tenants/acme/sources/catalog.csv", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"acme", "catalog.csv"}, backend.deleted)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
		message   string
	}{
		{"tenant not found", fmt.Errorf("%w: acme", tenant.ErrTenantNotFound), http.StatusNotFound, false, ""},
		{"invalid query", fmt.Errorf("%w: text is required", retrieval.ErrInvalidQuery), http.StatusBadRequest, false, ""},
		{"content type not allowed", indexer.ErrContentTypeNotAllowed, http.StatusBadRequest, false, ""},
		{"data mismatch", chunk.ErrDataMismatch, http.StatusBadRequest, false, ""},
		{"retrieval unavailable", retrieval.ErrRetrievalUnavailable, http.StatusServiceUnavailable, true, ""},
		{"retrieval timeout", fmt.Errorf("%w: %w", retrieval.ErrRetrievalUnavailable, context.DeadlineExceeded), http.StatusServiceUnavailable, true, ""},
		{"deadline exceeded", context.DeadlineExceeded, http.StatusServiceUnavailable, true, ""},
		{"embedding unavailable", fmt.Errorf("%w: tei down", embeddings.ErrEmbeddingUnavailable), http.StatusServiceUnavailable, true, ""},
		{"index unavailable", vectorstore.ErrIndexUnavailable, http.StatusServiceUnavailable, true, ""},
		{"isolation violation", fmt.Errorf("%w: chunk c1 owned by globex", retrieval.ErrIsolationViolation), http.StatusInternalServerError, false, "internal error"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, false, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, backend, _ := setupTestServer(t)
			backend.err = tt.err

			rec := do(server, http.MethodPost, "/api/v1/tenants/acme/retrieve", RetrieveRequest{Query: "x"})
			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.retryable, resp.Retryable)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error)
			}
			assert.NotContains(t, resp.Error, "globex")
		})
	}
}

func TestErrorMapping_LogsServerErrors(t *testing.T) {
	server, backend, logger := setupTestServer(t)
	backend.err = retrieval.ErrIsolationViolation

	rec := do(server, http.MethodPost, "/api/v1/tenants/acme/retrieve", RetrieveRequest{Query: "x"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	logger.AssertLogged(t, zapcore.ErrorLevel, "request failed")
}

func TestUnknownRoute(t *testing.T) {
	server, _, _ := setupTestServer(t)
	rec := do(server, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
