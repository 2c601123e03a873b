package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/evstore/internal/pkg/jwt"
	"github.com/xxxsen/evstore/internal/quota"
	"github.com/xxxsen/evstore/internal/service"
	"github.com/xxxsen/evstore/internal/store"
)

var testSecret = []byte("test-secret")

// testEmbedder hashes text length into a 2d vector so ranking in tests is
// deterministic without a real model.
type testEmbedder struct{}

func (testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{1, float32(len(text))})
	}
	return out, nil
}

func (testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, float32(len(text))}, nil
}

func (testEmbedder) ModelName() string {
	return "test"
}

func newTestRouter(t *testing.T, quotaLimit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.New(store.Config{Dimension: 2, TTL: time.Minute, MaxChunksPerSession: 100})
	tracker := quota.NewTracker(quotaLimit, time.Minute)
	limits := service.IngestLimits{MaxBatchSize: 50, MaxTextLength: 1000}

	deps := RouterDeps{
		Ingest:    NewIngestHandler(service.NewIngestService(st, tracker, testEmbedder{}, limits)),
		Query:     NewQueryHandler(service.NewRetrievalService(st, testEmbedder{}, 10)),
		Sessions:  NewSessionHandler(service.NewSessionService(st)),
		Export:    NewExportHandler(service.NewExportService(st, nil)),
		JWTSecret: testSecret,
	}
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), deps)
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	token, err := jwt.GenerateToken("u1", testSecret, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func ingestBody(sessionID string, texts ...string) map[string]interface{} {
	chunks := make([]map[string]interface{}, 0, len(texts))
	for _, text := range texts {
		chunks = append(chunks, map[string]interface{}{
			"text":   text,
			"source": "doc.pdf",
			"kind":   "text",
		})
	}
	return map[string]interface{}{"session_id": sessionID, "chunks": chunks}
}

func sessionIDFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Data struct {
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.SessionID)
	return envelope.Data.SessionID
}

func TestIngestQueryLifecycle(t *testing.T) {
	engine := newTestRouter(t, 100)

	rec := doRequest(t, engine, http.MethodPost, "/api/v1/sessions/ingest", ingestBody("", "aa", "bbbb"))
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := sessionIDFrom(t, rec)

	// query text of length 2 matches the first chunk exactly
	rec = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/query", sessionID),
		map[string]interface{}{"query": "qq", "k": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"aa"`)

	rec = doRequest(t, engine, http.MethodGet, "/api/v1/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"chunk_count":2`)

	rec = doRequest(t, engine, http.MethodDelete, "/api/v1/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, engine, http.MethodGet, "/api/v1/sessions/"+sessionID, nil)
	require.Contains(t, rec.Body.String(), "session not found")
}

func TestIngest_MissingAuthorization(t *testing.T) {
	engine := newTestRouter(t, 100)

	data, err := json.Marshal(ingestBody("", "a"))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ingest", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), "authorization")
}

func TestIngest_QuotaRejectionReportsWindow(t *testing.T) {
	engine := newTestRouter(t, 2)

	rec := doRequest(t, engine, http.MethodPost, "/api/v1/sessions/ingest", ingestBody("", "a", "b"))
	require.Contains(t, rec.Body.String(), `"quota_remaining":0`)

	rec = doRequest(t, engine, http.MethodPost, "/api/v1/sessions/ingest", ingestBody("", "c"))
	require.Contains(t, rec.Body.String(), "quota exceeded")
}

func TestQuery_UnknownSession(t *testing.T) {
	engine := newTestRouter(t, 100)
	rec := doRequest(t, engine, http.MethodPost, "/api/v1/sessions/ghost/query",
		map[string]interface{}{"query": "q", "k": 1})
	require.Contains(t, rec.Body.String(), "session not found")
}

func TestQuery_InvalidK(t *testing.T) {
	engine := newTestRouter(t, 100)

	rec := doRequest(t, engine, http.MethodPost, "/api/v1/sessions/ingest", ingestBody("", "a"))
	sessionID := sessionIDFrom(t, rec)

	rec = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/query", sessionID),
		map[string]interface{}{"query": "q", "k": 0})
	require.Contains(t, rec.Body.String(), "k must be positive")
}

func TestExportStream_ReturnsJSONLines(t *testing.T) {
	engine := newTestRouter(t, 100)

	rec := doRequest(t, engine, http.MethodPost, "/api/v1/sessions/ingest", ingestBody("", "aa", "bb"))
	sessionID := sessionIDFrom(t, rec)

	rec = doRequest(t, engine, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/export?vectors=true", sessionID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	lines := 0
	for scanner.Scan() {
		lines++
		require.Contains(t, scanner.Text(), `"vector"`)
	}
	require.Equal(t, 2, lines)
}

func TestExportPush_NoSinkConfigured(t *testing.T) {
	engine := newTestRouter(t, 100)

	rec := doRequest(t, engine, http.MethodPost, "/api/v1/sessions/ingest", ingestBody("", "a"))
	sessionID := sessionIDFrom(t, rec)

	rec = doRequest(t, engine, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/export", sessionID), nil)
	require.Contains(t, rec.Body.String(), "no export sink configured")
}
