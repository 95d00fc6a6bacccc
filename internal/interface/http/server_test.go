package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moviesage/moviesage-api/internal/database"
	"github.com/moviesage/moviesage-api/internal/database/models"
	"github.com/moviesage/moviesage-api/internal/usecase/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	queryRes  *query.QueryResult
	queryErr  error
	movie     *models.Movie
	movieErr  error
	agentRes  *query.AgentResponse
	agentErr  error
	info      query.SchemaInfo
	health    query.HealthStatus
	questions []string
	panicOn   string
}

func (m *mockService) Query(ctx context.Context, question string) (*query.QueryResult, error) {
	if m.panicOn == "query" {
		panic("boom")
	}
	m.questions = append(m.questions, question)
	return m.queryRes, m.queryErr
}

func (m *mockService) GetMovie(ctx context.Context, id int64) (*models.Movie, error) {
	return m.movie, m.movieErr
}

func (m *mockService) AskAgent(ctx context.Context, question string) (*query.AgentResponse, error) {
	m.questions = append(m.questions, question)
	return m.agentRes, m.agentErr
}

func (m *mockService) AgentInfo(ctx context.Context) query.SchemaInfo { return m.info }

func (m *mockService) Health(ctx context.Context) query.HealthStatus { return m.health }

func do(t *testing.T, svc MovieService, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	NewServer(svc).RegisterRoutes().ServeHTTP(w, req)

	var payload map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	}
	return w, payload
}

func TestRoot(t *testing.T) {
	w, payload := do(t, &mockService{}, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, payload, "endpoints")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestHealth(t *testing.T) {
	w, payload := do(t, &mockService{health: query.HealthStatus{Status: "healthy", Database: "connected"}}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "connected", payload["database"])

	w, payload = do(t, &mockService{health: query.HealthStatus{Status: "unhealthy", Error: "no such table"}}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no such table", payload["error"])
}

func TestHandleQuery(t *testing.T) {
	genre := "action"
	svc := &mockService{queryRes: &query.QueryResult{
		Answer:    "Watch this.",
		Movies:    []models.Movie{{ID: 1, Title: "Mad Max: Fury Road"}},
		QueryInfo: query.ParsedQuery{Intent: query.IntentRecommend, Genre: &genre},
	}}

	w, payload := do(t, svc, http.MethodPost, "/query", `{"question":"Recommend action movies"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Watch this.", payload["answer"])
	assert.Len(t, payload["movies"], 1)

	info := payload["query_info"].(map[string]any)
	assert.Equal(t, "recommend", info["intent"])
	assert.Equal(t, "action", info["genre"])
	assert.Nil(t, info["year"])
	assert.Equal(t, []string{"Recommend action movies"}, svc.questions)
}

func TestHandleQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		detail string
	}{
		{name: "invalid json", body: "{invalid", status: http.StatusBadRequest, detail: "Invalid request payload"},
		{name: "empty question", body: `{"question":"  "}`, err: query.ErrEmptyQuestion, status: http.StatusBadRequest, detail: "Question cannot be empty"},
		{name: "internal", body: `{"question":"x"}`, err: errors.New("disk I/O error"), status: http.StatusInternalServerError, detail: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, payload := do(t, &mockService{queryErr: tt.err}, http.MethodPost, "/query", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.detail, payload["detail"])
		})
	}
}

func TestHandleGetMovie(t *testing.T) {
	year := 2010
	w, payload := do(t, &mockService{movie: &models.Movie{ID: 27205, Title: "Inception", Year: &year}}, http.MethodGet, "/movies/27205", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Inception", payload["title"])
	assert.EqualValues(t, 2010, payload["year"])

	w, payload = do(t, &mockService{movieErr: database.ErrNotFound}, http.MethodGet, "/movies/999999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Movie not found", payload["detail"])

	w, _ = do(t, &mockService{}, http.MethodGet, "/movies/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAgentQuery(t *testing.T) {
	svc := &mockService{agentRes: &query.AgentResponse{
		Answer:   "42",
		Method:   query.MethodSQLAgent,
		Note:     "Autonomous SQL agent response",
		Approach: query.ApproachAutonomousSQLAgent,
	}}
	w, payload := do(t, svc, http.MethodPost, "/query/agent", `{"question":"How many movies?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sql_agent", payload["method"])
	assert.Equal(t, "autonomous_sql_agent", payload["approach"])

	w, _ = do(t, &mockService{agentErr: query.ErrAgentUnavailable}, http.MethodPost, "/query/agent", `{"question":"q"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w, _ = do(t, &mockService{agentErr: query.ErrEmptyQuestion}, http.MethodPost, "/query/agent", `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, payload = do(t, &mockService{agentErr: errors.New("boom")}, http.MethodPost, "/query/agent", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Agent processing failed", payload["detail"])
}

func TestHandleAgentInfo(t *testing.T) {
	w, payload := do(t, &mockService{info: query.SchemaInfo{Tables: []string{"movies"}, Schema: "CREATE TABLE movies"}}, http.MethodGet, "/agent/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"movies"}, payload["tables"])

	_, payload = do(t, &mockService{info: query.SchemaInfo{Error: "Agent service not available"}}, http.MethodGet, "/agent/info", "")
	assert.Equal(t, "Agent service not available", payload["error"])
}

func TestRecoverer(t *testing.T) {
	w, payload := do(t, &mockService{panicOn: "query"}, http.MethodPost, "/query", `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", payload["detail"])
}
