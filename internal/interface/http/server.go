// Package http exposes the movie question service as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/moviesage/moviesage-api/internal/database"
	"github.com/moviesage/moviesage-api/internal/database/models"
	"github.com/moviesage/moviesage-api/internal/logging"
	"github.com/moviesage/moviesage-api/internal/usecase/query"
)

// MovieService is the application surface the handlers call.
type MovieService interface {
	Query(ctx context.Context, question string) (*query.QueryResult, error)
	GetMovie(ctx context.Context, id int64) (*models.Movie, error)
	AskAgent(ctx context.Context, question string) (*query.AgentResponse, error)
	AgentInfo(ctx context.Context) query.SchemaInfo
	Health(ctx context.Context) query.HealthStatus
}

var _ MovieService = (*query.Service)(nil)

// Server holds the dependencies for the HTTP API server
type Server struct {
	svc MovieService
}

// NewServer initializes a new API server with the required dependencies
func NewServer(svc MovieService) *Server {
	return &Server{svc: svc}
}

// RegisterRoutes builds the router with all API endpoints.
func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/query", s.handleQuery)
	r.Get("/movies/{id}", s.handleGetMovie)
	r.Post("/query/agent", s.handleAgentQuery)
	r.Get("/agent/info", s.handleAgentInfo)

	return r
}

type QueryRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Movie RAG API",
		"endpoints": map[string]string{
			"query":       "POST /query",
			"agent_query": "POST /query/agent",
			"agent_info":  "GET /agent/info",
			"movie":       "GET /movies/{id}",
			"health":      "GET /health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.svc.Health(r.Context())
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	res, err := s.svc.Query(r.Context(), req.Question)
	if err != nil {
		s.fail(w, r, err, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Movie id must be an integer")
		return
	}

	movie, err := s.svc.GetMovie(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	res, err := s.svc.AskAgent(r.Context(), req.Question)
	if err != nil {
		s.fail(w, r, err, "Agent processing failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.AgentInfo(r.Context()))
}

// fail maps service errors to status codes; unexpected errors are logged and hidden behind msg.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, query.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "Question cannot be empty")
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "Movie not found")
	case errors.Is(err, query.ErrAgentUnavailable):
		writeError(w, http.StatusNotImplemented, "Agent service not available")
	default:
		logger := logging.For("server")
		logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.For("server")
		logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logger := logging.For("server")
		logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request")
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger := logging.For("server")
				logger.Error().
					Interface("panic", rec).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Recovered from panic")
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
