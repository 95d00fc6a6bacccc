// Package query answers movie questions, either by interpreting them into repository filters
// and narrating the results, or by handing them to an autonomous SQL agent.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/moviesage/moviesage-api/internal/database"
	"github.com/moviesage/moviesage-api/internal/database/models"
	"github.com/moviesage/moviesage-api/internal/logging"
)

const (
	ApproachAutonomousSQLAgent = "autonomous_sql_agent"

	DefaultTopRatedMinVotes = 100
)

var (
	ErrEmptyQuestion    = errors.New("question cannot be empty")
	ErrAgentUnavailable = errors.New("agent service not available")
)

// QueryResult is the response of the deterministic path.
type QueryResult struct {
	Answer    string         `json:"answer"`
	Movies    []models.Movie `json:"movies"`
	QueryInfo ParsedQuery    `json:"query_info"`
}

// AgentResponse is the response of the autonomous path.
type AgentResponse struct {
	Answer   string `json:"answer"`
	Method   string `json:"method"`
	Note     string `json:"note"`
	Approach string `json:"approach"`
}

// HealthStatus reports store connectivity.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h HealthStatus) Healthy() bool { return h.Status == "healthy" }

// Service wires the interpreter, repository, narrator and agent together.
// agent may be nil when the agent backend could not be initialised.
type Service struct {
	repo             database.MovieRepository
	narrator         *Narrator
	agent            *AgentAdapter
	topRatedMinVotes int
}

func NewService(repo database.MovieRepository, narrator *Narrator, agent *AgentAdapter, topRatedMinVotes int) *Service {
	if topRatedMinVotes <= 0 {
		topRatedMinVotes = DefaultTopRatedMinVotes
	}
	return &Service{
		repo:             repo,
		narrator:         narrator,
		agent:            agent,
		topRatedMinVotes: topRatedMinVotes,
	}
}

// Query runs the deterministic path: interpret, fetch, narrate.
func (s *Service) Query(ctx context.Context, question string) (*QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	logger := logging.For("query")
	logger.Info().Str("question", question).Msg("Query")

	parsed := Parse(question)
	logger.Debug().
		Str("intent", string(parsed.Intent)).
		Interface("genre", parsed.Genre).
		Interface("year", parsed.Year).
		Interface("keywords", parsed.Keywords).
		Msg("Parsed query")

	movies, err := s.fetch(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if movies == nil {
		movies = []models.Movie{}
	}
	logger.Info().Int("count", len(movies)).Msg("Found movies")

	return &QueryResult{
		Answer:    s.narrator.Generate(ctx, question, movies, parsed.Intent),
		Movies:    movies,
		QueryInfo: parsed,
	}, nil
}

func (s *Service) fetch(ctx context.Context, parsed ParsedQuery) ([]models.Movie, error) {
	if parsed.Intent == IntentTopRated {
		movies, err := s.repo.GetTopRated(ctx, database.DefaultLimit, s.topRatedMinVotes)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch top rated movies: %w", err)
		}
		return movies, nil
	}

	params := database.SearchParams{Limit: database.DefaultLimit}
	if parsed.Keywords != nil {
		params.Title = *parsed.Keywords
	}
	if parsed.Genre != nil {
		params.Genre = *parsed.Genre
	}
	if parsed.Year != nil {
		params.Year = *parsed.Year
	}
	movies, err := s.repo.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search movies: %w", err)
	}
	return movies, nil
}

// GetMovie returns database.ErrNotFound for an unknown id.
func (s *Service) GetMovie(ctx context.Context, id int64) (*models.Movie, error) {
	return s.repo.GetByID(ctx, id)
}

// AskAgent runs the autonomous path. Agent failures are part of the response, not errors.
func (s *Service) AskAgent(ctx context.Context, question string) (*AgentResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if s.agent == nil {
		return nil, ErrAgentUnavailable
	}

	res := s.agent.Run(ctx, question)
	return &AgentResponse{
		Answer:   res.Answer,
		Method:   res.Method,
		Note:     res.Note,
		Approach: ApproachAutonomousSQLAgent,
	}, nil
}

// AgentInfo describes the agent's tables, or why it cannot.
func (s *Service) AgentInfo(ctx context.Context) SchemaInfo {
	if s.agent == nil {
		return SchemaInfo{Error: "Agent service not available"}
	}
	return s.agent.DescribeSchema(ctx)
}

// Health checks the store with a one-row search.
func (s *Service) Health(ctx context.Context) HealthStatus {
	if _, err := s.repo.Search(ctx, database.SearchParams{Limit: 1}); err != nil {
		return HealthStatus{Status: "unhealthy", Error: err.Error()}
	}
	return HealthStatus{Status: "healthy", Database: "connected"}
}
