package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviesage/moviesage-api/internal/database"
	"github.com/moviesage/moviesage-api/internal/database/models"
)

type mockRepo struct {
	movies    []models.Movie
	err       error
	searches  []database.SearchParams
	topRated  [][2]int
	byID      map[int64]models.Movie
	callCount int
}

func (m *mockRepo) Search(ctx context.Context, params database.SearchParams) ([]models.Movie, error) {
	m.callCount++
	m.searches = append(m.searches, params)
	return m.movies, m.err
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*models.Movie, error) {
	m.callCount++
	if movie, ok := m.byID[id]; ok {
		return &movie, nil
	}
	return nil, database.ErrNotFound
}

func (m *mockRepo) GetTopRated(ctx context.Context, limit int, minVotes int) ([]models.Movie, error) {
	m.callCount++
	m.topRated = append(m.topRated, [2]int{limit, minVotes})
	return m.movies, m.err
}

func newTestService(repo *mockRepo, client *mockLLMClient, agent *mockSQLAgent) *Service {
	var adapter *AgentAdapter
	if agent != nil {
		adapter = NewAgentAdapter(agent)
	}
	return NewService(repo, NewNarrator(&mockTaskRouter{client: client}, 0), adapter, 0)
}

func TestService_QuerySearchPath(t *testing.T) {
	repo := &mockRepo{movies: sampleMovies(2)}
	client := &mockLLMClient{resp: "Try Movie 1."}
	svc := newTestService(repo, client, nil)

	res, err := svc.Query(context.Background(), "  Recommend action movies from 2015 ")
	require.NoError(t, err)

	assert.Equal(t, []database.SearchParams{{Genre: "action", Year: 2015, Limit: 5}}, repo.searches)
	assert.Empty(t, repo.topRated, "top rated should not be queried for a recommend intent")
	assert.Equal(t, "Try Movie 1.", res.Answer)
	assert.Len(t, res.Movies, 2)
	assert.Equal(t, IntentRecommend, res.QueryInfo.Intent)
	assert.Equal(t, 1, client.calls())
}

func TestService_QueryTopRatedPath(t *testing.T) {
	repo := &mockRepo{movies: sampleMovies(5)}
	svc := NewService(repo, NewNarrator(&mockTaskRouter{client: &mockLLMClient{resp: "ok"}}, 0), nil, 250)

	res, err := svc.Query(context.Background(), "What are the best comedy movies?")
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{5, 250}}, repo.topRated)
	assert.Empty(t, repo.searches, "search should not run for top_rated intent")
	assert.Equal(t, IntentTopRated, res.QueryInfo.Intent)
}

func TestService_QueryEmptyQuestion(t *testing.T) {
	repo := &mockRepo{}
	client := &mockLLMClient{}
	svc := newTestService(repo, client, &mockSQLAgent{})

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := svc.Query(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuestion, "Query(%q)", q)
		_, err = svc.AskAgent(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuestion, "AskAgent(%q)", q)
	}
	assert.Zero(t, repo.callCount)
	assert.Zero(t, client.calls())
}

func TestService_QueryNoResults(t *testing.T) {
	client := &mockLLMClient{resp: "unused"}
	svc := newTestService(&mockRepo{}, client, nil)

	res, err := svc.Query(context.Background(), "Tell me about Zzyzx Road")
	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, res.Answer)
	require.NotNil(t, res.Movies, "movies should be an empty, non-nil slice")
	assert.Empty(t, res.Movies)
	assert.Zero(t, client.calls(), "narration model should not be called without results")
}

func TestService_QueryRepositoryError(t *testing.T) {
	svc := newTestService(&mockRepo{err: errors.New("disk I/O error")}, &mockLLMClient{}, nil)

	_, err := svc.Query(context.Background(), "horror films")
	assert.Error(t, err)
}

func TestService_GetMovie(t *testing.T) {
	repo := &mockRepo{byID: map[int64]models.Movie{27205: {ID: 27205, Title: "Inception"}}}
	svc := newTestService(repo, &mockLLMClient{}, nil)

	movie, err := svc.GetMovie(context.Background(), 27205)
	require.NoError(t, err)
	assert.Equal(t, "Inception", movie.Title)

	_, err = svc.GetMovie(context.Background(), 999999)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestService_AskAgent(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockLLMClient{}, &mockSQLAgent{answer: "7.2"})

	res, err := svc.AskAgent(context.Background(), "Average rating of action movies?")
	require.NoError(t, err)
	assert.Equal(t, "7.2", res.Answer)
	assert.Equal(t, MethodSQLAgent, res.Method)
	assert.Equal(t, ApproachAutonomousSQLAgent, res.Approach)

	svc = newTestService(&mockRepo{}, &mockLLMClient{}, &mockSQLAgent{err: errors.New("boom")})
	res, err = svc.AskAgent(context.Background(), "q")
	require.NoError(t, err, "agent failures must not propagate")
	assert.Equal(t, MethodAgentError, res.Method)
	assert.Empty(t, res.Note)
}

func TestService_AgentUnavailable(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockLLMClient{}, nil)

	_, err := svc.AskAgent(context.Background(), "q")
	assert.ErrorIs(t, err, ErrAgentUnavailable)
	assert.NotEmpty(t, svc.AgentInfo(context.Background()).Error)
}

func TestService_Health(t *testing.T) {
	repo := &mockRepo{}
	h := newTestService(repo, &mockLLMClient{}, nil).Health(context.Background())
	assert.True(t, h.Healthy())
	assert.Equal(t, "connected", h.Database)
	require.Len(t, repo.searches, 1)
	assert.Equal(t, 1, repo.searches[0].Limit)

	h = newTestService(&mockRepo{err: errors.New("no such table: movies")}, &mockLLMClient{}, nil).Health(context.Background())
	assert.False(t, h.Healthy())
	assert.Equal(t, "no such table: movies", h.Error)
}
