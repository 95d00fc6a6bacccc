package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moviesage/moviesage-api/internal/database/models"
	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/moviesage/moviesage-api/internal/logging"
)

const (
	maxNarratedMovies = 5
	maxPlotChars      = 200
	maxNarratedCast   = 3

	NoResultsAnswer = "I couldn't find any movies matching your query. Try being more specific or adjusting your criteria."
)

// Narrator turns a result set into a short conversational answer.
type Narrator struct {
	router  repository.LLMRouter
	timeout time.Duration
}

// NewNarrator creates a narrator. A zero timeout leaves the bound to the client.
func NewNarrator(router repository.LLMRouter, timeout time.Duration) *Narrator {
	return &Narrator{router: router, timeout: timeout}
}

// Generate never fails: when the model call errors, it falls back to a templated sentence.
func (n *Narrator) Generate(ctx context.Context, question string, movies []models.Movie, intent Intent) string {
	if len(movies) == 0 {
		return NoResultsAnswer
	}

	logger := logging.For("narrator")

	var client repository.LLMClient
	if n != nil && n.router != nil {
		client = n.router.RouteLLMTask(repository.TaskNarration)
	}
	if client == nil {
		logger.Warn().Msg("No LLM client available, using fallback answer")
		return FallbackAnswer(movies)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	resp, err := client.Generate(ctx, BuildPrompt(question, movies, intent))
	if err != nil {
		logger.Error().Err(err).Str("client", client.Name()).Msg("Narration failed, using fallback answer")
		return FallbackAnswer(movies)
	}
	if resp = strings.TrimSpace(resp); resp == "" {
		logger.Warn().Str("client", client.Name()).Msg("Empty narration, using fallback answer")
		return FallbackAnswer(movies)
	}
	return resp
}

// BuildPrompt renders at most the first five movies with truncated plots and casts.
func BuildPrompt(question string, movies []models.Movie, intent Intent) string {
	if len(movies) > maxNarratedMovies {
		movies = movies[:maxNarratedMovies]
	}

	blocks := make([]string, 0, len(movies))
	for _, m := range movies {
		genres := "N/A"
		if len(m.Genres) > 0 {
			genres = strings.Join(m.Genres, ", ")
		}
		cast := "N/A"
		if len(m.Cast) > 0 {
			names := m.Cast
			if len(names) > maxNarratedCast {
				names = names[:maxNarratedCast]
			}
			cast = strings.Join(names, ", ")
		}
		plot := m.Overview
		if plot == "" {
			plot = "No plot available"
		}

		blocks = append(blocks, fmt.Sprintf("- %s (%s)\n  Genres: %s\n  Rating: %.1f/10\n  Plot: %s...\n  Cast: %s",
			m.Title, yearOrNA(m.Year), genres, m.VoteAverage, truncateRunes(plot, maxPlotChars), cast))
	}

	return fmt.Sprintf(`You are a helpful movie assistant. %s

Movie Data:
%s

User Question: %s

Provide a friendly, conversational response (2-3 sentences). Use only the information provided. Do not make up information.`,
		instructionFor(intent), strings.Join(blocks, "\n\n"), question)
}

// FallbackAnswer names the result count and the top-ranked movie.
func FallbackAnswer(movies []models.Movie) string {
	if len(movies) == 0 {
		return NoResultsAnswer
	}
	top := movies[0]
	return fmt.Sprintf("I found %d movie(s) matching your query. The top result is '%s' (%s) with a rating of %.1f/10.",
		len(movies), top.Title, yearOrNA(top.Year), top.VoteAverage)
}

func instructionFor(intent Intent) string {
	switch intent {
	case IntentDescribe:
		return "Provide a concise description of the movie(s), highlighting key details."
	case IntentRecommend:
		return "Recommend these movies naturally, explaining why they match the query."
	default:
		return "Answer the question conversationally using the movie data."
	}
}

func yearOrNA(year *int) string {
	if year == nil {
		return "N/A"
	}
	return fmt.Sprint(*year)
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
