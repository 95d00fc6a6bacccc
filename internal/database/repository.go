package database

import (
	"context"
	"errors"

	"github.com/moviesage/moviesage-api/internal/database/models"
)

var (
	ErrNotFound = errors.New("record not found")
)

// DefaultLimit caps a result set when the caller does not ask for a size.
const DefaultLimit = 5

// SearchParams holds the optional filters of a movie search. Zero values mean "no filter".
type SearchParams struct {
	Title     string
	Genre     string
	Year      int
	MinRating float64
	Limit     int
}

// MovieRepository handles read access to the movie catalogue.
// Result sets are ordered by rating, then vote count, both descending.
type MovieRepository interface {
	Search(ctx context.Context, params SearchParams) ([]models.Movie, error)
	GetByID(ctx context.Context, id int64) (*models.Movie, error)
	GetTopRated(ctx context.Context, limit int, minVotes int) ([]models.Movie, error)
}

// MovieWriter persists ingested movies.
type MovieWriter interface {
	UpsertMovies(ctx context.Context, movies []models.Movie) error
}
