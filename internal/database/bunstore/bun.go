package bunstore

import (
	"context"
	"database/sql"

	"github.com/moviesage/moviesage-api/internal/database"
	"github.com/moviesage/moviesage-api/internal/database/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// upsertBatchSize bounds the number of rows bound into a single INSERT statement.
const upsertBatchSize = 200

var (
	_ database.MovieRepository = (*BunStore)(nil)
	_ database.MovieWriter     = (*BunStore)(nil)
)

type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *sql.DB, dialect schema.Dialect) (*BunStore, error) {
	bunDB := bun.NewDB(db, dialect)

	store := &BunStore{db: bunDB}

	// Create tables if they don't exist
	ctx := context.Background()
	if _, err := bunDB.NewCreateTable().Model((*models.Movie)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to create movies table")
	}
	for _, column := range []string{"title", "year", "vote_average"} {
		if _, err := bunDB.NewCreateIndex().
			Model((*models.Movie)(nil)).
			Index("idx_movies_" + column).
			Column(column).
			IfNotExists().
			Exec(ctx); err != nil {
			return nil, errors.Wrapf(err, "failed to create index on %s", column)
		}
	}

	return store, nil
}

// Search returns movies rated at least params.MinRating, narrowed by every filter that is set.
func (s *BunStore) Search(ctx context.Context, params database.SearchParams) ([]models.Movie, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = database.DefaultLimit
	}

	movies := make([]models.Movie, 0, limit)
	q := s.db.NewSelect().Model(&movies).Where("vote_average >= ?", params.MinRating)

	if params.Title != "" {
		q = q.Where("title LIKE ?", "%"+params.Title+"%")
	}
	if params.Genre != "" {
		q = q.Where("genres LIKE ?", "%"+params.Genre+"%")
	}
	if params.Year != 0 {
		q = q.Where("year = ?", params.Year)
	}

	if err := q.OrderExpr("vote_average DESC, vote_count DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "search movies")
	}
	return movies, nil
}

func (s *BunStore) GetByID(ctx context.Context, id int64) (*models.Movie, error) {
	movie := new(models.Movie)
	if err := s.db.NewSelect().Model(movie).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get movie %d", id)
	}
	return movie, nil
}

// GetTopRated ignores every search filter and only requires minVotes votes.
func (s *BunStore) GetTopRated(ctx context.Context, limit int, minVotes int) ([]models.Movie, error) {
	if limit <= 0 {
		limit = database.DefaultLimit
	}

	movies := make([]models.Movie, 0, limit)
	if err := s.db.NewSelect().
		Model(&movies).
		Where("vote_count >= ?", minVotes).
		OrderExpr("vote_average DESC, vote_count DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, errors.Wrap(err, "get top rated movies")
	}
	return movies, nil
}

// UpsertMovies writes movies keyed by ID in one transaction, replacing existing rows.
func (s *BunStore) UpsertMovies(ctx context.Context, movies []models.Movie) error {
	if len(movies) == 0 {
		return nil
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(movies); start += upsertBatchSize {
			end := min(start+upsertBatchSize, len(movies))
			batch := movies[start:end]

			if _, err := tx.NewInsert().
				Model(&batch).
				On("CONFLICT (id) DO UPDATE").
				Set("title = EXCLUDED.title").
				Set("year = EXCLUDED.year").
				Set("genres = EXCLUDED.genres").
				Set("overview = EXCLUDED.overview").
				Set("vote_average = EXCLUDED.vote_average").
				Set("vote_count = EXCLUDED.vote_count").
				Set("movie_cast = EXCLUDED.movie_cast").
				Set("director = EXCLUDED.director").
				Exec(ctx); err != nil {
				return errors.Wrapf(err, "upsert movies %d-%d", start, end)
			}
		}
		return nil
	})
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
