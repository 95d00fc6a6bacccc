// Package ingest loads the TMDB 5000 dataset into the movie store.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/moviesage/moviesage-api/internal/database"
	"github.com/moviesage/moviesage-api/internal/database/models"
	"github.com/moviesage/moviesage-api/internal/logging"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	// maxListNames caps genres and cast per movie.
	maxListNames = 5
	// minVoteCount drops thinly rated entries.
	minVoteCount = 10
)

var (
	movieColumns  = []string{"id", "title", "release_date", "genres", "overview", "vote_average", "vote_count"}
	creditColumns = []string{"movie_id", "cast", "crew"}
)

// Stats summarises one load.
type Stats struct {
	Read    int
	Skipped int
	Loaded  int
}

type credit struct {
	cast     models.StringList
	director *string
}

// Loader merges the movies and credits files and upserts the result.
type Loader struct {
	writer database.MovieWriter
}

func NewLoader(writer database.MovieWriter) *Loader {
	return &Loader{writer: writer}
}

// Load reads both files concurrently and writes every usable row. creditsPath may be empty.
func (l *Loader) Load(ctx context.Context, moviesPath, creditsPath string) (Stats, error) {
	logger := logging.For("ingest")

	var (
		rows    []map[string]string
		credits map[int64]credit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = readCSV(gctx, moviesPath, movieColumns)
		return err
	})
	if creditsPath != "" {
		g.Go(func() error {
			creditRows, err := readCSV(gctx, creditsPath, creditColumns)
			if err != nil {
				return err
			}
			credits = indexCredits(creditRows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	logger.Info().Int("movies", len(rows)).Int("credits", len(credits)).Msg("Read dataset")

	stats := Stats{Read: len(rows)}
	movies := make([]models.Movie, 0, len(rows))
	for _, row := range rows {
		movie, ok := buildMovie(row, credits)
		if !ok {
			stats.Skipped++
			continue
		}
		movies = append(movies, movie)
	}

	if err := l.writer.UpsertMovies(ctx, movies); err != nil {
		return stats, fmt.Errorf("failed to store movies: %w", err)
	}
	stats.Loaded = len(movies)

	logger.Info().Int("loaded", stats.Loaded).Int("skipped", stats.Skipped).Msg("Ingest complete")
	return stats, nil
}

func buildMovie(row map[string]string, credits map[int64]credit) (models.Movie, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(row["id"]), 10, 64)
	if err != nil {
		return models.Movie{}, false
	}
	title := strings.TrimSpace(row["title"])
	overview := strings.TrimSpace(row["overview"])
	if title == "" || overview == "" {
		return models.Movie{}, false
	}
	voteCount, err := strconv.ParseFloat(strings.TrimSpace(row["vote_count"]), 64)
	if err != nil || voteCount <= minVoteCount {
		return models.Movie{}, false
	}
	voteAverage, _ := strconv.ParseFloat(strings.TrimSpace(row["vote_average"]), 64)

	movie := models.Movie{
		ID:          id,
		Title:       title,
		Year:        ParseYear(row["release_date"]),
		Genres:      ExtractNames(row["genres"], maxListNames),
		Overview:    overview,
		VoteAverage: voteAverage,
		VoteCount:   int64(voteCount),
	}
	if c, ok := credits[id]; ok {
		movie.Cast = c.cast
		movie.Director = c.director
	}
	return movie, true
}

func indexCredits(rows []map[string]string) map[int64]credit {
	credits := make(map[int64]credit, len(rows))
	for _, row := range rows {
		id, err := strconv.ParseInt(strings.TrimSpace(row["movie_id"]), 10, 64)
		if err != nil {
			continue
		}
		credits[id] = credit{
			cast:     ExtractNames(row["cast"], maxListNames),
			director: ExtractDirector(row["crew"]),
		}
	}
	return credits
}

// ExtractNames returns the first limit "name" fields of an embedded JSON array.
// Malformed or empty input yields nil.
func ExtractNames(raw string, limit int) models.StringList {
	if !gjson.Valid(raw) {
		return nil
	}
	items := gjson.Parse(raw)
	if !items.IsArray() {
		return nil
	}

	var names models.StringList
	for _, item := range items.Array() {
		if len(names) == limit {
			break
		}
		names = append(names, item.Get("name").String())
	}
	return names
}

// ExtractDirector returns the first crew member whose job is Director.
func ExtractDirector(raw string) *string {
	if !gjson.Valid(raw) {
		return nil
	}
	director := gjson.Parse(raw).Get(`#(job=="Director").name`)
	if !director.Exists() {
		return nil
	}
	name := director.String()
	return &name
}

// ParseYear reads the year of a YYYY-MM-DD date; anything else yields nil.
func ParseYear(date string) *int {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(date))
	if err != nil {
		return nil
	}
	year := t.Year()
	return &year
}

func readCSV(ctx context.Context, path string, required []string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, col)
		}
	}

	var rows []map[string]string
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		row := make(map[string]string, len(required))
		for _, col := range required {
			if i := index[col]; i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
