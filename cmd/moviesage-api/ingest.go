package main

import (
	"fmt"

	"github.com/moviesage/moviesage-api/internal/infrastructure/server"
	"github.com/moviesage/moviesage-api/internal/usecase/ingest"
	"github.com/spf13/cobra"
)

var (
	moviesCSV  string
	creditsCSV string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the TMDB 5000 CSV files into the movie database",
	Long: `Merge tmdb_5000_movies.csv and tmdb_5000_credits.csv on the movie id and
upsert the result into the SQLite database at MOVIE_DATABASE_PATH.
Example: moviesage ingest --movies data/raw/tmdb_5000_movies.csv --credits data/raw/tmdb_5000_credits.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := server.OpenStore(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stats, err := ingest.NewLoader(store).Load(cmd.Context(), moviesCSV, creditsCSV)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d movies into %s (%d skipped)\n", stats.Loaded, cfg.DatabasePath, stats.Skipped)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&moviesCSV, "movies", "data/raw/tmdb_5000_movies.csv", "path to tmdb_5000_movies.csv")
	ingestCmd.Flags().StringVar(&creditsCSV, "credits", "data/raw/tmdb_5000_credits.csv", "path to tmdb_5000_credits.csv (empty to skip)")
}
