package main

import (
	"os"

	"github.com/moviesage/moviesage-api/internal/config"
	"github.com/moviesage/moviesage-api/internal/logging"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "moviesage",
	Short: "Answer natural-language movie questions over the TMDB catalogue",
	Long: `MovieSage answers movie questions two ways: a deterministic path that
interprets the question into filters and narrates the matching movies, and an
autonomous path where a language model writes and runs its own SQL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := logging.For("main")
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
