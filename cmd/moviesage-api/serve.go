package main

import (
	"github.com/moviesage/moviesage-api/internal/infrastructure/server"
	"github.com/moviesage/moviesage-api/internal/logging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.For("main")
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("Starting MovieSage API")

		return server.New(cfg).Run()
	},
}
