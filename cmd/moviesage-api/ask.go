package main

import (
	"encoding/json"
	"strings"

	"github.com/moviesage/moviesage-api/internal/infrastructure/server"
	"github.com/moviesage/moviesage-api/internal/logging"
	"github.com/spf13/cobra"
)

var useAgent bool

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Answer one question and print the JSON result",
	Long: `Run a single question through the deterministic pipeline, or through the
autonomous SQL agent with --agent.
Example: moviesage ask "Recommend action movies from 2015"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.Join(args, " ")

		app, err := server.NewApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := app.Close(); closeErr != nil {
				logger := logging.For("main")
				logger.Warn().Err(closeErr).Msg("Failed to release resources")
			}
		}()

		var result any
		if useAgent {
			result, err = app.Service.AskAgent(ctx, question)
		} else {
			result, err = app.Service.Query(ctx, question)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	askCmd.Flags().BoolVar(&useAgent, "agent", false, "use the autonomous SQL agent")
}
