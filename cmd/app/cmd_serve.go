package main

import (
	"context"

	"github.com/spf13/cobra"

	"SignalBT/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion consumer, relay stream and HTTP API",
	Long: `Run the long-lived service until SIGINT or SIGTERM.

Examples:
  signalbt serve --config config/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}
	return app.Run(context.Background())
}
