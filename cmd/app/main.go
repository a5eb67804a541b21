package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"SignalBT/pkg/config"
	applogger "SignalBT/pkg/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "signalbt",
	Short: "Trading signal extraction and backtesting",
	Long: `signalbt turns free-form channel messages into canonical trading signals
and replays them against historical prices.

Available commands:
  serve     - run the Kafka consumer, relay stream and HTTP API
  parse     - resolve an NDJSON file of messages into signals
  backtest  - simulate an NDJSON file of signals
  stats     - aggregate an NDJSON file of backtest results`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (defaults plus environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.LoadDefaultWithEnv()
	} else {
		cfg, err = config.LoadWithEnv(configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
}
