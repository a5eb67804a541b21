package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/repository"
	"SignalBT/internal/services/aggregator"
	applogger "SignalBT/pkg/logger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate backtest results per channel or symbol",
	Long: `Read NDJSON backtest results and print overall statistics, the verdict
and a leaderboard.

Examples:
  signalbt stats --in results.ndjson
  signalbt stats --in results.ndjson --by symbol --top 20`,
	RunE: runStats,
}

var (
	statsIn  string
	statsBy  string
	statsTop int
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsIn, "in", "-", "input results (NDJSON, - for stdin)")
	statsCmd.Flags().StringVar(&statsBy, "by", "channel", "leaderboard key: channel or symbol")
	statsCmd.Flags().IntVar(&statsTop, "top", 10, "leaderboard size (0 for all)")
}

type statsOutput struct {
	Overall     models.Stats `json:"overall"`
	Verdict     string       `json:"verdict"`
	Leaderboard interface{}  `json:"leaderboard"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	if statsBy != "channel" && statsBy != "symbol" {
		return fmt.Errorf("--by must be 'channel' or 'symbol', got %q", statsBy)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	results, skipped, err := repository.ReadNDJSONFile[models.BacktestResult](statsIn)
	if err != nil {
		return err
	}
	if skipped > 0 {
		log.Warn("malformed input lines skipped", applogger.Int("skipped", skipped))
	}

	sum := aggregator.Summarize(results, statsTop)
	out := statsOutput{Overall: sum.Overall, Verdict: sum.Verdict, Leaderboard: sum.Channels}
	if statsBy == "symbol" {
		out.Leaderboard = sum.Symbols
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
