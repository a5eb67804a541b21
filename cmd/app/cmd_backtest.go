package main

import (
	"github.com/spf13/cobra"

	"SignalBT/internal/di"
	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	"SignalBT/internal/repository"
	applogger "SignalBT/pkg/logger"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate signals against historical prices",
	Long: `Read NDJSON signals and replay each one against price bars from a file
or, when --prices is omitted, from ClickHouse.

Examples:
  signalbt backtest --in signals.ndjson --prices bars.ndjson --out results.ndjson
  signalbt backtest --in signals.ndjson --tie-break target_first --horizon 72h`,
	RunE: runBacktest,
}

var (
	btIn       string
	btPrices   string
	btOut      string
	btTieBreak string
	btHorizon  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVar(&btIn, "in", "-", "input signals (NDJSON, - for stdin)")
	backtestCmd.Flags().StringVar(&btPrices, "prices", "", "price bars (NDJSON {symbol, timestamp, high, low}); ClickHouse when empty")
	backtestCmd.Flags().StringVar(&btOut, "out", "-", "output results (NDJSON, - for stdout)")
	backtestCmd.Flags().StringVar(&btTieBreak, "tie-break", "", "stop_first or target_first (overrides backtest.tie_break)")
	backtestCmd.Flags().StringVar(&btHorizon, "horizon", "", "window after each signal, e.g. 168h (overrides backtest.horizon)")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if btTieBreak != "" {
		cfg.Backtest.TieBreak = btTieBreak
	}
	if btHorizon != "" {
		if cfg.Backtest.Horizon, err = parseDuration(btHorizon); err != nil {
			return err
		}
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	signals, skipped, err := repository.ReadNDJSONFile[models.CanonicalSignal](btIn)
	if err != nil {
		return err
	}
	if skipped > 0 {
		log.Warn("malformed input lines skipped", applogger.Int("skipped", skipped))
	}

	var prices domrepo.PriceSource
	if btPrices != "" {
		bars, skipped, err := repository.ReadNDJSONFile[repository.BarRecord](btPrices)
		if err != nil {
			return err
		}
		if skipped > 0 {
			log.Warn("malformed price lines skipped", applogger.Int("skipped", skipped))
		}
		prices = repository.NewMemoryPriceSourceFromRecords(bars)
	} else {
		client, err := di.ProvideClickHouseClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		prices = di.ProvidePriceSource(client, cfg, log)
	}

	bt, err := di.InitializeBacktester(cfg, log, prices)
	if err != nil {
		return err
	}
	results, report := bt.Run(cmd.Context(), signals)
	if err := repository.WriteNDJSONFile(btOut, results); err != nil {
		return err
	}
	printReport(cmd.ErrOrStderr(), "backtest", report)
	return nil
}
