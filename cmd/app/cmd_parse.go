package main

import (
	"github.com/spf13/cobra"

	"SignalBT/internal/di"
	"SignalBT/internal/domain/models"
	"SignalBT/internal/repository"
	"SignalBT/internal/usecase"
	applogger "SignalBT/pkg/logger"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Resolve raw messages into canonical signals",
	Long: `Read NDJSON records {source, message_id, timestamp, text}, resolve each one
and write the usable signals as NDJSON.

Examples:
  signalbt parse --in messages.ndjson --out signals.ndjson
  signalbt parse --in messages.ndjson --no-ai`,
	RunE: runParse,
}

var (
	parseIn      string
	parseOut     string
	parseNoAI    bool
	parseWorkers int
)

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseIn, "in", "-", "input messages (NDJSON, - for stdin)")
	parseCmd.Flags().StringVar(&parseOut, "out", "-", "output signals (NDJSON, - for stdout)")
	parseCmd.Flags().BoolVar(&parseNoAI, "no-ai", false, "rule extraction only")
	parseCmd.Flags().IntVar(&parseWorkers, "workers", 4, "concurrent resolutions")
}

func runParse(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	msgs, skipped, err := repository.ReadNDJSONFile[models.RawMessage](parseIn)
	if err != nil {
		return err
	}
	if skipped > 0 {
		log.Warn("malformed input lines skipped", applogger.Int("skipped", skipped))
	}

	res, err := di.InitializeSignalResolver(cfg, log)
	if err != nil {
		return err
	}
	if !parseNoAI && !res.AIEnabled() {
		log.Info("no completion provider configured, using rule extraction only")
	}

	out, report := usecase.NewBatchParser(res, parseWorkers, log).Parse(cmd.Context(), msgs, !parseNoAI)

	signals := make([]models.CanonicalSignal, 0, len(out))
	for _, r := range out {
		if r.Usable() {
			signals = append(signals, r.Signal)
		}
	}
	if err := repository.WriteNDJSONFile(parseOut, signals); err != nil {
		return err
	}
	printReport(cmd.ErrOrStderr(), "parse", report)
	return nil
}
