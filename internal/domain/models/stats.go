package models

import "time"

// Stats is the rollup of a group of backtest results. Rates are percentages.
type Stats struct {
	Total        int     `json:"total"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Open         int     `json:"open"`
	Errors       int     `json:"errors"`
	WinRate      float64 `json:"win_rate"`
	TotalPnL     float64 `json:"total_pnl"`
	AvgPnL       float64 `json:"avg_pnl"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	StdDev       float64 `json:"stddev"`
	Score        float64 `json:"score"`
	Rating       string  `json:"rating"`
}

type ChannelStats struct {
	Channel string `json:"channel"`
	Stats
}

type SymbolStats struct {
	Symbol string `json:"symbol"`
	Stats
}

const (
	RatingExcellent = "excellent"
	RatingGood      = "good"
	RatingPoor      = "poor"

	VerdictGoLive  = "go_live"
	VerdictCaution = "caution"
	VerdictAvoid   = "avoid"
)

// Summary is the batch-wide view with leaderboards.
type Summary struct {
	Overall  Stats          `json:"overall"`
	Verdict  string         `json:"verdict"`
	Channels []ChannelStats `json:"channels"`
	Symbols  []SymbolStats  `json:"symbols"`
}

// RunReport is printed/logged at the end of every batch job.
type RunReport struct {
	RunID            string                `json:"run_id"`
	StartedAt        time.Time             `json:"started_at"`
	Duration         time.Duration         `json:"duration"`
	Messages         int                   `json:"messages"`
	Signals          int                   `json:"signals"`
	Complete         int                   `json:"complete"`
	AIResolved       int                   `json:"ai_resolved"`
	ResolverFailures map[FailureReason]int `json:"resolver_failures,omitempty"`
	Outcomes         map[Outcome]int       `json:"outcomes,omitempty"`
}

// NewRunReport returns a report with initialized counters.
func NewRunReport(runID string, started time.Time) *RunReport {
	return &RunReport{
		RunID:            runID,
		StartedAt:        started,
		ResolverFailures: map[FailureReason]int{},
		Outcomes:         map[Outcome]int{},
	}
}
