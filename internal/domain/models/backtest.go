package models

import (
	"encoding/json"
	"time"
)

type Outcome string

const (
	OutcomeWin   Outcome = "WIN"
	OutcomeLoss  Outcome = "LOSS"
	OutcomeOpen  Outcome = "OPEN"
	OutcomeError Outcome = "ERROR"
)

// Outcomes lists every outcome kind in report order.
var Outcomes = []Outcome{OutcomeWin, OutcomeLoss, OutcomeOpen, OutcomeError}

// Bar is one price bar. Only High and Low take part in touch detection.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
}

// PriceSeries holds bars for one symbol in ascending time order.
// A nil *PriceSeries means no data was available at all.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// BacktestResult is the outcome of replaying one signal.
type BacktestResult struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	EntryMin  float64   `json:"entry_min"`
	TP        float64   `json:"tp"`
	SL        float64   `json:"sl"`
	Leverage  float64   `json:"leverage"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	PnL           float64    `json:"pnl"`
	TPIndex       int        `json:"tp_index,omitempty"`
	ExitPrice     float64    `json:"exit_price,omitempty"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
	BarsEvaluated int        `json:"bars_evaluated"`
	ChannelTitle  string     `json:"channel_title,omitempty"`
	MessageID     int64      `json:"message_id,omitempty"`
}

// MarshalJSON always writes the error key, null when the replay produced an outcome.
func (r BacktestResult) MarshalJSON() ([]byte, error) {
	type plain BacktestResult
	var reason *string
	if r.Error != "" {
		reason = &r.Error
	}
	return json.Marshal(struct {
		plain
		Error *string `json:"error"`
	}{plain(r), reason})
}
