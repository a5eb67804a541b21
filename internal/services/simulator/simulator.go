package simulator

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"SignalBT/internal/domain/models"
)

// TieBreak decides the outcome of a bar whose range covers both a target and the stop.
type TieBreak string

const (
	// StopFirst assumes the stop was hit before any target inside the bar.
	StopFirst TieBreak = "stop_first"
	// TargetFirst assumes a target was reached first.
	TargetFirst TieBreak = "target_first"
)

// ParseTieBreak maps a config value to a TieBreak. Empty means StopFirst.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case "", StopFirst:
		return StopFirst, nil
	case TargetFirst:
		return TargetFirst, nil
	}
	return "", fmt.Errorf("unknown tie break %q", s)
}

const defaultLeverage = 15

type touch int

const (
	touchNone touch = iota
	touchTarget
	touchStop
)

// Simulator replays complete signals against price bars.
// It holds no mutable state and is safe for concurrent use.
type Simulator struct {
	tieBreak        TieBreak
	defaultLeverage float64
}

type Option func(*Simulator)

func WithTieBreak(tb TieBreak) Option {
	return func(s *Simulator) {
		if tb != "" {
			s.tieBreak = tb
		}
	}
}

// WithDefaultLeverage sets the leverage used when a signal carries none.
func WithDefaultLeverage(v float64) Option {
	return func(s *Simulator) {
		if v > 0 {
			s.defaultLeverage = v
		}
	}
}

func New(opts ...Option) *Simulator {
	s := &Simulator{tieBreak: StopFirst, defaultLeverage: defaultLeverage}
	for _, o := range opts {
		o(s)
	}
	return s
}

// With returns a copy of s with opts applied on top of its settings.
func (s *Simulator) With(opts ...Option) *Simulator {
	c := *s
	for _, o := range opts {
		o(&c)
	}
	return &c
}

func (s *Simulator) TieBreak() TieBreak { return s.tieBreak }

// Simulate scans bars in time order; the first bar touching a target or the stop
// decides the outcome. Bars stamped before the signal are ignored.
func (s *Simulator) Simulate(sig models.CanonicalSignal, series *models.PriceSeries) models.BacktestResult {
	res := models.BacktestResult{
		Symbol:       sig.Symbol,
		Side:         sig.Side,
		EntryMin:     sig.EntryMin,
		Leverage:     sig.Leverage,
		Source:       sig.Source,
		ChannelTitle: sig.ChannelTitle,
		MessageID:    sig.MessageID,
		Timestamp:    sig.Timestamp,
		Outcome:      models.OutcomeOpen,
	}
	if res.Leverage <= 0 {
		res.Leverage = s.defaultLeverage
	}
	if len(sig.TakeProfits) > 0 {
		res.TP = sig.TakeProfits[0]
	}
	if sig.StopLoss != nil {
		res.SL = *sig.StopLoss
	}

	if !sig.IsComplete || !sig.Side.Valid() || sig.EntryMin <= 0 {
		return errorResult(res, models.ReasonIncompleteSignal)
	}
	if series == nil || len(series.Bars) == 0 {
		return errorResult(res, models.ReasonNoPriceData)
	}

	for _, bar := range series.Bars {
		if !sig.Timestamp.IsZero() && bar.Timestamp.Before(sig.Timestamp) {
			continue
		}
		res.BarsEvaluated++

		t, idx := s.firstTouch(sig, bar)
		switch t {
		case touchTarget:
			res.Outcome = models.OutcomeWin
			res.TP = sig.TakeProfits[idx]
			res.TPIndex = idx + 1
			return closeAt(res, res.TP, bar.Timestamp)
		case touchStop:
			res.Outcome = models.OutcomeLoss
			return closeAt(res, res.SL, bar.Timestamp)
		}
	}
	if res.BarsEvaluated == 0 {
		return errorResult(res, models.ReasonNoPriceData)
	}
	return res
}

// firstTouch classifies one bar. idx is the authored index of the touched target.
func (s *Simulator) firstTouch(sig models.CanonicalSignal, bar models.Bar) (touch, int) {
	long := sig.Side == models.SideLong

	idx := -1
	for i, tp := range sig.TakeProfits {
		if (long && bar.High >= tp) || (!long && bar.Low <= tp) {
			idx = i
			break
		}
	}

	stop := false
	if sig.StopLoss != nil {
		sl := *sig.StopLoss
		stop = (long && bar.Low <= sl) || (!long && bar.High >= sl)
	}

	switch {
	case stop && idx >= 0:
		if s.tieBreak == TargetFirst {
			return touchTarget, idx
		}
		return touchStop, -1
	case stop:
		return touchStop, -1
	case idx >= 0:
		return touchTarget, idx
	}
	return touchNone, -1
}

func closeAt(res models.BacktestResult, price float64, at time.Time) models.BacktestResult {
	res.ExitPrice = price
	t := at.UTC()
	res.ExitTime = &t
	res.PnL = PnL(res.Side, res.EntryMin, price, res.Leverage)
	return res
}

func errorResult(res models.BacktestResult, reason models.FailureReason) models.BacktestResult {
	res.Outcome = models.OutcomeError
	res.Error = string(reason)
	res.PnL = 0
	return res
}

// PnL returns the leveraged percentage move from entry to exit, rounded to 2 places.
func PnL(side models.Side, entry, exit, leverage float64) float64 {
	if entry <= 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	move := x.Sub(e)
	if side == models.SideShort {
		move = e.Sub(x)
	}
	v, _ := move.Div(e).Mul(decimal.NewFromInt(100)).Mul(decimal.NewFromFloat(leverage)).Round(2).Float64()
	return v
}
