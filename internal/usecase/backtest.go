package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	"SignalBT/internal/services/aggregator"
	"SignalBT/internal/services/simulator"
)

const maxRunLimit = 50000

// BacktestUseCase runs backtests over stored signals and serves stats over stored results.
type BacktestUseCase struct {
	store   domrepo.Storage
	pub     domrepo.Publisher
	bt      *Backtester
	sim     *simulator.Simulator
	timeout time.Duration
}

// NewBacktestUseCase wires storage and the backtester. pub may be nil.
func NewBacktestUseCase(store domrepo.Storage, pub domrepo.Publisher, bt *Backtester, sim *simulator.Simulator) *BacktestUseCase {
	return &BacktestUseCase{store: store, pub: pub, bt: bt, sim: sim, timeout: 5 * time.Minute}
}

type RunParams struct {
	From    time.Time
	To      time.Time
	Channel string
	Limit   int
	Persist bool
}

type StatsParams struct {
	From    time.Time
	To      time.Time
	Channel string
	Top     int
}

type RunResult struct {
	Report  *models.RunReport       `json:"report"`
	Results []models.BacktestResult `json:"results"`
	Summary models.Summary          `json:"summary"`
}

// Simulate replays one signal against inline bars.
func (uc *BacktestUseCase) Simulate(req models.SimulateRequest) (models.BacktestResult, error) {
	sim := uc.sim
	if req.TieBreak != "" {
		tb, err := simulator.ParseTieBreak(req.TieBreak)
		if err != nil {
			return models.BacktestResult{}, err
		}
		sim = sim.With(simulator.WithTieBreak(tb))
	}
	sig := uc.bt.Prepare(req.Signal)
	var series *models.PriceSeries
	if len(req.Bars) > 0 {
		series = &models.PriceSeries{Symbol: sig.Symbol, Bars: req.Bars}
	}
	return sim.Simulate(sig, series), nil
}

// Run backtests stored complete signals inside [From, To].
func (uc *BacktestUseCase) Run(ctx context.Context, req RunParams) (*RunResult, error) {
	if req.From.After(req.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if req.Limit <= 0 || req.Limit > maxRunLimit {
		req.Limit = maxRunLimit
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	signals, err := uc.store.QuerySignals(ctx, domrepo.SignalQuery{
		From:         req.From,
		To:           req.To,
		Channel:      req.Channel,
		CompleteOnly: true,
		Limit:        req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}

	results, report := uc.bt.Run(ctx, signals)
	if req.Persist {
		if err := uc.store.StoreResults(ctx, results); err != nil {
			return nil, fmt.Errorf("store results: %w", err)
		}
		if uc.pub != nil {
			if err := uc.pub.PublishResults(ctx, results); err != nil {
				return nil, fmt.Errorf("publish results: %w", err)
			}
		}
	}
	return &RunResult{Report: report, Results: results, Summary: aggregator.Summarize(results, 0)}, nil
}

// Stats summarizes stored results.
func (uc *BacktestUseCase) Stats(ctx context.Context, req StatsParams) (models.Summary, error) {
	if !req.From.IsZero() && !req.To.IsZero() && req.From.After(req.To) {
		return models.Summary{}, fmt.Errorf("from must be <= to")
	}
	results, err := uc.store.QueryResults(ctx, domrepo.ResultQuery{
		From:    req.From,
		To:      req.To,
		Channel: req.Channel,
		Limit:   maxRunLimit,
	})
	if err != nil {
		return models.Summary{}, fmt.Errorf("query results: %w", err)
	}
	return aggregator.Summarize(results, req.Top), nil
}
