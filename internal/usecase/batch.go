package usecase

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"SignalBT/internal/domain/models"
	domrepo "SignalBT/internal/domain/repository"
	"SignalBT/internal/services/normalizer"
	"SignalBT/internal/services/simulator"
	applogger "SignalBT/pkg/logger"
)

// DefaultHorizon bounds the price window replayed after each signal.
const DefaultHorizon = 7 * 24 * time.Hour

// runOrdered applies fn to every item with a bounded worker pool and keeps input order.
func runOrdered[In, Out any](ctx context.Context, workers int, in []In, fn func(context.Context, In) Out) []Out {
	out := make([]Out, len(in))
	if len(in) == 0 {
		return out
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(in) {
		workers = len(in)
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				out[i] = fn(ctx, in[i])
			}
		}()
	}
	for i := range in {
		idx <- i
	}
	close(idx)
	wg.Wait()
	return out
}

// BatchParser resolves a batch of messages concurrently.
type BatchParser struct {
	res     *SignalResolver
	workers int
	log     *applogger.Logger
}

func NewBatchParser(res *SignalResolver, workers int, log *applogger.Logger) *BatchParser {
	if log == nil {
		log = applogger.Nop()
	}
	return &BatchParser{res: res, workers: workers, log: log}
}

// Parse returns one Resolution per message, in input order.
func (p *BatchParser) Parse(ctx context.Context, msgs []models.RawMessage, allowAI bool) ([]Resolution, *models.RunReport) {
	report := models.NewRunReport(uuid.NewString(), time.Now().UTC())
	out := runOrdered(ctx, p.workers, msgs, func(ctx context.Context, m models.RawMessage) Resolution {
		return p.res.Resolve(ctx, m, allowAI)
	})

	report.Messages = len(msgs)
	for _, r := range out {
		if r.Failure != nil {
			report.ResolverFailures[r.Failure.Reason]++
		}
		if !r.Usable() {
			continue
		}
		report.Signals++
		if r.Signal.IsComplete {
			report.Complete++
		}
		if r.Signal.Origin == models.OriginAI {
			report.AIResolved++
		}
	}
	report.Duration = time.Since(report.StartedAt)
	LogReport(p.log, "parse", report)
	return out, report
}

// Backtester replays signals against a price source.
type Backtester struct {
	prices  domrepo.PriceSource
	sim     *simulator.Simulator
	norm    *normalizer.Normalizer
	horizon time.Duration
	workers int
	metrics domrepo.Metrics
	log     *applogger.Logger
}

type BacktestOption func(*Backtester)

func WithHorizon(d time.Duration) BacktestOption {
	return func(b *Backtester) {
		if d > 0 {
			b.horizon = d
		}
	}
}

func WithWorkers(n int) BacktestOption {
	return func(b *Backtester) { b.workers = n }
}

func WithBacktestMetrics(m domrepo.Metrics) BacktestOption {
	return func(b *Backtester) { b.metrics = m }
}

func WithBacktestLogger(l *applogger.Logger) BacktestOption {
	return func(b *Backtester) {
		if l != nil {
			b.log = l
		}
	}
}

// WithNormalizer sets the rules applied to signals before replay.
func WithNormalizer(n *normalizer.Normalizer) BacktestOption {
	return func(b *Backtester) {
		if n != nil {
			b.norm = n
		}
	}
}

func NewBacktester(prices domrepo.PriceSource, sim *simulator.Simulator, opts ...BacktestOption) *Backtester {
	b := &Backtester{
		prices:  prices,
		sim:     sim,
		norm:    normalizer.New(nil, normalizer.DefaultConfig()),
		horizon: DefaultHorizon,
		log:     applogger.Nop(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Prepare re-derives completeness, entry order and leverage for a signal
// that did not come straight from the extractor (files, storage, HTTP).
func (b *Backtester) Prepare(sig models.CanonicalSignal) models.CanonicalSignal {
	return b.norm.Renormalize(sig)
}

// Run simulates every signal. Missing price data becomes an ERROR result, never an error return.
func (b *Backtester) Run(ctx context.Context, signals []models.CanonicalSignal) ([]models.BacktestResult, *models.RunReport) {
	report := models.NewRunReport(uuid.NewString(), time.Now().UTC())
	prepared := make([]models.CanonicalSignal, len(signals))
	for i, s := range signals {
		prepared[i] = b.Prepare(s)
	}
	signals = prepared
	out := runOrdered(ctx, b.workers, signals, b.one)

	report.Signals = len(signals)
	for _, s := range signals {
		if s.IsComplete {
			report.Complete++
		}
	}
	for _, r := range out {
		report.Outcomes[r.Outcome]++
		if b.metrics != nil {
			b.metrics.RecordOutcome(string(r.Outcome))
		}
	}
	report.Duration = time.Since(report.StartedAt)
	LogReport(b.log, "backtest", report)
	return out, report
}

func (b *Backtester) one(ctx context.Context, sig models.CanonicalSignal) models.BacktestResult {
	if !sig.IsComplete {
		return b.sim.Simulate(sig, nil)
	}
	series, err := b.series(ctx, sig)
	if err != nil && !errors.Is(err, domrepo.ErrPriceUnavailable) {
		b.log.Warn("price fetch failed",
			applogger.String("symbol", sig.Symbol),
			applogger.Error(err),
		)
		if b.metrics != nil {
			b.metrics.RecordError("price_fetch")
		}
	}
	return b.sim.Simulate(sig, series)
}

func (b *Backtester) series(ctx context.Context, sig models.CanonicalSignal) (*models.PriceSeries, error) {
	start := time.Now()
	bars, err := b.prices.GetBars(ctx, sig.Symbol, sig.Timestamp, sig.Timestamp.Add(b.horizon))
	if b.metrics != nil {
		b.metrics.RecordLatency("price_fetch", time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return &models.PriceSeries{Symbol: sig.Symbol, Bars: bars}, nil
}

// LogReport writes the end-of-run counters, one field per outcome and failure kind.
func LogReport(l *applogger.Logger, job string, r *models.RunReport) {
	fields := []applogger.Field{
		applogger.String("job", job),
		applogger.String("run_id", r.RunID),
		applogger.Int("messages", r.Messages),
		applogger.Int("signals", r.Signals),
		applogger.Int("complete", r.Complete),
		applogger.Int("ai_resolved", r.AIResolved),
		applogger.Duration("duration", r.Duration),
	}
	for _, o := range models.Outcomes {
		if n, ok := r.Outcomes[o]; ok {
			fields = append(fields, applogger.Int("outcome_"+string(o), n))
		}
	}
	for reason, n := range r.ResolverFailures {
		fields = append(fields, applogger.Int("failure_"+string(reason), n))
	}
	l.Info("run finished", fields...)
}
