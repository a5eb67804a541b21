package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"SignalBT/internal/domain/models"
	domainsvc "SignalBT/internal/domain/service"
	svcmetrics "SignalBT/internal/service/metrics"
	applogger "SignalBT/pkg/logger"
)

// Provider is a named completion backend.
type Provider interface {
	domainsvc.Completer
	Name() string
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
}

// Pool round-robins over providers, each behind its own circuit breaker.
// A provider that keeps failing is skipped until its breaker half-opens.
type Pool struct {
	providers []Provider
	breakers  []*gobreaker.CircuitBreaker
	next      atomic.Uint64
	log       *applogger.Logger
}

var _ domainsvc.Completer = (*Pool)(nil)

func NewPool(providers []Provider, cfg BreakerConfig, log *applogger.Logger) *Pool {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = time.Minute
	}
	if log == nil {
		log = applogger.Nop()
	}
	p := &Pool{providers: providers, log: log}
	for _, pr := range providers {
		name := pr.Name()
		p.breakers = append(p.breakers, gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				svcmetrics.BreakerState.WithLabelValues(name).Set(float64(to))
				log.Warn("completion provider breaker state changed",
					applogger.String("provider", name),
					applogger.String("from", from.String()),
					applogger.String("to", to.String()))
			},
		}))
	}
	return p
}

func (p *Pool) Name() string { return "pool" }

// Complete tries providers starting at the round-robin cursor. Connection
// failures and rate limits move on to the next provider; other errors are
// returned for the retry policy to judge.
func (p *Pool) Complete(ctx context.Context, req domainsvc.CompletionRequest) (string, error) {
	n := len(p.providers)
	if n == 0 {
		return "", ErrNoProvider
	}
	start := int(p.next.Add(1)-1) % n
	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		pr := p.providers[idx]
		out, err := p.breakers[idx].Execute(func() (interface{}, error) {
			return pr.Complete(ctx, req)
		})
		if err == nil {
			return out.(string), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			continue
		}
		lastErr = err
		switch Classify(err) {
		case models.ReasonConnection, models.ReasonRateLimited:
			p.log.Warn("completion provider failed, trying next",
				applogger.String("provider", pr.Name()),
				applogger.Error(err))
			continue
		}
		return "", err
	}
	if lastErr == nil {
		return "", ErrNoProvider
	}
	return "", lastErr
}

// States reports breaker state per provider name.
func (p *Pool) States() map[string]string {
	out := make(map[string]string, len(p.breakers))
	for _, b := range p.breakers {
		out[b.Name()] = b.State().String()
	}
	return out
}
