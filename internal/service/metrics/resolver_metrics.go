package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ResolverLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signalbt",
			Subsystem: "resolver",
			Name:      "latency_seconds",
			Help:      "Latency of completion calls by provider",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"provider"},
	)

	ResolverFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalbt",
			Subsystem: "resolver",
			Name:      "failures_total",
			Help:      "Resolver failures by reason",
		},
		[]string{"reason"},
	)

	ResolverAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "signalbt",
			Subsystem: "resolver",
			Name:      "attempts",
			Help:      "Attempts spent per resolution",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
	)

	ResolverCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signalbt",
			Subsystem: "resolver",
			Name:      "cache_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"result"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "signalbt",
			Subsystem: "resolver",
			Name:      "breaker_state",
			Help:      "Circuit state per provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ResolverLatency, ResolverFailures, ResolverAttempts, ResolverCache, BreakerState)
	})
}
