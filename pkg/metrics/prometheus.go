package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messages *prometheus.CounterVec
	signals  *prometheus.CounterVec
	failures *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbt_messages_total",
				Help: "Raw messages accepted for resolution",
			},
			[]string{"source"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbt_signals_total",
				Help: "Canonical signals produced",
			},
			[]string{"origin", "complete"},
		),
		failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbt_resolution_failures_total",
				Help: "Messages that yielded no usable signal, by reason",
			},
			[]string{"reason"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbt_backtest_outcomes_total",
				Help: "Simulated signal outcomes",
			},
			[]string{"outcome"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbt_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalbt_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordMessage(source string) {
	r.messages.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordSignal(origin string, complete bool) {
	r.signals.WithLabelValues(origin, strconv.FormatBool(complete)).Inc()
}

func (r *Recorder) RecordResolverFailure(reason string) {
	r.failures.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordOutcome(outcome string) {
	r.outcomes.WithLabelValues(outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
