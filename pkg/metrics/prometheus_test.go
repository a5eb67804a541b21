package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordMessage("chan")
	r.RecordMessage("chan")
	r.RecordSignal("rule", true)
	r.RecordResolverFailure("timeout")
	r.RecordOutcome("WIN")
	r.RecordError("price_fetch")
	r.RecordLatency("backtest_run", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.messages.WithLabelValues("chan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signals.WithLabelValues("rule", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.outcomes.WithLabelValues("WIN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues("price_fetch")))
}
