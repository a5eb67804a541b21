package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
)

func TestPrintReport(t *testing.T) {
	r := models.NewRunReport("run-1", time.Now())
	r.Signals = 3
	r.Complete = 2
	r.Outcomes[models.OutcomeWin] = 2
	r.Outcomes[models.OutcomeError] = 1
	r.ResolverFailures[models.ReasonTimeout] = 1

	var buf bytes.Buffer
	printReport(&buf, "backtest", r)
	out := buf.String()
	assert.Regexp(t, `backtest run\s+run-1`, out)
	assert.Regexp(t, `WIN\s+2`, out)
	assert.Regexp(t, `ERROR\s+1`, out)
	assert.Regexp(t, `failed: timeout\s+1`, out)
	assert.NotContains(t, out, "LOSS")
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = parseDuration("-1h")
	assert.Error(t, err)
	_, err = parseDuration("week")
	assert.Error(t, err)
}
