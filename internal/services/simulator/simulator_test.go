package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func longSignal() models.CanonicalSignal {
	return models.CanonicalSignal{
		Symbol:      "BTCUSDT",
		Side:        models.SideLong,
		EntryMin:    100,
		EntryMax:    101,
		TakeProfits: []float64{105, 110},
		StopLoss:    models.Float64Ptr(95),
		Leverage:    10,
		IsComplete:  true,
		Source:      "chan",
		Timestamp:   t0,
	}
}

func bars(hl ...[2]float64) *models.PriceSeries {
	s := &models.PriceSeries{Symbol: "BTCUSDT"}
	for i, p := range hl {
		s.Bars = append(s.Bars, models.Bar{Timestamp: t0.Add(time.Duration(i) * time.Minute), High: p[0], Low: p[1]})
	}
	return s
}

func TestPnLFormula(t *testing.T) {
	assert.Equal(t, 50.0, PnL(models.SideLong, 100, 105, 10))
	assert.Equal(t, -15.0, PnL(models.SideShort, 100, 103, 5))
	assert.Equal(t, 0.0, PnL(models.SideLong, 0, 105, 10))
	assert.Equal(t, 3.33, PnL(models.SideLong, 3, 3.1, 1))
}

func TestSimulateLongWin(t *testing.T) {
	res := New().Simulate(longSignal(), bars([2]float64{101, 99}, [2]float64{106, 100}, [2]float64{90, 80}))

	assert.Equal(t, models.OutcomeWin, res.Outcome)
	assert.Equal(t, 105.0, res.TP)
	assert.Equal(t, 1, res.TPIndex)
	assert.Equal(t, 50.0, res.PnL)
	assert.Equal(t, 2, res.BarsEvaluated)
	require.NotNil(t, res.ExitTime)
	assert.Equal(t, t0.Add(time.Minute), *res.ExitTime)
	assert.Equal(t, "chan", res.Source)
}

func TestSimulateShortLoss(t *testing.T) {
	sig := models.CanonicalSignal{
		Symbol:      "ETHUSDT",
		Side:        models.SideShort,
		EntryMin:    100,
		EntryMax:    100,
		TakeProfits: []float64{90},
		StopLoss:    models.Float64Ptr(103),
		Leverage:    5,
		IsComplete:  true,
		Timestamp:   t0,
	}
	res := New().Simulate(sig, bars([2]float64{101, 98}, [2]float64{104, 99}))
	assert.Equal(t, models.OutcomeLoss, res.Outcome)
	assert.Equal(t, -15.0, res.PnL)
	assert.Equal(t, 103.0, res.SL)
	assert.Equal(t, 90.0, res.TP)
	assert.Equal(t, 0, res.TPIndex)
}

func TestSimulateFirstReachedTarget(t *testing.T) {
	sig := longSignal()
	sig.TakeProfits = []float64{120, 104}
	res := New().Simulate(sig, bars([2]float64{104.5, 99}))
	assert.Equal(t, models.OutcomeWin, res.Outcome)
	assert.Equal(t, 104.0, res.TP)
	assert.Equal(t, 2, res.TPIndex)
	assert.Equal(t, 40.0, res.PnL)
}

func TestSimulateStraddleIsLoss(t *testing.T) {
	straddle := bars([2]float64{106, 94})

	res := New().Simulate(longSignal(), straddle)
	assert.Equal(t, models.OutcomeLoss, res.Outcome)
	assert.Equal(t, -50.0, res.PnL)

	res = New(WithTieBreak(TargetFirst)).Simulate(longSignal(), straddle)
	assert.Equal(t, models.OutcomeWin, res.Outcome)
}

func TestSimulateOpenAndSkipsEarlierBars(t *testing.T) {
	sig := longSignal()
	sig.Timestamp = t0.Add(time.Minute)
	// the first bar predates the signal and would be a stop touch
	res := New().Simulate(sig, bars([2]float64{100, 90}, [2]float64{102, 99}, [2]float64{103, 97}))
	assert.Equal(t, models.OutcomeOpen, res.Outcome)
	assert.Equal(t, 0.0, res.PnL)
	assert.Equal(t, 2, res.BarsEvaluated)
	assert.Nil(t, res.ExitTime)
}

func TestSimulateErrors(t *testing.T) {
	s := New()

	res := s.Simulate(longSignal(), &models.PriceSeries{})
	assert.Equal(t, models.OutcomeError, res.Outcome)
	assert.Equal(t, "no_price_data", res.Error)
	assert.Equal(t, 0.0, res.PnL)

	res = s.Simulate(longSignal(), nil)
	assert.Equal(t, "no_price_data", res.Error)

	late := longSignal()
	late.Timestamp = t0.Add(time.Hour)
	res = s.Simulate(late, bars([2]float64{200, 1}))
	assert.Equal(t, "no_price_data", res.Error)

	inc := longSignal()
	inc.IsComplete = false
	res = s.Simulate(inc, bars([2]float64{200, 1}))
	assert.Equal(t, models.OutcomeError, res.Outcome)
	assert.Equal(t, "incomplete_signal", res.Error)
}

func TestSimulateDefaultsLeverage(t *testing.T) {
	sig := longSignal()
	sig.Leverage = 0
	res := New().Simulate(sig, bars([2]float64{105, 100}))
	assert.Equal(t, 15.0, res.Leverage)
	assert.Equal(t, 75.0, res.PnL)
}

func TestWithKeepsOtherSettings(t *testing.T) {
	base := New(WithDefaultLeverage(20))
	over := base.With(WithTieBreak(TargetFirst))
	assert.Equal(t, StopFirst, base.TieBreak())
	assert.Equal(t, TargetFirst, over.TieBreak())

	sig := longSignal()
	sig.Leverage = 0
	res := over.Simulate(sig, bars([2]float64{106, 94}))
	assert.Equal(t, models.OutcomeWin, res.Outcome)
	assert.Equal(t, 20.0, res.Leverage)
	assert.Equal(t, 100.0, res.PnL)
}

func TestParseTieBreak(t *testing.T) {
	tb, err := ParseTieBreak("")
	require.NoError(t, err)
	assert.Equal(t, StopFirst, tb)
	tb, err = ParseTieBreak("target_first")
	require.NoError(t, err)
	assert.Equal(t, TargetFirst, tb)
	_, err = ParseTieBreak("coin_flip")
	assert.Error(t, err)
}
