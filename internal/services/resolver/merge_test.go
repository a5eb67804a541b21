package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
)

func ruleSignal() models.CanonicalSignal {
	return models.CanonicalSignal{
		Symbol:       "BTCUSDT",
		Side:         models.SideLong,
		TakeProfits:  []float64{},
		Leverage:     15,
		Confidence:   0.5,
		Origin:       models.OriginRule,
		Source:       "chan-1",
		ChannelTitle: "Chan One",
		Timestamp:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		MessageID:    9,
	}
}

func aiSignal() models.CanonicalSignal {
	return models.CanonicalSignal{
		Symbol:      "ETHUSDT",
		Side:        models.SideShort,
		EntryMin:    100,
		EntryMax:    101,
		TakeProfits: []float64{95, 90},
		StopLoss:    models.Float64Ptr(105),
		Leverage:    20,
		Confidence:  0.8,
		Origin:      models.OriginAI,
	}
}

func TestMergeGapFillOnlyWritesUnsetFields(t *testing.T) {
	out, filled := Merge(MergeGapFill, ruleSignal(), aiSignal(), 15)

	assert.Equal(t, []string{"entry", "targets", "stop", "leverage"}, filled)
	assert.Equal(t, "BTCUSDT", out.Symbol)
	assert.Equal(t, models.SideLong, out.Side)
	assert.Equal(t, 100.0, out.EntryMin)
	assert.Equal(t, []float64{95, 90}, out.TakeProfits)
	require.NotNil(t, out.StopLoss)
	assert.Equal(t, 105.0, *out.StopLoss)
	assert.Equal(t, 20.0, out.Leverage)
	assert.Equal(t, 0.8, out.Confidence)
	assert.Equal(t, models.OriginAI, out.Origin)
	assert.True(t, out.IsComplete)
	assert.Equal(t, "chan-1", out.Source)
}

func TestMergeGapFillNothingToFill(t *testing.T) {
	rule := ruleSignal()
	rule.EntryMin, rule.EntryMax = 50, 50
	rule.TakeProfits = []float64{60}
	rule.StopLoss = models.Float64Ptr(45)
	rule.Leverage = 5

	out, filled := Merge(MergeAuto, rule, aiSignal(), 15)
	assert.Empty(t, filled)
	assert.Equal(t, models.OriginRule, out.Origin)
	assert.Equal(t, rule, out)
}

func TestMergeAutoReplacesEmptyRule(t *testing.T) {
	rule := models.CanonicalSignal{Source: "chan-2", MessageID: 3, Leverage: 15, Locale: "tr"}
	out, filled := Merge(MergeAuto, rule, aiSignal(), 15)

	assert.Equal(t, []string{"all"}, filled)
	assert.Equal(t, "ETHUSDT", out.Symbol)
	assert.Equal(t, "chan-2", out.Source)
	assert.Equal(t, int64(3), out.MessageID)
	assert.Equal(t, "tr", out.Locale)
	assert.True(t, out.IsComplete)
}

func TestMergeReplaceAlwaysTakesAI(t *testing.T) {
	out, _ := Merge(MergeReplace, ruleSignal(), aiSignal(), 15)
	assert.Equal(t, "ETHUSDT", out.Symbol)
	assert.Equal(t, models.SideShort, out.Side)
	assert.Equal(t, "Chan One", out.ChannelTitle)
}

func TestParseMergePolicy(t *testing.T) {
	p, err := ParseMergePolicy("")
	require.NoError(t, err)
	assert.Equal(t, MergeAuto, p)
	_, err = ParseMergePolicy("overwrite")
	assert.Error(t, err)
}
