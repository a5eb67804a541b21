package normalizer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/lexicon"
	"SignalBT/internal/services/extractor"
)

var meta = models.RawMessage{
	Source:       "-100123",
	ChannelTitle: "Alpha Calls",
	MessageID:    42,
	Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

func normalize(t *testing.T, text string) (models.CanonicalSignal, []Issue) {
	t.Helper()
	lex := lexicon.Default()
	return New(lex, DefaultConfig()).Normalize(extractor.New(lex).Extract(text), meta)
}

func TestParseNumber(t *testing.T) {
	lex := lexicon.Default()
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"0,125", 0.125, true},
		{"0.125", 0.125, true},
		{"42k", 42000, true},
		{"1,5 bin", 1500, true},
		{"2kilo", 2000, true},
		{"20x", 20, true},
		{"X10", 10, true},
		{"-3", -3, true},
		{"1.2.3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(lex, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.in)
		}
	}
}

func TestNormalizeSymbol(t *testing.T) {
	lex := lexicon.Default()
	assert.Equal(t, "BTCUSDT", NormalizeSymbol(lex, "#btc"))
	assert.Equal(t, "BTCUSDT", NormalizeSymbol(lex, "$BTC/USDT"))
	assert.Equal(t, "ETHBUSD", NormalizeSymbol(lex, "eth/busd"))
	assert.Equal(t, "SOLUSDT", NormalizeSymbol(lex, "SOLUSDT"))
	assert.Equal(t, "", NormalizeSymbol(lex, " "))
}

func TestNormalizeCompleteSignal(t *testing.T) {
	sig, issues := normalize(t, "#BTC/USDT LONG\nEntry: 105 - 100\nTargets: 110 115 120\nStop: 95\nLeverage: 10x")

	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, models.SideLong, sig.Side)
	assert.Equal(t, 100.0, sig.EntryMin)
	assert.Equal(t, 105.0, sig.EntryMax)
	assert.Equal(t, []float64{110, 115, 120}, sig.TakeProfits)
	require.NotNil(t, sig.StopLoss)
	assert.Equal(t, 95.0, *sig.StopLoss)
	assert.Equal(t, 10.0, sig.Leverage)
	assert.Equal(t, 1.0, sig.Confidence)
	assert.True(t, sig.IsComplete)
	assert.Equal(t, models.OriginRule, sig.Origin)
	assert.Equal(t, models.MarketFutures, sig.Market)
	assert.Equal(t, "-100123", sig.Source)
	assert.Equal(t, "Alpha Calls", sig.ChannelTitle)
	assert.Empty(t, issues)
}

func TestNormalizeLeverageDefault(t *testing.T) {
	cases := []string{
		"ETH long entry 3000 tp 3100 sl 2900",
		"ETH long entry 3000 tp 3100 sl 2900 leverage high",
		"ETH long entry 3000 tp 3100 sl 2900 leverage 0",
		"ETH long entry 3000 tp 3100 sl 2900 leverage 500",
	}
	for _, text := range cases {
		sig, _ := normalize(t, text)
		assert.Equal(t, DefaultLeverage, sig.Leverage, text)
		assert.InDelta(t, 0.9, sig.Confidence, 1e-9, text)
		assert.Equal(t, models.MarketSpot, sig.Market, text)
	}
}

func TestNormalizeDecimalComma(t *testing.T) {
	sig, _ := normalize(t, "DOGE LONG giriş 0,125 hedef 0,15 stop 0,1")
	assert.Equal(t, 0.125, sig.EntryMin)
	assert.Equal(t, 0.125, sig.EntryMax)
	assert.Equal(t, []float64{0.15}, sig.TakeProfits)
	require.NotNil(t, sig.StopLoss)
	assert.Equal(t, 0.1, *sig.StopLoss)
}

func TestNormalizeTargetOrder(t *testing.T) {
	sig, _ := normalize(t, "SOL long entry 90 tp 88-91-94 sl 80")
	assert.Equal(t, []float64{88, 91, 94}, sig.TakeProfits)
}

func TestNormalizePercentTargets(t *testing.T) {
	sig, _ := normalize(t, "BTC short entry 40k\ntargets %5 %10\nsl 42k")
	assert.Equal(t, 40000.0, sig.EntryMin)
	assert.Equal(t, []float64{38000, 36000}, sig.TakeProfits)
	assert.Equal(t, models.MarketFutures, sig.Market)
}

func TestNormalizeMixedPercentAnnotation(t *testing.T) {
	sig, _ := normalize(t, "BTC LONG entry 100 TP 110 (+10%) 120 SL 95")
	assert.Equal(t, []float64{110, 120}, sig.TakeProfits)
	require.NotNil(t, sig.StopLoss)
	assert.Equal(t, 95.0, *sig.StopLoss)
}

func TestNormalizeIncompleteAndPenalties(t *testing.T) {
	sig, issues := normalize(t, "ADA short now, not a long. targets 0,40")
	assert.False(t, sig.IsComplete)
	assert.False(t, sig.HasEntry())
	// missing stop 0.2, missing leverage 0.1, ambiguous side 0.2
	assert.InDelta(t, 0.5, sig.Confidence, 1e-9)

	reasons := map[string]models.FailureReason{}
	for _, is := range issues {
		reasons[is.Field] = is.Reason
	}
	assert.Equal(t, models.ReasonExtractionGap, reasons["entry"])
	assert.Equal(t, models.ReasonExtractionGap, reasons["stop"])
}

func TestNormalizeConfidenceFloor(t *testing.T) {
	lex := lexicon.Default()
	n := New(lex, Config{Penalties: Penalties{MissingTargets: 0.6, MissingStop: 0.6}})
	sig, _ := n.Normalize(extractor.New(lex).Extract("XRP long entry 0.5"), meta)
	assert.Equal(t, 0.0, sig.Confidence)
}

func TestRenormalizeIdempotentAfterRoundTrip(t *testing.T) {
	lex := lexicon.Default()
	n := New(lex, DefaultConfig())
	texts := []string{
		"#BTC/USDT LONG\nEntry: 105 - 100\nTargets: 110 115 120\nStop: 95\nLeverage: 10x",
		"ETH KISA\nGiriş: 3000\nHedefler: 2900 - 2800",
		"hello there",
	}
	for _, text := range texts {
		sig, _ := n.Normalize(extractor.New(lex).Extract(text), meta)
		assert.Equal(t, sig, n.Renormalize(sig), text)

		b, err := json.Marshal(sig)
		require.NoError(t, err)
		var back models.CanonicalSignal
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, sig, n.Renormalize(back), text)
	}
}

func TestRenormalizeRepairs(t *testing.T) {
	n := New(nil, DefaultConfig())
	got := n.Renormalize(models.CanonicalSignal{
		Symbol:      "eth/usdt",
		Side:        models.SideShort,
		EntryMin:    3100,
		EntryMax:    3000,
		TakeProfits: []float64{2900, 0},
		StopLoss:    models.Float64Ptr(0),
		Leverage:    -2,
		Confidence:  3,
	})
	assert.Equal(t, "ETHUSDT", got.Symbol)
	assert.Equal(t, 3000.0, got.EntryMin)
	assert.Equal(t, 3100.0, got.EntryMax)
	assert.Equal(t, []float64{2900}, got.TakeProfits)
	assert.Nil(t, got.StopLoss)
	assert.Equal(t, DefaultLeverage, got.Leverage)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, models.OriginRule, got.Origin)
	assert.True(t, got.IsComplete)
}

func TestRuleExtractor(t *testing.T) {
	lex := lexicon.Default()
	r := NewRuleExtractor(extractor.New(lex), New(lex, DefaultConfig()))
	assert.Equal(t, "rule", r.Name())

	msg := meta
	msg.Text = "LINK long entry 14 tp 15 sl 13"
	sig, fail := r.Extract(context.Background(), msg)
	assert.Nil(t, fail)
	assert.Equal(t, "LINKUSDT", sig.Symbol)
	assert.Equal(t, int64(42), sig.MessageID)

	msg.Text = "gm"
	_, fail = r.Extract(context.Background(), msg)
	require.NotNil(t, fail)
	assert.Equal(t, models.ReasonExtractionGap, fail.Reason)
}
