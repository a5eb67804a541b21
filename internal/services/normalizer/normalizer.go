// Package normalizer turns candidate fields into canonical signals.
package normalizer

import (
	"github.com/shopspring/decimal"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/lexicon"
	"SignalBT/internal/services/extractor"
)

const (
	DefaultLeverage = 15.0
	MaxLeverage     = 125.0
)

// Penalties are subtracted from a starting confidence of 1.0.
type Penalties struct {
	MissingTargets  float64 `yaml:"missing_targets"`
	MissingStop     float64 `yaml:"missing_stop"`
	MissingLeverage float64 `yaml:"missing_leverage"`
	AmbiguousSide   float64 `yaml:"ambiguous_side"`
}

type Config struct {
	DefaultLeverage float64
	MaxLeverage     float64
	Penalties       Penalties
}

func DefaultConfig() Config {
	return Config{
		DefaultLeverage: DefaultLeverage,
		MaxLeverage:     MaxLeverage,
		Penalties: Penalties{
			MissingTargets:  0.2,
			MissingStop:     0.2,
			MissingLeverage: 0.1,
			AmbiguousSide:   0.2,
		},
	}
}

// Issue records a field that was absent or could not be parsed.
type Issue struct {
	Field  string
	Reason models.FailureReason
	Raw    string
}

type Normalizer struct {
	lex *lexicon.Lexicon
	cfg Config
}

func New(lex *lexicon.Lexicon, cfg Config) *Normalizer {
	if lex == nil {
		lex = lexicon.Default()
	}
	def := DefaultConfig()
	if cfg.DefaultLeverage <= 0 {
		cfg.DefaultLeverage = def.DefaultLeverage
	}
	if cfg.MaxLeverage <= 0 {
		cfg.MaxLeverage = def.MaxLeverage
	}
	return &Normalizer{lex: lex, cfg: cfg}
}

func (n *Normalizer) Lexicon() *lexicon.Lexicon { return n.lex }

func (n *Normalizer) DefaultLeverage() float64 { return n.cfg.DefaultLeverage }

// Normalize assembles a rule-origin CanonicalSignal from cf. It never fails;
// gaps and dropped tokens are reported as issues.
func (n *Normalizer) Normalize(cf extractor.CandidateFields, meta models.RawMessage) (models.CanonicalSignal, []Issue) {
	var issues []Issue
	gap := func(field string) {
		issues = append(issues, Issue{Field: field, Reason: models.ReasonExtractionGap})
	}
	bad := func(field, raw string) {
		issues = append(issues, Issue{Field: field, Reason: models.ReasonNormalizationFailure, Raw: raw})
	}

	sig := models.CanonicalSignal{
		Origin:       models.OriginRule,
		Source:       meta.Source,
		ChannelTitle: meta.ChannelTitle,
		MessageID:    meta.MessageID,
		Timestamp:    meta.Timestamp.UTC(),
		Locale:       cf.Locale,
		TakeProfits:  []float64{},
	}

	if sig.Symbol = NormalizeSymbol(n.lex, cf.Symbol); sig.Symbol == "" {
		gap("symbol")
	}
	if cf.Side.Valid() {
		sig.Side = cf.Side
	} else {
		gap("side")
	}

	entries := n.prices("entry", cf.Entry, bad)
	if len(entries) == 0 {
		gap("entry")
	} else {
		sig.EntryMin, sig.EntryMax = entries[0], entries[0]
		for _, v := range entries[1:] {
			if v < sig.EntryMin {
				sig.EntryMin = v
			}
			if v > sig.EntryMax {
				sig.EntryMax = v
			}
		}
	}

	if cf.TargetsPercent {
		sig.TakeProfits = n.percentTargets(cf.Targets, sig, bad)
	} else {
		sig.TakeProfits = append(sig.TakeProfits, n.prices("targets", cf.Targets, bad)...)
	}
	if len(sig.TakeProfits) == 0 {
		gap("targets")
	}

	if stops := n.prices("stop", cf.Stop, bad); len(stops) > 0 {
		sig.StopLoss = models.Float64Ptr(stops[0])
	} else {
		gap("stop")
	}

	stated := 0.0
	if cf.Leverage != nil && len(cf.Leverage.Tokens) > 0 {
		v, ok := ParseNumber(n.lex, cf.Leverage.Tokens[0])
		if ok && v > 0 && v <= n.cfg.MaxLeverage {
			stated = v
		} else {
			bad("leverage", cf.Leverage.Tokens[0])
		}
	}
	sig.Leverage = stated
	if stated == 0 {
		sig.Leverage = n.cfg.DefaultLeverage
		gap("leverage")
	}

	sig.Confidence = n.confidence(sig, stated > 0, cf.SideAmbiguous)
	sig.IsComplete = Complete(sig)
	sig.Market = models.MarketSpot
	if stated > 1 || sig.Side == models.SideShort {
		sig.Market = models.MarketFutures
	}
	return sig, issues
}

// Complete reports whether symbol, side and entry are present.
func Complete(sig models.CanonicalSignal) bool {
	return sig.Symbol != "" && sig.Side.Valid() && sig.HasEntry()
}

func (n *Normalizer) prices(field string, f *extractor.Field, bad func(string, string)) []float64 {
	if f == nil {
		return nil
	}
	out := make([]float64, 0, len(f.Tokens))
	for _, tok := range f.Tokens {
		v, ok := parsePrice(n.lex, tok)
		if !ok {
			bad(field, tok)
			continue
		}
		out = append(out, v)
	}
	return out
}

// percentTargets converts "%5 %10" style targets against entry_min.
func (n *Normalizer) percentTargets(f *extractor.Field, sig models.CanonicalSignal, bad func(string, string)) []float64 {
	out := []float64{}
	if f == nil {
		return out
	}
	if !sig.HasEntry() || !sig.Side.Valid() {
		bad("targets", f.Raw)
		return out
	}
	entry := decimal.NewFromFloat(sig.EntryMin)
	hundred := decimal.NewFromInt(100)
	for _, tok := range f.Tokens {
		p, ok := parseDecimal(n.lex, tok)
		if !ok || !p.IsPositive() {
			bad("targets", tok)
			continue
		}
		move := entry.Mul(p).Div(hundred)
		var tp decimal.Decimal
		if sig.Side == models.SideLong {
			tp = entry.Add(move)
		} else {
			tp = entry.Sub(move)
		}
		if !tp.IsPositive() {
			bad("targets", tok)
			continue
		}
		v, _ := tp.Round(8).Float64()
		out = append(out, v)
	}
	return out
}

func (n *Normalizer) confidence(sig models.CanonicalSignal, leverageStated, ambiguous bool) float64 {
	p := n.cfg.Penalties
	c := decimal.NewFromInt(1)
	if len(sig.TakeProfits) == 0 {
		c = c.Sub(decimal.NewFromFloat(p.MissingTargets))
	}
	if sig.StopLoss == nil {
		c = c.Sub(decimal.NewFromFloat(p.MissingStop))
	}
	if !leverageStated {
		c = c.Sub(decimal.NewFromFloat(p.MissingLeverage))
	}
	if ambiguous {
		c = c.Sub(decimal.NewFromFloat(p.AmbiguousSide))
	}
	if c.IsNegative() {
		return 0
	}
	v, _ := c.Round(4).Float64()
	return v
}
