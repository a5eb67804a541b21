package normalizer

import (
	"context"

	"SignalBT/internal/domain/models"
	domainsvc "SignalBT/internal/domain/service"
	"SignalBT/internal/services/extractor"
)

// Renormalize re-applies the canonical rules to an already built signal,
// e.g. one read back from storage or produced by the resolver merge.
// Renormalize(Renormalize(s)) == Renormalize(s).
func (n *Normalizer) Renormalize(sig models.CanonicalSignal) models.CanonicalSignal {
	sig.Symbol = NormalizeSymbol(n.lex, sig.Symbol)
	if !sig.Side.Valid() {
		sig.Side = ""
	}

	if sig.EntryMin <= 0 {
		sig.EntryMin, sig.EntryMax = sig.EntryMax, 0
	}
	if sig.EntryMin < 0 {
		sig.EntryMin = 0
	}
	if sig.EntryMax <= 0 {
		sig.EntryMax = sig.EntryMin
	}
	if sig.EntryMin > sig.EntryMax {
		sig.EntryMin, sig.EntryMax = sig.EntryMax, sig.EntryMin
	}

	tps := make([]float64, 0, len(sig.TakeProfits))
	for _, tp := range sig.TakeProfits {
		if tp >= minPrice {
			tps = append(tps, tp)
		}
	}
	sig.TakeProfits = tps

	if sig.StopLoss != nil && *sig.StopLoss < minPrice {
		sig.StopLoss = nil
	}
	if sig.Leverage <= 0 || sig.Leverage > n.cfg.MaxLeverage {
		sig.Leverage = n.cfg.DefaultLeverage
	}
	if sig.Confidence < 0 {
		sig.Confidence = 0
	}
	if sig.Confidence > 1 {
		sig.Confidence = 1
	}
	if sig.Origin != models.OriginAI {
		sig.Origin = models.OriginRule
	}
	if sig.Market == "" {
		sig.Market = models.MarketSpot
		if sig.Side == models.SideShort || (sig.Leverage > 1 && sig.Leverage != n.cfg.DefaultLeverage) {
			sig.Market = models.MarketFutures
		}
	}
	sig.Timestamp = sig.Timestamp.UTC()
	sig.IsComplete = Complete(sig)
	return sig
}

// RuleExtractor is the deterministic extraction path.
type RuleExtractor struct {
	ex   *extractor.Extractor
	norm *Normalizer
}

var _ domainsvc.SignalExtractor = (*RuleExtractor)(nil)

func NewRuleExtractor(ex *extractor.Extractor, norm *Normalizer) *RuleExtractor {
	return &RuleExtractor{ex: ex, norm: norm}
}

func (r *RuleExtractor) Name() string { return string(models.OriginRule) }

// Extract never blocks; ctx is accepted to satisfy SignalExtractor.
// A message with no trade field at all yields an extraction_gap failure
// alongside the empty signal.
func (r *RuleExtractor) Extract(_ context.Context, msg models.RawMessage) (models.CanonicalSignal, *models.Failure) {
	sig, _ := r.norm.Normalize(r.ex.Extract(msg.Text), msg)
	if sig.Empty() {
		return sig, models.NewFailure(models.ReasonExtractionGap, nil)
	}
	return sig, nil
}
