package resolver

import (
	"fmt"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/lexicon"
	"SignalBT/internal/services/normalizer"
)

// MergePolicy decides how an AI result combines with the rule result.
type MergePolicy string

const (
	// MergeAuto replaces an empty rule result and gap-fills otherwise.
	MergeAuto    MergePolicy = "auto"
	MergeGapFill MergePolicy = "gap_fill"
	MergeReplace MergePolicy = "replace"
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(s); p {
	case MergeAuto, MergeGapFill, MergeReplace:
		return p, nil
	case "":
		return MergeAuto, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

// Merge combines rule and ai. Gap-fill visits fields in a fixed order
// (symbol, side, entry, targets, stop, leverage) and only ever writes a
// field the rule result left unset; it returns the names of filled fields.
// Provenance (source, channel, timestamp, message id) always comes from rule.
func Merge(policy MergePolicy, rule, ai models.CanonicalSignal, defaultLeverage float64) (models.CanonicalSignal, []string) {
	if policy == MergeReplace || (policy == MergeAuto && rule.Empty()) {
		out := ai
		out.Source, out.ChannelTitle = rule.Source, rule.ChannelTitle
		out.Timestamp, out.MessageID = rule.Timestamp, rule.MessageID
		if out.Locale == "" || out.Locale == lexicon.LocaleUnknown {
			out.Locale = rule.Locale
		}
		out.Origin = models.OriginAI
		out.IsComplete = normalizer.Complete(out)
		return out, []string{"all"}
	}

	out := rule
	var filled []string
	if out.Symbol == "" && ai.Symbol != "" {
		out.Symbol = ai.Symbol
		filled = append(filled, "symbol")
	}
	if !out.Side.Valid() && ai.Side.Valid() {
		out.Side = ai.Side
		filled = append(filled, "side")
	}
	if !out.HasEntry() && ai.HasEntry() {
		out.EntryMin, out.EntryMax = ai.EntryMin, ai.EntryMax
		filled = append(filled, "entry")
	}
	if len(out.TakeProfits) == 0 && len(ai.TakeProfits) > 0 {
		out.TakeProfits = append([]float64{}, ai.TakeProfits...)
		filled = append(filled, "targets")
	}
	if out.StopLoss == nil && ai.StopLoss != nil {
		out.StopLoss = models.Float64Ptr(*ai.StopLoss)
		filled = append(filled, "stop")
	}
	// a default leverage on the rule side means none was stated
	if out.Leverage == defaultLeverage && ai.Leverage > 0 && ai.Leverage != defaultLeverage {
		out.Leverage = ai.Leverage
		filled = append(filled, "leverage")
	}
	if len(filled) == 0 {
		return out, nil
	}

	out.Origin = models.OriginAI
	if ai.Confidence > out.Confidence {
		out.Confidence = ai.Confidence
	}
	if out.Side == models.SideShort || (out.Leverage > 1 && out.Leverage != defaultLeverage) {
		out.Market = models.MarketFutures
	}
	out.IsComplete = normalizer.Complete(out)
	return out, filled
}
