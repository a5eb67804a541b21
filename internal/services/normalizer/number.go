package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"

	"SignalBT/internal/lexicon"
)

const minPrice = 1e-6

var suffixes = []string{"kilo", "bin", "k"}

// ParseNumber applies the shared numeric grammar to a single token:
// optional sign, one decimal separator ('.' or ','), optional magnitude
// suffix and an optional x marker. Comma is never a thousands separator.
func ParseNumber(lex *lexicon.Lexicon, raw string) (float64, bool) {
	d, ok := parseDecimal(lex, raw)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

func parseDecimal(lex *lexicon.Lexicon, raw string) (decimal.Decimal, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "x"), "x")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return decimal.Zero, false
	}

	mult := decimal.NewFromInt(1)
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			if m, ok := lex.Multiplier(suf); ok {
				mult = decimal.NewFromFloat(m)
			}
			s = strings.TrimSpace(strings.TrimSuffix(s, suf))
			break
		}
	}
	if strings.Count(s, ",")+strings.Count(s, ".") > 1 {
		return decimal.Zero, false
	}
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Mul(mult), true
}

// parsePrice accepts strictly positive values only.
func parsePrice(lex *lexicon.Lexicon, raw string) (float64, bool) {
	v, ok := ParseNumber(lex, raw)
	if !ok || v < minPrice {
		return 0, false
	}
	return v, true
}
