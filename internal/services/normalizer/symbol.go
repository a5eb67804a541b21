package normalizer

import (
	"strings"

	"SignalBT/internal/lexicon"
)

// NormalizeSymbol upper-cases raw, strips a leading # or $ and any slash and
// appends the default quote asset when no known quote suffix is present.
func NormalizeSymbol(lex *lexicon.Lexicon, raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimLeft(s, "#$")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return ""
	}
	for _, q := range lex.QuoteAssets() {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return s
		}
	}
	return s + lex.DefaultQuote()
}
