package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"SignalBT/internal/lexicon"
)

var symbolRe = regexp.MustCompile(`[#$]?[A-Za-z0-9]{2,15}(?:/[A-Za-z]{3,5})?`)

// Candidate tiers, strongest first.
const (
	tierPair = iota
	tierTagged
	tierCaps
	tierWord
	tierNone
)

// detectSymbol picks the most ticker-like token. Pairs such as BTC/USDT or
// BTCUSDT win over #BTC, which wins over a bare upper-case ticker.
func (e *Extractor) detectSymbol(text string, spans []Span) string {
	best, bestTier := "", tierNone
	for _, loc := range symbolRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if prevIsWord(text, start) || nextIsWord(text, end) || insideSpan(spans, start) {
			continue
		}
		raw := text[start:end]
		if tier := e.symbolTier(raw); tier < bestTier {
			best, bestTier = raw, tier
			if tier == tierPair {
				break
			}
		}
	}
	// chatter without any trade keyword only yields explicit tickers
	if len(spans) == 0 && bestTier > tierTagged {
		return ""
	}
	return best
}

func (e *Extractor) symbolTier(raw string) int {
	tagged := raw[0] == '#' || raw[0] == '$'
	body := strings.TrimLeft(raw, "#$")
	base, quote, slash := strings.Cut(body, "/")
	upper := strings.ToUpper(base)

	if !hasLetter(base) {
		return tierNone
	}
	if slash {
		if e.isQuote(strings.ToUpper(quote)) && !e.lex.IsBlacklisted(lexicon.Fold(base)) {
			return tierPair
		}
		return tierNone
	}
	for _, q := range e.lex.QuoteAssets() {
		if len(upper) > len(q)+1 && strings.HasSuffix(upper, q) {
			b := upper[:len(upper)-len(q)]
			if hasLetter(b) && !e.lex.IsBlacklisted(lexicon.Fold(b)) {
				return tierPair
			}
		}
	}
	if e.lex.IsBlacklisted(lexicon.Fold(base)) {
		return tierNone
	}
	if _, ok := e.lex.MatchToken(lexicon.Fold(base)); ok {
		return tierNone
	}
	if len(base) > 10 {
		return tierNone
	}
	switch {
	case tagged:
		return tierTagged
	case base == upper && len(base) <= 10:
		return tierCaps
	case len(base) <= 6 && isAlpha(base):
		return tierWord
	}
	return tierNone
}

func (e *Extractor) isQuote(s string) bool {
	for _, q := range e.lex.QuoteAssets() {
		if s == q {
			return true
		}
	}
	return false
}

func nextIsWord(text string, i int) bool {
	for _, r := range text[i:] {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}
	return false
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
