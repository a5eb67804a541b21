// Package lexicon holds the immutable multilingual keyword groups and the
// numeric grammar tables shared by extraction and normalization.
package lexicon

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"SignalBT/internal/domain/models"
)

// Field is a keyword category. LONG and SHORT keywords share FieldSide.
type Field int

const (
	FieldNone Field = iota
	FieldSide
	FieldEntry
	FieldTargets
	FieldStop
	FieldLeverage
)

// Fields lists the anchored categories in extraction order.
var Fields = []Field{FieldSide, FieldEntry, FieldTargets, FieldStop, FieldLeverage}

func (f Field) String() string {
	switch f {
	case FieldSide:
		return "side"
	case FieldEntry:
		return "entry"
	case FieldTargets:
		return "targets"
	case FieldStop:
		return "stop"
	case FieldLeverage:
		return "leverage"
	default:
		return "none"
	}
}

// ParseField maps a config key to a Field.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(s) {
	case "side", "long", "short":
		return FieldSide, nil
	case "entry":
		return FieldEntry, nil
	case "targets", "target", "tp":
		return FieldTargets, nil
	case "stop", "sl":
		return FieldStop, nil
	case "leverage", "lev":
		return FieldLeverage, nil
	}
	return FieldNone, fmt.Errorf("unknown keyword field %q", s)
}

const (
	LocaleEN      = "en"
	LocaleTR      = "tr"
	LocaleMixed   = "mixed"
	LocaleUnknown = "unknown"
)

// Keyword is a literal phrase of one or more folded words.
// Buy/sell style words carry an Alt field used once a side is already known:
// "LONG ... buy 100" reads buy as an entry cue, "SHORT ... sell 90" as a target cue.
type Keyword struct {
	Words  []string
	Field  Field
	Side   models.Side
	Alt    Field
	Locale string
}

// Pattern matches a single folded token, e.g. tp2, hedef3, 20x.
// When Embedded is set the digits inside the token are the field value.
type Pattern struct {
	Re       *regexp.Regexp
	Field    Field
	Locale   string
	Embedded bool
}

// Lexicon is read-only after construction and safe for concurrent use.
type Lexicon struct {
	keywords     []Keyword
	patterns     []Pattern
	blacklist    map[string]struct{}
	quotes       []string
	defaultQuote string
	multipliers  map[string]float64
	number       *regexp.Regexp
	labelSkip    *regexp.Regexp
}

// Config extends the built-in tables. Keys of Extra are field names.
type Config struct {
	Extra         map[string][]string
	Blacklist     []string
	QuoteAsset    string
	QuoteSuffixes []string
}

func kw(words string, field Field, locale string) Keyword {
	return Keyword{Words: strings.Fields(words), Field: field, Locale: locale}
}

func sideKw(words string, side models.Side, alt Field, locale string) Keyword {
	return Keyword{Words: strings.Fields(words), Field: FieldSide, Side: side, Alt: alt, Locale: locale}
}

func defaultKeywords() []Keyword {
	return []Keyword{
		sideKw("long", models.SideLong, FieldNone, LocaleEN),
		sideKw("buy", models.SideLong, FieldEntry, LocaleEN),
		sideKw("al", models.SideLong, FieldEntry, LocaleTR),
		sideKw("alim", models.SideLong, FieldEntry, LocaleTR),
		sideKw("alis", models.SideLong, FieldEntry, LocaleTR),
		sideKw("short", models.SideShort, FieldNone, LocaleEN),
		sideKw("sell", models.SideShort, FieldTargets, LocaleEN),
		sideKw("sat", models.SideShort, FieldTargets, LocaleTR),
		sideKw("satis", models.SideShort, FieldTargets, LocaleTR),
		sideKw("kisa", models.SideShort, FieldNone, LocaleTR),

		kw("entry", FieldEntry, LocaleEN),
		kw("entries", FieldEntry, LocaleEN),
		kw("enter", FieldEntry, LocaleEN),
		kw("entry zone", FieldEntry, LocaleEN),
		kw("entry price", FieldEntry, LocaleEN),
		kw("buy zone", FieldEntry, LocaleEN),
		kw("giris", FieldEntry, LocaleTR),
		kw("giris bolgesi", FieldEntry, LocaleTR),
		kw("alim bolgesi", FieldEntry, LocaleTR),

		kw("take profit", FieldTargets, LocaleEN),
		kw("tps", FieldTargets, LocaleEN),
		kw("kar al", FieldTargets, LocaleTR),

		kw("sl", FieldStop, LocaleEN),
		kw("stop", FieldStop, LocaleEN),
		kw("stoploss", FieldStop, LocaleEN),
		kw("stop loss", FieldStop, LocaleEN),
		kw("zarar durdur", FieldStop, LocaleTR),
		kw("zarar kes", FieldStop, LocaleTR),
		kw("stop zarar", FieldStop, LocaleTR),

		kw("lev", FieldLeverage, LocaleEN),
		kw("leverage", FieldLeverage, LocaleEN),
		kw("kaldirac", FieldLeverage, LocaleTR),
	}
}

func defaultPatterns() []Pattern {
	return []Pattern{
		{Re: regexp.MustCompile(`^tp\d{0,2}$`), Field: FieldTargets, Locale: LocaleEN},
		{Re: regexp.MustCompile(`^targets?\d{0,2}$`), Field: FieldTargets, Locale: LocaleEN},
		{Re: regexp.MustCompile(`^hedef(ler)?\d{0,2}$`), Field: FieldTargets, Locale: LocaleTR},
		{Re: regexp.MustCompile(`^\d{1,3}x$`), Field: FieldLeverage, Embedded: true},
		{Re: regexp.MustCompile(`^x\d{1,3}$`), Field: FieldLeverage, Embedded: true},
	}
}

var defaultBlacklist = []string{
	// quote assets
	"usdt", "usd", "usdc", "busd", "tusd", "fdusd", "try",
	// trade vocabulary
	"target", "targets", "tp", "tps", "sl", "long", "short", "entry", "stop", "loss", "profit",
	"leverage", "lev", "cross", "isolated", "margin", "limit", "market", "price", "zone",
	"spot", "futures", "perp", "perpetual", "risk", "buy", "sell", "hit", "done", "closed",
	"reached", "all", "ath", "dca", "roi", "pnl", "now", "new", "update", "signal", "signals",
	// exchanges
	"binance", "bybit", "okx", "kucoin", "mexc", "bitget", "gate", "huobi", "htx", "bingx",
	// marketing
	"vip", "free", "premium", "channel", "alert", "pump", "trade", "trading", "crypto", "coin", "coins",
	// coin full names
	"bitcoin", "ethereum", "solana", "ripple", "cardano", "dogecoin",
	// turkish
	"yeni", "sinyal", "hedef", "hedefler", "giris", "zarar", "durdur", "kes", "piyasa", "alim",
	"satim", "satis", "kar", "bolge", "bolgesi", "fiyat", "kanal", "vadeli", "kaldirac",
	// english filler
	"the", "and", "for", "with", "at", "to", "in", "on", "of", "is", "it", "be", "get", "set",
	"use", "our", "you", "this", "that", "from", "will", "are",
}

// Default returns the built-in lexicon.
func Default() *Lexicon {
	l, err := New(Config{})
	if err != nil {
		panic(err)
	}
	return l
}

// New builds a lexicon from the built-in tables plus cfg.
func New(cfg Config) (*Lexicon, error) {
	l := &Lexicon{
		keywords:     defaultKeywords(),
		patterns:     defaultPatterns(),
		blacklist:    make(map[string]struct{}, len(defaultBlacklist)),
		defaultQuote: "USDT",
		quotes:       []string{"USDT", "USDC", "BUSD", "FDUSD", "USD"},
		multipliers:  map[string]float64{"k": 1000, "kilo": 1000, "bin": 1000},
		number:       regexp.MustCompile(`(?i)([+-]?)(\d+(?:[.,]\d+)?)(?:\s*(kilo|bin|k)|(x))?(?:$|[^\p{L}\p{N}])`),
		labelSkip:    regexp.MustCompile(`^\s*\d{1,2}\s*[:)]`),
	}
	if cfg.QuoteAsset != "" {
		l.defaultQuote = strings.ToUpper(cfg.QuoteAsset)
	}
	if len(cfg.QuoteSuffixes) > 0 {
		l.quotes = l.quotes[:0]
		for _, q := range cfg.QuoteSuffixes {
			l.quotes = append(l.quotes, strings.ToUpper(q))
		}
	}
	// longest suffix first so BUSD is not read as ...USD
	sort.SliceStable(l.quotes, func(i, j int) bool { return len(l.quotes[i]) > len(l.quotes[j]) })

	for field, words := range cfg.Extra {
		f, err := ParseField(field)
		if err != nil {
			return nil, err
		}
		for _, w := range words {
			k := Keyword{Words: strings.Fields(Fold(w)), Field: f}
			if f == FieldSide {
				k.Side = models.SideLong
				if strings.EqualFold(field, "short") {
					k.Side = models.SideShort
				}
			}
			if len(k.Words) > 0 {
				l.keywords = append(l.keywords, k)
			}
		}
	}
	// longest phrase first for greedy matching
	sort.SliceStable(l.keywords, func(i, j int) bool { return len(l.keywords[i].Words) > len(l.keywords[j].Words) })

	for _, w := range defaultBlacklist {
		l.blacklist[w] = struct{}{}
	}
	for _, w := range cfg.Blacklist {
		l.blacklist[Fold(w)] = struct{}{}
	}
	for _, k := range l.keywords {
		for _, w := range k.Words {
			l.blacklist[w] = struct{}{}
		}
	}
	return l, nil
}

// MatchPhrase returns the longest keyword whose words prefix words.
func (l *Lexicon) MatchPhrase(words []string) (Keyword, bool) {
	for _, k := range l.keywords {
		if len(k.Words) > len(words) {
			continue
		}
		ok := true
		for i, w := range k.Words {
			if words[i] != w {
				ok = false
				break
			}
		}
		if ok {
			return k, true
		}
	}
	return Keyword{}, false
}

// MatchToken returns the pattern matching a single folded token.
func (l *Lexicon) MatchToken(word string) (Pattern, bool) {
	for _, p := range l.patterns {
		if p.Re.MatchString(word) {
			return p, true
		}
	}
	return Pattern{}, false
}

// IsBlacklisted reports whether a folded word can never be a ticker.
func (l *Lexicon) IsBlacklisted(word string) bool {
	_, ok := l.blacklist[word]
	return ok
}

// QuoteAssets returns the recognized quote suffixes, longest first.
func (l *Lexicon) QuoteAssets() []string { return append([]string(nil), l.quotes...) }

// DefaultQuote is appended to symbols that carry no quote suffix.
func (l *Lexicon) DefaultQuote() string { return l.defaultQuote }

// Multiplier returns the magnitude for a suffix such as k or bin.
func (l *Lexicon) Multiplier(suffix string) (float64, bool) {
	m, ok := l.multipliers[strings.ToLower(suffix)]
	return m, ok
}

// NumberPattern is the single numeric grammar. Submatches: sign, digits,
// magnitude suffix, x suffix.
func (l *Lexicon) NumberPattern() *regexp.Regexp { return l.number }

// LabelPattern matches list labels such as "1:" or "2)" at the start of a slice.
func (l *Lexicon) LabelPattern() *regexp.Regexp { return l.labelSkip }

