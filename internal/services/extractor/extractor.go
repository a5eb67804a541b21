// Package extractor locates keyword anchors in a signal message and slices the
// text between them into typed candidate fields. It never fails: a missing
// field is a nil pointer or an empty token list.
package extractor

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"SignalBT/internal/domain/models"
	"SignalBT/internal/lexicon"
)

// DefaultLineCap bounds a trailing capture when no later anchor exists.
const DefaultLineCap = 2

// Span is one keyword anchor in the cleaned text.
type Span struct {
	Field    lexicon.Field
	Start    int
	End      int
	Keyword  string
	Side     models.Side
	Locale   string
	Embedded bool
}

// Field is the raw slice for one category and the numeric tokens found in it.
type Field struct {
	Raw    string
	Start  int
	End    int
	Tokens []string
}

// CandidateFields is the transient result of Extract. Offsets refer to Text.
type CandidateFields struct {
	Text          string
	Spans         []Span
	Symbol        string
	Side          models.Side
	SideAmbiguous bool
	Entry         *Field
	Targets       *Field
	Stop          *Field
	Leverage      *Field

	TargetsPercent bool
	Locale         string
}

// Extractor is stateless apart from the immutable lexicon.
type Extractor struct {
	lex     *lexicon.Lexicon
	lineCap int
}

type Option func(*Extractor)

func WithLineCap(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.lineCap = n
		}
	}
}

func New(lex *lexicon.Lexicon, opts ...Option) *Extractor {
	if lex == nil {
		lex = lexicon.Default()
	}
	e := &Extractor{lex: lex, lineCap: DefaultLineCap}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type token struct {
	start  int
	end    int
	folded string
}

type numTok struct {
	start   int
	raw     string
	percent bool
}

// Extract runs the anchor scan over text.
func (e *Extractor) Extract(text string) CandidateFields {
	clean := Clean(text)
	toks := tokenize(clean)
	spans := e.anchors(clean, toks)

	cf := CandidateFields{Text: clean, Spans: spans}
	cf.Side, cf.SideAmbiguous = resolveSide(spans)
	cf.Symbol = e.detectSymbol(clean, spans)
	cf.Locale = detectLocale(clean, spans)

	cf.Entry = e.firstAnchor(clean, spans, lexicon.FieldEntry)
	if cf.Entry == nil {
		cf.Entry = e.entryFromSide(clean, spans)
	}
	cf.Targets, cf.TargetsPercent = e.targets(clean, spans)
	if cf.Stop = e.collect(clean, spans, lexicon.FieldStop); cf.Stop != nil && len(cf.Stop.Tokens) > 1 {
		cf.Stop.Tokens = cf.Stop.Tokens[:1]
	}
	cf.Leverage = e.leverage(clean, spans)
	return cf
}

func tokenize(text string) []token {
	var toks []token
	start := -1
	for i, r := range text {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			toks = append(toks, token{start: start, end: i, folded: lexicon.Fold(text[start:i])})
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, token{start: start, end: len(text), folded: lexicon.Fold(text[start:])})
	}
	return toks
}

const maxPhrase = 4

// anchors produces the flat span list sorted by start offset.
func (e *Extractor) anchors(text string, toks []token) []Span {
	var spans []Span
	sideSeen := false
	for i := 0; i < len(toks); {
		words := []string{toks[i].folded}
		for j := i + 1; j < len(toks) && j-i < maxPhrase; j++ {
			gap := text[toks[j-1].end:toks[j].start]
			if strings.Trim(gap, " \t") != "" {
				break
			}
			words = append(words, toks[j].folded)
		}
		if k, ok := e.lex.MatchPhrase(words); ok {
			last := toks[i+len(k.Words)-1]
			sp := Span{
				Field:   k.Field,
				Start:   toks[i].start,
				End:     last.end,
				Keyword: text[toks[i].start:last.end],
				Side:    k.Side,
				Locale:  k.Locale,
			}
			if k.Field == lexicon.FieldSide {
				if sideSeen && k.Alt != lexicon.FieldNone {
					sp.Field, sp.Side = k.Alt, ""
				} else {
					sideSeen = true
				}
			}
			spans = append(spans, sp)
			i += len(k.Words)
			continue
		}
		if p, ok := e.lex.MatchToken(toks[i].folded); ok {
			spans = append(spans, Span{
				Field:    p.Field,
				Start:    toks[i].start,
				End:      toks[i].end,
				Keyword:  text[toks[i].start:toks[i].end],
				Locale:   p.Locale,
				Embedded: p.Embedded,
			})
		}
		i++
	}
	return spans
}

func resolveSide(spans []Span) (models.Side, bool) {
	var side models.Side
	long, short := false, false
	for _, s := range spans {
		if s.Field != lexicon.FieldSide {
			continue
		}
		if side == "" {
			side = s.Side
		}
		long = long || s.Side == models.SideLong
		short = short || s.Side == models.SideShort
	}
	return side, long && short
}

// region returns the candidate slice after anchor idx: up to the nearest
// later anchor of another category, else capped by the line limit.
func (e *Extractor) region(text string, spans []Span, idx int) (int, int) {
	a := spans[idx]
	for _, s := range spans[idx+1:] {
		if s.Start >= a.End && s.Field != a.Field {
			return a.End, s.Start
		}
	}
	return a.End, lineCapEnd(text, a.End, e.lineCap)
}

func lineCapEnd(text string, from, limit int) int {
	counted := 0
	pos := from
	for pos < len(text) {
		end := len(text)
		if nl := strings.IndexByte(text[pos:], '\n'); nl >= 0 {
			end = pos + nl
		}
		if strings.TrimSpace(text[pos:end]) != "" {
			counted++
		}
		if counted >= limit || end == len(text) {
			return end
		}
		pos = end + 1
	}
	return len(text)
}

func (e *Extractor) collect(text string, spans []Span, field lexicon.Field) *Field {
	f, nums := e.collectNums(text, spans, field)
	if f != nil {
		f.Tokens = dedupe(nums)
	}
	return f
}

// collectNums unions the numbers of every non-embedded anchor of field.
func (e *Extractor) collectNums(text string, spans []Span, field lexicon.Field) (*Field, []numTok) {
	var (
		f    *Field
		nums []numTok
		raws []string
	)
	for i, s := range spans {
		if s.Field != field || s.Embedded {
			continue
		}
		start, end := e.region(text, spans, i)
		if f == nil {
			f = &Field{Start: start}
		}
		if end > f.End {
			f.End = end
		}
		raws = append(raws, strings.TrimSpace(text[start:end]))
		nums = append(nums, e.numbers(text, start, end, spans)...)
	}
	if f != nil {
		f.Raw = strings.Join(raws, "\n")
	}
	return f, nums
}

// firstAnchor reads only the region of the first anchor of field, so later
// cues in free commentary cannot widen the range.
func (e *Extractor) firstAnchor(text string, spans []Span, field lexicon.Field) *Field {
	for i, s := range spans {
		if s.Field != field || s.Embedded {
			continue
		}
		start, end := e.region(text, spans, i)
		return &Field{
			Raw:    strings.TrimSpace(text[start:end]),
			Start:  start,
			End:    end,
			Tokens: dedupe(e.numbers(text, start, end, spans)),
		}
	}
	return nil
}

// targets switches to percent-relative mode only when every target token
// carries its own '%'. Otherwise "(+10%)" style annotations are dropped.
func (e *Extractor) targets(text string, spans []Span) (*Field, bool) {
	f, nums := e.collectNums(text, spans, lexicon.FieldTargets)
	if f == nil {
		return nil, false
	}
	var plain, pct []numTok
	for _, n := range nums {
		if n.percent {
			pct = append(pct, n)
		} else {
			plain = append(plain, n)
		}
	}
	if len(plain) == 0 && len(pct) > 0 {
		f.Tokens = dedupe(pct)
		return f, true
	}
	f.Tokens = dedupe(plain)
	return f, false
}

func (e *Extractor) entryFromSide(text string, spans []Span) *Field {
	for i, s := range spans {
		if s.Field != lexicon.FieldSide {
			continue
		}
		start, end := e.region(text, spans, i)
		nums := e.numbers(text, start, end, spans)
		if len(nums) == 0 {
			return nil
		}
		return &Field{Raw: strings.TrimSpace(text[start:end]), Start: start, End: end, Tokens: dedupe(nums)}
	}
	return nil
}

func (e *Extractor) leverage(text string, spans []Span) *Field {
	f, nums := e.collectNums(text, spans, lexicon.FieldLeverage)
	for _, s := range spans {
		if s.Field != lexicon.FieldLeverage || !s.Embedded {
			continue
		}
		if f == nil {
			f = &Field{Raw: s.Keyword, Start: s.Start, End: s.End}
		}
		nums = append(nums, numTok{start: s.Start, raw: s.Keyword})
	}
	if f == nil {
		return nil
	}
	f.Tokens = dedupe(nums)
	if len(f.Tokens) > 1 {
		f.Tokens = f.Tokens[:1]
	}
	return f
}

func dedupe(nums []numTok) []string {
	sort.SliceStable(nums, func(i, j int) bool { return nums[i].start < nums[j].start })
	out := make([]string, 0, len(nums))
	last := -1
	for _, n := range nums {
		if n.start == last {
			continue
		}
		last = n.start
		out = append(out, n.raw)
	}
	return out
}

// numbers scans text[start:end] with the shared numeric grammar.
func (e *Extractor) numbers(text string, start, end int, spans []Span) []numTok {
	seg := text[start:end]
	var out []numTok
	for _, m := range e.lex.NumberPattern().FindAllStringSubmatchIndex(seg, -1) {
		ds, de := start+m[4], start+m[5]
		lead := ds
		if m[3] > m[2] {
			lead = start + m[2]
		}
		if prevIsWord(text, lead) || insideSpan(spans, ds) || malformed(text, lead, de) {
			continue
		}
		if m[3] > m[2] && text[lead] == '-' && prevNonSpaceIsDigit(text, lead) {
			lead = ds
		}
		tail := de
		if m[7] > m[6] {
			tail = start + m[7]
		} else if m[9] > m[8] {
			tail = start + m[9]
		}
		if tail == de && isLabel(text, ds, de) {
			continue
		}
		out = append(out, numTok{start: ds, raw: text[lead:tail], percent: percentMarked(text, lead, tail)})
	}
	return out
}

// malformed reports a number glued to another by a second separator,
// as in "100.5.3".
func malformed(text string, lead, de int) bool {
	if lead >= 2 && isSep(text[lead-1]) && isDigit(text[lead-2]) {
		return true
	}
	return de+1 < len(text) && isSep(text[de]) && isDigit(text[de+1])
}

func isSep(b byte) bool { return b == '.' || b == ',' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// percentMarked reports a '%' written directly before or after the number.
// A '%' that follows another number, or precedes one, belongs to that number.
func percentMarked(text string, lead, tail int) bool {
	before := strings.TrimRight(text[:lead], " \t")
	if strings.HasSuffix(before, "%") {
		rest := before[:len(before)-1]
		if rest == "" || !isDigit(rest[len(rest)-1]) {
			return true
		}
	}
	after := strings.TrimLeft(text[tail:], " \t")
	return strings.HasPrefix(after, "%") && (len(after) == 1 || !isDigit(after[1]))
}

func prevIsWord(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func prevNonSpaceIsDigit(text string, i int) bool {
	s := strings.TrimRight(text[:i], " \t")
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsDigit(r)
}

func insideSpan(spans []Span, pos int) bool {
	for _, s := range spans {
		if pos >= s.Start && pos < s.End {
			return true
		}
	}
	return false
}

// isLabel reports list labels such as "1:" or "2)" followed by a value on the same line.
func isLabel(text string, ds, de int) bool {
	if de-ds > 2 || strings.ContainsAny(text[ds:de], ".,") {
		return false
	}
	rest := strings.TrimLeft(text[de:], " \t")
	if rest == "" || (rest[0] != ':' && rest[0] != ')') {
		return false
	}
	line := rest[1:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	return strings.IndexFunc(line, unicode.IsDigit) >= 0
}

func detectLocale(text string, spans []Span) string {
	tr := lexicon.HasTurkishLetters(text)
	en := false
	for _, s := range spans {
		switch s.Locale {
		case lexicon.LocaleTR:
			tr = true
		case lexicon.LocaleEN:
			en = true
		}
	}
	switch {
	case tr && en:
		return lexicon.LocaleMixed
	case tr:
		return lexicon.LocaleTR
	case en:
		return lexicon.LocaleEN
	}
	return lexicon.LocaleUnknown
}
