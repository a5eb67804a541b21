package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	urlRe    = regexp.MustCompile(`(?i)(https?://|www\.|t\.me/)\S+`)
	spacesRe = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
)

// Clean removes links and pictographs and collapses horizontal whitespace.
// Line breaks are kept because the line cap depends on them; empty lines are dropped.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = urlRe.ReplaceAllString(text, " ")
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\r':
			return '\n'
		case isPictograph(r):
			return ' '
		case unicode.IsControl(r) && r != '\n' && r != '\t':
			return ' '
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.TrimSpace(spacesRe.ReplaceAllString(ln, " "))
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

func isPictograph(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF, // emoji blocks
		r >= 0x2600 && r <= 0x27BF, // misc symbols, dingbats
		r >= 0x2B00 && r <= 0x2BFF,
		r >= 0x1F1E6 && r <= 0x1F1FF, // flags
		r == 0x200D, r == 0xFE0F, r == 0xFE0E, r == 0x20E3:
		return true
	}
	return unicode.Is(unicode.So, r)
}
