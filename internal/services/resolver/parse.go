package resolver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"SignalBT/internal/domain/models"
)

var (
	thinkRe         = regexp.MustCompile(`(?is)<think(?:ing)?>.*?</think(?:ing)?>`)
	thinkOpenRe     = regexp.MustCompile(`(?i)<think(?:ing)?>`)
	thinkCloseRe    = regexp.MustCompile(`(?i)</think(?:ing)?>`)
	fenceRe         = regexp.MustCompile("```[a-zA-Z]*")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	errNoJSON          = errors.New("no json object in response")
	errUnclosedThink   = errors.New("unterminated reasoning block")
	errEmptyResponse   = errors.New("empty response")
	errUnexpectedShape = errors.New("json object has no signal fields")
)

// Numbers accepts a JSON number, a numeric string, null or an array of
// those, and keeps every value as a raw token for the shared number grammar.
type Numbers []string

func (n *Numbers) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	out := Numbers{}
	var add func(any) error
	add = func(x any) error {
		switch t := x.(type) {
		case nil:
		case json.Number:
			out = append(out, t.String())
		case string:
			out = append(out, splitNumbers(t)...)
		case []any:
			for _, e := range t {
				if err := add(e); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("unexpected %T in numeric field", x)
		}
		return nil
	}
	if err := add(v); err != nil {
		return err
	}
	*n = out
	return nil
}

// splitNumbers splits "100-105" and "100 / 105" style lists. A dash only
// separates two digits, so "-5" keeps its sign.
func splitNumbers(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '/' }) {
		start := 0
		for i := 1; i < len(f)-1; i++ {
			if f[i] == '-' && isDigit(f[i-1]) && isDigit(f[i+1]) {
				out = append(out, f[start:i])
				start = i + 1
			}
		}
		if tail := strings.TrimSuffix(f[start:], "-"); tail != "" {
			out = append(out, tail)
		}
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Payload is the schema the completion backend is instructed to emit.
type Payload struct {
	Signal     *bool   `json:"signal,omitempty"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Entry      Numbers `json:"entry"`
	TP         Numbers `json:"tp"`
	SL         Numbers `json:"sl"`
	Leverage   Numbers `json:"leverage"`
	Confidence Numbers `json:"confidence"`
}

// CleanResponse strips reasoning blocks and code fences and returns the text
// between the first '{' and the last '}' with trailing commas removed.
func CleanResponse(raw string) (string, error) {
	s := thinkRe.ReplaceAllString(raw, "")
	if loc := thinkCloseRe.FindAllStringIndex(s, -1); len(loc) > 0 {
		s = s[loc[len(loc)-1][1]:]
	}
	if thinkOpenRe.MatchString(s) {
		return "", errUnclosedThink
	}
	s = strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
	if s == "" {
		return "", errEmptyResponse
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", errNoJSON
	}
	return trailingCommaRe.ReplaceAllString(s[start:end+1], "$1"), nil
}

// ParseResponse is the pure step from response text to payload or failure.
func ParseResponse(raw string) (Payload, *models.Failure) {
	var p Payload
	body, err := CleanResponse(raw)
	if err != nil {
		return p, models.NewFailure(models.ReasonMalformedOutput, err)
	}
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return p, models.NewFailure(models.ReasonMalformedOutput, fmt.Errorf("decode: %w", err))
	}
	if p.Signal != nil && !*p.Signal {
		return p, models.NewFailure(models.ReasonNoSignal, nil)
	}
	if p.Symbol == "" && p.Side == "" && len(p.Entry) == 0 {
		return p, models.NewFailure(models.ReasonNoSignal, errUnexpectedShape)
	}
	return p, nil
}
