package template

import (
	"regexp"
	"strconv"
)

// Placeholder is one ordinal variable occurrence in a text fragment, e.g.
// {{2}} at byte offset 10.
type Placeholder struct {
	Ordinal int
	Raw     string
	Offset  int
}

// End returns the byte offset just past the closing braces.
func (p Placeholder) End() int {
	return p.Offset + len(p.Raw)
}

var (
	placeholderPattern = regexp.MustCompile(`\{\{(\d+)\}\}`)
	braceTokenPattern  = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
)

// ScanPlaceholders returns every well-formed ordinal placeholder in text, in
// order of appearance. Text without placeholders yields an empty slice.
// Tokens with non-digit content are not captured here; the structural
// validator reports them, keeping this a pure lexical scan.
func ScanPlaceholders(text string) []Placeholder {
	matches := placeholderPattern.FindAllStringSubmatchIndex(text, -1)
	placeholders := make([]Placeholder, 0, len(matches))

	for _, m := range matches {
		ordinal, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		placeholders = append(placeholders, Placeholder{
			Ordinal: ordinal,
			Raw:     text[m[0]:m[1]],
			Offset:  m[0],
		})
	}

	return placeholders
}

// braceToken is any {{...}} occurrence, well-formed or not.
type braceToken struct {
	Content string
	Raw     string
	Offset  int
}

func scanBraceTokens(text string) []braceToken {
	matches := braceTokenPattern.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]braceToken, 0, len(matches))

	for _, m := range matches {
		tokens = append(tokens, braceToken{
			Content: text[m[2]:m[3]],
			Raw:     text[m[0]:m[1]],
			Offset:  m[0],
		})
	}

	return tokens
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// VariableCount returns the number of distinct ordinals referenced by text.
func VariableCount(text string) int {
	seen := make(map[int]struct{})
	for _, p := range ScanPlaceholders(text) {
		seen[p.Ordinal] = struct{}{}
	}
	return len(seen)
}
