package regulation

import (
	"fmt"
	"strings"
	"unicode"
)

// MatchMode selects how keywords are compared against requirement text
type MatchMode string

const (
	MatchSubstring MatchMode = "substring" // keyword anywhere, even inside a word
	MatchWord      MatchMode = "word"      // keyword on whole-word boundaries
	MatchStem      MatchMode = "stem"      // whole words after light suffix stemming
)

// ParseMatchMode validates a configured match mode. Empty means word.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchWord:
		return MatchWord, nil
	case MatchSubstring:
		return MatchSubstring, nil
	case MatchStem:
		return MatchStem, nil
	}
	return "", fmt.Errorf("unknown match mode %q (want substring, word or stem)", s)
}

// Normalize lower-cases s, turns punctuation into spaces and collapses whitespace
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Match returns the names of regulations with at least one keyword in text,
// in catalog order
func (c *Catalog) Match(text string, mode MatchMode) []string {
	norm := Normalize(text)
	if norm == "" {
		return []string{}
	}

	var haystack string
	switch mode {
	case MatchSubstring:
		haystack = norm
	case MatchStem:
		haystack = " " + stemPhrase(norm) + " "
	default:
		haystack = " " + norm + " "
	}

	matched := []string{}
	for i, r := range c.regulations {
		for _, kw := range c.keywords[i] {
			if containsKeyword(haystack, kw, mode) {
				matched = append(matched, r.Name)
				break
			}
		}
	}
	return matched
}

func containsKeyword(haystack, kw string, mode MatchMode) bool {
	switch mode {
	case MatchSubstring:
		return strings.Contains(haystack, kw)
	case MatchStem:
		return strings.Contains(haystack, " "+stemPhrase(kw)+" ")
	default:
		return strings.Contains(haystack, " "+kw+" ")
	}
}

func stemPhrase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = Stem(f)
	}
	return strings.Join(fields, " ")
}

// suffixes are tried longest first; the remaining stem must keep at least three letters
var suffixes = []string{
	"ations", "ation", "ments", "ment", "ings", "ing", "ies", "ied",
	"ers", "er", "ed", "s",
}

// Stem strips one common English inflectional suffix from a normalized word,
// then a trailing "e", so "stores", "stored" and "storing" share a stem.
// Words of four letters or fewer are returned unchanged.
func Stem(word string) string {
	if len(word) <= 4 {
		return word
	}
	return dropFinalE(stripSuffix(word))
}

func stripSuffix(word string) string {
	for _, suf := range suffixes {
		if !strings.HasSuffix(word, suf) {
			continue
		}
		base := word[:len(word)-len(suf)]
		if len(base) < 3 {
			continue
		}
		switch suf {
		case "ies", "ied":
			return base + "y"
		case "s":
			// "access", "process"
			if strings.HasSuffix(base, "s") {
				return word
			}
		}
		return base
	}
	return word
}

func dropFinalE(s string) string {
	if len(s) > 4 && strings.HasSuffix(s, "e") {
		return s[:len(s)-1]
	}
	return s
}
