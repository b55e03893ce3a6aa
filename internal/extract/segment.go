package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Sentence is a candidate requirement span within one cleaned page
type Sentence struct {
	Text   string
	Offset int // byte offset in the cleaned page text
}

var (
	pageNumberLine = regexp.MustCompile(`^page\s*\d+`)
	bareNumberLine = regexp.MustCompile(`^\d+$`)
	dotLeaders     = regexp.MustCompile(`\.{3,}`)
	strayNumbers   = regexp.MustCompile(`\s*\d+\s*`)
	extraSpaces    = regexp.MustCompile(`\s{2,}`)
	verbCue        = regexp.MustCompile(`\b(is|are|has|have|shall|must|should|require|ensure|will)\b`)
)

const (
	minRequirementLen = 30
	maxRequirementLen = 350
	maxHeadingWords   = 6
)

// boilerplate marks front matter and legal notices rather than requirements
var boilerplate = []string{
	"acknowledgment", "preface", "contributors", "copyright", "license",
	"creative commons", "foundation", "trademark", "confidential",
	"methodology", "process framework", "catalog", "diagram",
}

var requirementKeywords = []string{
	"shall", "must", "should", "require", "ensure", "will",
	"system", "user", "data", "information system", "hipaa", "phi",
}

// CleanPage drops blank lines, "page N" lines and bare page numbers, and
// joins the rest with single spaces
func CleanPage(page string) string {
	var kept []string
	for _, line := range strings.Split(page, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if pageNumberLine.MatchString(strings.ToLower(line)) || bareNumberLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, " ")
}

// SplitSentences splits cleaned text after '.', '!' or '?' followed by whitespace
func SplitSentences(text string) []Sentence {
	var sentences []Sentence
	start := 0

	emit := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
		offset := start + len(raw) - len(trimmed)
		trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
		if trimmed != "" {
			sentences = append(sentences, Sentence{Text: trimmed, Offset: offset})
		}
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && isSpace(text[i+1]) {
				emit(i + 1)
				start = i + 1
			}
		}
	}
	if start < len(text) {
		emit(len(text))
	}

	return sentences
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// IsCleanRequirement reports whether a sentence reads like a requirement:
// the right length once dot leaders and stray numbers are removed, not a
// heading, no boilerplate, a verb cue and a requirement keyword.
func IsCleanRequirement(sentence string) bool {
	t := strings.TrimSpace(sentence)
	t = dotLeaders.ReplaceAllString(t, " ")
	t = strayNumbers.ReplaceAllString(t, " ")
	t = extraSpaces.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)

	if len(t) < minRequirementLen || len(t) > maxRequirementLen {
		return false
	}

	if len(strings.Fields(t)) <= maxHeadingWords && !strings.Contains(t, ".") {
		return false
	}

	lower := strings.ToLower(t)
	for _, k := range boilerplate {
		if strings.Contains(lower, k) {
			return false
		}
	}

	if !verbCue.MatchString(lower) {
		return false
	}

	for _, k := range requirementKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// dedupKey lower-cases, removes punctuation and collapses whitespace
func dedupKey(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
