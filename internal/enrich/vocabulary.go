package enrich

import (
	"sort"
	"strings"

	"github.com/ppiankov/reqtrace/internal/regulation"
)

// Vocabulary maps synonyms to canonical terms. Canonical terms map to themselves.
type Vocabulary struct {
	lookup   map[string]string
	maxWords int
}

// NewVocabulary builds a vocabulary from canonical → synonyms. All terms are
// compared in regulation.Normalize form.
func NewVocabulary(terms map[string][]string) *Vocabulary {
	v := &Vocabulary{lookup: make(map[string]string), maxWords: 1}

	// Sorted so that a synonym listed under two canonicals resolves the same way every run
	canonicals := make([]string, 0, len(terms))
	for c := range terms {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	for _, c := range canonicals {
		canonical := regulation.Normalize(c)
		if canonical == "" {
			continue
		}
		v.add(canonical, canonical)
		for _, syn := range terms[c] {
			v.add(regulation.Normalize(syn), canonical)
		}
	}
	return v
}

func (v *Vocabulary) add(phrase, canonical string) {
	if phrase == "" {
		return
	}
	if _, exists := v.lookup[phrase]; exists {
		return
	}
	v.lookup[phrase] = canonical
	if n := len(strings.Fields(phrase)); n > v.maxWords {
		v.maxWords = n
	}
}

// Canonical returns the canonical term for an exact phrase
func (v *Vocabulary) Canonical(phrase string) (string, bool) {
	c, ok := v.lookup[regulation.Normalize(phrase)]
	return c, ok
}

// Find returns the canonical term of the longest known phrase inside text
func (v *Vocabulary) Find(text string) (string, bool) {
	tokens := strings.Fields(regulation.Normalize(text))
	for n := min(v.maxWords, len(tokens)); n > 0; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			if c, ok := v.lookup[strings.Join(tokens[i:i+n], " ")]; ok {
				return c, true
			}
		}
	}
	return "", false
}

// prefix matches the longest known phrase starting at tokens[0] and
// reports how many tokens it consumed
func (v *Vocabulary) prefix(tokens []string) (string, int) {
	for n := min(v.maxWords, len(tokens)); n > 0; n-- {
		if c, ok := v.lookup[strings.Join(tokens[:n], " ")]; ok {
			return c, n
		}
	}
	return "", 0
}
