// Package moderation censors message bodies before they reach the room
// log. Matching is resistant to casing, spacing and punctuation tricks.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator holds a compiled Aho-Corasick automaton over the normalized
// word list. Safe for concurrent use once built.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// mapping relates the normalized text the automaton searches to the rune
// positions of the original body, so masking preserves spacing.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator compiles the automaton from the given word list.
func NewModerator(words []string, replacement rune) (Moderator, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize([]rune(word)).normalized
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, replacement: replacement}, nil
}

// Censor masks every forbidden span of the body, character by character,
// keeping untouched runes in place.
func (m Moderator) Censor(body string) string {
	mapped := normalize([]rune(body))
	if len(mapped.normalized) == 0 {
		return body
	}

	spans := m.matcher.MultiPatternSearch(mapped.normalized, false)
	if len(spans) == 0 {
		return body
	}

	masked := []rune(body)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapped.origIdx) {
			continue
		}
		for i := mapped.origIdx[start]; i <= mapped.origIdx[end-1]; i++ {
			masked[i] = m.replacement
		}
	}
	return string(masked)
}

// normalize lowercases the input and strips punctuation, spacing and
// symbols, recording where each surviving rune came from.
func normalize(input []rune) mapping {
	out := mapping{
		normalized: make([]rune, 0, len(input)),
		origIdx:    make([]int, 0, len(input)),
	}
	for i, r := range input {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out.normalized = append(out.normalized, unicode.ToLower(r))
		out.origIdx = append(out.origIdx, i)
	}
	return out
}
