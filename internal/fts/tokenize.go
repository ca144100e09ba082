// Package fts normalizes search phrases and indexed text into a
// deduplicated sequence of lowercased, diacritic-stripped, word-split terms
// shared by every full-text search resolution strategy.
package fts

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes runes (NFD), drops nonspacing marks (diacritics),
// then recomposes (NFC) so downstream case-folding and splitting see plain
// base letters.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokenize lowercases phrase, strips diacritics, splits on non-word
// boundaries, and removes duplicates while preserving first-occurrence
// order. Empty input yields nil.
func Tokenize(phrase string) []string {
	if phrase == "" {
		return nil
	}

	folded, _, err := transform.String(stripMarks, phrase)
	if err != nil {
		folded = phrase
	}
	folded = strings.ToLower(folded)

	var tokens []string
	seen := make(map[string]struct{})
	var b strings.Builder

	flush := func() {
		if b.Len() == 0 {
			return
		}
		tok := b.String()
		b.Reset()
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}
