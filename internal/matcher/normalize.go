package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CanonicalQuote replaces every quote-mark variant during normalization.
const CanonicalQuote = "'"

var quoteReplacer = strings.NewReplacer(
	`"`, CanonicalQuote,
	"“", CanonicalQuote,
	"”", CanonicalQuote,
	"„", CanonicalQuote,
	"«", CanonicalQuote,
	"»", CanonicalQuote,
	"‘", CanonicalQuote,
	"’", CanonicalQuote,
	"‚", CanonicalQuote,
	"`", CanonicalQuote,
)

// Normalize canonicalizes a label for comparison: whitespace runs collapse to
// one space, trailing periods go, the text is lowercased and quote marks are
// unified. Normalize(Normalize(s)) == Normalize(s).
func Normalize(label string) string {
	s := strings.Join(strings.Fields(label), " ")
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	// Casers keep state, so each call gets its own.
	s = cases.Lower(language.Und).String(s)
	return quoteReplacer.Replace(s)
}

type tokenSet map[string]struct{}

func tokens(normalized string) tokenSet {
	fields := strings.Fields(normalized)
	set := make(tokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// overlap is |a ∩ b| / max(|a|, |b|), zero when either side is empty.
func overlap(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	common := 0
	for w := range small {
		if _, ok := large[w]; ok {
			common++
		}
	}
	return float64(common) / float64(len(large))
}

// Similarity returns the word-overlap score of two labels in [0,1].
// Both labels are normalized first.
func Similarity(a, b string) float64 {
	return overlap(tokens(Normalize(a)), tokens(Normalize(b)))
}
