// Package matcher aligns labeled source entries with labeled target rows by
// exact, then word-overlap, comparison of normalized labels.
package matcher

import (
	"sort"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// Threshold is the lowest fuzzy score accepted as a match.
const Threshold = 0.7

// ErrInvalidLabel is returned for labels that are not valid UTF-8 text.
var ErrInvalidLabel = errors.New("invalid label")

// SourceEntry is a labeled item to be placed, carrying an opaque caller ID.
type SourceEntry[T any] struct {
	ID    T
	Label string
}

// TargetEntry is a labeled destination row.
type TargetEntry[R any] struct {
	Label string
	Row   R
}

// Candidate is a target row together with its normalized label.
type Candidate[R any] struct {
	Label string
	Row   R
}

// Match pairs a source entry with the target row chosen for it.
type Match[T, R any] struct {
	Source     SourceEntry[T]
	Target     Candidate[R]
	Confidence float64
	Exact      bool
}

// Unmatched is a source entry for which no target reached Threshold.
// Best is nil when no target shared a single word with it.
type Unmatched[T, R any] struct {
	Source     SourceEntry[T]
	Best       *Candidate[R]
	Confidence float64
}

// Result holds matches and unmatched entries, both in source order.
type Result[T, R any] struct {
	Matches   []Match[T, R]
	Unmatched []Unmatched[T, R]
}

type indexedTarget[R any] struct {
	label string
	row   R
	words tokenSet
}

// MatchAll places every source entry onto the target index, which maps
// normalized labels to rows. An exact key wins with confidence 1.0; otherwise
// the best word-overlap score is taken, ties going to the lexicographically
// smallest label, and accepted when it reaches Threshold.
func MatchAll[T, R any](sources []SourceEntry[T], targets map[string]R) (Result[T, R], error) {
	var result Result[T, R]

	ordered := make([]indexedTarget[R], 0, len(targets))
	for label, row := range targets {
		if !utf8.ValidString(label) {
			return result, errors.Wrapf(ErrInvalidLabel, "target label %q", label)
		}
		ordered = append(ordered, indexedTarget[R]{label: label, row: row, words: tokens(label)})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].label < ordered[j].label })

	for i, src := range sources {
		if !utf8.ValidString(src.Label) {
			return Result[T, R]{}, errors.Wrapf(ErrInvalidLabel, "source entry %d: %q", i, src.Label)
		}
		norm := Normalize(src.Label)

		if norm != "" {
			if row, ok := targets[norm]; ok {
				result.Matches = append(result.Matches, Match[T, R]{
					Source:     src,
					Target:     Candidate[R]{Label: norm, Row: row},
					Confidence: 1.0,
					Exact:      true,
				})
				continue
			}
		}

		words := tokens(norm)
		var best *indexedTarget[R]
		bestScore := 0.0
		for j := range ordered {
			score := overlap(words, ordered[j].words)
			if score > bestScore {
				bestScore = score
				best = &ordered[j]
			}
		}

		if best != nil && bestScore >= Threshold {
			result.Matches = append(result.Matches, Match[T, R]{
				Source:     src,
				Target:     Candidate[R]{Label: best.label, Row: best.row},
				Confidence: bestScore,
			})
			continue
		}

		miss := Unmatched[T, R]{Source: src, Confidence: bestScore}
		if best != nil {
			miss.Best = &Candidate[R]{Label: best.label, Row: best.row}
		}
		result.Unmatched = append(result.Unmatched, miss)
	}

	return result, nil
}

// Shadowed records a target row whose normalized label was reused by a later row.
type Shadowed[R any] struct {
	Label string
	Row   R
	By    R
}

// IndexTargets builds the normalized label -> row index. Empty labels are
// skipped; when two rows normalize to the same label the later one wins and
// the earlier one is reported as shadowed.
func IndexTargets[R any](entries []TargetEntry[R]) (map[string]R, []Shadowed[R]) {
	index := make(map[string]R, len(entries))
	var shadowed []Shadowed[R]
	for _, e := range entries {
		norm := Normalize(e.Label)
		if norm == "" {
			continue
		}
		if prev, ok := index[norm]; ok {
			shadowed = append(shadowed, Shadowed[R]{Label: norm, Row: prev, By: e.Row})
		}
		index[norm] = e.Row
	}
	return index, shadowed
}
