package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"surveyXfer/internal/logger"
	"surveyXfer/internal/matcher"
	"surveyXfer/internal/survey"

	"github.com/cockroachdb/errors"
)

// Override origins.
const (
	OriginManual = "manual"
	OriginAI     = "ai"
)

// Override pins a source question to a target row, or marks it ignored.
type Override struct {
	SourceLabel string  `json:"source_label"`
	TargetRow   int     `json:"target_row,omitempty"`
	TargetLabel string  `json:"target_label,omitempty"`
	IsIgnored   bool    `json:"is_ignored"`
	Origin      string  `json:"origin"`
	Confidence  float64 `json:"confidence"`
}

// OverrideFile holds all overrides, keyed by normalized source label.
type OverrideFile struct {
	Overrides []Override `json:"overrides"`
}

// SaveToFile saves the overrides to a JSON file
func (of *OverrideFile) SaveToFile(path string) error {
	data, err := json.MarshalIndent(of, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode overrides")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create overrides directory")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "failed to write overrides")
}

// LoadFromFile loads overrides from a JSON file. A missing file yields an
// empty set.
func LoadFromFile(path string) (*OverrideFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &OverrideFile{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read overrides %s", path)
	}

	var of OverrideFile
	if err := json.Unmarshal(data, &of); err != nil {
		return nil, errors.Wrapf(err, "failed to parse overrides %s", path)
	}
	return &of, nil
}

// Lookup finds the override for a source label.
func (of *OverrideFile) Lookup(label string) (Override, bool) {
	norm := matcher.Normalize(label)
	for _, o := range of.Overrides {
		if matcher.Normalize(o.SourceLabel) == norm {
			return o, true
		}
	}
	return Override{}, false
}

// Set adds o, replacing any override for the same source label.
func (of *OverrideFile) Set(o Override) {
	norm := matcher.Normalize(o.SourceLabel)
	for i, existing := range of.Overrides {
		if matcher.Normalize(existing.SourceLabel) == norm {
			of.Overrides[i] = o
			return
		}
	}
	of.Overrides = append(of.Overrides, o)
}

// Remove drops the override for a source label, if any.
func (of *OverrideFile) Remove(label string) {
	norm := matcher.Normalize(label)
	kept := of.Overrides[:0]
	for _, o := range of.Overrides {
		if matcher.Normalize(o.SourceLabel) != norm {
			kept = append(kept, o)
		}
	}
	of.Overrides = kept
}

// Result is the matcher output for survey questions placed on template rows.
type Result = matcher.Result[survey.Question, int]

// Apply resolves entries with an override: pinned ones become matches, ignored
// ones are returned separately. Overrides win over automatic fuzzy matches but
// never over exact ones. Matches stay in source column order.
//
// index is the current template question index. A pinned override follows its
// target label to wherever that label now lives; an override whose label or
// row is gone from the template is dropped and the entry stays as matched.
func Apply(res Result, of *OverrideFile, index map[string]int) (Result, []matcher.Unmatched[survey.Question, int]) {
	var out Result
	var ignored []matcher.Unmatched[survey.Question, int]

	labelOf := make(map[int]string, len(index))
	for label, row := range index {
		labelOf[row] = label
	}

	pin := func(src matcher.SourceEntry[survey.Question], o Override) (matcher.Match[survey.Question, int], bool) {
		var c matcher.Candidate[int]
		if o.TargetLabel != "" {
			label := matcher.Normalize(o.TargetLabel)
			row, ok := index[label]
			if !ok {
				logger.Warn("Override target label is no longer in the report",
					"source", src.Label, "target", o.TargetLabel, "saved_row", o.TargetRow)
				return matcher.Match[survey.Question, int]{}, false
			}
			if row != o.TargetRow {
				logger.Warn("Override target label moved", "source", src.Label,
					"target", o.TargetLabel, "saved_row", o.TargetRow, "row", row)
			}
			c = matcher.Candidate[int]{Label: label, Row: row}
		} else {
			label, ok := labelOf[o.TargetRow]
			if !ok {
				logger.Warn("Override target row has no question label", "source", src.Label, "row", o.TargetRow)
				return matcher.Match[survey.Question, int]{}, false
			}
			c = matcher.Candidate[int]{Label: label, Row: o.TargetRow}
		}
		return matcher.Match[survey.Question, int]{Source: src, Target: c, Confidence: o.Confidence}, true
	}

	for _, m := range res.Matches {
		o, ok := of.Lookup(m.Source.Label)
		switch {
		case !ok || m.Exact:
			out.Matches = append(out.Matches, m)
		case o.IsIgnored:
			ignored = append(ignored, matcher.Unmatched[survey.Question, int]{Source: m.Source, Confidence: m.Confidence})
		case o.TargetRow > 0:
			if pinned, ok := pin(m.Source, o); ok {
				m = pinned
			}
			out.Matches = append(out.Matches, m)
		default:
			out.Matches = append(out.Matches, m)
		}
	}

	for _, u := range res.Unmatched {
		o, ok := of.Lookup(u.Source.Label)
		switch {
		case !ok:
			out.Unmatched = append(out.Unmatched, u)
		case o.IsIgnored:
			ignored = append(ignored, u)
		case o.TargetRow > 0:
			if pinned, ok := pin(u.Source, o); ok {
				out.Matches = append(out.Matches, pinned)
			} else {
				out.Unmatched = append(out.Unmatched, u)
			}
		default:
			out.Unmatched = append(out.Unmatched, u)
		}
	}

	sort.SliceStable(out.Matches, func(i, j int) bool {
		return out.Matches[i].Source.ID.Column < out.Matches[j].Source.ID.Column
	})
	return out, ignored
}
