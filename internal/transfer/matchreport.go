package transfer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

type MatchRecord struct {
	Column      int     `json:"column"`
	Header      string  `json:"header"`
	Row         int     `json:"row"`
	TargetLabel string  `json:"target_label"`
	Confidence  float64 `json:"confidence"`
	Exact       bool    `json:"exact"`
}

type UnmatchedRecord struct {
	Column     int     `json:"column"`
	Header     string  `json:"header"`
	BestRow    int     `json:"best_row,omitempty"`
	BestLabel  string  `json:"best_label,omitempty"`
	Confidence float64 `json:"confidence"`
}

type CollisionRecord struct {
	Row     int      `json:"row"`
	Label   string   `json:"label"`
	Headers []string `json:"headers"`
}

// MatchReport is the JSON summary written by the match command.
type MatchReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Matches     []MatchRecord     `json:"matches"`
	Unmatched   []UnmatchedRecord `json:"unmatched"`
	Ignored     []string          `json:"ignored"`
	Collisions  []CollisionRecord `json:"collisions"`
}

// NewMatchReport flattens an analysis for output.
func NewMatchReport(a *Analysis, now time.Time) MatchReport {
	r := MatchReport{
		GeneratedAt: now,
		Matches:     []MatchRecord{},
		Unmatched:   []UnmatchedRecord{},
		Ignored:     []string{},
		Collisions:  []CollisionRecord{},
	}
	for _, m := range a.Result.Matches {
		r.Matches = append(r.Matches, MatchRecord{
			Column:      m.Source.ID.Column,
			Header:      m.Source.Label,
			Row:         m.Target.Row,
			TargetLabel: m.Target.Label,
			Confidence:  m.Confidence,
			Exact:       m.Exact,
		})
	}
	for _, u := range a.Result.Unmatched {
		rec := UnmatchedRecord{Column: u.Source.ID.Column, Header: u.Source.Label, Confidence: u.Confidence}
		if u.Best != nil {
			rec.BestRow = u.Best.Row
			rec.BestLabel = u.Best.Label
		}
		r.Unmatched = append(r.Unmatched, rec)
	}
	for _, u := range a.Ignored {
		r.Ignored = append(r.Ignored, u.Source.Label)
	}
	for _, c := range a.Collisions {
		rec := CollisionRecord{Row: c.Row, Label: c.Label}
		for _, s := range c.Sources {
			rec.Headers = append(rec.Headers, s.Label)
		}
		r.Collisions = append(r.Collisions, rec)
	}
	return r
}

// SaveToFile writes the report as indented JSON.
func (r MatchReport) SaveToFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode match report")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create report directory")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "failed to write match report")
}
