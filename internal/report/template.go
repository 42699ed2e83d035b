// Package report reads the summary report template the survey is copied into.
package report

import (
	"strings"
	"surveyXfer/internal/config"
	"surveyXfer/internal/excel"
	"surveyXfer/internal/matcher"
)

// Template is the target sheet with its layout.
type Template struct {
	grid   excel.Grid
	layout config.LayoutConfig
}

func NewTemplate(grid excel.Grid, layout config.LayoutConfig) Template {
	return Template{grid: grid, layout: layout}
}

// Cell returns the raw template value at row, col.
func (t Template) Cell(row, col int) string {
	return t.grid.Cell(row, col)
}

// Label returns the trimmed label of a row.
func (t Template) Label(row int) string {
	return strings.TrimSpace(t.grid.Cell(row, t.layout.LabelColumn))
}

// QuestionEntries lists labeled question rows from QuestionFirstRow to the
// last used row.
func (t Template) QuestionEntries() []matcher.TargetEntry[int] {
	return t.entries(t.layout.QuestionFirstRow, t.grid.MaxRow())
}

// MetaEntries lists labeled rows of the meta block.
func (t Template) MetaEntries() []matcher.TargetEntry[int] {
	return t.entries(t.layout.MetaFirstRow, t.layout.MetaLastRow)
}

func (t Template) entries(first, last int) []matcher.TargetEntry[int] {
	var out []matcher.TargetEntry[int]
	for r := first; r <= last; r++ {
		if label := t.Label(r); label != "" {
			out = append(out, matcher.TargetEntry[int]{Label: label, Row: r})
		}
	}
	return out
}

// QuestionIndex maps normalized question labels to rows.
func (t Template) QuestionIndex() (map[string]int, []matcher.Shadowed[int]) {
	return matcher.IndexTargets(t.QuestionEntries())
}
