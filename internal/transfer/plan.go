// Package transfer turns match results into a list of cell writes and applies
// them to the report sheet.
package transfer

import (
	"fmt"
	"sort"
	"surveyXfer/internal/config"
	"surveyXfer/internal/matcher"
	"surveyXfer/internal/report"
	"surveyXfer/internal/survey"

	"github.com/xuri/excelize/v2"
)

// WriteKind tells which pass produced a write.
type WriteKind int

const (
	WriteMeta WriteKind = iota
	WriteScore
	WriteComment
	WriteSectionComment
	WriteClear
)

func (k WriteKind) String() string {
	switch k {
	case WriteMeta:
		return "meta"
	case WriteScore:
		return "score"
	case WriteComment:
		return "comment"
	case WriteSectionComment:
		return "section comment"
	case WriteClear:
		return "clear"
	}
	return "unknown"
}

// CellWrite sets one template cell. An empty Value clears the cell. Numeric
// values were numbers in the results sheet and are written back as numbers.
type CellWrite struct {
	Row     int
	Col     int
	Value   string
	Numeric bool
	Kind    WriteKind
}

// CellName returns the A1-style reference of the write.
func (w CellWrite) CellName() string {
	name, err := excelize.CoordinatesToCellName(w.Col, w.Row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", w.Row, w.Col)
	}
	return name
}

// Plan is an ordered list of writes. Later writes to the same cell win.
type Plan struct {
	Writes []CellWrite
}

// Count returns how many writes of a kind the plan holds.
func (p Plan) Count(kind WriteKind) int {
	n := 0
	for _, w := range p.Writes {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

// BuildPlan produces every write of a transfer: meta fields, matched question
// scores and comments, section comments, then stale placeholder clearing.
func BuildPlan(sheet survey.Sheet, tpl report.Template, matches []matcher.Match[survey.Question, int], layout config.LayoutConfig) Plan {
	var p Plan
	p.Writes = append(p.Writes, metaWrites(sheet, tpl, layout)...)
	p.Writes = append(p.Writes, questionWrites(sheet, matches, layout)...)
	p.Writes = append(p.Writes, sectionCommentWrites(sheet, layout)...)
	p.Writes = append(p.Writes, clearWrites(tpl, layout)...)
	return p
}

// metaWrites copies meta columns onto template meta rows with the same
// normalized label.
func metaWrites(sheet survey.Sheet, tpl report.Template, layout config.LayoutConfig) []CellWrite {
	sourceCols := make(map[string]int)
	for _, c := range sheet.ColumnsOf(survey.KindMeta) {
		sourceCols[matcher.Normalize(c.Header)] = c.Index
	}

	targetRows, _ := matcher.IndexTargets(tpl.MetaEntries())
	labels := make([]string, 0, len(targetRows))
	for label := range targetRows {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return targetRows[labels[i]] < targetRows[labels[j]] })

	var writes []CellWrite
	for _, label := range labels {
		col, ok := sourceCols[label]
		if !ok {
			continue
		}
		row := targetRows[label]
		for q := 0; q < sheet.Questionnaires; q++ {
			writes = append(writes, CellWrite{
				Row:     row,
				Col:     layout.ScoreColumn + q,
				Value:   sheet.Value(q, col),
				Numeric: sheet.Numeric(q, col),
				Kind:    WriteMeta,
			})
		}
	}
	return writes
}

func questionWrites(sheet survey.Sheet, matches []matcher.Match[survey.Question, int], layout config.LayoutConfig) []CellWrite {
	var writes []CellWrite
	for _, m := range matches {
		question := m.Source.ID
		for q := 0; q < sheet.Questionnaires; q++ {
			writes = append(writes, CellWrite{
				Row:     m.Target.Row,
				Col:     layout.ScoreColumn + q,
				Value:   sheet.Value(q, question.Column),
				Numeric: sheet.Numeric(q, question.Column),
				Kind:    WriteScore,
			})
			if question.CommentColumn != 0 {
				writes = append(writes, CellWrite{
					Row:     m.Target.Row,
					Col:     layout.CommentColumn + q,
					Value:   sheet.Value(q, question.CommentColumn),
					Numeric: sheet.Numeric(q, question.CommentColumn),
					Kind:    WriteComment,
				})
			}
		}
	}
	return writes
}

// sectionCommentWrites places non-empty section comments on the rows named in
// the layout's section table.
func sectionCommentWrites(sheet survey.Sheet, layout config.LayoutConfig) []CellWrite {
	rows := make(map[string]int, len(layout.SectionRows))
	for header, row := range layout.SectionRows {
		rows[matcher.Normalize(header)] = row
	}

	var writes []CellWrite
	for _, c := range sheet.ColumnsOf(survey.KindSectionComment) {
		row, ok := rows[matcher.Normalize(c.Header)]
		if !ok {
			continue
		}
		for q := 0; q < sheet.Questionnaires; q++ {
			v := sheet.Value(q, c.Index)
			if v == "" {
				continue
			}
			writes = append(writes, CellWrite{
				Row:     row,
				Col:     layout.CommentColumn + q,
				Value:   v,
				Numeric: sheet.Numeric(q, c.Index),
				Kind:    WriteSectionComment,
			})
		}
	}
	return writes
}

func clearWrites(tpl report.Template, layout config.LayoutConfig) []CellWrite {
	var writes []CellWrite
	for r := layout.ClearFirstRow; r <= layout.ClearLastRow; r++ {
		if tpl.Cell(r, layout.ClearColumn) == "" {
			continue
		}
		writes = append(writes, CellWrite{Row: r, Col: layout.ClearColumn, Kind: WriteClear})
	}
	return writes
}
