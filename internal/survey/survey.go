// Package survey reads the raw questionnaire export: one header row, then one
// row per questionnaire, one column per question.
package survey

import (
	"sort"
	"strings"
	"surveyXfer/internal/config"
	"surveyXfer/internal/excel"
	"surveyXfer/internal/matcher"
)

// Kind tells what a source column holds.
type Kind int

const (
	KindMeta Kind = iota
	KindQuestion
	KindComment
	KindSectionComment
	KindSubsection
	KindSectionSummary
)

func (k Kind) String() string {
	switch k {
	case KindMeta:
		return "meta"
	case KindQuestion:
		return "question"
	case KindComment:
		return "comment"
	case KindSectionComment:
		return "section comment"
	case KindSubsection:
		return "subsection"
	case KindSectionSummary:
		return "section summary"
	}
	return "unknown"
}

// Column is a labeled source column.
type Column struct {
	Index  int
	Header string
	Kind   Kind
}

// Question is a scored question column and its comment column, if any.
// CommentColumn is 0 when the question has no comment.
type Question struct {
	Column        int
	CommentColumn int
	Header        string
}

// Sheet is the classified source sheet.
type Sheet struct {
	Columns        []Column
	Questions      []Question
	Questionnaires int
	grid           excel.Grid
	firstDataRow   int
}

// Classify labels every headed column of the grid. Columns up to
// MetaLastColumn are meta fields; the rest are comments, section comments,
// empty subsection headers, percentage section summaries or questions.
func Classify(grid excel.Grid, layout config.LayoutConfig) Sheet {
	s := Sheet{
		Questionnaires: layout.QuestionnaireCount,
		grid:           grid,
		firstDataRow:   layout.HeaderRow + 1,
	}

	headers := make(map[int]string)
	for c := 1; c <= grid.MaxCol(); c++ {
		if h := strings.TrimSpace(grid.Cell(layout.HeaderRow, c)); h != "" {
			headers[c] = h
		}
	}
	cols := make([]int, 0, len(headers))
	for c := range headers {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	for _, c := range cols {
		header := headers[c]
		col := Column{Index: c, Header: header}

		switch {
		case c <= layout.MetaLastColumn:
			col.Kind = KindMeta
		case strings.HasPrefix(header, layout.SectionCommentPrefix):
			col.Kind = KindSectionComment
		case strings.HasPrefix(header, layout.CommentPrefix):
			col.Kind = KindComment
		default:
			col.Kind = s.classifyValues(c)
		}
		s.Columns = append(s.Columns, col)

		if col.Kind != KindQuestion {
			continue
		}
		q := Question{Column: c, Header: header}
		if next, ok := headers[c+1]; ok &&
			strings.HasPrefix(next, layout.CommentPrefix) &&
			!strings.HasPrefix(next, layout.SectionCommentPrefix) {
			q.CommentColumn = c + 1
		}
		s.Questions = append(s.Questions, q)
	}

	return s
}

func (s Sheet) classifyValues(col int) Kind {
	empty := true
	for q := 0; q < s.Questionnaires; q++ {
		v := s.Value(q, col)
		if v == "" {
			continue
		}
		empty = false
		if strings.Contains(v, "%") {
			return KindSectionSummary
		}
	}
	if empty {
		return KindSubsection
	}
	return KindQuestion
}

// Value returns questionnaire q's (0-based) raw value in col.
func (s Sheet) Value(q, col int) string {
	return s.grid.Cell(s.firstDataRow+q, col)
}

// Numeric reports whether questionnaire q's value in col is a number.
func (s Sheet) Numeric(q, col int) bool {
	return s.grid.Numeric(s.firstDataRow+q, col)
}

// ColumnsOf returns the columns of one kind in sheet order.
func (s Sheet) ColumnsOf(kind Kind) []Column {
	var out []Column
	for _, c := range s.Columns {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Entries turns the questions into matcher input, labeled by header.
func (s Sheet) Entries() []matcher.SourceEntry[Question] {
	entries := make([]matcher.SourceEntry[Question], len(s.Questions))
	for i, q := range s.Questions {
		entries[i] = matcher.SourceEntry[Question]{ID: q, Label: q.Header}
	}
	return entries
}
