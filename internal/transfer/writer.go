package transfer

import (
	"surveyXfer/internal/logger"

	"github.com/cockroachdb/errors"
)

// CellWriter sets cells at 1-based row and column. SetCell writes text and
// clears the cell on ""; SetNumber writes a number, or text when value is
// not a finite number.
type CellWriter interface {
	SetCell(row, col int, value string) error
	SetNumber(row, col int, value string) error
}

type sheetSetter interface {
	SetCell(sheet string, row, col int, value string) error
	SetNumber(sheet string, row, col int, value string) error
}

type sheetWriter struct {
	book  sheetSetter
	sheet string
}

func (w sheetWriter) SetCell(row, col int, value string) error {
	return w.book.SetCell(w.sheet, row, col, value)
}

func (w sheetWriter) SetNumber(row, col int, value string) error {
	return w.book.SetNumber(w.sheet, row, col, value)
}

// OnSheet adapts a workbook editor to a CellWriter bound to one sheet.
func OnSheet(book sheetSetter, sheet string) CellWriter {
	return sheetWriter{book: book, sheet: sheet}
}

// Apply performs the writes in order. The plan only sets values, so applying
// it again leaves the sheet unchanged.
func Apply(w CellWriter, plan Plan) error {
	for _, cw := range plan.Writes {
		var err error
		if cw.Numeric && cw.Value != "" {
			err = w.SetNumber(cw.Row, cw.Col, cw.Value)
		} else {
			err = w.SetCell(cw.Row, cw.Col, cw.Value)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to write %s (%s)", cw.CellName(), cw.Kind)
		}
		if cw.Kind == WriteClear {
			logger.Debug("Cleared stale cell", "cell", cw.CellName())
		}
	}
	logger.Info("Applied transfer plan", "writes", len(plan.Writes))
	return nil
}
