package excel

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when a workbook has no sheet of the requested name.
var ErrSheetNotFound = errors.New("sheet not found")

type Editor struct {
	file     *excelize.File
	filepath string
}

// OpenFile opens an existing Excel file
func OpenFile(filepath string) (*Editor, error) {
	if _, err := os.Stat(filepath); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "workbook %s", filepath),
			"check the file paths in the config file",
		)
	}
	file, err := excelize.OpenFile(filepath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open workbook %s", filepath)
	}
	return &Editor{
		file:     file,
		filepath: filepath,
	}, nil
}

// GetSheetNames returns all sheet names in the workbook
func (e *Editor) GetSheetNames() []string {
	return e.file.GetSheetList()
}

// HasSheet reports whether the workbook contains the named sheet.
func (e *Editor) HasSheet(sheet string) bool {
	for _, name := range e.file.GetSheetList() {
		if name == sheet {
			return true
		}
	}
	return false
}

// ReadGrid loads every used cell of a sheet as raw, unformatted text and
// remembers which cells hold numbers.
func (e *Editor) ReadGrid(sheet string) (Grid, error) {
	if !e.HasSheet(sheet) {
		return Grid{}, errors.WithHintf(
			errors.Wrapf(ErrSheetNotFound, "%q in %s", sheet, e.filepath),
			"available sheets: %s", strings.Join(e.GetSheetNames(), ", "),
		)
	}
	rows, err := e.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Grid{}, errors.Wrapf(err, "failed to read rows of %q", sheet)
	}

	grid := NewGrid(rows)
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return Grid{}, err
			}
			typ, err := e.file.GetCellType(sheet, cell)
			if err != nil {
				return Grid{}, errors.Wrapf(err, "failed to read type of %s", cell)
			}
			// Plain numbers carry no type attribute at all.
			if typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber {
				grid.markNumeric(r+1, c+1)
			}
		}
	}
	return grid, nil
}

// SetCell writes value as text at 1-based row and column. An empty value
// clears the cell, keeping its style.
func (e *Editor) SetCell(sheet string, row, col int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if value == "" {
		return e.file.SetCellValue(sheet, cell, nil)
	}
	return e.file.SetCellStr(sheet, cell, value)
}

// SetNumber writes value as a number, falling back to text when it is not a
// finite number. The cell keeps the template's number format.
func (e *Editor) SetNumber(sheet string, row, col int, value string) error {
	n, ok := numericValue(value)
	if !ok {
		return e.SetCell(sheet, row, col, value)
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return e.file.SetCellValue(sheet, cell, n)
}

// Save saves the Excel file to the original filepath
func (e *Editor) Save() error {
	if e.filepath == "" {
		return errors.New("no filepath specified, use SaveAs instead")
	}
	if err := e.file.SaveAs(e.filepath); err != nil {
		return errors.Wrapf(err, "failed to save workbook %s", e.filepath)
	}
	return nil
}

// SaveAs saves the Excel file with a new name
func (e *Editor) SaveAs(filepath string) error {
	e.filepath = filepath
	if err := e.file.SaveAs(filepath); err != nil {
		return errors.Wrapf(err, "failed to save workbook %s", filepath)
	}
	return nil
}

// Close closes the Excel file
func (e *Editor) Close() error {
	return e.file.Close()
}

// numericValue returns an int64 or a finite float64 parsed from value.
func numericValue(value string) (interface{}, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, false
	}

	if intVal, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return intVal, true
	}

	floatVal, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
		return nil, false
	}
	return floatVal, true
}
