package excel

// Grid is an in-memory snapshot of a sheet. Coordinates are 1-based and any
// cell outside the stored area reads as empty.
type Grid struct {
	rows    [][]string
	maxCol  int
	numeric map[[2]int]bool
}

// NewGrid wraps rows as returned by excelize, ragged rows allowed.
func NewGrid(rows [][]string) Grid {
	g := Grid{rows: rows}
	for _, r := range rows {
		if len(r) > g.maxCol {
			g.maxCol = len(r)
		}
	}
	return g
}

// Cell returns the value at row, col or "" when out of range.
func (g Grid) Cell(row, col int) string {
	if row < 1 || row > len(g.rows) {
		return ""
	}
	r := g.rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

// MaxRow is the last row holding any stored cell.
func (g Grid) MaxRow() int {
	return len(g.rows)
}

// MaxCol is the widest stored row.
func (g Grid) MaxCol() int {
	return g.maxCol
}

// Numeric reports whether the cell was stored as a number in the workbook.
// Grids built with NewGrid hold text only.
func (g Grid) Numeric(row, col int) bool {
	return g.numeric[[2]int{row, col}]
}

func (g *Grid) markNumeric(row, col int) {
	if g.numeric == nil {
		g.numeric = make(map[[2]int]bool)
	}
	g.numeric[[2]int{row, col}] = true
}
