package transfer

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"surveyXfer/internal/config"
	"surveyXfer/internal/excel"
	"surveyXfer/internal/mapping"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	sourceSheet = "с трейд-ин"
	targetSheet = "АСП Продажи_с трейд-ин"
)

func testLayout() config.LayoutConfig {
	l := config.Default().Layout
	l.QuestionnaireCount = 2
	l.MetaLastColumn = 2
	l.LabelColumn = 2
	l.MetaFirstRow = 2
	l.MetaLastRow = 3
	l.QuestionFirstRow = 5
	l.ScoreColumn = 3
	l.CommentColumn = 6
	l.ClearColumn = 9
	l.ClearFirstRow = 2
	l.ClearLastRow = 3
	l.SectionRows = map[string]int{"Комментарий к разделу Звонок": 5}
	return l
}

var sourceRows = [][]string{
	{"Дилер", "Дата", "Звонок", "Менеджер сразу поздоровался с клиентом", "Комментарий", "Вопрос про «кофе».", "Комментарий к разделу Звонок", "Совсем другое"},
	{"Альфа", "1 февраля", "80%", "1", "молодец", "0", "ок", "1"},
	{"Бета", "3 апреля", "50%", "0", "", "1", "", ""},
}

var targetRows = [][]string{
	{"", "Отчёт"},
	{"", "Дилер", "old", "", "", "", "", "", "stale"},
	{"", "Дата визита"},
	{},
	{"", "Звонок"},
	{"", "Менеджер поздоровался с клиентом", "", "", "", "", "placeholder"},
	{"", `Вопрос про "кофе"`},
}

type memorySheet map[[2]int]string

func (m memorySheet) SetCell(row, col int, value string) error {
	if value == "" {
		delete(m, [2]int{row, col})
		return nil
	}
	m[[2]int{row, col}] = value
	return nil
}

func (m memorySheet) SetNumber(row, col int, value string) error {
	return m.SetCell(row, col, value)
}

func analyzeFixture(t *testing.T) *Analysis {
	t.Helper()
	a, err := Analyze(excel.NewGrid(sourceRows), excel.NewGrid(targetRows), testLayout(), nil)
	require.NoError(t, err)
	return a
}

func TestAnalyze(t *testing.T) {
	a := analyzeFixture(t)

	require.Len(t, a.Result.Matches, 2)
	fuzzy := a.Result.Matches[0]
	assert.Equal(t, 6, fuzzy.Target.Row)
	assert.False(t, fuzzy.Exact)
	assert.InDelta(t, 0.8, fuzzy.Confidence, 1e-9)

	exact := a.Result.Matches[1]
	assert.Equal(t, 7, exact.Target.Row)
	assert.True(t, exact.Exact)

	require.Len(t, a.Result.Unmatched, 1)
	assert.Equal(t, "Совсем другое", a.Result.Unmatched[0].Source.Label)
	assert.Nil(t, a.Result.Unmatched[0].Best)
	assert.Empty(t, a.Collisions)
}

func TestBuildPlan(t *testing.T) {
	a := analyzeFixture(t)
	plan := BuildPlan(a.Sheet, a.Template, a.Result.Matches, testLayout())

	assert.Equal(t, 2, plan.Count(WriteMeta))
	assert.Equal(t, 4, plan.Count(WriteScore))
	assert.Equal(t, 2, plan.Count(WriteComment))
	assert.Equal(t, 1, plan.Count(WriteSectionComment))
	assert.Equal(t, 1, plan.Count(WriteClear))

	sheet := memorySheet{
		{6, 7}: "placeholder",
		{2, 9}: "stale",
	}
	require.NoError(t, Apply(sheet, plan))

	assert.Equal(t, memorySheet{
		{2, 3}: "Альфа",
		{2, 4}: "Бета",
		{6, 3}: "1",
		{6, 4}: "0",
		{6, 6}: "молодец",
		{7, 3}: "0",
		{7, 4}: "1",
		{5, 6}: "ок",
	}, sheet)
}

func TestApplyIsIdempotent(t *testing.T) {
	a := analyzeFixture(t)
	plan := BuildPlan(a.Sheet, a.Template, a.Result.Matches, testLayout())

	once := memorySheet{{2, 9}: "stale"}
	require.NoError(t, Apply(once, plan))
	twice := memorySheet{{2, 9}: "stale"}
	require.NoError(t, Apply(twice, plan))
	require.NoError(t, Apply(twice, plan))
	assert.Equal(t, once, twice)
}

type failingSheet struct{}

func (failingSheet) SetCell(row, col int, value string) error {
	return errors.New("locked")
}

func (failingSheet) SetNumber(row, col int, value string) error {
	return errors.New("locked")
}

func TestApplyReportsCell(t *testing.T) {
	err := Apply(failingSheet{}, Plan{Writes: []CellWrite{{Row: 6, Col: 3, Value: "1", Kind: WriteScore}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C6")
	assert.Contains(t, err.Error(), "score")
}

func TestSectionCommentNeedsConfiguredRow(t *testing.T) {
	layout := testLayout()
	layout.SectionRows = map[string]int{}
	a := analyzeFixture(t)
	plan := BuildPlan(a.Sheet, a.Template, a.Result.Matches, layout)
	assert.Zero(t, plan.Count(WriteSectionComment))
}

func TestAnalyzeWithOverrides(t *testing.T) {
	of := &mapping.OverrideFile{Overrides: []mapping.Override{
		{SourceLabel: "Совсем другое", TargetRow: 5, TargetLabel: "Звонок", Origin: mapping.OriginManual, Confidence: 1},
	}}
	a, err := Analyze(excel.NewGrid(sourceRows), excel.NewGrid(targetRows), testLayout(), of)
	require.NoError(t, err)
	assert.Len(t, a.Result.Matches, 3)
	assert.Empty(t, a.Result.Unmatched)
	assert.Equal(t, 5, a.Result.Matches[2].Target.Row)
}

func TestNewMatchReport(t *testing.T) {
	a := analyzeFixture(t)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	r := NewMatchReport(a, now)

	assert.Equal(t, now, r.GeneratedAt)
	require.Len(t, r.Matches, 2)
	assert.Equal(t, 4, r.Matches[0].Column)
	require.Len(t, r.Unmatched, 1)
	assert.Equal(t, 8, r.Unmatched[0].Column)
	assert.Empty(t, r.Collisions)

	path := filepath.Join(t.TempDir(), "out", "match_report.json")
	require.NoError(t, r.SaveToFile(path))
	assert.FileExists(t, path)
}

// writeBook saves rows to a new workbook. Canonical integers are stored as
// numbers, everything else as text.
func writeBook(t *testing.T, path, sheet string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			if n, err := strconv.Atoi(v); err == nil && strconv.Itoa(n) == v {
				require.NoError(t, f.SetCellInt(sheet, cell, int64(n)))
			} else {
				require.NoError(t, f.SetCellStr(sheet, cell, v))
			}
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	return fileConfigWith(t, sourceRows)
}

func fileConfigWith(t *testing.T, source [][]string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Layout = testLayout()
	cfg.Source = config.SourceConfig{File: filepath.Join(dir, "source.xlsx"), Sheet: sourceSheet}
	cfg.Target = config.TargetConfig{File: filepath.Join(dir, "target.xlsx"), Sheet: targetSheet}
	writeBook(t, cfg.Source.File, sourceSheet, source)
	writeBook(t, cfg.Target.File, targetSheet, targetRows)
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := fileConfig(t)
	output := filepath.Join(t.TempDir(), "result", "report.xlsx")

	a, plan, err := Run(cfg, &mapping.OverrideFile{}, Options{OutputPath: output})
	require.NoError(t, err)
	assert.Len(t, a.Result.Matches, 2)
	assert.Len(t, plan.Writes, 10)

	grid, err := ReadSheet(output, targetSheet)
	require.NoError(t, err)
	assert.Equal(t, "Альфа", grid.Cell(2, 3))
	assert.Equal(t, "", grid.Cell(2, 9))
	assert.Equal(t, "ок", grid.Cell(5, 6))
	assert.Equal(t, "1", grid.Cell(6, 3))
	assert.Equal(t, "молодец", grid.Cell(6, 6))
	assert.Equal(t, "", grid.Cell(6, 7))
	assert.Equal(t, "1", grid.Cell(7, 4))

	// Running the same transfer on its own output changes nothing.
	cfg.Target.File = output
	again := filepath.Join(t.TempDir(), "again.xlsx")
	_, _, err = Run(cfg, &mapping.OverrideFile{}, Options{OutputPath: again})
	require.NoError(t, err)
	regrid, err := ReadSheet(again, targetSheet)
	require.NoError(t, err)
	for r := 1; r <= 7; r++ {
		for c := 1; c <= 9; c++ {
			assert.Equal(t, grid.Cell(r, c), regrid.Cell(r, c), "R%dC%d", r, c)
		}
	}
}

func TestRunDryRunLeavesTemplate(t *testing.T) {
	cfg := fileConfig(t)

	_, plan, err := Run(cfg, nil, Options{DryRun: true})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Writes)

	grid, err := ReadSheet(cfg.Target.File, targetSheet)
	require.NoError(t, err)
	assert.Equal(t, "stale", grid.Cell(2, 9))
}

func TestRunFailsOnCollision(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Transfer.OnCollision = "fail"
	of := &mapping.OverrideFile{Overrides: []mapping.Override{
		{SourceLabel: "Совсем другое", TargetRow: 7, TargetLabel: `Вопрос про "кофе"`, Origin: mapping.OriginManual, Confidence: 1},
	}}

	a, _, err := Run(cfg, of, Options{DryRun: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollision))
	require.Len(t, a.Collisions, 1)
	assert.Equal(t, 7, a.Collisions[0].Row)
}

func TestRunMissingSheet(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Source.Sheet = "нет такого"
	_, _, err := Run(cfg, nil, Options{DryRun: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, excel.ErrSheetNotFound))
}

func TestRunKeepsCellTypes(t *testing.T) {
	rows := [][]string{
		sourceRows[0],
		{"007", "1 февраля", "80%", "1", "NaN", "0", "", ""},
		{"Бета", "3 апреля", "50%", "0", "Inf", "1", "Infinity", ""},
	}
	cfg := fileConfigWith(t, rows)
	output := filepath.Join(t.TempDir(), "report.xlsx")

	_, _, err := Run(cfg, nil, Options{OutputPath: output})
	require.NoError(t, err)

	book, err := excel.OpenFile(output)
	require.NoError(t, err)
	defer book.Close()
	grid, err := book.ReadGrid(targetSheet)
	require.NoError(t, err)

	assert.Equal(t, "007", grid.Cell(2, 3))
	assert.False(t, grid.Numeric(2, 3))
	assert.Equal(t, "NaN", grid.Cell(6, 6))
	assert.False(t, grid.Numeric(6, 6))
	assert.Equal(t, "Inf", grid.Cell(6, 7))
	assert.False(t, grid.Numeric(6, 7))
	assert.Equal(t, "Infinity", grid.Cell(5, 7))
	assert.False(t, grid.Numeric(5, 7))

	assert.Equal(t, "1", grid.Cell(6, 3))
	assert.True(t, grid.Numeric(6, 3))
	assert.Equal(t, "0", grid.Cell(7, 3))
	assert.True(t, grid.Numeric(7, 3))
}

func TestRunSavesInPlaceByDefault(t *testing.T) {
	cfg := fileConfig(t)

	_, _, err := Run(cfg, nil, Options{})
	require.NoError(t, err)

	grid, err := ReadSheet(cfg.Target.File, targetSheet)
	require.NoError(t, err)
	assert.Equal(t, "Альфа", grid.Cell(2, 3))
	assert.Equal(t, "", grid.Cell(2, 9))
}
