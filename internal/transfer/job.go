package transfer

import (
	"os"
	"path/filepath"
	"surveyXfer/internal/config"
	"surveyXfer/internal/excel"
	"surveyXfer/internal/logger"
	"surveyXfer/internal/mapping"
	"surveyXfer/internal/matcher"
	"surveyXfer/internal/report"
	"surveyXfer/internal/survey"

	"github.com/cockroachdb/errors"
)

// ErrCollision is returned when the collision policy is "fail" and several
// questions landed on one report row.
var ErrCollision = errors.New("several questions placed on one report row")

// Analysis is everything known about a transfer before anything is written.
type Analysis struct {
	Sheet      survey.Sheet
	Template   report.Template
	Result     mapping.Result
	Ignored    []matcher.Unmatched[survey.Question, int]
	Collisions []matcher.Collision[survey.Question, int]
	Shadowed   []matcher.Shadowed[int]
}

// Analyze classifies the source, matches its questions onto the template and
// applies the overrides.
func Analyze(source, target excel.Grid, layout config.LayoutConfig, of *mapping.OverrideFile) (*Analysis, error) {
	sheet := survey.Classify(source, layout)
	tpl := report.NewTemplate(target, layout)
	index, shadowed := tpl.QuestionIndex()

	res, err := matcher.MatchAll(sheet.Entries(), index)
	if err != nil {
		return nil, errors.Wrap(err, "failed to match questions")
	}
	if of == nil {
		of = &mapping.OverrideFile{}
	}
	res, ignored := mapping.Apply(res, of, index)

	a := &Analysis{
		Sheet:      sheet,
		Template:   tpl,
		Result:     res,
		Ignored:    ignored,
		Collisions: matcher.FindCollisions(res.Matches),
		Shadowed:   shadowed,
	}

	for _, s := range shadowed {
		logger.Warn("Duplicate report label", "label", s.Label, "row", s.Row, "shadowed_by", s.By)
	}
	for _, u := range res.Unmatched {
		attrs := []any{"column", u.Source.ID.Column, "header", u.Source.Label, "score", u.Confidence}
		if u.Best != nil {
			attrs = append(attrs, "best_row", u.Best.Row, "best_label", u.Best.Label)
		}
		logger.Warn("Unmatched question", attrs...)
	}
	for _, c := range a.Collisions {
		logger.Warn("Report row claimed by several questions", "row", c.Row, "questions", len(c.Sources))
	}
	logger.Info("Matched questions",
		"questions", len(sheet.Questions),
		"matched", len(res.Matches),
		"unmatched", len(res.Unmatched),
		"ignored", len(ignored),
		"collisions", len(a.Collisions))

	return a, nil
}

// Options tune Run.
type Options struct {
	DryRun     bool
	OutputPath string
}

// ReadSheet opens a workbook and snapshots one sheet.
func ReadSheet(path, sheet string) (excel.Grid, error) {
	editor, err := excel.OpenFile(path)
	if err != nil {
		return excel.Grid{}, err
	}
	defer editor.Close()
	return editor.ReadGrid(sheet)
}

// Load reads both workbooks and analyzes them without writing anything.
func Load(cfg *config.Config, of *mapping.OverrideFile) (*Analysis, error) {
	source, err := ReadSheet(cfg.Source.File, cfg.Source.Sheet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read source")
	}
	target, err := ReadSheet(cfg.Target.File, cfg.Target.Sheet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read report template")
	}
	return Analyze(source, target, cfg.Layout, of)
}

// Run performs the whole transfer and saves the report unless DryRun is set.
func Run(cfg *config.Config, of *mapping.OverrideFile, opts Options) (*Analysis, Plan, error) {
	source, err := ReadSheet(cfg.Source.File, cfg.Source.Sheet)
	if err != nil {
		return nil, Plan{}, errors.Wrap(err, "failed to read source")
	}

	target, err := excel.OpenFile(cfg.Target.File)
	if err != nil {
		return nil, Plan{}, errors.Wrap(err, "failed to open report template")
	}
	defer target.Close()

	targetGrid, err := target.ReadGrid(cfg.Target.Sheet)
	if err != nil {
		return nil, Plan{}, errors.Wrap(err, "failed to read report template")
	}

	a, err := Analyze(source, targetGrid, cfg.Layout, of)
	if err != nil {
		return nil, Plan{}, err
	}

	if len(a.Collisions) > 0 && cfg.Transfer.OnCollision == "fail" {
		return a, Plan{}, errors.WithHint(
			errors.Wrapf(ErrCollision, "%d report rows", len(a.Collisions)),
			"pin or ignore the colliding questions with 'surveyxfer review', or set on_collision = \"warn\"",
		)
	}

	plan := BuildPlan(a.Sheet, a.Template, a.Result.Matches, cfg.Layout)
	logger.Info("Built transfer plan",
		"meta", plan.Count(WriteMeta),
		"scores", plan.Count(WriteScore),
		"comments", plan.Count(WriteComment),
		"section_comments", plan.Count(WriteSectionComment),
		"clears", plan.Count(WriteClear))

	if opts.DryRun {
		return a, plan, nil
	}

	if err := Apply(OnSheet(target, cfg.Target.Sheet), plan); err != nil {
		return a, plan, err
	}

	output := opts.OutputPath
	if output == "" {
		output = cfg.OutputPath()
	}
	if output == cfg.Target.File {
		if err := target.Save(); err != nil {
			return a, plan, err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return a, plan, errors.Wrap(err, "failed to create output directory")
		}
		if err := target.SaveAs(output); err != nil {
			return a, plan, err
		}
	}
	logger.Info("Saved report", "path", output)
	return a, plan, nil
}
