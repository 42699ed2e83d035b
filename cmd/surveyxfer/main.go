package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"surveyXfer/internal/config"
	"surveyXfer/internal/logger"
	"surveyXfer/internal/mapping"
	"surveyXfer/internal/matcher"
	"surveyXfer/internal/survey"
	"surveyXfer/internal/transfer"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "surveyxfer",
	Short: "surveyxfer - copy questionnaire results into the summary report",
	Long: `surveyxfer copies mystery-shopper questionnaire results into the summary
report template, matching questions to report rows by their wording.

Typical workflow:
  surveyxfer inspect              # Check how the results sheet is read
  surveyxfer match                # See which questions found a report row
  surveyxfer suggest              # Ask Gemini about the ones that did not
  surveyxfer review               # Pin or ignore the rest by hand
  surveyxfer transfer --dry-run   # Preview the writes
  surveyxfer transfer             # Fill the report`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return logger.Init(cfg.Output.LogDirectory, level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how the results sheet columns are classified",
	RunE:  runInspect,
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match questions to report rows and write match_report.json",
	RunE:  runMatch,
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Pin or ignore questions in an interactive table",
	RunE:  runReview,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Ask Gemini to pair unmatched questions with report rows",
	RunE:  runSuggest,
}

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Fill the report template with the questionnaire results",
	RunE:  runTransfer,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.toml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write debug entries to the log file")

	transferCmd.Flags().Bool("dry-run", false, "Build the plan without writing the report")
	transferCmd.Flags().StringP("output", "o", "", "Save the filled report here instead of the configured path")

	rootCmd.AddCommand(inspectCmd, matchCmd, reviewCmd, suggestCmd, transferCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		pterm.Error.Println(err)
		if hint := errors.FlattenHints(err); hint != "" {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}

func loadOverrides() (*mapping.OverrideFile, error) {
	of, err := mapping.LoadFromFile(cfg.Output.OverridesFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded overrides", "path", cfg.Output.OverridesFile, "count", len(of.Overrides))
	return of, nil
}

func analyze() (*transfer.Analysis, *mapping.OverrideFile, error) {
	of, err := loadOverrides()
	if err != nil {
		return nil, nil, err
	}
	spinner, _ := pterm.DefaultSpinner.Start("Reading workbooks...")
	a, err := transfer.Load(cfg, of)
	if err != nil {
		spinner.Fail("Failed to read workbooks")
		return nil, nil, err
	}
	spinner.Success("Workbooks read")
	return a, of, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	source, err := transfer.ReadSheet(cfg.Source.File, cfg.Source.Sheet)
	if err != nil {
		return err
	}
	sheet := survey.Classify(source, cfg.Layout)

	pterm.DefaultHeader.WithFullWidth().Printf("Results sheet: %s", cfg.Source.Sheet)
	pterm.Println()

	data := pterm.TableData{{"Column", "Kind", "Header"}}
	for _, c := range sheet.Columns {
		data = append(data, []string{fmt.Sprint(c.Index), c.Kind.String(), c.Header})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	pterm.Println()
	for _, kind := range []survey.Kind{survey.KindMeta, survey.KindQuestion, survey.KindComment, survey.KindSectionComment, survey.KindSubsection, survey.KindSectionSummary} {
		pterm.Printf("  %-16s %d\n", kind.String()+":", len(sheet.ColumnsOf(kind)))
	}
	pterm.Printf("  %-16s %d\n", "questionnaires:", sheet.Questionnaires)
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	a, _, err := analyze()
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Col", "Question", "Row", "Report label", "Score"}}
	for _, m := range a.Result.Matches {
		score := fmt.Sprintf("%.2f", m.Confidence)
		if m.Exact {
			score = "exact"
		}
		data = append(data, []string{fmt.Sprint(m.Source.ID.Column), m.Source.Label, fmt.Sprint(m.Target.Row), m.Target.Label, score})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if len(a.Result.Unmatched) > 0 {
		pterm.Println()
		pterm.Warning.Printfln("%d questions have no report row:", len(a.Result.Unmatched))
		for _, u := range a.Result.Unmatched {
			if u.Best != nil {
				pterm.Printfln("  [%d] %s  (best: row %d %q, %.2f)", u.Source.ID.Column, u.Source.Label, u.Best.Row, u.Best.Label, u.Confidence)
			} else {
				pterm.Printfln("  [%d] %s", u.Source.ID.Column, u.Source.Label)
			}
		}
	}
	for _, c := range a.Collisions {
		pterm.Warning.Printfln("Row %d (%s) is claimed by %d questions", c.Row, c.Label, len(c.Sources))
	}

	path := filepath.Join(cfg.Output.Directory, "match_report.json")
	if err := transfer.NewMatchReport(a, time.Now()).SaveToFile(path); err != nil {
		return err
	}
	pterm.Println()
	pterm.Success.Printfln("Matched %d, unmatched %d, ignored %d. Report saved to %s",
		len(a.Result.Matches), len(a.Result.Unmatched), len(a.Ignored), path)
	return nil
}

// reviewQueue lists every question worth a human look: unmatched, ignored and
// fuzzy-matched ones, in sheet order.
func reviewQueue(a *transfer.Analysis) []matcher.Unmatched[survey.Question, int] {
	queue := append([]matcher.Unmatched[survey.Question, int]{}, a.Result.Unmatched...)
	queue = append(queue, a.Ignored...)
	for _, m := range a.Result.Matches {
		if m.Exact {
			continue
		}
		best := m.Target
		queue = append(queue, matcher.Unmatched[survey.Question, int]{Source: m.Source, Best: &best, Confidence: m.Confidence})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Source.ID.Column < queue[j].Source.ID.Column
	})
	return queue
}

func runReview(cmd *cobra.Command, args []string) error {
	a, of, err := analyze()
	if err != nil {
		return err
	}

	queue := reviewQueue(a)
	if len(queue) == 0 {
		pterm.Success.Println("Every question has an exact report row, nothing to review")
		return nil
	}

	saved, err := mapping.RunReviewTUI(queue, a.Template.QuestionEntries(), of, cfg.Output.OverridesFile,
		mapping.UIConfig{RowsPerPage: cfg.UI.RowsPerPage})
	if err != nil {
		return err
	}
	if saved {
		pterm.Success.Printfln("Overrides saved to %s", cfg.Output.OverridesFile)
	} else {
		pterm.Info.Println("Review closed without saving")
	}
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, of, err := analyze()
	if err != nil {
		return err
	}
	if len(a.Result.Unmatched) == 0 {
		pterm.Success.Println("No unmatched questions")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	suggester, err := mapping.NewSuggester(ctx, mapping.GetGeminiAPIKey(), cfg.AI.Model,
		time.Duration(cfg.AI.TimeoutSeconds)*time.Second, cfg.AI.DebugDirectory)
	if err != nil {
		return err
	}
	defer suggester.Close()

	sources := make([]string, len(a.Result.Unmatched))
	for i, u := range a.Result.Unmatched {
		sources[i] = u.Source.Label
	}
	entries := a.Template.QuestionEntries()
	targets := make([]string, len(entries))
	for i, e := range entries {
		targets[i] = e.Label
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Asking %s about %d questions...", cfg.AI.Model, len(sources)))
	suggestions, err := suggester.Suggest(ctx, sources, targets)
	if err != nil && !errors.Is(err, context.Canceled) {
		spinner.Fail("AI request failed")
		return err
	}
	spinner.Success(fmt.Sprintf("Received %d suggestions", len(suggestions)))

	index, _ := a.Template.QuestionIndex()
	applied := mapping.ApplySuggestions(of, suggestions, index)
	if applied == 0 {
		pterm.Info.Println("No suggestions could be applied")
		return nil
	}
	if err := of.SaveToFile(cfg.Output.OverridesFile); err != nil {
		return err
	}
	pterm.Success.Printfln("Stored %d AI overrides in %s. Run 'surveyxfer review' to check them", applied, cfg.Output.OverridesFile)
	return nil
}

func runTransfer(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	output, _ := cmd.Flags().GetString("output")

	of, err := loadOverrides()
	if err != nil {
		return err
	}

	if dryRun {
		pterm.Warning.Println("DRY RUN MODE: the report will not be written")
	}

	a, plan, err := transfer.Run(cfg, of, transfer.Options{DryRun: dryRun, OutputPath: output})
	if err != nil {
		if a != nil {
			for _, c := range a.Collisions {
				pterm.Error.Printfln("Row %d (%s) is claimed by %d questions", c.Row, c.Label, len(c.Sources))
			}
		}
		return err
	}

	if dryRun {
		data := pterm.TableData{{"Cell", "Kind", "Value"}}
		for _, w := range plan.Writes {
			data = append(data, []string{w.CellName(), w.Kind.String(), w.Value})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}

	pterm.Println()
	pterm.Info.Println("Statistics:")
	pterm.Printfln("  Questions matched:  %d", len(a.Result.Matches))
	pterm.Printfln("  Questions skipped:  %d unmatched, %d ignored", len(a.Result.Unmatched), len(a.Ignored))
	pterm.Printfln("  Meta fields:        %d", plan.Count(transfer.WriteMeta))
	pterm.Printfln("  Scores:             %d", plan.Count(transfer.WriteScore))
	pterm.Printfln("  Comments:           %d", plan.Count(transfer.WriteComment))
	pterm.Printfln("  Section comments:   %d", plan.Count(transfer.WriteSectionComment))
	pterm.Printfln("  Cleared cells:      %d", plan.Count(transfer.WriteClear))
	if len(a.Collisions) > 0 {
		pterm.Warning.Printfln("%d report rows were claimed by several questions; the last one won", len(a.Collisions))
	}

	if !dryRun {
		dest := output
		if dest == "" {
			dest = cfg.OutputPath()
		}
		pterm.Success.Printfln("Report saved to %s", dest)
	}
	return nil
}
