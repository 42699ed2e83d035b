package config

import (
	"os"
	"path/filepath"
	"strings"
	"surveyXfer/internal/logger"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// ErrInvalidConfig marks a configuration that cannot drive a transfer.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Source   SourceConfig   `toml:"source"`
	Target   TargetConfig   `toml:"target"`
	Layout   LayoutConfig   `toml:"layout"`
	Transfer TransferConfig `toml:"transfer"`
	Output   OutputConfig   `toml:"output"`
	UI       UIConfig       `toml:"ui"`
	AI       AIConfig       `toml:"ai"`
}

type SourceConfig struct {
	File  string `toml:"file"`
	Sheet string `toml:"sheet"`
}

type TargetConfig struct {
	File  string `toml:"file"`
	Sheet string `toml:"sheet"`
}

// LayoutConfig describes where things live in both workbooks. Rows and
// columns are 1-based, as Excel shows them.
type LayoutConfig struct {
	HeaderRow          int `toml:"header_row"`
	QuestionnaireCount int `toml:"questionnaire_count"`
	MetaLastColumn     int `toml:"meta_last_column"`

	LabelColumn      int `toml:"label_column"`
	MetaFirstRow     int `toml:"meta_first_row"`
	MetaLastRow      int `toml:"meta_last_row"`
	QuestionFirstRow int `toml:"question_first_row"`

	ScoreColumn   int `toml:"score_column"`
	CommentColumn int `toml:"comment_column"`

	ClearColumn   int `toml:"clear_column"`
	ClearFirstRow int `toml:"clear_first_row"`
	ClearLastRow  int `toml:"clear_last_row"`

	CommentPrefix        string         `toml:"comment_prefix"`
	SectionCommentPrefix string         `toml:"section_comment_prefix"`
	SectionRows          map[string]int `toml:"section_rows"`
}

type TransferConfig struct {
	// OnCollision is "warn" or "fail".
	OnCollision string `toml:"on_collision"`
	// OutputFile defaults to the target file, overwriting it in place.
	OutputFile string `toml:"output_file"`
}

type OutputConfig struct {
	Directory     string `toml:"directory"`
	OverridesFile string `toml:"overrides_file"`
	LogDirectory  string `toml:"log_directory"`
}

type UIConfig struct {
	RowsPerPage int `toml:"rows_per_page"`
}

type AIConfig struct {
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DebugDirectory string `toml:"debug_directory"`
}

// Default returns the layout of the sales report with trade-in.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			File:  "data/input/Выгрузка результатов_ИИ.xlsx",
			Sheet: "с трейд-ин",
		},
		Target: TargetConfig{
			File:  "data/input/Сводная форма отчета_ИИ.xlsx",
			Sheet: "АСП Продажи_с трейд-ин",
		},
		Layout: LayoutConfig{
			HeaderRow:            1,
			QuestionnaireCount:   4,
			MetaLastColumn:       37,
			LabelColumn:          4,
			MetaFirstRow:         3,
			MetaLastRow:          39,
			QuestionFirstRow:     52,
			ScoreColumn:          5,
			CommentColumn:        16,
			ClearColumn:          26,
			ClearFirstRow:        3,
			ClearLastRow:         39,
			CommentPrefix:        "Комментарий",
			SectionCommentPrefix: "Комментарий к разделу",
			SectionRows: map[string]int{
				"Комментарий к разделу Звонок":                     51,
				"Комментарий к разделу Парковка и инфраструктура":  67,
				"Комментарий к разделу Презентация в автосалоне":   77,
				"Комментарий к разделу Трейд-ин и КСО":             102,
				"Комментарий к разделу Коммерческое предложение":   135,
				"Комментарий к разделу Завершающие шаги":           142,
			},
		},
		Transfer: TransferConfig{
			OnCollision: "warn",
		},
		Output: OutputConfig{
			Directory:     "data/output",
			OverridesFile: "data/output/overrides.json",
			LogDirectory:  "logs",
		},
		UI: UIConfig{
			RowsPerPage: 15,
		},
		AI: AIConfig{
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 60,
			DebugDirectory: "logs/ai_debug",
		},
	}
}

// LoadConfig loads configuration from the specified config file path,
// writing the default configuration there first if the file is missing.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create config directory")
		}

		defaultConfig := Default()
		if err := SaveConfig(configPath, defaultConfig); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}

		logger.Info("Created default config file", "path", configPath)
		return defaultConfig, nil
	}

	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %s", configPath)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", "path", configPath)
	return &config, nil
}

// applyDefaults fills every zero field from Default. SectionRows is only
// defaulted when the table is absent altogether.
func (c *Config) applyDefaults() {
	d := Default()

	setString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	setInt := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}

	setString(&c.Source.File, d.Source.File)
	setString(&c.Source.Sheet, d.Source.Sheet)
	setString(&c.Target.File, d.Target.File)
	setString(&c.Target.Sheet, d.Target.Sheet)

	l, dl := &c.Layout, d.Layout
	setInt(&l.HeaderRow, dl.HeaderRow)
	setInt(&l.QuestionnaireCount, dl.QuestionnaireCount)
	setInt(&l.MetaLastColumn, dl.MetaLastColumn)
	setInt(&l.LabelColumn, dl.LabelColumn)
	setInt(&l.MetaFirstRow, dl.MetaFirstRow)
	setInt(&l.MetaLastRow, dl.MetaLastRow)
	setInt(&l.QuestionFirstRow, dl.QuestionFirstRow)
	setInt(&l.ScoreColumn, dl.ScoreColumn)
	setInt(&l.CommentColumn, dl.CommentColumn)
	setInt(&l.ClearColumn, dl.ClearColumn)
	setInt(&l.ClearFirstRow, dl.ClearFirstRow)
	setInt(&l.ClearLastRow, dl.ClearLastRow)
	setString(&l.CommentPrefix, dl.CommentPrefix)
	setString(&l.SectionCommentPrefix, dl.SectionCommentPrefix)
	if l.SectionRows == nil {
		l.SectionRows = dl.SectionRows
	}

	setString(&c.Transfer.OnCollision, d.Transfer.OnCollision)
	setString(&c.Output.Directory, d.Output.Directory)
	setString(&c.Output.OverridesFile, d.Output.OverridesFile)
	setString(&c.Output.LogDirectory, d.Output.LogDirectory)
	setInt(&c.UI.RowsPerPage, d.UI.RowsPerPage)
	setString(&c.AI.Model, d.AI.Model)
	setInt(&c.AI.TimeoutSeconds, d.AI.TimeoutSeconds)
	setString(&c.AI.DebugDirectory, d.AI.DebugDirectory)
}

// Validate checks that the layout is internally consistent.
func (c *Config) Validate() error {
	l := c.Layout
	var problems []string

	if l.QuestionnaireCount < 1 {
		problems = append(problems, "questionnaire_count must be at least 1")
	}
	positive := []struct {
		name  string
		value int
	}{
		{"header_row", l.HeaderRow},
		{"meta_last_column", l.MetaLastColumn},
		{"label_column", l.LabelColumn},
		{"meta_first_row", l.MetaFirstRow},
		{"meta_last_row", l.MetaLastRow},
		{"question_first_row", l.QuestionFirstRow},
		{"score_column", l.ScoreColumn},
		{"comment_column", l.CommentColumn},
		{"clear_column", l.ClearColumn},
		{"clear_first_row", l.ClearFirstRow},
		{"clear_last_row", l.ClearLastRow},
	}
	for _, p := range positive {
		if p.value < 1 {
			problems = append(problems, p.name+" must be at least 1")
		}
	}
	if l.MetaFirstRow > l.MetaLastRow {
		problems = append(problems, "meta_first_row is after meta_last_row")
	}
	if l.ClearFirstRow > l.ClearLastRow {
		problems = append(problems, "clear_first_row is after clear_last_row")
	}
	if l.QuestionFirstRow <= l.MetaLastRow {
		problems = append(problems, "question_first_row must come after meta_last_row")
	}
	scoreEnd := l.ScoreColumn + l.QuestionnaireCount - 1
	commentEnd := l.CommentColumn + l.QuestionnaireCount - 1
	if l.ScoreColumn <= commentEnd && l.CommentColumn <= scoreEnd {
		problems = append(problems, "score and comment column ranges overlap")
	}
	if l.ClearColumn >= l.ScoreColumn && l.ClearColumn <= scoreEnd {
		problems = append(problems, "clear_column lies inside the score columns")
	}
	if l.ClearColumn >= l.CommentColumn && l.ClearColumn <= commentEnd {
		problems = append(problems, "clear_column lies inside the comment columns")
	}
	for header, row := range l.SectionRows {
		if row < 1 {
			problems = append(problems, "section_rows entry "+header+" has no row")
		}
	}
	switch c.Transfer.OnCollision {
	case "warn", "fail":
	default:
		problems = append(problems, "on_collision must be \"warn\" or \"fail\"")
	}

	if len(problems) > 0 {
		return errors.WithHint(
			errors.Wrap(ErrInvalidConfig, strings.Join(problems, "; ")),
			"fix the [layout] and [transfer] tables in the config file",
		)
	}
	return nil
}

// OutputPath is where the filled report is saved.
func (c *Config) OutputPath() string {
	if c.Transfer.OutputFile != "" {
		return c.Transfer.OutputFile
	}
	return c.Target.File
}

// SaveConfig saves configuration to the specified config file path
func SaveConfig(configPath string, config *Config) error {
	file, err := os.Create(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	logger.Info("Saved configuration", "path", configPath)
	return nil
}
