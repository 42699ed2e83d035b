package mapping

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"surveyXfer/internal/matcher"
	"surveyXfer/internal/survey"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// UI States
type state int

const (
	stateSelectQuestion state = iota
	stateSelectTarget
	stateConfirm
)

// UIConfig represents UI configuration settings
type UIConfig struct {
	RowsPerPage int
}

type model struct {
	questions []matcher.Unmatched[survey.Question, int]
	targets   []matcher.TargetEntry[int]
	labels    []string
	overrides *OverrideFile

	state state
	saved bool

	// Question list
	cursor  int
	perPage int

	// Target selection
	visible      []int
	targetCursor int
	filtering    bool
	query        string

	width  int
	height int

	titleStyle    lipgloss.Style
	selectedStyle lipgloss.Style
	normalStyle   lipgloss.Style
	helpStyle     lipgloss.Style
	progressStyle lipgloss.Style
	mappedStyle   lipgloss.Style
	ignoredStyle  lipgloss.Style
}

func initialModel(questions []matcher.Unmatched[survey.Question, int], targets []matcher.TargetEntry[int], overrides *OverrideFile, uiConfig UIConfig) model {
	perPage := uiConfig.RowsPerPage
	if perPage < 1 {
		perPage = 15
	}

	labels := make([]string, len(targets))
	for i, t := range targets {
		labels[i] = t.Label
	}

	working := &OverrideFile{}
	if overrides != nil {
		working.Overrides = append([]Override(nil), overrides.Overrides...)
	}

	return model{
		questions: questions,
		targets:   targets,
		labels:    labels,
		overrides: working,
		state:     stateSelectQuestion,
		perPage:   perPage,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		normalStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		progressStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),
		mappedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("40")).
			Padding(0, 1),
		ignoredStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Strikethrough(true).
			Padding(0, 1),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.perPage = max(m.height-8, 5)
	case tea.KeyMsg:
		switch m.state {
		case stateSelectQuestion:
			return m.updateSelectQuestion(msg)
		case stateSelectTarget:
			return m.updateSelectTarget(msg)
		case stateConfirm:
			return m.updateConfirm(msg)
		}
	}
	return m, nil
}

func (m model) updateSelectQuestion(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.questions)-1 {
			m.cursor++
		}

	case "left", "h":
		m.cursor = max(m.cursor-m.perPage, 0)

	case "right", "l":
		m.cursor = min(m.cursor+m.perPage, max(len(m.questions)-1, 0))

	case "enter":
		if m.cursor < len(m.questions) {
			m.state = stateSelectTarget
			m.query = ""
			m.filtering = false
			m.applyFilter()
			m.targetCursor = m.bestCandidatePosition()
		}

	case "i":
		if m.cursor < len(m.questions) {
			label := m.questions[m.cursor].Source.Label
			if o, ok := m.overrides.Lookup(label); ok && o.IsIgnored {
				m.overrides.Remove(label)
			} else {
				m.overrides.Set(Override{SourceLabel: label, IsIgnored: true, Origin: OriginManual})
				m.moveToNextUnresolved()
			}
		}

	case "u":
		if m.cursor < len(m.questions) {
			m.overrides.Remove(m.questions[m.cursor].Source.Label)
		}

	case "n":
		m.moveToNextUnresolved()

	case "s":
		m.state = stateConfirm
	}
	return m, nil
}

func (m model) updateSelectTarget(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.filtering {
		switch key {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.filtering = false
		case "esc":
			m.filtering = false
			m.query = ""
			m.applyFilter()
		case "backspace":
			if r := []rune(m.query); len(r) > 0 {
				m.query = string(r[:len(r)-1])
				m.applyFilter()
			}
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				m.query += string(msg.Runes)
				m.applyFilter()
			}
		}
		return m, nil
	}

	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		m.state = stateSelectQuestion
	case "/":
		m.filtering = true
	case "up", "k":
		if m.targetCursor > 0 {
			m.targetCursor--
		}
	case "down", "j":
		if m.targetCursor < len(m.visible)-1 {
			m.targetCursor++
		}
	case "left", "h":
		m.targetCursor = max(m.targetCursor-m.perPage, 0)
	case "right", "l":
		m.targetCursor = min(m.targetCursor+m.perPage, max(len(m.visible)-1, 0))
	case "enter":
		if m.targetCursor < len(m.visible) {
			target := m.targets[m.visible[m.targetCursor]]
			m.overrides.Set(Override{
				SourceLabel: m.questions[m.cursor].Source.Label,
				TargetRow:   target.Row,
				TargetLabel: target.Label,
				Origin:      OriginManual,
				Confidence:  1.0,
			})
			m.state = stateSelectQuestion
			m.moveToNextUnresolved()
		}
	}
	return m, nil
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "n":
		return m, tea.Quit
	case "y":
		m.saved = true
		return m, tea.Quit
	case "esc":
		m.state = stateSelectQuestion
	}
	return m, nil
}

// applyFilter narrows the target list to fuzzy hits of the query, best first.
func (m *model) applyFilter() {
	m.targetCursor = 0
	if m.query == "" {
		m.visible = make([]int, len(m.targets))
		for i := range m.targets {
			m.visible[i] = i
		}
		return
	}

	ranks := fuzzy.RankFindNormalizedFold(m.query, m.labels)
	sort.Sort(ranks)
	m.visible = make([]int, len(ranks))
	for i, r := range ranks {
		m.visible[i] = r.OriginalIndex
	}
}

func (m model) bestCandidatePosition() int {
	best := m.questions[m.cursor].Best
	if best == nil {
		return 0
	}
	for pos, idx := range m.visible {
		if m.targets[idx].Row == best.Row {
			return pos
		}
	}
	return 0
}

func (m model) resolved(i int) (Override, bool) {
	return m.overrides.Lookup(m.questions[i].Source.Label)
}

func (m *model) moveToNextUnresolved() {
	n := len(m.questions)
	for step := 1; step < n; step++ {
		i := (m.cursor + step) % n
		if _, ok := m.resolved(i); !ok {
			m.cursor = i
			return
		}
	}
}

func (m model) View() string {
	switch m.state {
	case stateSelectQuestion:
		return m.viewSelectQuestion()
	case stateSelectTarget:
		return m.viewSelectTarget()
	case stateConfirm:
		return m.viewConfirm()
	}
	return ""
}

func (m model) counts() (mapped, ignored int) {
	for i := range m.questions {
		if o, ok := m.resolved(i); ok {
			if o.IsIgnored {
				ignored++
			} else if o.TargetRow > 0 {
				mapped++
			}
		}
	}
	return mapped, ignored
}

func pageBounds(cursor, perPage, total int) (start, end, page, pages int) {
	page = cursor / perPage
	pages = max(int(math.Ceil(float64(total)/float64(perPage))), 1)
	start = page * perPage
	end = min(start+perPage, total)
	return start, end, page, pages
}

func (m model) truncate(s string) string {
	limit := m.width - 6
	if limit < 20 {
		limit = 100
	}
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit-3]) + "..."
	}
	return s
}

func (m model) viewSelectQuestion() string {
	var b strings.Builder

	b.WriteString(m.titleStyle.Render("Unmatched Survey Questions"))
	b.WriteString("\n\n")

	mapped, ignored := m.counts()
	progress := fmt.Sprintf("Progress: %d/%d resolved (%d ignored)", mapped+ignored, len(m.questions), ignored)
	b.WriteString(m.progressStyle.Render(progress))
	b.WriteString("\n\n")

	start, end, page, pages := pageBounds(m.cursor, m.perPage, len(m.questions))
	b.WriteString(m.helpStyle.Render(fmt.Sprintf("Page %d/%d", page+1, pages)))
	b.WriteString("\n\n")

	for i := start; i < end; i++ {
		q := m.questions[i]
		text := q.Source.Label
		style := m.normalStyle

		if o, ok := m.resolved(i); ok && o.IsIgnored {
			text += " (ignored)"
			style = m.ignoredStyle
		} else if ok && o.TargetRow > 0 {
			text = fmt.Sprintf("%s → row %d %s", text, o.TargetRow, o.TargetLabel)
			style = m.mappedStyle
		} else if q.Best != nil {
			text = fmt.Sprintf("%s (best: row %d, %.2f)", text, q.Best.Row, q.Confidence)
		}

		if i == m.cursor {
			style = m.selectedStyle
		}
		b.WriteString(style.Render(m.truncate(text)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := "↑↓: navigate | ←→: page | Enter: pick row | i: ignore | u: undo | n: next unresolved | s: save | q: quit"
	b.WriteString(m.helpStyle.Render(help))

	return b.String()
}

func (m model) viewSelectTarget() string {
	var b strings.Builder

	title := fmt.Sprintf("Report row for '%s':", m.questions[m.cursor].Source.Label)
	b.WriteString(m.titleStyle.Render(m.truncate(title)))
	b.WriteString("\n\n")

	filter := "Filter: " + m.query
	if m.filtering {
		filter += "█"
	}
	b.WriteString(m.helpStyle.Render(filter))
	b.WriteString("\n\n")

	start, end, page, pages := pageBounds(m.targetCursor, m.perPage, len(m.visible))
	for pos := start; pos < end; pos++ {
		t := m.targets[m.visible[pos]]
		line := fmt.Sprintf("%4d  %s", t.Row, t.Label)
		if pos == m.targetCursor {
			b.WriteString(m.selectedStyle.Render("> " + m.truncate(line)))
		} else {
			b.WriteString(m.normalStyle.Render("  " + m.truncate(line)))
		}
		b.WriteString("\n")
	}
	if len(m.visible) == 0 {
		b.WriteString(m.helpStyle.Render("  no rows match the filter"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.helpStyle.Render(fmt.Sprintf("Page %d/%d", page+1, pages)))
	b.WriteString("\n")
	help := "↑↓: navigate | ←→: page | /: filter | Enter: select | Esc: back | q: quit"
	b.WriteString(m.helpStyle.Render(help))

	return b.String()
}

func (m model) viewConfirm() string {
	var b strings.Builder

	b.WriteString(m.titleStyle.Render("Save Overrides?"))
	b.WriteString("\n\n")

	mapped, ignored := m.counts()
	b.WriteString(fmt.Sprintf("Unmatched questions: %d\n", len(m.questions)))
	b.WriteString(fmt.Sprintf("Pinned to a row: %d\n", mapped))
	b.WriteString(fmt.Sprintf("Ignored: %d\n", ignored))
	b.WriteString(fmt.Sprintf("Still unresolved: %d\n", len(m.questions)-mapped-ignored))
	b.WriteString("\n")

	b.WriteString(m.helpStyle.Render("y/n to confirm, Esc to go back"))

	return b.String()
}

// RunReviewTUI lets the user pin or ignore unmatched questions and saves the
// result to overridesPath. of is updated in place when the user saves.
func RunReviewTUI(questions []matcher.Unmatched[survey.Question, int], targets []matcher.TargetEntry[int], of *OverrideFile, overridesPath string, uiConfig UIConfig) (bool, error) {
	if len(questions) == 0 {
		return false, errors.New("no unmatched questions to review")
	}
	if len(targets) == 0 {
		return false, errors.New("report template has no question rows")
	}

	m := initialModel(questions, targets, of, uiConfig)
	if _, ok := m.resolved(0); ok {
		m.moveToNextUnresolved()
	}

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return false, errors.Wrap(err, "error running TUI")
	}

	final := finalModel.(model)
	if !final.saved {
		return false, nil
	}

	of.Overrides = final.overrides.Overrides
	if err := of.SaveToFile(overridesPath); err != nil {
		return false, errors.Wrap(err, "failed to save overrides")
	}
	return true, nil
}
