package mapping

import (
	"testing"

	"surveyXfer/internal/matcher"
	"surveyXfer/internal/survey"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

func reviewFixture() model {
	questions := []matcher.Unmatched[survey.Question, int]{
		{Source: src(40, "Встреча и приветствие клиента"), Best: &matcher.Candidate[int]{Label: "приветствие клиента", Row: 61}, Confidence: 0.5},
		{Source: src(42, "Погода")},
		{Source: src(44, "Предложили кофе")},
	}
	targets := []matcher.TargetEntry[int]{
		{Label: "Звонок", Row: 60},
		{Label: "Приветствие клиента", Row: 61},
		{Label: "Предложение напитков", Row: 62},
	}
	return initialModel(questions, targets, &OverrideFile{}, UIConfig{RowsPerPage: 10})
}

func TestReviewPickTarget(t *testing.T) {
	m := reviewFixture()

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, stateSelectTarget, m.state)
	// Cursor starts on the best candidate.
	assert.Equal(t, 1, m.targetCursor)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, stateSelectQuestion, m.state)
	assert.Equal(t, 1, m.cursor)

	o, ok := m.overrides.Lookup("Встреча и приветствие клиента")
	require.True(t, ok)
	assert.Equal(t, 61, o.TargetRow)
	assert.Equal(t, OriginManual, o.Origin)
}

func TestReviewIgnoreAndUndo(t *testing.T) {
	m := reviewFixture()
	m = press(t, m, keys("j"), keys("i"))

	o, ok := m.overrides.Lookup("Погода")
	require.True(t, ok)
	assert.True(t, o.IsIgnored)
	assert.Equal(t, 2, m.cursor)

	m = press(t, m, keys("k"), keys("u"))
	_, ok = m.overrides.Lookup("Погода")
	assert.False(t, ok)
}

func TestReviewFilter(t *testing.T) {
	m := reviewFixture()
	m = press(t, m, keys("j"), keys("j"), tea.KeyMsg{Type: tea.KeyEnter}, keys("/"))
	require.True(t, m.filtering)

	m = press(t, m, keys("напит"))
	require.Len(t, m.visible, 1)
	assert.Equal(t, 2, m.visible[0])

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyEnter})
	o, ok := m.overrides.Lookup("Предложили кофе")
	require.True(t, ok)
	assert.Equal(t, 62, o.TargetRow)
}

func TestReviewFilterBackspaceAndEsc(t *testing.T) {
	m := reviewFixture()
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter}, keys("/"), keys("zzz"))
	assert.Empty(t, m.visible)
	assert.Contains(t, m.View(), "no rows match")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "zz", m.query)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.filtering)
	assert.Len(t, m.visible, 3)
}

func TestReviewConfirm(t *testing.T) {
	m := reviewFixture()
	m = press(t, m, keys("s"))
	assert.Equal(t, stateConfirm, m.state)
	assert.Contains(t, m.View(), "Still unresolved: 3")

	next, cmd := m.Update(keys("y"))
	assert.True(t, next.(model).saved)
	assert.NotNil(t, cmd)
}

func TestReviewWorksOnCopy(t *testing.T) {
	of := &OverrideFile{}
	m := initialModel(reviewFixture().questions, reviewFixture().targets, of, UIConfig{})
	m = press(t, m, keys("i"))
	assert.Empty(t, of.Overrides)
	assert.Len(t, m.overrides.Overrides, 1)
}

func TestRunReviewTUIRejectsEmptyInput(t *testing.T) {
	_, err := RunReviewTUI(nil, nil, &OverrideFile{}, "x.json", UIConfig{})
	assert.Error(t, err)
}
