package main

import (
	"testing"

	"surveyXfer/internal/matcher"
	"surveyXfer/internal/survey"
	"surveyXfer/internal/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(col int, label string) matcher.SourceEntry[survey.Question] {
	return matcher.SourceEntry[survey.Question]{ID: survey.Question{Column: col, Header: label}, Label: label}
}

func TestReviewQueue(t *testing.T) {
	a := &transfer.Analysis{}
	a.Result.Matches = []matcher.Match[survey.Question, int]{
		{Source: entry(4, "exact"), Target: matcher.Candidate[int]{Label: "exact", Row: 60}, Confidence: 1, Exact: true},
		{Source: entry(9, "fuzzy"), Target: matcher.Candidate[int]{Label: "fuzzy one", Row: 61}, Confidence: 0.75},
	}
	a.Result.Unmatched = []matcher.Unmatched[survey.Question, int]{{Source: entry(7, "lost")}}
	a.Ignored = []matcher.Unmatched[survey.Question, int]{{Source: entry(2, "skipped")}}

	queue := reviewQueue(a)
	require.Len(t, queue, 3)
	assert.Equal(t, "skipped", queue[0].Source.Label)
	assert.Equal(t, "lost", queue[1].Source.Label)
	assert.Equal(t, "fuzzy", queue[2].Source.Label)
	require.NotNil(t, queue[2].Best)
	assert.Equal(t, 61, queue[2].Best.Row)
	assert.InDelta(t, 0.75, queue[2].Confidence, 1e-9)
}
