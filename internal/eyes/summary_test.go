package eyes

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestSummaryCounts(t *testing.T) {
	summary := NewTestResultsSummary([]TestResultContainer{
		{TestResults: &TestResults{Name: "a", Status: StatusPassed, Matches: 2}},
		{TestResults: &TestResults{Name: "b", Status: StatusUnresolved, Matches: 1, Mismatches: 1}},
		{TestResults: &TestResults{Name: "c", Status: StatusFailed, Missing: 1, IsAborted: true}},
		{Err: errors.New("connection reset")},
	})

	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Exceptions)
	assert.Equal(t, 3, summary.Matches)
	assert.Equal(t, 1, summary.Mismatches)
	assert.Equal(t, 1, summary.Missing)

	err := summary.Err()
	require.Error(t, err)
	var diffs *DiffsFoundError
	assert.ErrorAs(t, err, &diffs)
	assert.ErrorContains(t, err, "connection reset")
	// aborted tests are not reported again
	var failed *TestFailedError
	assert.False(t, errors.As(err, &failed))
}

func TestSummaryErrNilWhenAllPassed(t *testing.T) {
	summary := NewTestResultsSummary([]TestResultContainer{
		{TestResults: &TestResults{Status: StatusPassed}},
	})
	assert.NoError(t, summary.Err())
}

func TestSummaryText(t *testing.T) {
	summary := NewTestResultsSummary([]TestResultContainer{
		{TestResults: &TestResults{
			Name:      "Log into bank account",
			AppName:   "ACME Bank Web App",
			BatchName: "demo",
			Status:    StatusPassed,
			Steps:     2,
			Matches:   2,
			IsNew:     true,
			Viewport:  RectangleSize{Width: 1200, Height: 600},
			URL:       "https://eyes.example/app/batches/1",
		}},
	})

	out := summary.String()
	assert.Contains(t, out, "result summary {")
	assert.Contains(t, out, "ACME Bank Web App / Log into bank account")
	assert.Contains(t, out, "status    = Passed (new)")
	assert.Contains(t, out, "viewport  = 1200x600")
	assert.Contains(t, out, "steps     = 2 (matches 2, mismatches 0, missing 0)")
	assert.Contains(t, out, "url       = https://eyes.example/app/batches/1")
	assert.Contains(t, out, "passed     = 1")
}

func TestSummaryTextEmpty(t *testing.T) {
	out := NewTestResultsSummary(nil).String()
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, "exceptions = 0")
}

func TestSummaryJSON(t *testing.T) {
	summary := NewTestResultsSummary([]TestResultContainer{
		{TestResults: &TestResults{Name: "a", Status: StatusPassed}},
		{Err: errors.New("boom")},
	})

	var buf bytes.Buffer
	require.NoError(t, summary.WriteJSON(&buf))

	var decoded struct {
		Results []struct {
			TestResults *TestResults `json:"testResults"`
			Error       string       `json:"error"`
		} `json:"results"`
		Passed     int `json:"passed"`
		Exceptions int `json:"exceptions"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "a", decoded.Results[0].TestResults.Name)
	assert.Equal(t, "boom", decoded.Results[1].Error)
	assert.Equal(t, 1, decoded.Passed)
	assert.Equal(t, 1, decoded.Exceptions)
}

func TestParseMatchLevel(t *testing.T) {
	level, err := ParseMatchLevel("layout")
	require.NoError(t, err)
	assert.Equal(t, MatchLevelLayout, level)

	_, err = ParseMatchLevel("fuzzy")
	assert.Error(t, err)
}

func TestCheckSettingsChain(t *testing.T) {
	s := Window().Fully().WithName("Main page").Layout()
	assert.Equal(t, "Main page", s.Name())
	assert.True(t, s.IsFully())
	assert.Equal(t, MatchLevelLayout, s.GetMatchLevel())

	assert.Equal(t, MatchLevel(""), Window().GetMatchLevel())
	assert.False(t, Window().IsFully())
}
