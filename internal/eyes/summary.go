package eyes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// TestResultContainer holds either the results of one test or the error that
// prevented them.
type TestResultContainer struct {
	TestResults *TestResults `json:"testResults,omitempty"`
	Err         error        `json:"-"`
}

// MarshalJSON renders Err as a string.
func (c TestResultContainer) MarshalJSON() ([]byte, error) {
	type wire struct {
		TestResults *TestResults `json:"testResults,omitempty"`
		Error       string       `json:"error,omitempty"`
	}
	w := wire{TestResults: c.TestResults}
	if c.Err != nil {
		w.Error = c.Err.Error()
	}
	return json.Marshal(w)
}

// TestResultsSummary aggregates all tests of a runner.
type TestResultsSummary struct {
	Results    []TestResultContainer `json:"results"`
	Passed     int                   `json:"passed"`
	Unresolved int                   `json:"unresolved"`
	Failed     int                   `json:"failed"`
	Exceptions int                   `json:"exceptions"`
	Mismatches int                   `json:"mismatches"`
	Missing    int                   `json:"missing"`
	Matches    int                   `json:"matches"`
}

// DiffsFoundError reports a test whose checkpoints differ from the baseline.
type DiffsFoundError struct {
	Results *TestResults
}

func (e *DiffsFoundError) Error() string {
	return fmt.Sprintf("test %q of %q detected differences, see %s", e.Results.Name, e.Results.AppName, e.Results.URL)
}

// TestFailedError reports a test the service marked as failed.
type TestFailedError struct {
	Results *TestResults
}

func (e *TestFailedError) Error() string {
	return fmt.Sprintf("test %q of %q failed, see %s", e.Results.Name, e.Results.AppName, e.Results.URL)
}

// NewTestResultsSummary counts the outcomes of containers.
func NewTestResultsSummary(containers []TestResultContainer) *TestResultsSummary {
	s := &TestResultsSummary{Results: containers}
	for _, c := range containers {
		if c.Err != nil {
			s.Exceptions++
		}
		r := c.TestResults
		if r == nil {
			continue
		}
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusUnresolved:
			s.Unresolved++
		case StatusFailed:
			s.Failed++
		}
		s.Mismatches += r.Mismatches
		s.Missing += r.Missing
		s.Matches += r.Matches
	}
	return s
}

// Err joins the errors of every test that did not pass cleanly.
// Aborted tests are not reported here; their cause was already surfaced.
func (s *TestResultsSummary) Err() error {
	var errs []error
	for _, c := range s.Results {
		if c.Err != nil {
			errs = append(errs, c.Err)
			continue
		}
		r := c.TestResults
		if r == nil || r.IsAborted {
			continue
		}
		switch r.Status {
		case StatusUnresolved:
			errs = append(errs, &DiffsFoundError{Results: r})
		case StatusFailed:
			errs = append(errs, &TestFailedError{Results: r})
		}
	}
	return errors.Join(errs...)
}

var (
	passedColor     = color.New(color.FgGreen, color.Bold)
	unresolvedColor = color.New(color.FgYellow, color.Bold)
	failedColor     = color.New(color.FgRed, color.Bold)
	faintColor      = color.New(color.Faint)
)

func statusText(r *TestResults) string {
	label := string(r.Status)
	if label == "" {
		label = "Unknown"
	}
	if r.IsAborted {
		label += " (aborted)"
	} else if r.IsNew {
		label += " (new)"
	}
	switch r.Status {
	case StatusPassed:
		return passedColor.Sprint(label)
	case StatusUnresolved:
		return unresolvedColor.Sprint(label)
	default:
		return failedColor.Sprint(label)
	}
}

// WriteText prints a human-readable summary.
func (s *TestResultsSummary) WriteText(w io.Writer) error {
	var b strings.Builder

	b.WriteString("result summary {\n")
	b.WriteString("    all results =\n")
	if len(s.Results) == 0 {
		b.WriteString("        " + faintColor.Sprint("(none)") + "\n")
	}
	for _, c := range s.Results {
		b.WriteString("        test result {\n")
		if r := c.TestResults; r != nil {
			fmt.Fprintf(&b, "            test      = %s / %s\n", r.AppName, r.Name)
			fmt.Fprintf(&b, "            status    = %s\n", statusText(r))
			fmt.Fprintf(&b, "            batch     = %s\n", r.BatchName)
			fmt.Fprintf(&b, "            viewport  = %s\n", r.Viewport)
			fmt.Fprintf(&b, "            steps     = %d (matches %d, mismatches %d, missing %d)\n",
				r.Steps, r.Matches, r.Mismatches, r.Missing)
			if r.URL != "" {
				fmt.Fprintf(&b, "            url       = %s\n", r.URL)
			}
		}
		if c.Err != nil {
			fmt.Fprintf(&b, "            exception = %s\n", failedColor.Sprint(c.Err.Error()))
		}
		b.WriteString("        }\n")
	}
	fmt.Fprintf(&b, "    passed     = %d\n", s.Passed)
	fmt.Fprintf(&b, "    unresolved = %d\n", s.Unresolved)
	fmt.Fprintf(&b, "    failed     = %d\n", s.Failed)
	fmt.Fprintf(&b, "    exceptions = %d\n", s.Exceptions)
	fmt.Fprintf(&b, "    mismatches = %d\n", s.Mismatches)
	fmt.Fprintf(&b, "    missing    = %d\n", s.Missing)
	fmt.Fprintf(&b, "    matches    = %d\n", s.Matches)
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON prints the summary as indented JSON.
func (s *TestResultsSummary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func (s *TestResultsSummary) String() string {
	var b strings.Builder
	_ = s.WriteText(&b)
	return b.String()
}
