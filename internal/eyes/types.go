// Package eyes is a client for a hosted visual-testing service.
//
// The service stores baselines and computes visual diffs; this package only opens
// sessions, uploads checkpoint screenshots and collects the per-test results.
// Usage mirrors the vendor SDKs: a ClassicRunner owns the asynchronous close
// operations of one or more Eyes, and GetAllTestResults joins them.
package eyes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MatchLevel controls how strictly the service compares a checkpoint with its baseline.
type MatchLevel string

const (
	MatchLevelNone    MatchLevel = "None"
	MatchLevelLayout  MatchLevel = "Layout"
	MatchLevelContent MatchLevel = "Content"
	MatchLevelStrict  MatchLevel = "Strict"
	MatchLevelExact   MatchLevel = "Exact"
)

// ParseMatchLevel accepts a match level name case-insensitively.
func ParseMatchLevel(s string) (MatchLevel, error) {
	for _, l := range []MatchLevel{MatchLevelNone, MatchLevelLayout, MatchLevelContent, MatchLevelStrict, MatchLevelExact} {
		if strings.EqualFold(string(l), s) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown match level: %q", s)
}

// RectangleSize is a width x height pair in CSS pixels.
type RectangleSize struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// IsEmpty reports whether either dimension is unset.
func (r RectangleSize) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r RectangleSize) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// BatchInfo groups the tests of one run in the dashboard.
type BatchInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"startedAt"`
}

// NewBatchInfo creates a batch with a fresh ID.
func NewBatchInfo(name string) *BatchInfo {
	return &BatchInfo{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: time.Now().UTC(),
	}
}

// TestResultsStatus is the service's verdict for a finished test.
type TestResultsStatus string

const (
	StatusPassed     TestResultsStatus = "Passed"
	StatusUnresolved TestResultsStatus = "Unresolved"
	StatusFailed     TestResultsStatus = "Failed"
)

// TestResults is the outcome of a single visual test.
type TestResults struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	AppName    string            `json:"appName"`
	BatchName  string            `json:"batchName"`
	BatchID    string            `json:"batchId"`
	Status     TestResultsStatus `json:"status"`
	Steps      int               `json:"steps"`
	Matches    int               `json:"matches"`
	Mismatches int               `json:"mismatches"`
	Missing    int               `json:"missing"`
	IsNew      bool              `json:"isNew"`
	IsAborted  bool              `json:"isAborted"`
	URL        string            `json:"url"`
	HostApp    string            `json:"hostApp,omitempty"`
	HostOS     string            `json:"hostOS,omitempty"`
	Viewport   RectangleSize     `json:"hostDisplaySize"`
	StartedAt  time.Time         `json:"startedAt"`
	Duration   int               `json:"duration"` // seconds
}

func (r *TestResults) String() string {
	return fmt.Sprintf("%s/%s [%s] steps=%d matches=%d mismatches=%d missing=%d new=%v aborted=%v",
		r.AppName, r.Name, r.Status, r.Steps, r.Matches, r.Mismatches, r.Missing, r.IsNew, r.IsAborted)
}
