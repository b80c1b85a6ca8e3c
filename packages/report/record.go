package report

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state of one test execution.
type Status int

const (
	StatusPassed Status = iota + 1
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "passed", "pass":
		return StatusPassed, nil
	case "failed", "fail":
		return StatusFailed, nil
	case "skipped", "skip":
		return StatusSkipped, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Record is the outcome of one test execution attempt. It is not modified
// after being handed to an Aggregator.
type Record struct {
	TestID   string    `json:"testId"`
	Name     string    `json:"name"`
	Status   Status    `json:"status"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Err      string    `json:"error,omitempty"`
	Artifact string    `json:"artifact,omitempty"`
	Attempt  int       `json:"attempt"`
	Platform string    `json:"platform,omitempty"`
	Worker   string    `json:"worker,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
}

func (r Record) Duration() time.Duration {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

func (r Record) Passed() bool  { return r.Status == StatusPassed }
func (r Record) Failed() bool  { return r.Status == StatusFailed }
func (r Record) Skipped() bool { return r.Status == StatusSkipped }

// Summary is the run-level view produced by Aggregator.OnFinish.
type Summary struct {
	Suite      string        `json:"suite"`
	Total      int           `json:"total"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	PassRate   float64       `json:"passRate"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`

	// Test duration percentiles over every recorded outcome
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P99 time.Duration `json:"p99"`
	Max time.Duration `json:"max"`
}

// Success reports whether no test failed.
func (s Summary) Success() bool {
	return s.Failed == 0
}

func passRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}
