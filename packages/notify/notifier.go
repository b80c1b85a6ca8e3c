// Package notify posts run summaries to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when tests fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when tests pass
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first passing run after one
	NotifyRecovery NotifyOn = "recovery"
	// NotifyNever disables notifications
	NotifyNever NotifyOn = "never"
)

// ParseNotifyOn validates a policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch n := NotifyOn(strings.ToLower(strings.TrimSpace(s))); n {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery, NotifyNever:
		return n, nil
	case "":
		return NotifyFailure, nil
	}
	return "", fmt.Errorf("unknown notify policy %q", s)
}

// RunSummary is what notifiers report about one run.
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Suite         string        `json:"suite"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	SkippedTests  int           `json:"skipped_tests"`
	PassRate      float64       `json:"pass_rate"`
	Duration      time.Duration `json:"duration"`
	Environment   string        `json:"environment,omitempty"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

// FailedTest represents a failed test for notifications
type FailedTest struct {
	Name       string `json:"name"`
	Platform   string `json:"platform,omitempty"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

// maxFailedListed caps the failures listed in one message.
const maxFailedListed = 10

// SummaryFromRun builds a RunSummary from a finished run.
func SummaryFromRun(res *runner.RunResult, environment string) *RunSummary {
	sum := res.Summary
	s := &RunSummary{
		RunID:        res.RunID.String(),
		Suite:        res.Suite,
		TotalTests:   sum.Total,
		PassedTests:  sum.Passed,
		FailedTests:  sum.Failed,
		SkippedTests: sum.Skipped,
		PassRate:     sum.PassRate,
		Duration:     sum.Duration,
		Environment:  environment,
	}
	for _, rec := range res.Failures() {
		if len(s.FailedResults) == maxFailedListed {
			break
		}
		s.FailedResults = append(s.FailedResults, FailedTest{
			Name:       rec.Name,
			Platform:   rec.Platform,
			Attempts:   rec.Attempt,
			Error:      firstLine(rec.Err),
			Screenshot: rec.Artifact,
		})
	}
	return s
}

func (s *RunSummary) headline() (title string, failed bool) {
	switch {
	case s.FailedTests > 0:
		return fmt.Sprintf("%d test(s) failed", s.FailedTests), true
	case s.IsRecovery:
		return "Tests recovered!", false
	}
	return "All tests passed!", false
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about test results
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of configured notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// SetLastState seeds the previous run's outcome, usually from run history.
func (m *Manager) SetLastState(success bool) {
	m.lastState = success
}

// ShouldNotify applies the policy to summary and marks recoveries.
func (m *Manager) ShouldNotify(summary *RunSummary) bool {
	currentSuccess := summary.FailedTests == 0

	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifyFailure:
		return !currentSuccess
	case NotifySuccess:
		return currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			summary.IsRecovery = true
			return true
		}
		return !currentSuccess
	}
	return false
}

// Notify sends summary to every notifier when the policy allows it. All
// notifiers are tried; their errors are joined.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	should := m.ShouldNotify(summary)
	m.lastState = summary.FailedTests == 0
	if !should {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func postJSON(ctx context.Context, client *http.Client, url, service string, payload any, okStatus ...int) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s notification: %w", service, err)
	}
	defer resp.Body.Close()

	for _, code := range okStatus {
		if resp.StatusCode == code {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s webhook returned status %d: %s", service, resp.StatusCode, string(body))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
