package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/fatih/color"
)

const (
	banner          = "========================================"
	timestampLayout = "2006-01-02 15:04:05"
)

// ConsoleListener prints run progress as it happens. Lines from parallel
// workers never interleave.
type ConsoleListener struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleListener)

func NewConsoleListener(opts ...ConsoleOption) *ConsoleListener {
	f := &ConsoleListener{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleListener) {
		f.writer = w
	}
}

// WithVerbose also prints a line when each test starts.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleListener) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleListener) {
		f.noColor = nc
	}
}

func (f *ConsoleListener) printf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, format, args...)
}

func (f *ConsoleListener) OnStart(suite string, at time.Time) {
	bold := color.New(color.Bold).SprintFunc()
	f.printf("%s\n  %s\n  Started: %s\n%s\n",
		banner, bold("TEST SUITE: "+suite), at.Format(timestampLayout), banner)
}

func (f *ConsoleListener) OnTestStart(testID string) {
	if !f.verbose {
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	f.printf("%s %s\n", cyan("[START]"), testID)
}

func (f *ConsoleListener) OnOutcome(rec report.Record) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	ms := rec.Duration().Milliseconds()

	switch rec.Status {
	case report.StatusPassed:
		line := fmt.Sprintf("%s %s (%dms)", green("[PASS]"), rec.TestID, ms)
		if rec.Attempt > 1 {
			line += yellow(fmt.Sprintf(" after %d attempts", rec.Attempt))
		}
		f.printf("%s\n", line)

	case report.StatusFailed:
		msg := fmt.Sprintf("%s %s (%dms)\n  Error: %s\n", red("[FAIL]"), rec.TestID, ms, rec.Err)
		if rec.Artifact != "" {
			msg += fmt.Sprintf("  Screenshot: %s\n", rec.Artifact)
		}
		f.printf("%s", msg)

	case report.StatusSkipped:
		msg := fmt.Sprintf("%s %s\n", yellow("[SKIP]"), rec.TestID)
		if rec.Err != "" {
			msg += fmt.Sprintf("  Reason: %s\n", rec.Err)
		}
		f.printf("%s", msg)
	}
}

func (f *ConsoleListener) OnFinish(sum report.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	failed := fmt.Sprint(sum.Failed)
	if sum.Failed > 0 {
		failed = red(failed)
	}

	f.printf("%s\n  TEST RESULTS SUMMARY\n%s\n", banner, banner)
	f.printf("  Total    : %d\n", sum.Total)
	f.printf("  Passed   : %s\n", green(sum.Passed))
	f.printf("  Failed   : %s\n", failed)
	f.printf("  Skipped  : %s\n", yellow(sum.Skipped))
	f.printf("  Pass Rate: %.1f%%\n", sum.PassRate)
	f.printf("  Duration : %ds\n", int64(sum.Duration.Seconds()))
	if f.verbose && sum.Max > 0 {
		f.printf("  Latency  : p50 %s, p90 %s, p99 %s, max %s\n", sum.P50, sum.P90, sum.P99, sum.Max)
	}
	f.printf("  Finished : %s\n%s\n", sum.FinishedAt.Format(timestampLayout), banner)
}

// FormatError prints a run-level error.
func (f *ConsoleListener) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	f.printf("%s %v\n", red("Error:"), err)
}

func (f *ConsoleListener) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	f.printf("%s %s\n", bold("bankspec"), version)
}
