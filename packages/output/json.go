package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID    string      `json:"runId"`
	Suite    string      `json:"suite"`
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	PassRate float64 `json:"passRate"`
	P50      float64 `json:"p50Ms"`
	P90      float64 `json:"p90Ms"`
	P99      float64 `json:"p99Ms"`
}

// JSONTest represents a single test result
type JSONTest struct {
	report.Record
	Duration float64 `json:"duration"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) Format(result *runner.RunResult) error {
	sum := result.Summary
	output := JSONOutput{
		RunID: result.RunID.String(),
		Suite: result.Suite,
		Summary: JSONSummary{
			Total:    sum.Total,
			Passed:   sum.Passed,
			Failed:   sum.Failed,
			Skipped:  sum.Skipped,
			PassRate: sum.PassRate,
			P50:      ms(sum.P50),
			P90:      ms(sum.P90),
			P99:      ms(sum.P99),
		},
		Tests:    make([]JSONTest, 0, len(result.Records)),
		Duration: ms(sum.Duration),
		Time:     sum.FinishedAt.Format(time.RFC3339),
	}

	for _, rec := range result.Records {
		output.Tests = append(output.Tests, JSONTest{Record: rec, Duration: ms(rec.Duration())})
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
