package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
)

// HTMLOutput is the data behind the HTML report.
type HTMLOutput struct {
	RunID          string
	Suite          string
	Summary        HTMLSummary
	Tests          []HTMLTest
	Duration       string
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

type HTMLSummary struct {
	Total    int
	Passed   int
	Failed   int
	Skipped  int
	PassRate float64
}

type HTMLTest struct {
	Name        string
	Platform    string
	Worker      string
	Attempt     int
	Duration    int64
	Error       string
	Screenshot  string
	StatusClass string
	Status      string
}

// HTMLFormatter formats test results as a standalone HTML page.
type HTMLFormatter struct {
	writer io.Writer
	// screenshots are linked relative to baseDir when set
	baseDir string
}

type HTMLOption func(*HTMLFormatter)

func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

// HTMLWithBaseDir makes screenshot links relative to dir.
func HTMLWithBaseDir(dir string) HTMLOption {
	return func(f *HTMLFormatter) {
		f.baseDir = dir
	}
}

func (f *HTMLFormatter) Format(result *runner.RunResult) error {
	sum := result.Summary
	output := HTMLOutput{
		RunID: result.RunID.String(),
		Suite: result.Suite,
		Summary: HTMLSummary{
			Total:    sum.Total,
			Passed:   sum.Passed,
			Failed:   sum.Failed,
			Skipped:  sum.Skipped,
			PassRate: sum.PassRate,
		},
		Duration: sum.Duration.Round(time.Millisecond).String(),
		Time:     sum.FinishedAt.Format(timestampLayout),
	}
	if sum.Total > 0 {
		output.PassedPercent = percent(sum.Passed, sum.Total)
		output.FailedPercent = percent(sum.Failed, sum.Total)
		output.SkippedPercent = percent(sum.Skipped, sum.Total)
	}

	for _, rec := range result.Records {
		output.Tests = append(output.Tests, HTMLTest{
			Name:        rec.Name,
			Platform:    rec.Platform,
			Worker:      rec.Worker,
			Attempt:     rec.Attempt,
			Duration:    rec.Duration().Milliseconds(),
			Error:       rec.Err,
			Screenshot:  f.link(rec.Artifact),
			StatusClass: rec.Status.String(),
			Status:      rec.Status.String(),
		})
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return tmpl.Execute(f.writer, output)
}

func (f *HTMLFormatter) link(path string) string {
	if path == "" || f.baseDir == "" {
		return filepath.ToSlash(path)
	}
	if rel, err := filepath.Rel(f.baseDir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

func percent(n, total int) float64 {
	return float64(n) / float64(total) * 100
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Suite}} · bankspec report</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1f2933; }
h1 { margin-bottom: 0.25rem; }
.meta { color: #616e7c; margin-bottom: 1.5rem; }
.bar { display: flex; height: 12px; border-radius: 6px; overflow: hidden; margin-bottom: 1.5rem; }
.bar .passed { background: #3ebd93; } .bar .failed { background: #ef4e4e; } .bar .skipped { background: #f7c948; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid #e4e7eb; vertical-align: top; }
tr.failed td:first-child { border-left: 4px solid #ef4e4e; }
tr.passed td:first-child { border-left: 4px solid #3ebd93; }
tr.skipped td:first-child { border-left: 4px solid #f7c948; }
pre { white-space: pre-wrap; margin: 0; font-size: 0.85rem; }
img { max-width: 320px; border: 1px solid #cbd2d9; }
</style>
</head>
<body>
<h1>{{.Suite}}</h1>
<div class="meta">Run {{.RunID}} · finished {{.Time}} · {{.Duration}}</div>
<p>
<strong>{{.Summary.Total}}</strong> total ·
<strong>{{.Summary.Passed}}</strong> passed ·
<strong>{{.Summary.Failed}}</strong> failed ·
<strong>{{.Summary.Skipped}}</strong> skipped ·
pass rate <strong>{{printf "%.1f" .Summary.PassRate}}%</strong>
</p>
<div class="bar">
<div class="passed" style="width: {{printf "%.2f" .PassedPercent}}%"></div>
<div class="failed" style="width: {{printf "%.2f" .FailedPercent}}%"></div>
<div class="skipped" style="width: {{printf "%.2f" .SkippedPercent}}%"></div>
</div>
<table>
<thead><tr><th>Test</th><th>Status</th><th>Platform</th><th>Attempts</th><th>Duration</th><th>Details</th></tr></thead>
<tbody>
{{range .Tests}}<tr class="{{.StatusClass}}">
<td>{{.Name}}</td>
<td>{{.Status}}</td>
<td>{{.Platform}}</td>
<td>{{.Attempt}}</td>
<td>{{.Duration}}ms</td>
<td>{{if .Error}}<pre>{{.Error}}</pre>{{end}}{{if .Screenshot}}<a href="{{.Screenshot}}"><img src="{{.Screenshot}}" alt="screenshot of {{.Name}}"></a>{{end}}</td>
</tr>
{{end}}</tbody>
</table>
</body>
</html>
`
