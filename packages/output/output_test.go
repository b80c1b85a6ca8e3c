package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func sampleResult() *runner.RunResult {
	records := []report.Record{
		{
			TestID: "Login_Valid", Name: "Login_Valid", Status: report.StatusPassed,
			Start: start, End: start.Add(1200 * time.Millisecond), Attempt: 1, Platform: "web", Worker: "worker-1",
		},
		{
			TestID: "Transfer_Domestic", Name: "Transfer_Domestic", Status: report.StatusFailed,
			Start: start, End: start.Add(3 * time.Second), Attempt: 3, Platform: "web", Worker: "worker-2",
			Err:      "step 4 (click #confirm): timed out after 15s waiting for visible #confirm",
			Artifact: "reports/screenshots/Transfer_Domestic_20260302_093003.000000000.png",
		},
		{
			TestID: "Accounts_Landscape", Name: "Accounts_Landscape", Status: report.StatusFailed,
			Start: start, End: start.Add(10 * time.Millisecond), Attempt: 1, Platform: "android",
			Err: "provisioning android session (http://127.0.0.1:4723): connection refused",
		},
		{
			TestID: "Transfer_International", Name: "Transfer_International", Status: report.StatusSkipped,
			Start: start, End: start, Platform: "web", Err: "sandbox pending",
		},
	}
	return &runner.RunResult{
		RunID:   ulid.MustParse("01JNBQ7X2M8Z6K4T3V9W5Y1H0R"),
		Suite:   "smoke",
		Records: records,
		Summary: report.Summary{
			Suite: "smoke", Total: 4, Passed: 1, Failed: 2, Skipped: 1, PassRate: 25,
			Duration: 4 * time.Second, StartedAt: start, FinishedAt: start.Add(4 * time.Second),
			P50: 1200 * time.Millisecond, P90: 3 * time.Second,
		},
	}
}

func TestConsoleListener(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleListener(WithWriter(&buf), WithNoColor(true), WithVerbose(true))
	res := sampleResult()

	c.OnStart("smoke", start)
	c.OnTestStart("Login_Valid")
	for _, rec := range res.Records {
		c.OnOutcome(rec)
	}
	c.OnFinish(res.Summary)

	out := buf.String()
	assert.Contains(t, out, "TEST SUITE: smoke")
	assert.Contains(t, out, "Started: 2026-03-02 09:30:00")
	assert.Contains(t, out, "[START] Login_Valid")
	assert.Contains(t, out, "[PASS] Login_Valid (1200ms)")
	assert.Contains(t, out, "[FAIL] Transfer_Domestic (3000ms)")
	assert.Contains(t, out, "  Error: step 4 (click #confirm)")
	assert.Contains(t, out, "  Screenshot: reports/screenshots/Transfer_Domestic_")
	assert.Contains(t, out, "[SKIP] Transfer_International\n  Reason: sandbox pending")
	assert.Contains(t, out, "  Total    : 4")
	assert.Contains(t, out, "  Pass Rate: 25.0%")
	assert.Contains(t, out, "  Duration : 4s")
	assert.Contains(t, out, "  Finished : 2026-03-02 09:30:04")
}

func TestConsoleListenerQuietStart(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleListener(WithWriter(&buf), WithNoColor(true))
	c.OnTestStart("Login_Valid")
	assert.Empty(t, buf.String())
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(JSONWithWriter(&buf)).Format(sampleResult()))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, "01JNBQ7X2M8Z6K4T3V9W5Y1H0R", out.RunID)
	assert.Equal(t, 4, out.Summary.Total)
	assert.Equal(t, 25.0, out.Summary.PassRate)
	assert.Equal(t, 1200.0, out.Summary.P50)
	require.Len(t, out.Tests, 4)
	assert.Equal(t, report.StatusFailed, out.Tests[1].Status)
	assert.Equal(t, 3, out.Tests[1].Attempt)
	assert.Equal(t, 3000.0, out.Tests[1].Duration)
	assert.Contains(t, buf.String(), `"status": "failed"`)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJUnitFormatter(JUnitWithWriter(&buf)).Format(sampleResult()))

	require.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))

	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)
	require.Len(t, suites.TestSuites, 2)
	assert.Equal(t, "smoke (web)", suites.TestSuites[0].Name)
	assert.Equal(t, "smoke (android)", suites.TestSuites[1].Name)

	failed := suites.TestSuites[0].TestCases[1]
	require.NotNil(t, failed.Failure)
	assert.Contains(t, failed.Failure.Content, "attempt: 3")
	assert.Contains(t, failed.Failure.Content, "screenshot: reports/screenshots/")

	provisioning := suites.TestSuites[1].TestCases[0]
	require.NotNil(t, provisioning.Error)
	assert.Equal(t, "ProvisioningError", provisioning.Error.Type)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTAPFormatter(TAPWithWriter(&buf)).Format(sampleResult()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "TAP version 13\n1..4\n"))
	assert.Contains(t, out, "ok 1 - Login_Valid\n")
	assert.Contains(t, out, "not ok 2 - Transfer_Domestic\n")
	assert.Contains(t, out, "  attempts: 3\n")
	assert.Contains(t, out, "ok 4 - Transfer_International # SKIP sandbox pending\n")
}

func TestHTMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewHTMLFormatter(HTMLWithWriter(&buf), HTMLWithBaseDir("reports"))
	require.NoError(t, f.Format(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "<h1>smoke</h1>")
	assert.Contains(t, out, "pass rate <strong>25.0%</strong>")
	assert.Contains(t, out, `<tr class="failed">`)
	assert.Contains(t, out, `src="screenshots/Transfer_Domestic_`)
	assert.Contains(t, out, "step 4 (click #confirm)")
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New("xlsx", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteFiles(dir, []string{"json", "junit"}, sampleResult())
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "results.json"), filepath.Join(dir, "results.xml")}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}
