package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/output"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/session/sessiontest"
	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag")))
	assert.Equal(t, ExitParseError, exitCode(withExitCode(ExitParseError, errors.New("bad yaml"))))

	wrapped := errors.Join(errors.New("context"), withExitCode(ExitConfigError, errors.New("bad config")))
	assert.Equal(t, ExitConfigError, exitCode(wrapped))
}

func TestRunOutcome(t *testing.T) {
	ok := &runner.RunResult{Summary: report.Summary{Total: 2, Passed: 2}}
	assert.NoError(t, runOutcome(ok))

	failed := &runner.RunResult{Summary: report.Summary{Total: 2, Passed: 1, Failed: 1}}
	assert.Equal(t, ExitTestFailure, exitCode(runOutcome(failed)))

	noSession := &runner.RunResult{Summary: report.Summary{Total: 2, Failed: 2}, ProvisioningFailures: 2}
	assert.Equal(t, ExitProvisioningError, exitCode(runOutcome(noSession)))

	mixed := &runner.RunResult{Summary: report.Summary{Total: 3, Failed: 2}, ProvisioningFailures: 1}
	assert.Equal(t, ExitTestFailure, exitCode(runOutcome(mixed)))
}

func diffRecord(id string, status report.Status, d time.Duration) report.Record {
	start := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return report.Record{TestID: id, Status: status, Start: start, End: start.Add(d), Attempt: 1}
}

func TestCompareRuns(t *testing.T) {
	run1 := &DiffRun{Label: "a", Records: []report.Record{
		diffRecord("Login_Valid", report.StatusPassed, time.Second),
		diffRecord("Transfer_Domestic", report.StatusFailed, 2*time.Second),
		diffRecord("Statements", report.StatusPassed, time.Second),
		diffRecord("Logout", report.StatusPassed, time.Second),
	}}
	run2 := &DiffRun{Label: "b", Records: []report.Record{
		diffRecord("Login_Valid", report.StatusPassed, 1050*time.Millisecond),
		diffRecord("Transfer_Domestic", report.StatusPassed, 2*time.Second),
		diffRecord("Statements", report.StatusPassed, 1500*time.Millisecond),
		diffRecord("Cards", report.StatusPassed, time.Second),
	}}

	diff := compareRuns(run1, run2, 20)

	assert.Equal(t, 5, diff.Summary.TotalTests)
	assert.Equal(t, 1, diff.Summary.Improved)
	assert.Equal(t, 1, diff.Summary.Regressed)
	assert.Equal(t, 1, diff.Summary.Unchanged)
	assert.Equal(t, 1, diff.Summary.NewTests)
	assert.Equal(t, 1, diff.Summary.RemovedTests)
	assert.False(t, diff.Summary.ThresholdPassed)

	byID := map[string]TestComparison{}
	for _, c := range diff.Comparisons {
		byID[c.TestID] = c
	}
	assert.Equal(t, "improved", byID["Transfer_Domestic"].StatusChange)
	assert.Equal(t, "regressed", byID["Statements"].StatusChange)
	assert.InDelta(t, 50.0, byID["Statements"].DurationChange, 0.01)
	assert.Equal(t, "unchanged", byID["Login_Valid"].StatusChange)
	assert.Equal(t, "new", byID["Cards"].StatusChange)
	assert.Equal(t, "removed", byID["Logout"].StatusChange)

	var buf bytes.Buffer
	outputDiffConsole(&buf, diff)
	assert.Contains(t, buf.String(), "Transfer_Domestic  failed → passed")
	assert.Contains(t, buf.String(), "Threshold check failed")
}

func TestLoadResultsFile(t *testing.T) {
	res := &runner.RunResult{
		RunID: ulid.Make(),
		Suite: "smoke",
		Records: []report.Record{
			diffRecord("Login_Valid", report.StatusPassed, time.Second),
			diffRecord("Transfer_Domestic", report.StatusFailed, 2*time.Second),
		},
	}
	var buf bytes.Buffer
	require.NoError(t, output.NewJSONFormatter(output.JSONWithWriter(&buf)).Format(res))

	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	run, err := loadResultsFile(path)
	require.NoError(t, err)
	require.Len(t, run.Records, 2)
	assert.Equal(t, report.StatusFailed, run.Records[1].Status)
	assert.Equal(t, 2*time.Second, run.Records[1].Duration())
}

func TestParseThreshold(t *testing.T) {
	v, err := parseThreshold(" 12.5% ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	_, err = parseThreshold("fast")
	assert.Error(t, err)
}

func webProfile(platform string) (session.Profile, error) {
	p, err := session.ParsePlatform(platform)
	if err != nil {
		return session.Profile{}, err
	}
	return session.Profile{Platform: p, Browser: session.BrowserChrome, RemoteURL: "http://grid.local"}, nil
}

func TestDoctor(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	p := &probe{
		profiles:    webProfile,
		provisioner: prov,
		status: func(ctx context.Context, remoteURL string) (bool, string, error) {
			return true, "ready", nil
		},
		timeout: time.Second,
		log:     zap.NewNop(),
	}

	var buf bytes.Buffer
	failed := p.check(context.Background(), &buf, []string{"web", "blackberry"})

	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "web (chrome) session opened and released")
	assert.Contains(t, buf.String(), "blackberry")
	require.Len(t, prov.Drivers(), 1)
	assert.Zero(t, prov.Outstanding())
}

func TestDoctorProvisioningFailure(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	prov.Fail(errors.New("connection refused"))
	p := &probe{
		profiles:    webProfile,
		provisioner: prov,
		status: func(ctx context.Context, remoteURL string) (bool, string, error) {
			return false, "", errors.New("dial tcp: connection refused")
		},
		timeout: time.Second,
		log:     zap.NewNop(),
	}

	var buf bytes.Buffer
	assert.Equal(t, 1, p.check(context.Background(), &buf, []string{"web"}))
	assert.Contains(t, buf.String(), "status (http://grid.local)")
	assert.Contains(t, buf.String(), "connection refused")
}

func TestDoctorReleaseFailure(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	prov.Setup(func(d *sessiontest.Driver) {
		d.FailQuit(errors.New("invalid session id"))
	})
	p := &probe{
		profiles:    webProfile,
		provisioner: prov,
		status: func(ctx context.Context, remoteURL string) (bool, string, error) {
			return true, "ready", nil
		},
		timeout: time.Second,
		log:     zap.NewNop(),
	}

	var buf bytes.Buffer
	assert.Equal(t, 1, p.check(context.Background(), &buf, []string{"web"}))
	assert.Contains(t, buf.String(), "✗ web (chrome): releasing session")
	assert.Contains(t, buf.String(), "invalid session id")
	assert.NotContains(t, buf.String(), "session opened and released")
}

func TestDiffJSONShape(t *testing.T) {
	diff := compareRuns(
		&DiffRun{Label: "a", Records: []report.Record{diffRecord("x", report.StatusPassed, time.Second)}},
		&DiffRun{Label: "b", Records: []report.Record{diffRecord("x", report.StatusFailed, time.Second)}},
		0,
	)
	data, err := json.Marshal(diff)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"statusChange":"regressed"`)
	assert.True(t, diff.Summary.ThresholdPassed)
}
