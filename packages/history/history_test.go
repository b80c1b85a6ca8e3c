package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite://" + filepath.Join(t.TempDir(), "history", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// result builds a run that started n minutes after base.
func result(n int, suite string, records ...report.Record) *runner.RunResult {
	start := base.Add(time.Duration(n) * time.Minute)
	sum := report.Summary{Suite: suite, StartedAt: start, FinishedAt: start.Add(30 * time.Second), Duration: 30 * time.Second}
	for _, rec := range records {
		sum.Total++
		switch rec.Status {
		case report.StatusPassed:
			sum.Passed++
		case report.StatusFailed:
			sum.Failed++
		case report.StatusSkipped:
			sum.Skipped++
		}
	}
	if sum.Total > 0 {
		sum.PassRate = float64(sum.Passed) / float64(sum.Total) * 100
	}
	return &runner.RunResult{
		RunID:   ulid.MustNew(ulid.Timestamp(start), nil),
		Suite:   suite,
		Records: records,
		Summary: sum,
	}
}

func rec(id string, status report.Status, attempt int) report.Record {
	return report.Record{
		TestID:   id,
		Name:     id,
		Status:   status,
		Start:    base,
		End:      base.Add(1500 * time.Millisecond),
		Attempt:  attempt,
		Platform: "web",
		Worker:   "worker-1",
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	res := result(0, "smoke",
		rec("Login_Valid", report.StatusPassed, 1),
		report.Record{
			TestID: "Transfer_Domestic", Name: "Transfer_Domestic", Status: report.StatusFailed,
			Start: base, End: base.Add(time.Second), Attempt: 3, Platform: "web",
			Err: "step 4 (click #confirm): timed out", Artifact: "reports/screenshots/Transfer_Domestic.png",
		},
	)
	require.NoError(t, s.SaveRun(ctx, res, "staging"))

	runs, err := s.Runs(ctx, "smoke", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, "staging", runs[0].Environment)
	assert.Equal(t, 2, runs[0].Summary.Total)
	assert.Equal(t, 1, runs[0].Summary.Failed)
	assert.Equal(t, 30*time.Second, runs[0].Summary.Duration)
	assert.True(t, runs[0].Summary.StartedAt.Equal(base))

	records, err := s.Records(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Login_Valid", records[0].TestID)
	assert.Equal(t, report.StatusFailed, records[1].Status)
	assert.Equal(t, 3, records[1].Attempt)
	assert.Equal(t, "reports/screenshots/Transfer_Domestic.png", records[1].Artifact)
	assert.Equal(t, time.Second, records[1].Duration())
}

func TestStore_DuplicateRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	res := result(0, "smoke", rec("Login_Valid", report.StatusPassed, 1))
	require.NoError(t, s.SaveRun(ctx, res, ""))
	assert.Error(t, s.SaveRun(ctx, res, ""))

	// the failed insert left nothing behind
	records, err := s.Records(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStore_LastRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	last, err := s.LastRun(ctx, "smoke")
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, s.SaveRun(ctx, result(0, "smoke", rec("a", report.StatusFailed, 1)), ""))
	second := result(5, "smoke", rec("a", report.StatusPassed, 1))
	require.NoError(t, s.SaveRun(ctx, second, ""))
	require.NoError(t, s.SaveRun(ctx, result(10, "regression", rec("b", report.StatusFailed, 1)), ""))

	last, err = s.LastRun(ctx, "smoke")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.RunID, last.ID)
	assert.True(t, last.Summary.Success())

	all, err := s.Runs(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "regression", all[0].Suite)
}

func TestStore_Flaky(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRun(ctx, result(0, "smoke",
		rec("Login_Valid", report.StatusPassed, 1),
		rec("Transfer_Domestic", report.StatusFailed, 3),
		rec("Statements", report.StatusPassed, 1),
	), ""))
	require.NoError(t, s.SaveRun(ctx, result(1, "smoke",
		rec("Login_Valid", report.StatusPassed, 1),
		rec("Transfer_Domestic", report.StatusPassed, 2),
		rec("Statements", report.StatusPassed, 2),
	), ""))
	require.NoError(t, s.SaveRun(ctx, result(2, "smoke",
		rec("Login_Valid", report.StatusPassed, 1),
		rec("Transfer_Domestic", report.StatusFailed, 3),
		rec("Statements", report.StatusSkipped, 0),
	), ""))

	flaky, err := s.Flaky(ctx, "smoke", 10)
	require.NoError(t, err)
	require.Len(t, flaky, 2)
	assert.Equal(t, FlakyTest{TestID: "Transfer_Domestic", Runs: 3, Failed: 2, Retried: 3}, flaky[0])
	assert.Equal(t, FlakyTest{TestID: "Statements", Runs: 2, Failed: 0, Retried: 1}, flaky[1])

	// only the newest run
	flaky, err = s.Flaky(ctx, "smoke", 1)
	require.NoError(t, err)
	require.Len(t, flaky, 1)
	assert.Equal(t, "Transfer_Domestic", flaky[0].TestID)
}

func TestStore_Prune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	var newest ulid.ULID
	for i := 0; i < 4; i++ {
		res := result(i, "smoke", rec("a", report.StatusPassed, 1))
		require.NoError(t, s.SaveRun(ctx, res, ""))
		newest = res.RunID
	}

	n, err := s.Prune(ctx, "smoke", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	runs, err := s.Runs(ctx, "smoke", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, newest, runs[0].ID)

	_, err = s.Prune(ctx, "smoke", -1)
	assert.Error(t, err)
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "sqlite://reports/history.db", want: "reports/history.db"},
		{in: "sqlite:history.db", want: "history.db"},
		{in: "  .bankspec/history.db ", want: ".bankspec/history.db"},
		{in: "postgres://localhost/db", wantErr: true},
		{in: "sqlite://", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseConnectionString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
