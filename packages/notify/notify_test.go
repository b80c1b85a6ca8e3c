package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []*RunSummary
	err   error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, s *RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	return r.err
}

func summary(failed int) *RunSummary {
	return &RunSummary{Suite: "smoke", TotalTests: 10, PassedTests: 10 - failed, FailedTests: failed}
}

func TestManagerPolicies(t *testing.T) {
	tests := []struct {
		policy NotifyOn
		runs   []int
		want   int
	}{
		{NotifyAlways, []int{0, 1}, 2},
		{NotifyFailure, []int{0, 1, 0}, 1},
		{NotifySuccess, []int{0, 1, 0}, 2},
		{NotifyRecovery, []int{0, 2, 0, 0}, 2},
		{NotifyNever, []int{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			rec := &recordingNotifier{}
			m := NewManager(tt.policy, rec)
			for _, failed := range tt.runs {
				require.NoError(t, m.Notify(context.Background(), summary(failed)))
			}
			assert.Len(t, rec.calls, tt.want)
		})
	}
}

func TestManagerRecoveryFromHistory(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewManager(NotifyRecovery, rec)
	m.SetLastState(false)

	require.NoError(t, m.Notify(context.Background(), summary(0)))
	require.Len(t, rec.calls, 1)
	assert.True(t, rec.calls[0].IsRecovery)
}

func TestManagerJoinsErrors(t *testing.T) {
	bad := &recordingNotifier{err: errors.New("webhook down")}
	good := &recordingNotifier{}
	m := NewManager(NotifyAlways, bad, good)

	err := m.Notify(context.Background(), summary(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
	assert.Len(t, good.calls, 1)
}

func TestParseNotifyOn(t *testing.T) {
	n, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, n)

	n, err = ParseNotifyOn("Recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, n)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestSummaryFromRun(t *testing.T) {
	now := time.Now()
	res := &runner.RunResult{
		RunID: ulid.Make(),
		Suite: "regression",
		Records: []report.Record{
			{Name: "Login_Valid", Status: report.StatusPassed},
			{Name: "Transfer_Domestic", Status: report.StatusFailed, Attempt: 3, Platform: "web",
				Err: "step 2 (click #send): timed out\nmore detail", Artifact: "shots/t.png", Start: now, End: now},
		},
		Summary: report.Summary{Total: 2, Passed: 1, Failed: 1, PassRate: 50, Duration: 90 * time.Second},
	}

	s := SummaryFromRun(res, "staging")
	assert.Equal(t, res.RunID.String(), s.RunID)
	assert.Equal(t, 50.0, s.PassRate)
	assert.Equal(t, "staging", s.Environment)
	require.Len(t, s.FailedResults, 1)
	assert.Equal(t, "step 2 (click #send): timed out", s.FailedResults[0].Error)
	assert.Equal(t, 3, s.FailedResults[0].Attempts)
	assert.Equal(t, "shots/t.png", s.FailedResults[0].Screenshot)
}

func captureServer(t *testing.T, status int) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(data, &body))
		bodies = append(bodies, body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestSlackNotifier(t *testing.T) {
	srv, bodies := captureServer(t, http.StatusOK)

	s := NewSlackNotifier(srv.URL, WithSlackChannel("#qa"))
	sum := summary(1)
	sum.FailedResults = []FailedTest{{Name: "Transfer_Domestic", Platform: "web", Attempts: 3, Error: "timed out"}}
	require.NoError(t, s.Notify(context.Background(), sum))

	require.Len(t, *bodies, 1)
	body := (*bodies)[0]
	assert.Equal(t, "#qa", body["channel"])
	att := body["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "danger", att["color"])
	assert.Contains(t, att["title"], "1 test(s) failed")
	assert.Contains(t, att["text"], "`Transfer_Domestic` [web] after 3 attempts")
}

func TestTeamsNotifier(t *testing.T) {
	srv, bodies := captureServer(t, http.StatusAccepted)

	require.NoError(t, NewTeamsNotifier(srv.URL).Notify(context.Background(), summary(0)))
	require.Len(t, *bodies, 1)
	assert.Equal(t, "message", (*bodies)[0]["type"])
}

func TestWebhookErrorStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError)

	err := NewSlackNotifier(srv.URL).Notify(context.Background(), summary(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
