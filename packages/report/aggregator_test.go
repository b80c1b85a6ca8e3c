package report

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu       sync.Mutex
	starts   int
	tests    []string
	outcomes []Record
	finished []Summary
}

func (l *recordingListener) OnStart(string, time.Time) {
	l.mu.Lock()
	l.starts++
	l.mu.Unlock()
}

func (l *recordingListener) OnTestStart(id string) {
	l.mu.Lock()
	l.tests = append(l.tests, id)
	l.mu.Unlock()
}

func (l *recordingListener) OnOutcome(rec Record) {
	l.mu.Lock()
	l.outcomes = append(l.outcomes, rec)
	l.mu.Unlock()
}

func (l *recordingListener) OnFinish(sum Summary) {
	l.mu.Lock()
	l.finished = append(l.finished, sum)
	l.mu.Unlock()
}

func outcomes(passed, failed, skipped int) []Record {
	var recs []Record
	now := time.Now()
	add := func(n int, st Status) {
		for i := 0; i < n; i++ {
			recs = append(recs, Record{
				TestID: fmt.Sprintf("%s_%d", st, i),
				Status: st,
				Start:  now,
				End:    now.Add(time.Duration(10*(i+1)) * time.Millisecond),
			})
		}
	}
	add(passed, StatusPassed)
	add(failed, StatusFailed)
	add(skipped, StatusSkipped)
	return recs
}

func TestAggregator_SevenTwoOne(t *testing.T) {
	l := &recordingListener{}
	a := NewAggregator(WithListener(l))

	a.OnStart("Regression")
	for _, rec := range outcomes(7, 2, 1) {
		a.OnTestStart(rec.TestID)
		a.OnOutcome(rec)
	}
	sum := a.OnFinish()

	assert.Equal(t, "Regression", sum.Suite)
	assert.Equal(t, 10, sum.Total)
	assert.Equal(t, 7, sum.Passed)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.Skipped)
	assert.InDelta(t, 70.0, sum.PassRate, 1e-9)
	assert.False(t, sum.Success())
	assert.Equal(t, 0, a.Running())

	assert.Equal(t, 1, l.starts)
	assert.Len(t, l.tests, 10)
	assert.Len(t, l.outcomes, 10)
	require.Len(t, l.finished, 1)
	assert.Equal(t, sum.Total, l.finished[0].Total)
}

type slowListener struct {
	recordingListener
	delay time.Duration
}

func (l *slowListener) OnOutcome(rec Record) {
	time.Sleep(l.delay)
	l.recordingListener.OnOutcome(rec)
}

func TestAggregator_SlowListenerDoesNotBlockWorkers(t *testing.T) {
	l := &slowListener{delay: 50 * time.Millisecond}
	a := NewAggregator(WithListener(l))
	a.OnStart("smoke")

	recs := outcomes(3, 1, 0)
	start := time.Now()
	for _, rec := range recs {
		a.OnTestStart(rec.TestID)
		a.OnOutcome(rec)
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	sum := a.OnFinish()
	assert.GreaterOrEqual(t, time.Since(start), 4*l.delay)
	assert.Equal(t, 4, sum.Total)

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.outcomes, 4)
	for i, rec := range recs {
		assert.Equal(t, rec.TestID, l.outcomes[i].TestID)
	}
	require.Len(t, l.finished, 1)
	assert.Equal(t, 4, l.finished[0].Total)
}

func TestAggregator_EmptyRun(t *testing.T) {
	a := NewAggregator()
	a.OnStart("empty")
	sum := a.OnFinish()

	assert.Equal(t, 0, sum.Total)
	assert.Equal(t, 0.0, sum.PassRate)
	assert.True(t, sum.Success())
	assert.Zero(t, sum.P50)
}

func TestAggregator_OnStartResets(t *testing.T) {
	a := NewAggregator()
	a.OnStart("first")
	for _, rec := range outcomes(3, 3, 0) {
		a.OnOutcome(rec)
	}

	a.OnStart("second")
	a.OnOutcome(outcomes(1, 0, 0)[0])
	sum := a.OnFinish()

	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 100.0, sum.PassRate)
}

func TestAggregator_ConcurrentMatchesSequential(t *testing.T) {
	const p, f, s = 120, 45, 35
	recs := outcomes(p, f, s)

	seq := NewAggregator()
	seq.OnStart("seq")
	for _, rec := range recs {
		seq.OnOutcome(rec)
	}
	want := seq.OnFinish()

	shuffled := append([]Record(nil), recs...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	par := NewAggregator()
	par.OnStart("par")
	var wg sync.WaitGroup
	for _, rec := range shuffled {
		wg.Add(1)
		go func(rec Record) {
			defer wg.Done()
			par.OnTestStart(rec.TestID)
			par.OnOutcome(rec)
		}(rec)
	}
	wg.Wait()
	got := par.OnFinish()

	assert.Equal(t, want.Total, got.Total)
	assert.Equal(t, p+f+s, got.Total)
	assert.Equal(t, want.Passed, got.Passed)
	assert.Equal(t, want.Failed, got.Failed)
	assert.Equal(t, want.Skipped, got.Skipped)
	assert.InDelta(t, want.PassRate, got.PassRate, 1e-9)
	assert.Equal(t, want.P50, got.P50)
	assert.Equal(t, want.Max, got.Max)
}

func TestAggregator_Percentiles(t *testing.T) {
	a := NewAggregator()
	a.OnStart("timing")
	now := time.Now()
	for i := 1; i <= 100; i++ {
		a.OnOutcome(Record{TestID: fmt.Sprint(i), Status: StatusPassed, Start: now, End: now.Add(time.Duration(i) * time.Millisecond)})
	}
	sum := a.OnFinish()

	assert.InDelta(t, 50, sum.P50.Milliseconds(), 1)
	assert.InDelta(t, 99, sum.P99.Milliseconds(), 1)
	assert.InDelta(t, 100, sum.Max.Milliseconds(), 1)
}

func TestAggregator_IgnoresUnknownStatus(t *testing.T) {
	a := NewAggregator()
	a.OnStart("x")
	a.OnOutcome(Record{TestID: "weird"})
	assert.Equal(t, 0, a.OnFinish().Total)
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{"passed": StatusPassed, "FAIL": StatusFailed, "skip": StatusSkipped} {
		got, err := ParseStatus(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStatus("flaky")
	assert.Error(t, err)
}
