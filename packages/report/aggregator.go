package report

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const maxTrackedMillis = int64(time.Hour / time.Millisecond)

// Listener observes run lifecycle events. Events are delivered in order on
// a single dispatch goroutine, never on the worker that produced them, so a
// slow listener delays other listeners but not the run.
type Listener interface {
	OnStart(suite string, at time.Time)
	OnTestStart(testID string)
	OnOutcome(rec Record)
	OnFinish(sum Summary)
}

// NopListener implements Listener with no-op methods.
type NopListener struct{}

func (NopListener) OnStart(string, time.Time) {}
func (NopListener) OnTestStart(string)        {}
func (NopListener) OnOutcome(Record)          {}
func (NopListener) OnFinish(Summary)          {}

// Aggregator counts terminal outcomes for one run.
type Aggregator struct {
	passed  atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
	running atomic.Int64

	mu        sync.Mutex
	suite     string
	startedAt time.Time
	histogram *hdrhistogram.Histogram

	listeners []Listener

	qmu      sync.Mutex
	queue    []func(Listener)
	draining bool
	drained  sync.WaitGroup
}

type AggregatorOption func(*Aggregator)

// WithListener registers l for every lifecycle event.
func WithListener(l Listener) AggregatorOption {
	return func(a *Aggregator) {
		a.listeners = append(a.listeners, l)
	}
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		// 1ms to 1h, 3 significant digits
		histogram: hdrhistogram.New(1, maxTrackedMillis, 3),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnStart resets all counters and the run clock.
func (a *Aggregator) OnStart(suite string) {
	now := time.Now()

	a.mu.Lock()
	a.suite = suite
	a.startedAt = now
	a.histogram.Reset()
	a.passed.Store(0)
	a.failed.Store(0)
	a.skipped.Store(0)
	a.running.Store(0)
	a.mu.Unlock()

	a.dispatch(func(l Listener) { l.OnStart(suite, now) })
}

func (a *Aggregator) OnTestStart(testID string) {
	a.running.Add(1)
	a.dispatch(func(l Listener) { l.OnTestStart(testID) })
}

// OnOutcome records one terminal outcome.
func (a *Aggregator) OnOutcome(rec Record) {
	switch rec.Status {
	case StatusPassed:
		a.passed.Add(1)
	case StatusFailed:
		a.failed.Add(1)
	case StatusSkipped:
		a.skipped.Add(1)
	default:
		return
	}
	a.running.Add(-1)

	if rec.Status != StatusSkipped {
		ms := rec.Duration().Milliseconds()
		if ms < 1 {
			ms = 1
		}
		if ms > maxTrackedMillis {
			ms = maxTrackedMillis
		}
		a.mu.Lock()
		_ = a.histogram.RecordValue(ms)
		a.mu.Unlock()
	}

	a.dispatch(func(l Listener) { l.OnOutcome(rec) })
}

// Counts returns the current passed, failed and skipped totals.
func (a *Aggregator) Counts() (passed, failed, skipped int) {
	return int(a.passed.Load()), int(a.failed.Load()), int(a.skipped.Load())
}

// Running returns tests started and not yet reported.
func (a *Aggregator) Running() int {
	return int(a.running.Load())
}

// Snapshot summarizes the run so far without notifying listeners.
func (a *Aggregator) Snapshot() Summary {
	passed, failed, skipped := a.Counts()
	total := passed + failed + skipped
	now := time.Now()

	a.mu.Lock()
	sum := Summary{
		Suite:      a.suite,
		StartedAt:  a.startedAt,
		FinishedAt: now,
		Duration:   now.Sub(a.startedAt),
	}
	if a.histogram.TotalCount() > 0 {
		sum.P50 = millis(a.histogram.ValueAtQuantile(50))
		sum.P90 = millis(a.histogram.ValueAtQuantile(90))
		sum.P99 = millis(a.histogram.ValueAtQuantile(99))
		sum.Max = millis(a.histogram.Max())
	}
	a.mu.Unlock()

	sum.Total = total
	sum.Passed = passed
	sum.Failed = failed
	sum.Skipped = skipped
	sum.PassRate = passRate(passed, total)
	return sum
}

// OnFinish summarizes the run. It is only meaningful after every worker has
// reported. It returns once every listener has seen every event.
func (a *Aggregator) OnFinish() Summary {
	sum := a.Snapshot()
	a.dispatch(func(l Listener) { l.OnFinish(sum) })
	a.Flush()
	return sum
}

// Flush waits until queued listener events have been delivered.
func (a *Aggregator) Flush() {
	a.drained.Wait()
}

// dispatch queues ev for every listener. The queue is unbounded so callers
// never wait on a listener.
func (a *Aggregator) dispatch(ev func(Listener)) {
	if len(a.listeners) == 0 {
		return
	}

	a.qmu.Lock()
	a.queue = append(a.queue, ev)
	if !a.draining {
		a.draining = true
		a.drained.Add(1)
		go a.drain()
	}
	a.qmu.Unlock()
}

func (a *Aggregator) drain() {
	defer a.drained.Done()
	for {
		a.qmu.Lock()
		if len(a.queue) == 0 {
			a.draining = false
			a.qmu.Unlock()
			return
		}
		ev := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.qmu.Unlock()

		for _, l := range a.listeners {
			ev(l)
		}
	}
}

func millis(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
