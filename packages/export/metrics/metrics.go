// Package metrics exposes test run progress as Prometheus metrics.
//
// A Collector is a report.Listener: attach it to the run's aggregator and
// every outcome updates its counters. The collected values can be served on
// a /metrics endpoint while the run is in progress, or written to a file
// once it finishes.
package metrics

import (
	"sync"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "bankspec"

// Collector records run outcomes into its own Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	testsTotal   *prometheus.CounterVec
	retriesTotal *prometheus.CounterVec
	testDuration *prometheus.HistogramVec
	running      prometheus.Gauge
	passRate     *prometheus.GaugeVec
	runDuration  *prometheus.GaugeVec
	lastRun      *prometheus.GaugeVec

	mu    sync.Mutex
	suite string
	start time.Time
	last  *report.Summary
}

// Option configures a Collector.
type Option func(*collectorOptions)

type collectorOptions struct {
	liveSessions func() int
	buckets      []float64
}

// WithLiveSessions publishes a gauge that reads the number of live
// sessions from fn at scrape time.
func WithLiveSessions(fn func() int) Option {
	return func(o *collectorOptions) {
		o.liveSessions = fn
	}
}

// WithBuckets overrides the test duration histogram buckets, in seconds.
func WithBuckets(buckets ...float64) Option {
	return func(o *collectorOptions) {
		o.buckets = buckets
	}
}

// DefaultBuckets fit UI tests, which run for seconds to minutes.
var DefaultBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300}

func NewCollector(opts ...Option) *Collector {
	o := collectorOptions{buckets: DefaultBuckets}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		testsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_total",
			Help:      "Completed tests by final status",
		}, []string{"suite", "platform", "status"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "test_retries_total",
			Help:      "Extra attempts spent on tests before their final outcome",
		}, []string{"suite", "platform"}),
		testDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of the final attempt of each test",
			Buckets:   o.buckets,
		}, []string{"suite", "platform", "status"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "tests_running",
			Help:      "Tests started but not yet completed",
		}),
		passRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_pass_rate",
			Help:      "Pass rate of the last finished run, in percent",
		}, []string{"suite"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of the last finished run",
		}, []string{"suite"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_last_finished_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}, []string{"suite"}),
	}

	c.registry.MustRegister(
		c.testsTotal,
		c.retriesTotal,
		c.testDuration,
		c.running,
		c.passRate,
		c.runDuration,
		c.lastRun,
	)

	if o.liveSessions != nil {
		live := o.liveSessions
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_live",
			Help:      "Driver sessions currently bound to workers",
		}, func() float64 { return float64(live()) }))
	}

	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) OnStart(suite string, at time.Time) {
	c.mu.Lock()
	c.suite = suite
	c.start = at
	c.last = nil
	c.mu.Unlock()
	c.running.Set(0)
}

func (c *Collector) OnTestStart(string) {
	c.running.Inc()
}

func (c *Collector) OnOutcome(rec report.Record) {
	suite := c.suiteName()
	platform := rec.Platform
	status := rec.Status.String()

	c.running.Dec()
	c.testsTotal.WithLabelValues(suite, platform, status).Inc()
	if rec.Attempt > 1 {
		c.retriesTotal.WithLabelValues(suite, platform).Add(float64(rec.Attempt - 1))
	}
	if !rec.Skipped() {
		c.testDuration.WithLabelValues(suite, platform, status).Observe(rec.Duration().Seconds())
	}
}

func (c *Collector) OnFinish(sum report.Summary) {
	c.mu.Lock()
	c.last = &sum
	c.mu.Unlock()

	c.running.Set(0)
	c.passRate.WithLabelValues(sum.Suite).Set(sum.PassRate)
	c.runDuration.WithLabelValues(sum.Suite).Set(sum.Duration.Seconds())
	c.lastRun.WithLabelValues(sum.Suite).Set(float64(sum.FinishedAt.Unix()))
}

func (c *Collector) suiteName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suite
}

var _ report.Listener = (*Collector)(nil)
