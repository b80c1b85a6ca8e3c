package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/artifact"
	"github.com/abdul-hamid-achik/bankspec/packages/core/env"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/abdul-hamid-achik/bankspec/packages/retry"
	"github.com/abdul-hamid-achik/bankspec/packages/scenario"
	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/tracing"
	"github.com/abdul-hamid-achik/bankspec/packages/wait"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the default number of parallel workers
	DefaultConcurrency = 4
	// DefaultSuite names runs started without a suite name
	DefaultSuite = "bankspec"
)

// ProfileFunc resolves a scenario platform into a session profile. An empty
// platform selects the configured default.
type ProfileFunc func(platform string) (session.Profile, error)

type Runner struct {
	config     *Config
	registry   *session.Registry
	profiles   ProfileFunc
	policy     *retry.Policy
	capturer   *artifact.Capturer
	aggregator *report.Aggregator
	resolver   *env.Resolver
	tracer     trace.Tracer
	log        *zap.Logger
}

type Config struct {
	Suite              string
	Concurrency        int
	Bail               bool
	TestTimeout        time.Duration
	ScreenshotEachStep bool
	BaseURL            string
	Wait               wait.Config
}

type Option func(*Runner)

func WithProfiles(fn ProfileFunc) Option {
	return func(r *Runner) {
		r.profiles = fn
	}
}

func WithPolicy(p *retry.Policy) Option {
	return func(r *Runner) {
		r.policy = p
	}
}

func WithCapturer(c *artifact.Capturer) Option {
	return func(r *Runner) {
		r.capturer = c
	}
}

func WithAggregator(a *report.Aggregator) Option {
	return func(r *Runner) {
		r.aggregator = a
	}
}

// WithResolver sets the variables every scenario starts from.
func WithResolver(res *env.Resolver) Option {
	return func(r *Runner) {
		r.resolver = res
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

func NewRunner(cfg *Config, registry *session.Registry, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config:   cfg,
		registry: registry,
		profiles: defaultProfile,
		log:      zap.NewNop(),
		tracer:   tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.policy == nil {
		r.policy = retry.NewPolicy(retry.WithLogger(r.log))
	}
	if r.capturer == nil {
		r.capturer = artifact.NewCapturer(artifact.DefaultDir, artifact.WithLogger(r.log))
	}
	if r.aggregator == nil {
		r.aggregator = report.NewAggregator()
	}
	if r.resolver == nil {
		r.resolver = env.NewResolver()
	}
	return r
}

func defaultProfile(platform string) (session.Profile, error) {
	if platform == "" {
		platform = session.PlatformWeb.String()
	}
	p, err := session.ParsePlatform(platform)
	if err != nil {
		return session.Profile{}, err
	}
	return session.Profile{Platform: p, Browser: session.BrowserChrome}, nil
}

// RunResult holds the final outcome of every selected scenario.
type RunResult struct {
	RunID   ulid.ULID
	Suite   string
	Records []report.Record
	Summary report.Summary
	// ProvisioningFailures counts scenarios that never got a session.
	ProvisioningFailures int
}

// Success reports whether nothing failed.
func (r *RunResult) Success() bool {
	return r.Summary.Success()
}

// Failures returns the failed records in run order.
func (r *RunResult) Failures() []report.Record {
	var out []report.Record
	for _, rec := range r.Records {
		if rec.Failed() {
			out = append(out, rec)
		}
	}
	return out
}

// Run executes scenarios on up to Concurrency workers and blocks until all
// of them have reported. The summary is taken only after every worker has
// returned. Cancelling ctx stops scheduling; running scenarios still
// release their sessions.
func (r *Runner) Run(ctx context.Context, scenarios []*scenario.Scenario) (*RunResult, error) {
	suite := r.config.Suite
	if suite == "" {
		suite = DefaultSuite
	}

	result := &RunResult{
		RunID: ulid.Make(),
		Suite: suite,
	}

	r.aggregator.OnStart(suite)
	r.log.Info("run started",
		zap.String("run", result.RunID.String()),
		zap.String("suite", suite),
		zap.Int("scenarios", len(scenarios)))

	results := r.runParallel(ctx, scenarios)

	for _, res := range results {
		result.Records = append(result.Records, res.record)
		if res.provisioning {
			result.ProvisioningFailures++
		}
	}

	result.Summary = r.aggregator.OnFinish()
	r.log.Info("run finished",
		zap.String("run", result.RunID.String()),
		zap.Int("passed", result.Summary.Passed),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("skipped", result.Summary.Skipped),
		zap.Duration("duration", result.Summary.Duration))

	return result, ctx.Err()
}

type scenarioResult struct {
	record       report.Record
	provisioning bool
}

func (r *Runner) runParallel(ctx context.Context, scenarios []*scenario.Scenario) []scenarioResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	// bailed stops scheduling; scenarios already running finish normally
	var bailed atomic.Bool

	// a free slot is always available once errgroup admits a goroutine
	workers := make(chan session.WorkerID, concurrency)
	for i := 1; i <= concurrency; i++ {
		workers <- session.WorkerID(fmt.Sprintf("worker-%d", i))
	}

	results := make([]scenarioResult, len(scenarios))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, sc := range scenarios {
		g.Go(func() error {
			worker := <-workers
			defer func() { workers <- worker }()

			results[i] = r.runScenario(ctx, worker, sc, &bailed)
			if r.config.Bail && results[i].record.Failed() {
				bailed.Store(true)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// runScenario runs one scenario to its final outcome, retrying failures
// under the shared policy. Only the final record reaches the aggregator.
func (r *Runner) runScenario(ctx context.Context, worker session.WorkerID, sc *scenario.Scenario, bailed *atomic.Bool) scenarioResult {
	id := sc.ID()
	r.aggregator.OnTestStart(id)

	if reason := skipReason(ctx, sc, bailed.Load()); reason != "" {
		now := time.Now()
		rec := report.Record{
			TestID:   id,
			Name:     sc.Name,
			Status:   report.StatusSkipped,
			Start:    now,
			End:      now,
			Err:      reason,
			Platform: sc.Platform,
			Worker:   string(worker),
			Tags:     sc.Tags,
		}
		r.aggregator.OnOutcome(rec)
		return scenarioResult{record: rec}
	}

	var res scenarioResult
	for attempt := 1; ; attempt++ {
		res = r.runAttempt(ctx, worker, sc, attempt)
		if res.record.Passed() {
			r.policy.Passed(id)
			break
		}
		if res.provisioning || ctx.Err() != nil {
			break
		}
		if err := r.policy.Next(res.record); err != nil {
			break
		}
	}

	r.aggregator.OnOutcome(res.record)
	return res
}

func skipReason(ctx context.Context, sc *scenario.Scenario, bailed bool) string {
	if sc.Skip != "" {
		return sc.Skip
	}
	if ctx.Err() != nil {
		return "not started: run cancelled"
	}
	if bailed {
		return "not started: bailed after a failure"
	}
	return ""
}

// runAttempt is one full worker lifecycle: acquire, steps, capture on
// failure, release, emit.
func (r *Runner) runAttempt(ctx context.Context, worker session.WorkerID, sc *scenario.Scenario, attempt int) scenarioResult {
	id := sc.ID()
	ctx = session.WithWorker(ctx, worker)

	ctx, span := r.tracer.Start(ctx, "scenario "+id, trace.WithAttributes(
		tracing.AttrTestID.String(id),
		tracing.AttrAttempt.Int(attempt),
		tracing.AttrWorker.String(string(worker)),
	))
	defer span.End()

	if r.config.TestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.TestTimeout)
		defer cancel()
	}

	rec := report.Record{
		TestID:   id,
		Name:     sc.Name,
		Start:    time.Now(),
		Attempt:  attempt,
		Platform: sc.Platform,
		Worker:   string(worker),
		Tags:     sc.Tags,
	}

	provisioning, err := r.execute(ctx, sc, &rec)

	rec.End = time.Now()
	if err != nil {
		rec.Status = report.StatusFailed
		rec.Err = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		rec.Status = report.StatusPassed
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(tracing.AttrStatus.String(rec.Status.String()))

	r.log.Debug("attempt finished",
		zap.String("test", id),
		zap.Int("attempt", attempt),
		zap.String("worker", string(worker)),
		zap.Stringer("status", rec.Status),
		zap.Duration("took", rec.Duration()))

	return scenarioResult{record: rec, provisioning: provisioning}
}

// execute acquires a session for sc, runs its steps and releases the
// session on every path.
func (r *Runner) execute(ctx context.Context, sc *scenario.Scenario, rec *report.Record) (provisioning bool, err error) {
	id := sc.ID()

	resolver := r.resolver.Clone()
	resolver.SetVariables(sc.Variables)
	if r.config.BaseURL != "" {
		if _, ok := resolver.GetVariable("baseUrl"); !ok {
			resolver.SetVariable("baseUrl", r.config.BaseURL)
		}
	}

	if err := r.runHooks(ctx, sc.Before, sc.Dir(), resolver); err != nil {
		return false, fmt.Errorf("before hook: %w", err)
	}
	defer func() {
		if err := r.runHooks(context.WithoutCancel(ctx), sc.After, sc.Dir(), resolver); err != nil {
			r.log.Warn("after hook failed", zap.String("test", id), zap.Error(err))
		}
	}()

	profile, err := r.profiles(sc.Platform)
	if err != nil {
		return true, &session.ProvisioningError{Target: sc.Platform, Err: err}
	}
	rec.Platform = profile.Platform.String()

	h, err := r.registry.Acquire(ctx, profile)
	if err != nil {
		r.log.Error("session provisioning failed", zap.String("test", id), zap.Error(err))
		return errors.As(err, new(*session.ProvisioningError)), err
	}
	defer func() {
		if err := r.registry.Release(ctx); err != nil {
			r.log.Warn("session release failed", zap.String("test", id), zap.Error(err))
		}
	}()

	trace.SpanFromContext(ctx).SetAttributes(
		tracing.AttrSession.String(h.ID),
		tracing.AttrPlatform.String(profile.Platform.String()),
	)

	exec := &stepExecutor{
		runner:   r,
		handle:   h,
		testID:   id,
		resolver: resolver,
	}
	if err := exec.run(ctx, sc.Steps); err != nil {
		rec.Artifact = r.capturer.OnFailure(context.WithoutCancel(ctx), h, id)
		return false, err
	}
	return false, nil
}
