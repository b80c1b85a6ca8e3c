package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/artifact"
	"github.com/abdul-hamid-achik/bankspec/packages/core/config"
	"github.com/abdul-hamid-achik/bankspec/packages/core/env"
	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/export/metrics"
	"github.com/abdul-hamid-achik/bankspec/packages/history"
	"github.com/abdul-hamid-achik/bankspec/packages/notify"
	"github.com/abdul-hamid-achik/bankspec/packages/output"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/abdul-hamid-achik/bankspec/packages/retry"
	"github.com/abdul-hamid-achik/bankspec/packages/scenario"
	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/tracing"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run UI scenarios on parallel workers",
	Long: `Run the scenarios found in the given YAML files and directories.

Every scenario gets its own driver session, which is released when the
scenario ends. Failed scenarios are retried up to --retries times; the
final failure is captured as a screenshot.

Examples:
  bankspec run scenarios/
  bankspec run scenarios/ --tags smoke --concurrency 8
  bankspec run login.yaml --platform android --retries 0
  bankspec run scenarios/ -o console,junit,html --output-dir reports
  bankspec run scenarios/ --notify slack --slack-webhook $SLACK_WEBHOOK
  bankspec run scenarios/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	suiteFlag       string
	nameFlag        string
	tagsFlag        []string
	platformFlag    string
	browserFlag     string
	headlessFlag    bool
	baseURLFlag     string
	gridURLFlag     string
	appiumURLFlag   string
	varsFlag        map[string]string
	concurrencyFlag int
	retriesFlag     int
	bailFlag        bool
	testTimeoutFlag time.Duration
	verboseFlag     int
	quietFlag       bool
	noColorFlag     bool
	dryRunFlag      bool
	watchFlag       bool
	outputFlag      []string
	outputDirFlag   string

	screenshotDirFlag  string
	screenshotEachFlag bool

	metricsListenFlag string
	metricsFileFlag   string
	traceFlag         bool
	traceFileFlag     string
	noHistoryFlag     bool

	notifyFlag       []string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	f := runCmd.Flags()

	// Selection
	f.StringVar(&suiteFlag, "suite", runner.DefaultSuite, "Suite name used in reports, metrics and history")
	f.StringVarP(&nameFlag, "name", "n", "", "Run only scenarios matching name pattern (* wildcard)")
	f.StringSliceVarP(&tagsFlag, "tags", "t", nil, "Run only scenarios with any of these tags")
	f.StringToStringVar(&varsFlag, "var", nil, "Set a scenario variable (repeatable, key=value)")

	// Target
	f.StringVarP(&platformFlag, "platform", "p", "", "Default platform: web, android, ios (env: BANKSPEC_PLATFORM)")
	f.StringVar(&browserFlag, "browser", "", "Browser for web sessions: chrome, firefox, edge (env: BANKSPEC_BROWSER)")
	f.BoolVar(&headlessFlag, "headless", false, "Run browsers headless (env: BANKSPEC_HEADLESS)")
	f.StringVar(&baseURLFlag, "base-url", "", "Base URL for open steps (env: BANKSPEC_BASE_URL)")
	f.StringVar(&gridURLFlag, "grid-url", "", "Selenium Grid or driver URL (env: BANKSPEC_GRID_URL)")
	f.StringVar(&appiumURLFlag, "appium-url", "", "Appium server URL (env: BANKSPEC_APPIUM_URL)")

	// Execution
	f.IntVarP(&concurrencyFlag, "concurrency", "c", 0, "Number of parallel workers (env: BANKSPEC_CONCURRENCY)")
	f.IntVar(&retriesFlag, "retries", 0, "Retries per failed scenario (env: BANKSPEC_MAX_RETRIES)")
	f.BoolVar(&bailFlag, "bail", false, "Stop scheduling after the first failure")
	f.DurationVar(&testTimeoutFlag, "test-timeout", 0, "Upper bound for one scenario attempt (env: BANKSPEC_TEST_TIMEOUT)")
	f.BoolVar(&dryRunFlag, "dry-run", false, "Show which scenarios would run without executing")
	f.BoolVarP(&watchFlag, "watch", "w", false, "Watch scenario files for changes and re-run")

	// Output
	f.CountVarP(&verboseFlag, "verbose", "v", "Verbose output")
	f.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress console output except errors")
	f.BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: BANKSPEC_NO_COLOR)")
	f.StringSliceVarP(&outputFlag, "output", "o", nil, "Reporters: console, json, junit, tap, html (env: BANKSPEC_REPORTERS)")
	f.StringVar(&outputDirFlag, "output-dir", "", "Directory for report files (env: BANKSPEC_OUTPUT_DIR)")
	f.StringVar(&screenshotDirFlag, "screenshot-dir", "", "Directory for failure screenshots (env: BANKSPEC_SCREENSHOT_DIR)")
	f.BoolVar(&screenshotEachFlag, "screenshot-each-step", false, "Capture a screenshot after every step")

	// Observability
	f.StringVar(&metricsListenFlag, "metrics-listen", "", "Serve Prometheus metrics on this address during the run, e.g. :9464")
	f.StringVar(&metricsFileFlag, "metrics-file", "", "Write metrics at run end (.json for JSON, else Prometheus text)")
	f.BoolVar(&traceFlag, "trace", false, "Record a trace span per scenario attempt (env: BANKSPEC_TRACING)")
	f.StringVar(&traceFileFlag, "trace-file", "", "Write spans to this file instead of stdout")
	f.BoolVar(&noHistoryFlag, "no-history", false, "Do not store this run in the history database")

	// Notifications
	f.StringSliceVar(&notifyFlag, "notify", nil, "Notification services: slack, teams")
	f.StringVar(&notifyOnFlag, "notify-on", "", "When to notify: always, failure, success, recovery, never (env: BANKSPEC_NOTIFY_ON)")
	f.StringVar(&slackWebhookFlag, "slack-webhook", "", "Slack webhook URL (env: BANKSPEC_SLACK_WEBHOOK)")
	f.StringVar(&slackChannelFlag, "slack-channel", "", "Slack channel override")
	f.StringVar(&teamsWebhookFlag, "teams-webhook", "", "Microsoft Teams webhook URL (env: BANKSPEC_TEAMS_WEBHOOK)")
}

// runOverrides collects the flags the user set into a partial config.
func runOverrides(cmd *cobra.Command) *config.Config {
	o := &config.Config{
		Platform:      platformFlag,
		Browser:       browserFlag,
		BaseURL:       baseURLFlag,
		GridURL:       gridURLFlag,
		AppiumURL:     appiumURLFlag,
		Concurrency:   concurrencyFlag,
		OutputDir:     outputDirFlag,
		ScreenshotDir: screenshotDirFlag,
		Reporters:     outputFlag,
	}
	o.TestTimeout = config.Duration(testTimeoutFlag)
	o.Metrics.Listen = metricsListenFlag
	o.Metrics.File = metricsFileFlag
	o.Tracing.File = traceFileFlag
	o.Notify.On = notifyOnFlag
	o.Notify.SlackWebhook = slackWebhookFlag
	o.Notify.SlackChannel = slackChannelFlag
	o.Notify.TeamsWebhook = teamsWebhookFlag

	if changed(cmd, "headless") {
		o.Headless = config.BoolPtr(headlessFlag)
	}
	if changed(cmd, "retries") {
		o.MaxRetries = config.IntPtr(retriesFlag)
	}
	if changed(cmd, "bail") {
		o.Bail = config.BoolPtr(bailFlag)
	}
	if changed(cmd, "no-color") || quietFlag {
		o.NoColor = config.BoolPtr(noColorFlag || quietFlag)
	}
	if changed(cmd, "screenshot-each-step") {
		o.ScreenshotEachStep = config.BoolPtr(screenshotEachFlag)
	}
	if changed(cmd, "trace") {
		o.Tracing.Enabled = config.BoolPtr(traceFlag)
	}
	return o
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, dotenv, err := loadSettings(runOverrides(cmd))
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	filter := scenario.Filter{Name: nameFlag, Tags: tagsFlag}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runOnce(ctx, cmd, cfg, dotenv, args, filter, log)
	if !watchFlag {
		return err
	}
	if code := exitCode(err); err != nil && code != ExitTestFailure && code != ExitProvisioningError {
		return err
	}

	return watch(ctx, cmd, args, func() {
		cfg, dotenv, err := loadSettings(runOverrides(cmd))
		if err == nil {
			_, err = runOnce(ctx, cmd, cfg, dotenv, args, filter, log)
		}
		if err != nil && exitCode(err) != ExitTestFailure {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
}

// runOnce loads the scenarios, runs them and reports the outcome. Every call
// builds fresh workers, retry state and listeners.
func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dotenv map[string]string, args []string, filter scenario.Filter, log *zap.Logger) (*runner.RunResult, error) {
	_, selected, err := loadScenarios(args, filter)
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	if dryRunFlag {
		for _, sc := range selected {
			fmt.Fprintf(out, "Would run: %s (%s:%d)\n", sc.ID(), sc.File, sc.Line)
		}
		return nil, nil
	}
	if len(selected) == 0 {
		return nil, withExitCode(ExitUsageError, errors.New("no scenarios match the given filters"))
	}

	provisioner := session.NewRemoteProvisioner(
		webdriver.WithValidateSSL(cfg.GetValidateSSL()),
		webdriver.WithProxy(cfg.Proxy),
	)
	registry := session.NewRegistry(provisioner,
		session.WithProvisionRate(cfg.ProvisionRate, cfg.Concurrency),
		session.WithReleaseTimeout(cfg.ReleaseTimeout.Std()),
		session.WithLogger(log),
	)

	collector := metrics.NewCollector(metrics.WithLiveSessions(registry.Live))
	listeners := []report.AggregatorOption{report.WithListener(collector)}

	var console *output.ConsoleListener
	if !quietFlag && hasReporter(cfg.Reporters, "console") {
		console = output.NewConsoleListener(
			output.WithWriter(out),
			output.WithVerbose(verboseFlag > 0),
			output.WithNoColor(cfg.GetNoColor()),
		)
		console.FormatHeader(version)
		listeners = append(listeners, report.WithListener(console))
	}

	if cfg.Metrics.Listen != "" {
		srv, err := collector.Listen(cfg.Metrics.Listen, log)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Close(shutdownCtx)
		}()
	}

	opts := []runner.Option{
		runner.WithProfiles(cfg.Profile),
		runner.WithPolicy(retry.NewPolicy(retry.WithMaxRetries(cfg.GetMaxRetries()), retry.WithLogger(log))),
		runner.WithCapturer(artifact.NewCapturer(cfg.ScreenshotDir, artifact.WithLogger(log))),
		runner.WithAggregator(report.NewAggregator(listeners...)),
		runner.WithResolver(newResolver(dotenv)),
		runner.WithLogger(log),
	}

	if cfg.GetTracing() {
		tp, err := tracing.NewProvider("bankspec", version, cfg.Tracing.File)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn("flushing traces", zap.Error(err))
			}
		}()
		opts = append(opts, runner.WithTracer(tp.Tracer()))
	}

	r := runner.NewRunner(&runner.Config{
		Suite:              suiteFlag,
		Concurrency:        cfg.Concurrency,
		Bail:               cfg.GetBail(),
		TestTimeout:        cfg.TestTimeout.Std(),
		ScreenshotEachStep: cfg.GetScreenshotEachStep(),
		BaseURL:            cfg.BaseURL,
		Wait:               cfg.WaitConfig(),
	}, registry, opts...)

	res, runErr := r.Run(ctx, selected)
	reportRun(ctx, cmd, cfg, res, collector, console, log)

	if runErr != nil {
		return res, withExitCode(ExitTestFailure, fmt.Errorf("run interrupted: %w", runErr))
	}
	return res, runOutcome(res)
}

// reportRun writes report files and metrics, stores the run and sends
// notifications. Failures here are logged and do not change the exit code.
func reportRun(ctx context.Context, cmd *cobra.Command, cfg *config.Config, res *runner.RunResult, collector *metrics.Collector, console *output.ConsoleListener, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)

	var formats []string
	for _, r := range cfg.Reporters {
		if !strings.EqualFold(r, "console") {
			formats = append(formats, strings.ToLower(r))
		}
	}
	if len(formats) > 0 {
		paths, err := output.WriteFiles(cfg.OutputDir, formats, res)
		if err != nil {
			reportError(cmd, console, fmt.Errorf("writing reports: %w", err))
		}
		for _, p := range paths {
			log.Info("report written", zap.String("path", p))
			if !quietFlag {
				fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", p)
			}
		}
	}

	if cfg.Metrics.File != "" {
		var err error
		if strings.EqualFold(filepath.Ext(cfg.Metrics.File), ".json") {
			err = collector.WriteJSON(cfg.Metrics.File)
		} else {
			err = collector.WriteTextfile(cfg.Metrics.File)
		}
		if err != nil {
			reportError(cmd, console, err)
		}
	}

	var previous *history.Run
	if !noHistoryFlag && cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Warn("history unavailable", zap.Error(err))
		} else {
			defer store.Close()
			if previous, err = store.LastRun(ctx, res.Suite); err != nil {
				log.Warn("reading history", zap.Error(err))
			}
			if err := store.SaveRun(ctx, res, cfg.BaseURL); err != nil {
				log.Warn("saving run", zap.Error(err))
			}
		}
	}

	manager, err := newNotifyManager(cfg)
	if err != nil {
		reportError(cmd, console, err)
		return
	}
	if manager == nil {
		return
	}
	if previous != nil {
		manager.SetLastState(previous.Summary.Success())
	}
	if err := manager.Notify(ctx, notify.SummaryFromRun(res, cfg.BaseURL)); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to send notification: %v\n", err)
	}
}

func newNotifyManager(cfg *config.Config) (*notify.Manager, error) {
	if len(notifyFlag) == 0 {
		return nil, nil
	}

	notifyOn, err := notify.ParseNotifyOn(cfg.Notify.On)
	if err != nil {
		return nil, err
	}

	manager := notify.NewManager(notifyOn)
	for _, service := range notifyFlag {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if cfg.Notify.SlackWebhook == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			var slackOpts []notify.SlackOption
			if cfg.Notify.SlackChannel != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(cfg.Notify.SlackChannel))
			}
			manager.AddNotifier(notify.NewSlackNotifier(cfg.Notify.SlackWebhook, slackOpts...))
		case "teams":
			if cfg.Notify.TeamsWebhook == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			manager.AddNotifier(notify.NewTeamsNotifier(cfg.Notify.TeamsWebhook))
		default:
			return nil, fmt.Errorf("unknown notification service %q", service)
		}
	}
	return manager, nil
}

// runOutcome maps a finished run to its exit code.
func runOutcome(res *runner.RunResult) error {
	if res.Success() {
		return nil
	}
	failed := res.Summary.Failed
	if res.ProvisioningFailures > 0 && res.ProvisioningFailures == failed {
		return withExitCode(ExitProvisioningError, fmt.Errorf("%d scenario(s) could not get a session", failed))
	}
	return withExitCode(ExitTestFailure, fmt.Errorf("%d scenario(s) failed", failed))
}

func newResolver(dotenv map[string]string) *env.Resolver {
	res := env.NewResolver()
	res.SetVariables(dotenv)
	res.SetVariables(varsFlag)
	return res
}

func hasReporter(reporters []string, name string) bool {
	for _, r := range reporters {
		if strings.EqualFold(r, name) {
			return true
		}
	}
	return false
}

func reportError(cmd *cobra.Command, console *output.ConsoleListener, err error) {
	if console != nil {
		console.FormatError(err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}

// watch calls fn when a scenario or config file under args changes, until
// ctx ends.
func watch(ctx context.Context, cmd *cobra.Command, args []string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	add := func(dir string) {
		if watchedDirs[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to watch %s: %v\n", dir, err)
		}
		watchedDirs[dir] = true
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(arg))
			continue
		}
		_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				add(path)
			}
			return nil
		})
	}
	if configFlag != "" {
		add(filepath.Dir(configFlag))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var (
		debounce    *time.Timer
		fire        <-chan time.Time
		lastChanged string
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isWatchedFile(event.Name) {
				continue
			}
			lastChanged = event.Name
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(WatchDebounceDelay)
			fire = debounce.C

		case <-fire:
			fire = nil
			fmt.Fprintf(out, "\n\nFile changed: %s\nRe-running scenarios...\n\n", lastChanged)
			fn()
			fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func isWatchedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range scenario.Extensions {
		if ext == e {
			return true
		}
	}
	return ext == ".json" && strings.Contains(strings.ToLower(filepath.Base(path)), "bankspec")
}
