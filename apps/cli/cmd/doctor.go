package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var doctorTimeoutFlag time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor [platform]...",
	Short: "Check that sessions can be opened",
	Long: `Check each platform's remote end: query its status, then open and
release one session with the configured capabilities. Without arguments
the configured default platform is checked.

Examples:
  bankspec doctor
  bankspec doctor web android`,
	RunE: doctorCommand,
}

func init() {
	doctorCmd.Flags().DurationVar(&doctorTimeoutFlag, "timeout", 2*time.Minute, "Upper bound for each platform check")
}

// probe opens and releases one session per platform.
type probe struct {
	profiles    func(platform string) (session.Profile, error)
	provisioner session.Provisioner
	status      func(ctx context.Context, remoteURL string) (bool, string, error)
	timeout     time.Duration
	log         *zap.Logger
}

func doctorCommand(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadSettings(nil)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if len(args) == 0 {
		args = []string{cfg.Platform}
	}

	clientOpts := []webdriver.ClientOption{
		webdriver.WithValidateSSL(cfg.GetValidateSSL()),
		webdriver.WithProxy(cfg.Proxy),
	}
	p := &probe{
		profiles:    cfg.Profile,
		provisioner: session.NewRemoteProvisioner(clientOpts...),
		status: func(ctx context.Context, remoteURL string) (bool, string, error) {
			return webdriver.NewClient(remoteURL, clientOpts...).Status(ctx)
		},
		timeout: doctorTimeoutFlag,
		log:     log,
	}

	if failed := p.check(cmd.Context(), cmd.OutOrStdout(), args); failed > 0 {
		return withExitCode(ExitProvisioningError, fmt.Errorf("%d of %d platforms failed", failed, len(args)))
	}
	return nil
}

// check reports each platform on w and returns how many failed.
func (p *probe) check(ctx context.Context, w io.Writer, platforms []string) int {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	failed := 0
	for _, platform := range platforms {
		profile, err := p.profiles(platform)
		if err != nil {
			fmt.Fprintf(w, "%s %s: %v\n", red("✗"), platform, err)
			failed++
			continue
		}

		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		ready, msg, err := p.status(ctx, profile.RemoteURL)
		switch {
		case err != nil:
			fmt.Fprintf(w, "%s %s status (%s): %v\n", yellow("!"), profile.Platform, profile.RemoteURL, err)
		case !ready:
			fmt.Fprintf(w, "%s %s status (%s): not ready: %s\n", yellow("!"), profile.Platform, profile.RemoteURL, msg)
		}

		took, err := p.session(ctx, profile)
		cancel()
		if err != nil {
			fmt.Fprintf(w, "%s %s (%s): %v\n", red("✗"), profile.Platform, profile.Target(), err)
			failed++
			continue
		}
		fmt.Fprintf(w, "%s %s (%s) session opened and released in %s\n",
			green("✓"), profile.Platform, profile.Target(), took.Round(time.Millisecond))
	}
	return failed
}

func (p *probe) session(ctx context.Context, profile session.Profile) (time.Duration, error) {
	registry := session.NewRegistry(p.provisioner, session.WithLogger(p.log))
	ctx = session.WithWorker(ctx, "doctor")

	start := time.Now()
	h, err := registry.Acquire(ctx, profile)
	if err != nil {
		return 0, err
	}
	if _, err := h.Driver().Title(ctx); err != nil {
		if rerr := registry.Release(ctx); rerr != nil {
			return 0, fmt.Errorf("session %s unusable: %w; %w", h.ID, err, rerr)
		}
		return 0, fmt.Errorf("session %s unusable: %w", h.ID, err)
	}
	if err := registry.Release(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
