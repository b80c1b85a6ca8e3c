package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/history"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var (
	historySuiteFlag string
	historyLimitFlag int
	historyRunFlag   string
	historyFlakyFlag int
	historyPruneFlag int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored runs",
	Long: `Show runs stored in the history database.

Examples:
  bankspec history
  bankspec history --suite smoke --limit 5
  bankspec history --run 01JNBQ7X2M8Z6K4T3V9W5Y1H0R
  bankspec history --suite smoke --flaky 20
  bankspec history --suite smoke --prune 50`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historySuiteFlag, "suite", "", "Only runs of this suite")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the records of one run")
	historyCmd.Flags().IntVar(&historyFlakyFlag, "flaky", 0, "Show scenarios that failed or retried in the last N runs of --suite")
	historyCmd.Flags().IntVar(&historyPruneFlag, "prune", -1, "Keep only the newest N runs of --suite")
}

func openHistory() (*history.Store, error) {
	cfg, _, err := loadSettings(nil)
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	return store, nil
}

func historyCommand(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case historyRunFlag != "":
		id, err := ulid.ParseStrict(historyRunFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid run id %q: %w", historyRunFlag, err))
		}
		records, err := store.Records(ctx, id)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("run %s not found", id)
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TEST\tSTATUS\tATTEMPTS\tPLATFORM\tDURATION\tERROR")
		for _, rec := range records {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
				rec.TestID, rec.Status, rec.Attempt, rec.Platform,
				rec.Duration().Round(time.Millisecond), firstLine(rec.Err))
		}
		return tw.Flush()

	case historyFlakyFlag > 0:
		if historySuiteFlag == "" {
			return withExitCode(ExitUsageError, fmt.Errorf("--flaky needs --suite"))
		}
		flaky, err := store.Flaky(ctx, historySuiteFlag, historyFlakyFlag)
		if err != nil {
			return err
		}
		if len(flaky) == 0 {
			fmt.Fprintf(out, "No flaky scenarios in the last %d runs of %s\n", historyFlakyFlag, historySuiteFlag)
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TEST\tRUNS\tFAILED\tRETRIED")
		for _, f := range flaky {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", f.TestID, f.Runs, f.Failed, f.Retried)
		}
		return tw.Flush()

	case historyPruneFlag >= 0:
		if historySuiteFlag == "" {
			return withExitCode(ExitUsageError, fmt.Errorf("--prune needs --suite"))
		}
		n, err := store.Prune(ctx, historySuiteFlag, historyPruneFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d runs of %s\n", n, historySuiteFlag)
		return nil
	}

	runs, err := store.Runs(ctx, historySuiteFlag, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	return printRuns(out, runs)
}

func printRuns(w io.Writer, runs []history.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSUITE\tSTARTED\tTOTAL\tPASSED\tFAILED\tSKIPPED\tPASS RATE\tDURATION")
	for _, r := range runs {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.1f%%\t%s\n",
			r.ID, r.Suite, s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Total, s.Passed, s.Failed, s.Skipped, s.PassRate, s.Duration.Round(time.Second))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
