package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/history"
	"github.com/abdul-hamid-achik/bankspec/packages/output"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"github.com/fatih/color"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

var (
	diffOutputFlag    string
	diffThresholdFlag string
	diffSuiteFlag     string
)

var diffCmd = &cobra.Command{
	Use:   "diff [<run|results.json> <run|results.json>]",
	Short: "Compare two runs",
	Long: `Compare two runs and show which scenarios changed status or slowed
down. A run is a run id from the history database or a results.json
written by the json reporter. Without arguments the two newest runs of
--suite are compared.

Examples:
  bankspec diff --suite smoke
  bankspec diff 01JNBQ7X2M8Z6K4T3V9W5Y1H0R 01JNBR0A9C2D4E6F8G0H2J4K6M
  bankspec diff old/results.json reports/results.json --threshold 20%`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return withExitCode(ExitUsageError, fmt.Errorf("diff takes no arguments or two runs"))
		}
		return nil
	},
	RunE: diffCommand,
}

func init() {
	diffCmd.Flags().StringVarP(&diffOutputFlag, "output", "o", "console", "Output format: console, json")
	diffCmd.Flags().StringVar(&diffThresholdFlag, "threshold", "", "Fail if any scenario is slower by this percentage (e.g., 10%)")
	diffCmd.Flags().StringVar(&diffSuiteFlag, "suite", "", "Suite whose two newest runs are compared when no runs are given")
}

// DiffRun is one side of a comparison.
type DiffRun struct {
	Label   string
	Records []report.Record
}

// DiffResult holds the comparison result
type DiffResult struct {
	Run1        string           `json:"run1"`
	Run2        string           `json:"run2"`
	Comparisons []TestComparison `json:"comparisons"`
	Summary     DiffSummary      `json:"summary"`
}

// TestComparison represents a comparison between two test results
type TestComparison struct {
	TestID         string  `json:"testId"`
	StatusChange   string  `json:"statusChange"` // improved, regressed, unchanged, new, removed
	Status1        string  `json:"status1,omitempty"`
	Status2        string  `json:"status2,omitempty"`
	Duration1      float64 `json:"duration1,omitempty"` // ms
	Duration2      float64 `json:"duration2,omitempty"` // ms
	DurationChange float64 `json:"durationChange,omitempty"`
	InRun1         bool    `json:"-"`
	InRun2         bool    `json:"-"`
}

// DiffSummary provides overall statistics
type DiffSummary struct {
	TotalTests       int     `json:"totalTests"`
	Improved         int     `json:"improved"`
	Regressed        int     `json:"regressed"`
	Unchanged        int     `json:"unchanged"`
	NewTests         int     `json:"newTests"`
	RemovedTests     int     `json:"removedTests"`
	ThresholdPassed  bool    `json:"thresholdPassed"`
	ThresholdPercent float64 `json:"thresholdPercent,omitempty"`
}

func diffCommand(cmd *cobra.Command, args []string) error {
	var threshold float64
	if diffThresholdFlag != "" {
		var err error
		if threshold, err = parseThreshold(diffThresholdFlag); err != nil {
			return withExitCode(ExitUsageError, err)
		}
	}

	run1, run2, err := loadDiffRuns(cmd.Context(), args)
	if err != nil {
		return err
	}

	diff := compareRuns(run1, run2, threshold)

	switch strings.ToLower(diffOutputFlag) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(diff); err != nil {
			return err
		}
	default:
		outputDiffConsole(cmd.OutOrStdout(), diff)
	}

	if !diff.Summary.ThresholdPassed {
		return withExitCode(ExitTestFailure, fmt.Errorf("threshold exceeded"))
	}
	return nil
}

func loadDiffRuns(ctx context.Context, args []string) (*DiffRun, *DiffRun, error) {
	var store *history.Store
	openStore := func() (*history.Store, error) {
		if store != nil {
			return store, nil
		}
		s, err := openHistory()
		if err != nil {
			return nil, err
		}
		store = s
		return store, nil
	}
	defer func() {
		if store != nil {
			_ = store.Close()
		}
	}()

	if len(args) == 0 {
		if diffSuiteFlag == "" {
			return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("give two runs or --suite"))
		}
		s, err := openStore()
		if err != nil {
			return nil, nil, err
		}
		runs, err := s.Runs(ctx, diffSuiteFlag, 2)
		if err != nil {
			return nil, nil, err
		}
		if len(runs) < 2 {
			return nil, nil, fmt.Errorf("suite %s has %d stored runs, need 2", diffSuiteFlag, len(runs))
		}
		// Runs are newest first; compare older to newer.
		args = []string{runs[1].ID.String(), runs[0].ID.String()}
	}

	load := func(arg string) (*DiffRun, error) {
		if id, err := ulid.ParseStrict(arg); err == nil {
			s, err := openStore()
			if err != nil {
				return nil, err
			}
			records, err := s.Records(ctx, id)
			if err != nil {
				return nil, err
			}
			if len(records) == 0 {
				return nil, fmt.Errorf("run %s not found", id)
			}
			return &DiffRun{Label: arg, Records: records}, nil
		}
		return loadResultsFile(arg)
	}

	run1, err := load(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	run2, err := load(args[1])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", args[1], err)
	}
	return run1, run2, nil
}

func loadResultsFile(path string) (*DiffRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var results output.JSONOutput
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}

	run := &DiffRun{Label: path}
	for _, t := range results.Tests {
		run.Records = append(run.Records, t.Record)
	}
	return run, nil
}

func parseThreshold(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	return v, nil
}

func compareRuns(run1, run2 *DiffRun, threshold float64) *DiffResult {
	diff := &DiffResult{
		Run1: run1.Label,
		Run2: run2.Label,
		Summary: DiffSummary{
			ThresholdPercent: threshold,
			ThresholdPassed:  true,
		},
	}

	tests1 := make(map[string]report.Record)
	tests2 := make(map[string]report.Record)
	for _, r := range run1.Records {
		tests1[r.TestID] = r
	}
	for _, r := range run2.Records {
		tests2[r.TestID] = r
	}

	ids := make([]string, 0, len(tests1)+len(tests2))
	for id := range tests1 {
		ids = append(ids, id)
	}
	for id := range tests2 {
		if _, ok := tests1[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		t1, in1 := tests1[id]
		t2, in2 := tests2[id]

		comp := TestComparison{TestID: id, InRun1: in1, InRun2: in2}
		if in1 {
			comp.Status1 = t1.Status.String()
			comp.Duration1 = float64(t1.Duration().Milliseconds())
		}
		if in2 {
			comp.Status2 = t2.Status.String()
			comp.Duration2 = float64(t2.Duration().Milliseconds())
		}

		switch {
		case in1 && in2:
			if comp.Duration1 > 0 {
				comp.DurationChange = ((comp.Duration2 - comp.Duration1) / comp.Duration1) * 100
			}

			switch {
			case t1.Passed() != t2.Passed():
				if t2.Passed() {
					comp.StatusChange = "improved"
					diff.Summary.Improved++
				} else {
					comp.StatusChange = "regressed"
					diff.Summary.Regressed++
				}
			case comp.DurationChange < -10:
				comp.StatusChange = "improved"
				diff.Summary.Improved++
			case comp.DurationChange > 10:
				comp.StatusChange = "regressed"
				diff.Summary.Regressed++
			default:
				comp.StatusChange = "unchanged"
				diff.Summary.Unchanged++
			}

			// Skipped runs have no meaningful duration.
			if threshold > 0 && !t1.Skipped() && !t2.Skipped() && comp.DurationChange > threshold {
				diff.Summary.ThresholdPassed = false
			}
		case in1:
			comp.StatusChange = "removed"
			diff.Summary.RemovedTests++
		default:
			comp.StatusChange = "new"
			diff.Summary.NewTests++
		}

		diff.Comparisons = append(diff.Comparisons, comp)
		diff.Summary.TotalTests++
	}

	return diff
}

func outputDiffConsole(w io.Writer, diff *DiffResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", bold("Run Comparison"))
	fmt.Fprintf(w, "  %s: %s\n", cyan("Run 1"), diff.Run1)
	fmt.Fprintf(w, "  %s: %s\n\n", cyan("Run 2"), diff.Run2)

	fmt.Fprintf(w, "%s\n", bold("Summary"))
	fmt.Fprintf(w, "  Total Tests:    %d\n", diff.Summary.TotalTests)
	if diff.Summary.Improved > 0 {
		fmt.Fprintf(w, "  Improved:       %s\n", green(diff.Summary.Improved))
	}
	if diff.Summary.Regressed > 0 {
		fmt.Fprintf(w, "  Regressed:      %s\n", red(diff.Summary.Regressed))
	}
	if diff.Summary.Unchanged > 0 {
		fmt.Fprintf(w, "  Unchanged:      %d\n", diff.Summary.Unchanged)
	}
	if diff.Summary.NewTests > 0 {
		fmt.Fprintf(w, "  New Tests:      %s\n", cyan(diff.Summary.NewTests))
	}
	if diff.Summary.RemovedTests > 0 {
		fmt.Fprintf(w, "  Removed Tests:  %s\n", yellow(diff.Summary.RemovedTests))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s\n", bold("Test Details"))
	for _, comp := range diff.Comparisons {
		var symbol string
		paint := fmt.Sprint

		switch comp.StatusChange {
		case "improved":
			symbol, paint = "↑", green
		case "regressed":
			symbol, paint = "↓", red
		case "new":
			symbol, paint = "+", cyan
		case "removed":
			symbol, paint = "-", yellow
		default:
			symbol = "="
		}

		switch {
		case comp.InRun1 && comp.InRun2:
			change := ""
			if comp.DurationChange > 0 {
				change = fmt.Sprintf("+%.1f%%", comp.DurationChange)
			} else if comp.DurationChange < 0 {
				change = fmt.Sprintf("%.1f%%", comp.DurationChange)
			}
			status := comp.Status2
			if comp.Status1 != comp.Status2 {
				status = comp.Status1 + " → " + comp.Status2
			}
			fmt.Fprintf(w, "  %s %s  %s  %.0fms → %.0fms %s\n",
				paint(symbol), comp.TestID, status, comp.Duration1, comp.Duration2, paint(change))
		case comp.InRun1:
			fmt.Fprintf(w, "  %s %s  (removed)\n", paint(symbol), comp.TestID)
		default:
			fmt.Fprintf(w, "  %s %s  (new, %s, %.0fms)\n", paint(symbol), comp.TestID, comp.Status2, comp.Duration2)
		}
	}
	fmt.Fprintln(w)

	if diff.Summary.ThresholdPercent > 0 {
		if diff.Summary.ThresholdPassed {
			fmt.Fprintf(w, "%s Threshold check passed (max regression: %.1f%%)\n", green("✓"), diff.Summary.ThresholdPercent)
		} else {
			fmt.Fprintf(w, "%s Threshold check failed (some tests exceeded %.1f%% regression)\n", red("✗"), diff.Summary.ThresholdPercent)
		}
	}
}
