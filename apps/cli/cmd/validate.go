package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/bankspec/packages/scenario"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate scenario files and config",
	Long: `Validate scenario files for syntax and step errors without
executing them. The config file is checked against its schema too.

Examples:
  bankspec validate login.yaml
  bankspec validate ./scenarios/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	if _, _, err := loadSettings(nil); err != nil {
		return err
	}

	files, err := scenario.LoadPaths(args)
	if err != nil {
		return withExitCode(ExitParseError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitParseError, fmt.Errorf("no scenario files found in %v", args))
	}

	count := 0
	for _, f := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d scenarios)\n", f.Path, len(f.Scenarios))
		count += len(f.Scenarios)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d files, %d scenarios\n", len(files), count)
	return nil
}
