package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/scenario"
	"github.com/spf13/cobra"
)

var (
	listNameFlag     string
	listTagsFlag     []string
	listPlatformFlag string
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the scenarios a run would select",
	Long: `List the scenarios defined in the given files, after applying the
same filters as run.

Examples:
  bankspec list ./scenarios/
  bankspec list ./scenarios/ --tags smoke --platform android`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringVarP(&listNameFlag, "name", "n", "", "Only scenarios matching name pattern")
	listCmd.Flags().StringSliceVarP(&listTagsFlag, "tags", "t", nil, "Only scenarios with any of these tags")
	listCmd.Flags().StringVarP(&listPlatformFlag, "platform", "p", "", "Only scenarios for this platform")
}

func listCommand(cmd *cobra.Command, args []string) error {
	_, selected, err := loadScenarios(args, scenario.Filter{
		Name:     listNameFlag,
		Tags:     listTagsFlag,
		Platform: listPlatformFlag,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	file := ""
	for _, sc := range selected {
		if sc.File != file {
			file = sc.File
			fmt.Fprintf(out, "\n%s:\n", file)
		}
		line := "  - " + sc.Name
		if sc.Platform != "" {
			line += " [" + sc.Platform + "]"
		}
		if sc.Skip != "" {
			line += " (skip: " + sc.Skip + ")"
		}
		fmt.Fprintln(out, line)
		if len(sc.Tags) > 0 {
			fmt.Fprintf(out, "    tags: %s\n", strings.Join(sc.Tags, ", "))
		}
	}
	fmt.Fprintf(out, "\n%d scenarios\n", len(selected))
	return nil
}
