package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/bankspec/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new bankspec project",
	Long: `Initialize a new bankspec project in the current directory.

This creates:
  - bankspec.yaml             - Configuration with the default settings
  - scenarios/login.yaml      - Example scenario

Examples:
  bankspec init
  bankspec init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleScenario = `# Scenarios run in parallel, each on its own session.
platform: web
tags: [smoke]

variables:
  user: demo

scenarios:
  - name: Login_Valid
    description: A registered customer reaches the dashboard
    steps:
      - open: /login
      - type: {target: "#username", value: "{{user}}"}
      - type: {target: "#password", value: "{{$BANK_PASSWORD}}"}
      - click: "#login"
      - waitURL: /dashboard
      - assertText: {target: "#balance", op: matches, value: '/[\d,]+\.\d{2} USD/'}
      - assertURL: /dashboard

  - name: Login_Invalid
    steps:
      - open: /login
      - type: {target: "#username", value: "{{user}}"}
      - type: {target: "#password", value: wrong}
      - click: "#login"
      - waitVisible: ".error"
      - assertText: {target: ".error", value: "Invalid credentials"}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "bankspec.yaml")
	exampleFile := filepath.Join(cwd, "scenarios", "login.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	if err := config.DefaultConfig().SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.MkdirAll(filepath.Dir(exampleFile), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(exampleFile, []byte(exampleScenario), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nbankspec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'bankspec doctor' to check your grid, then 'bankspec run scenarios/'.\n")

	return nil
}
