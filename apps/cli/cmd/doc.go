// Package cmd implements the bankspec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute scenarios on parallel workers
//   - validate: Check scenario files and config without executing
//   - list: Display the scenarios a run would select
//   - history: Show stored runs, their records and flaky tests
//   - diff: Compare two stored runs
//   - doctor: Open and close one session per platform
//   - init: Create a config file and an example scenario
//   - version: Show bankspec version information
//
// Settings come from bankspec.yaml, then BANKSPEC_* environment
// variables, then flags.
package cmd
