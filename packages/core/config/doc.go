// Package config loads bankspec run configuration.
//
// It provides functionality for:
//   - Loading bankspec.yaml, .bankspec.yaml or bankspec.json files
//   - Validating documents against an embedded JSON Schema
//   - Default values matching the harness's historical properties
//   - BANKSPEC_* environment overrides and merging of partial configs
//   - Building session profiles and wait settings from the result
package config
