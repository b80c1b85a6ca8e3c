package cmd

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/bankspec/packages/core/config"
	"github.com/abdul-hamid-achik/bankspec/packages/core/env"
	"github.com/abdul-hamid-achik/bankspec/packages/logger"
	"github.com/abdul-hamid-achik/bankspec/packages/scenario"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFlag   string
	envFileFlag  string
	logLevelFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default: bankspec.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "Path to .env file exported before config is read")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (env: BANKSPEC_LOG_LEVEL)")
}

// loadSettings layers the config file, BANKSPEC_* variables and finally
// overrides, which holds only the flags the user set.
func loadSettings(overrides *config.Config) (*config.Config, map[string]string, error) {
	var dotenv map[string]string
	if envFileFlag != "" {
		vars, err := env.LoadAndExportDotEnv(envFileFlag)
		if err != nil {
			return nil, nil, withExitCode(ExitConfigError, err)
		}
		dotenv = vars
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}

	fromEnv, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, err)
	}
	cfg = cfg.Merge(fromEnv)

	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	return cfg.Merge(overrides), dotenv, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, withExitCode(ExitConfigError, fmt.Errorf("logger: %w", err))
	}
	return log, nil
}

// loadScenarios parses args and applies the selection flags.
func loadScenarios(args []string, filter scenario.Filter) ([]*scenario.File, []*scenario.Scenario, error) {
	files, err := scenario.LoadPaths(args)
	if err != nil {
		return nil, nil, withExitCode(ExitParseError, err)
	}
	if len(files) == 0 {
		return nil, nil, withExitCode(ExitParseError, fmt.Errorf("no scenario files found in %v", args))
	}
	return files, filter.Select(files), nil
}

// changed reports whether the user set the named flag on cmd.
func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}
