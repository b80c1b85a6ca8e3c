package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/logger"
	"gopkg.in/yaml.v3"
)

// Config represents the bankspec configuration
type Config struct {
	Platform  string `json:"platform,omitempty" yaml:"platform,omitempty"`
	Browser   string `json:"browser,omitempty" yaml:"browser,omitempty"`
	Headless  *bool  `json:"headless,omitempty" yaml:"headless,omitempty"`
	BaseURL   string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	GridURL   string `json:"gridUrl,omitempty" yaml:"gridUrl,omitempty"`
	AppiumURL string `json:"appiumUrl,omitempty" yaml:"appiumUrl,omitempty"`

	ValidateSSL *bool  `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy       string `json:"proxy,omitempty" yaml:"proxy,omitempty"`

	// ImplicitWait is applied by the remote end to every element lookup. A
	// lookup still blocked when an explicit wait expires is abandoned, so a
	// large value makes explicit waits poll less often but never run longer.
	ImplicitWait    Duration `json:"implicitWait,omitempty" yaml:"implicitWait,omitempty"`
	PageLoadTimeout Duration `json:"pageLoadTimeout,omitempty" yaml:"pageLoadTimeout,omitempty"`
	ExplicitWait    Duration `json:"explicitWait,omitempty" yaml:"explicitWait,omitempty"`
	PollInterval    Duration `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
	TestTimeout     Duration `json:"testTimeout,omitempty" yaml:"testTimeout,omitempty"`
	ReleaseTimeout  Duration `json:"releaseTimeout,omitempty" yaml:"releaseTimeout,omitempty"`

	ScreenshotDir      string `json:"screenshotDir,omitempty" yaml:"screenshotDir,omitempty"`
	ScreenshotEachStep *bool  `json:"screenshotEachStep,omitempty" yaml:"screenshotEachStep,omitempty"`

	MaxRetries    *int    `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	Concurrency   int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	ProvisionRate float64 `json:"provisionRate,omitempty" yaml:"provisionRate,omitempty"` // sessions per second
	Bail          *bool   `json:"bail,omitempty" yaml:"bail,omitempty"`

	Reporters []string `json:"reporters,omitempty" yaml:"reporters,omitempty"`
	OutputDir string   `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	NoColor   *bool    `json:"noColor,omitempty" yaml:"noColor,omitempty"`

	Android AndroidConfig `json:"android,omitempty" yaml:"android,omitempty"`
	IOS     IOSConfig     `json:"ios,omitempty" yaml:"ios,omitempty"`
	History HistoryConfig `json:"history,omitempty" yaml:"history,omitempty"`
	Notify  NotifyConfig  `json:"notify,omitempty" yaml:"notify,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Log     logger.Config `json:"log,omitempty" yaml:"log,omitempty"`
}

type AndroidConfig struct {
	DeviceName      string `json:"deviceName,omitempty" yaml:"deviceName,omitempty"`
	PlatformVersion string `json:"platformVersion,omitempty" yaml:"platformVersion,omitempty"`
	AppPath         string `json:"appPath,omitempty" yaml:"appPath,omitempty"`
	AppPackage      string `json:"appPackage,omitempty" yaml:"appPackage,omitempty"`
	AppActivity     string `json:"appActivity,omitempty" yaml:"appActivity,omitempty"`
}

type IOSConfig struct {
	DeviceName      string `json:"deviceName,omitempty" yaml:"deviceName,omitempty"`
	PlatformVersion string `json:"platformVersion,omitempty" yaml:"platformVersion,omitempty"`
	AppPath         string `json:"appPath,omitempty" yaml:"appPath,omitempty"`
}

type HistoryConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type NotifyConfig struct {
	On           string `json:"on,omitempty" yaml:"on,omitempty"` // always, failure, success, recovery
	SlackWebhook string `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`
	SlackChannel string `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
	TeamsWebhook string `json:"teamsWebhook,omitempty" yaml:"teamsWebhook,omitempty"`
}

type MetricsConfig struct {
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"` // e.g. ":9464"
	File   string `json:"file,omitempty" yaml:"file,omitempty"`     // text exposition written at run end
}

type TracingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"` // stdout when empty
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to n
func IntPtr(n int) *int {
	return &n
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

func (c *Config) GetHeadless() bool           { return getBool(c.Headless, false) }
func (c *Config) GetValidateSSL() bool        { return getBool(c.ValidateSSL, true) }
func (c *Config) GetScreenshotEachStep() bool { return getBool(c.ScreenshotEachStep, false) }
func (c *Config) GetBail() bool               { return getBool(c.Bail, false) }
func (c *Config) GetNoColor() bool            { return getBool(c.NoColor, false) }
func (c *Config) GetTracing() bool            { return getBool(c.Tracing.Enabled, false) }

// GetMaxRetries returns the retry bound, defaulting to DefaultMaxRetries
func (c *Config) GetMaxRetries() int {
	if c.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *c.MaxRetries
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	"bankspec.yaml",
	"bankspec.yml",
	".bankspec.yaml",
	".bankspec.yml",
	"bankspec.json",
	".bankspec.json",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}
	return DefaultConfig(), nil
}

// FindConfigFile returns the first config file present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// loadConfigFromFile validates and decodes a config file over the defaults
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc any
	if isJSON(path) {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc == nil {
		return DefaultConfig(), nil
	}

	if err := Validate(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	fileCfg := &Config{}
	if isJSON(path) {
		err = json.Unmarshal(data, fileCfg)
	} else {
		err = yaml.Unmarshal(data, fileCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return DefaultConfig().Merge(fileCfg), nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	mergeString(&result.Platform, other.Platform)
	mergeString(&result.Browser, other.Browser)
	mergeString(&result.BaseURL, other.BaseURL)
	mergeString(&result.GridURL, other.GridURL)
	mergeString(&result.AppiumURL, other.AppiumURL)
	mergeString(&result.Proxy, other.Proxy)
	mergeString(&result.ScreenshotDir, other.ScreenshotDir)
	mergeString(&result.OutputDir, other.OutputDir)

	mergeDuration(&result.ImplicitWait, other.ImplicitWait)
	mergeDuration(&result.PageLoadTimeout, other.PageLoadTimeout)
	mergeDuration(&result.ExplicitWait, other.ExplicitWait)
	mergeDuration(&result.PollInterval, other.PollInterval)
	mergeDuration(&result.TestTimeout, other.TestTimeout)
	mergeDuration(&result.ReleaseTimeout, other.ReleaseTimeout)

	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.ProvisionRate > 0 {
		result.ProvisionRate = other.ProvisionRate
	}

	// Pointer fields - only override if explicitly set in other config
	if other.Headless != nil {
		result.Headless = other.Headless
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.ScreenshotEachStep != nil {
		result.ScreenshotEachStep = other.ScreenshotEachStep
	}
	if other.MaxRetries != nil {
		result.MaxRetries = other.MaxRetries
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Tracing.Enabled != nil {
		result.Tracing.Enabled = other.Tracing.Enabled
	}

	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	mergeString(&result.Android.DeviceName, other.Android.DeviceName)
	mergeString(&result.Android.PlatformVersion, other.Android.PlatformVersion)
	mergeString(&result.Android.AppPath, other.Android.AppPath)
	mergeString(&result.Android.AppPackage, other.Android.AppPackage)
	mergeString(&result.Android.AppActivity, other.Android.AppActivity)

	mergeString(&result.IOS.DeviceName, other.IOS.DeviceName)
	mergeString(&result.IOS.PlatformVersion, other.IOS.PlatformVersion)
	mergeString(&result.IOS.AppPath, other.IOS.AppPath)

	mergeString(&result.History.Path, other.History.Path)

	mergeString(&result.Notify.On, other.Notify.On)
	mergeString(&result.Notify.SlackWebhook, other.Notify.SlackWebhook)
	mergeString(&result.Notify.SlackChannel, other.Notify.SlackChannel)
	mergeString(&result.Notify.TeamsWebhook, other.Notify.TeamsWebhook)

	mergeString(&result.Metrics.Listen, other.Metrics.Listen)
	mergeString(&result.Metrics.File, other.Metrics.File)
	mergeString(&result.Tracing.File, other.Tracing.File)

	mergeString(&result.Log.Level, other.Log.Level)
	mergeString(&result.Log.Format, other.Log.Format)
	mergeString(&result.Log.File, other.Log.File)
	if other.Log.MaxSize > 0 {
		result.Log.MaxSize = other.Log.MaxSize
	}
	if other.Log.MaxBackups > 0 {
		result.Log.MaxBackups = other.Log.MaxBackups
	}
	if other.Log.MaxAge > 0 {
		result.Log.MaxAge = other.Log.MaxAge
	}

	return &result
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *Duration, v Duration) {
	if v > 0 {
		*dst = v
	}
}

// SaveConfig saves the configuration to a file, as JSON or YAML by extension
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
