package config

import (
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/logger"
)

const (
	DefaultMaxRetries  = 2
	DefaultConcurrency = 4
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Platform:           "web",
		Browser:            "chrome",
		Headless:           BoolPtr(false),
		BaseURL:            "http://localhost:3000",
		GridURL:            "http://localhost:4444",
		AppiumURL:          "http://127.0.0.1:4723",
		ValidateSSL:        BoolPtr(true),
		ImplicitWait:       Duration(10 * time.Second),
		PageLoadTimeout:    Duration(30 * time.Second),
		ExplicitWait:       Duration(15 * time.Second),
		PollInterval:       Duration(500 * time.Millisecond),
		TestTimeout:        Duration(5 * time.Minute),
		ReleaseTimeout:     Duration(30 * time.Second),
		ScreenshotDir:      "reports/screenshots",
		ScreenshotEachStep: BoolPtr(false),
		MaxRetries:         IntPtr(DefaultMaxRetries),
		Concurrency:        DefaultConcurrency,
		Bail:               BoolPtr(false),
		Reporters:          []string{"console"},
		OutputDir:          "reports",
		NoColor:            BoolPtr(false),
		Android: AndroidConfig{
			DeviceName: "emulator-5554",
		},
		IOS: IOSConfig{
			DeviceName:      "iPhone 15",
			PlatformVersion: "17.0",
		},
		History: HistoryConfig{
			Path: ".bankspec/history.db",
		},
		Notify: NotifyConfig{
			On: "failure",
		},
		Tracing: TracingConfig{
			Enabled: BoolPtr(false),
		},
		Log: logger.DefaultConfig(),
	}
}
