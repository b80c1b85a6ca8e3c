package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BANKSPEC_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv builds a partial config from BANKSPEC_* variables, suitable for
// Merge over a file config.
func FromEnv(lookup LookupFunc) (*Config, error) {
	c := &Config{}
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst **bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
			return
		}
		*dst = &b
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
			return
		}
		*dst = n
	}
	duration := func(key string, dst *Duration) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
			return
		}
		*dst = Duration(d)
	}

	str("PLATFORM", &c.Platform)
	str("BROWSER", &c.Browser)
	boolean("HEADLESS", &c.Headless)
	str("BASE_URL", &c.BaseURL)
	str("GRID_URL", &c.GridURL)
	str("APPIUM_URL", &c.AppiumURL)
	str("PROXY", &c.Proxy)
	boolean("VALIDATE_SSL", &c.ValidateSSL)
	duration("IMPLICIT_WAIT", &c.ImplicitWait)
	duration("PAGE_LOAD_TIMEOUT", &c.PageLoadTimeout)
	duration("EXPLICIT_WAIT", &c.ExplicitWait)
	duration("POLL_INTERVAL", &c.PollInterval)
	duration("TEST_TIMEOUT", &c.TestTimeout)
	str("SCREENSHOT_DIR", &c.ScreenshotDir)
	boolean("SCREENSHOT_EACH_STEP", &c.ScreenshotEachStep)
	integer("CONCURRENCY", &c.Concurrency)
	str("OUTPUT_DIR", &c.OutputDir)
	boolean("NO_COLOR", &c.NoColor)

	retries := -1
	integer("MAX_RETRIES", &retries)
	if retries >= 0 {
		c.MaxRetries = IntPtr(retries)
	}

	if v, ok := lookup(EnvPrefix + "REPORTERS"); ok && v != "" {
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				c.Reporters = append(c.Reporters, r)
			}
		}
	}

	str("ANDROID_DEVICE_NAME", &c.Android.DeviceName)
	str("ANDROID_APP_PATH", &c.Android.AppPath)
	str("ANDROID_APP_PACKAGE", &c.Android.AppPackage)
	str("ANDROID_APP_ACTIVITY", &c.Android.AppActivity)
	str("IOS_DEVICE_NAME", &c.IOS.DeviceName)
	str("IOS_PLATFORM_VERSION", &c.IOS.PlatformVersion)
	str("IOS_APP_PATH", &c.IOS.AppPath)
	str("HISTORY_PATH", &c.History.Path)
	str("SLACK_WEBHOOK", &c.Notify.SlackWebhook)
	str("TEAMS_WEBHOOK", &c.Notify.TeamsWebhook)
	str("NOTIFY_ON", &c.Notify.On)
	str("METRICS_LISTEN", &c.Metrics.Listen)
	boolean("TRACING", &c.Tracing.Enabled)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return c, nil
}
