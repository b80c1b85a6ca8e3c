package session

import (
	"fmt"
	"strings"
	"time"
)

// Profile describes the session a worker needs.
type Profile struct {
	Platform Platform
	Browser  string
	Headless bool

	ImplicitWait    time.Duration
	PageLoadTimeout time.Duration

	// RemoteURL is the Grid/driver endpoint for web or the Appium server for mobile.
	RemoteURL string

	DeviceName      string
	PlatformVersion string
	AppPath         string
	AppPackage      string
	AppActivity     string
}

// Validate rejects profiles no provisioner can satisfy.
func (p Profile) Validate() error {
	switch p.Platform {
	case PlatformWeb:
		switch strings.ToLower(p.Browser) {
		case BrowserChrome, BrowserFirefox, BrowserEdge:
		default:
			return fmt.Errorf("%w: browser %q", ErrUnsupportedProfile, p.Browser)
		}
	case PlatformAndroid:
		if p.AppPath == "" && (p.AppPackage == "" || p.AppActivity == "") {
			return fmt.Errorf("%w: android needs an app path or app package and activity", ErrUnsupportedProfile)
		}
	case PlatformIOS:
	default:
		return fmt.Errorf("%w: platform %s", ErrUnsupportedProfile, p.Platform)
	}
	if p.RemoteURL == "" {
		return fmt.Errorf("%w: no remote url for %s", ErrUnsupportedProfile, p.Platform)
	}
	return nil
}

// Target names the browser or app identity for logs and reports.
func (p Profile) Target() string {
	switch p.Platform {
	case PlatformWeb:
		return strings.ToLower(p.Browser)
	case PlatformAndroid:
		if p.AppPackage != "" {
			return p.AppPackage
		}
		return p.DeviceName
	default:
		return p.DeviceName
	}
}

// Capabilities builds the W3C alwaysMatch capability set for the profile.
func (p Profile) Capabilities() map[string]any {
	switch p.Platform {
	case PlatformAndroid:
		return p.androidCapabilities()
	case PlatformIOS:
		return p.iosCapabilities()
	default:
		return p.browserCapabilities()
	}
}

func (p Profile) browserCapabilities() map[string]any {
	browser := strings.ToLower(p.Browser)
	caps := map[string]any{}

	switch browser {
	case BrowserChrome:
		args := []string{
			"--start-maximized",
			"--disable-notifications",
			"--disable-popup-blocking",
			"--no-sandbox",
			"--disable-dev-shm-usage",
		}
		if p.Headless {
			args = append(args, "--headless=new", "--window-size=1920,1080")
		}
		caps["browserName"] = "chrome"
		caps["goog:chromeOptions"] = map[string]any{"args": args}
	case BrowserFirefox:
		var args []string
		if p.Headless {
			args = append(args, "--headless", "--width=1920", "--height=1080")
		}
		caps["browserName"] = "firefox"
		caps["moz:firefoxOptions"] = map[string]any{"args": args}
	case BrowserEdge:
		args := []string{"--start-maximized"}
		if p.Headless {
			args = append(args, "--headless=new")
		}
		caps["browserName"] = "MicrosoftEdge"
		caps["ms:edgeOptions"] = map[string]any{"args": args}
	}

	timeouts := map[string]any{}
	if p.ImplicitWait > 0 {
		timeouts["implicit"] = p.ImplicitWait.Milliseconds()
	}
	if p.PageLoadTimeout > 0 {
		timeouts["pageLoad"] = p.PageLoadTimeout.Milliseconds()
	}
	if len(timeouts) > 0 {
		caps["timeouts"] = timeouts
	}

	return caps
}

func (p Profile) androidCapabilities() map[string]any {
	caps := map[string]any{
		"platformName":             "Android",
		"appium:automationName":    "UiAutomator2",
		"appium:deviceName":        p.DeviceName,
		"appium:newCommandTimeout": 300,
	}
	if p.AppPath != "" {
		caps["appium:app"] = p.AppPath
	} else {
		caps["appium:appPackage"] = p.AppPackage
		caps["appium:appActivity"] = p.AppActivity
	}
	if p.PlatformVersion != "" {
		caps["appium:platformVersion"] = p.PlatformVersion
	}
	return caps
}

func (p Profile) iosCapabilities() map[string]any {
	caps := map[string]any{
		"platformName":          "iOS",
		"appium:automationName": "XCUITest",
		"appium:deviceName":     p.DeviceName,
	}
	if p.PlatformVersion != "" {
		caps["appium:platformVersion"] = p.PlatformVersion
	}
	if p.AppPath != "" {
		caps["appium:app"] = p.AppPath
	}
	return caps
}
