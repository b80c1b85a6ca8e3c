package config

import (
	"github.com/abdul-hamid-achik/bankspec/packages/conditions"
	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/wait"
)

// Profile builds the session profile for platform, or for c.Platform when
// platform is empty.
func (c *Config) Profile(platform string) (session.Profile, error) {
	if platform == "" {
		platform = c.Platform
	}
	p, err := session.ParsePlatform(platform)
	if err != nil {
		return session.Profile{}, err
	}

	profile := session.Profile{
		Platform:        p,
		Browser:         c.Browser,
		Headless:        c.GetHeadless(),
		ImplicitWait:    c.ImplicitWait.Std(),
		PageLoadTimeout: c.PageLoadTimeout.Std(),
	}

	switch p {
	case session.PlatformWeb:
		profile.RemoteURL = c.GridURL
	case session.PlatformAndroid:
		profile.RemoteURL = c.AppiumURL
		profile.DeviceName = c.Android.DeviceName
		profile.PlatformVersion = c.Android.PlatformVersion
		profile.AppPath = c.Android.AppPath
		profile.AppPackage = c.Android.AppPackage
		profile.AppActivity = c.Android.AppActivity
	case session.PlatformIOS:
		profile.RemoteURL = c.AppiumURL
		profile.DeviceName = c.IOS.DeviceName
		profile.PlatformVersion = c.IOS.PlatformVersion
		profile.AppPath = c.IOS.AppPath
	}

	return profile, profile.Validate()
}

// WaitConfig returns the poller defaults.
func (c *Config) WaitConfig() wait.Config {
	return wait.Config{
		Timeout:  c.ExplicitWait.Std(),
		Interval: c.PollInterval.Std(),
		Ignore:   conditions.DefaultIgnore,
	}
}
