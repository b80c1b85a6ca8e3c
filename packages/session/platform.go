package session

import (
	"fmt"
	"strings"
)

// Platform is the kind of target a session automates.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformWeb
	PlatformAndroid
	PlatformIOS
)

func (p Platform) String() string {
	switch p {
	case PlatformWeb:
		return "web"
	case PlatformAndroid:
		return "android"
	case PlatformIOS:
		return "ios"
	default:
		return "unknown"
	}
}

// IsMobile reports whether the platform is driven through Appium.
func (p Platform) IsMobile() bool {
	return p == PlatformAndroid || p == PlatformIOS
}

// ParsePlatform maps a configuration string to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "web", "browser", "":
		return PlatformWeb, nil
	case "android":
		return PlatformAndroid, nil
	case "ios":
		return PlatformIOS, nil
	default:
		return PlatformUnknown, fmt.Errorf("%w: platform %q", ErrUnsupportedProfile, s)
	}
}

// Supported browsers for the web platform.
const (
	BrowserChrome  = "chrome"
	BrowserFirefox = "firefox"
	BrowserEdge    = "edge"
)
