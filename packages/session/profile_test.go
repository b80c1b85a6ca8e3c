package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfile_Capabilities(t *testing.T) {
	t.Run("headless chrome", func(t *testing.T) {
		p := Profile{Platform: PlatformWeb, Browser: "Chrome", Headless: true}
		caps := p.Capabilities()

		assert.Equal(t, "chrome", caps["browserName"])
		args := caps["goog:chromeOptions"].(map[string]any)["args"].([]string)
		assert.Contains(t, args, "--headless=new")
		assert.Contains(t, args, "--window-size=1920,1080")
	})

	t.Run("android by package", func(t *testing.T) {
		p := Profile{
			Platform:    PlatformAndroid,
			DeviceName:  "emulator-5554",
			AppPackage:  "com.bank.mobile",
			AppActivity: ".MainActivity",
		}
		caps := p.Capabilities()

		assert.Equal(t, "Android", caps["platformName"])
		assert.Equal(t, "UiAutomator2", caps["appium:automationName"])
		assert.Equal(t, "com.bank.mobile", caps["appium:appPackage"])
		_, hasApp := caps["appium:app"]
		assert.False(t, hasApp)
	})

	t.Run("ios", func(t *testing.T) {
		p := Profile{Platform: PlatformIOS, DeviceName: "iPhone 15", PlatformVersion: "17.0"}
		caps := p.Capabilities()

		assert.Equal(t, "XCUITest", caps["appium:automationName"])
		assert.Equal(t, "17.0", caps["appium:platformVersion"])
	})
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{"web chrome", Profile{Platform: PlatformWeb, Browser: "chrome", RemoteURL: "http://grid"}, false},
		{"web unknown browser", Profile{Platform: PlatformWeb, Browser: "opera", RemoteURL: "http://grid"}, true},
		{"missing remote", Profile{Platform: PlatformWeb, Browser: "edge"}, true},
		{"android without app", Profile{Platform: PlatformAndroid, RemoteURL: "http://appium"}, true},
		{"android with app", Profile{Platform: PlatformAndroid, AppPath: "/apps/bank.apk", RemoteURL: "http://appium"}, false},
		{"ios", Profile{Platform: PlatformIOS, RemoteURL: "http://appium"}, false},
		{"unknown platform", Profile{RemoteURL: "http://grid"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedProfile)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	for in, want := range map[string]Platform{
		"web":     PlatformWeb,
		"Android": PlatformAndroid,
		" ios ":   PlatformIOS,
	} {
		got, err := ParsePlatform(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
