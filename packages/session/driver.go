package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
	"github.com/tidwall/gjson"
)

// ErrNotSupported is returned by drivers for capabilities their platform lacks.
var ErrNotSupported = errors.New("not supported on this platform")

// Element is a located UI element.
type Element interface {
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}

// Driver is the capability surface every platform exposes. Waits, failure
// capture and the step layer only ever talk to a Driver.
type Driver interface {
	Platform() Platform
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Find(ctx context.Context, by webdriver.By) (Element, error)
	FindAll(ctx context.Context, by webdriver.By) ([]Element, error)
	ExecuteScript(ctx context.Context, script string, args ...any) (gjson.Result, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Rotate(ctx context.Context, o webdriver.Orientation) error
	AlertText(ctx context.Context) (string, error)
	AcceptAlert(ctx context.Context) error
	DismissAlert(ctx context.Context) error
	SwitchToFrame(ctx context.Context, id string) error
	Quit(ctx context.Context) error
}

// Provisioner creates the external resource behind a session.
type Provisioner interface {
	Provision(ctx context.Context, profile Profile) (Driver, error)
}

// RemoteProvisioner opens W3C WebDriver sessions on the profile's remote end.
type RemoteProvisioner struct {
	opts []webdriver.ClientOption
}

func NewRemoteProvisioner(opts ...webdriver.ClientOption) *RemoteProvisioner {
	return &RemoteProvisioner{opts: opts}
}

func (p *RemoteProvisioner) Provision(ctx context.Context, profile Profile) (Driver, error) {
	client := webdriver.NewClient(profile.RemoteURL, p.opts...)

	sess, err := client.NewSession(ctx, profile.Capabilities())
	if err != nil {
		return nil, err
	}

	d := &remoteDriver{session: sess, platform: profile.Platform}

	if err := sess.SetTimeouts(ctx, profile.ImplicitWait, profile.PageLoadTimeout); err != nil {
		_ = sess.Delete(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("setting timeouts: %w", err)
	}

	if profile.Platform == PlatformWeb && !profile.Headless {
		// Some drivers reject maximize in containers; the session is still usable.
		_ = sess.MaximizeWindow(ctx)
	}

	return d, nil
}

type remoteDriver struct {
	session  *webdriver.Session
	platform Platform
}

func (d *remoteDriver) Platform() Platform {
	return d.platform
}

func (d *remoteDriver) Navigate(ctx context.Context, url string) error {
	if d.platform.IsMobile() {
		return fmt.Errorf("navigate: %w", ErrNotSupported)
	}
	return d.session.Navigate(ctx, url)
}

func (d *remoteDriver) CurrentURL(ctx context.Context) (string, error) {
	return d.session.CurrentURL(ctx)
}

func (d *remoteDriver) Title(ctx context.Context) (string, error) {
	return d.session.Title(ctx)
}

func (d *remoteDriver) Find(ctx context.Context, by webdriver.By) (Element, error) {
	el, err := d.session.FindElement(ctx, by)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (d *remoteDriver) FindAll(ctx context.Context, by webdriver.By) ([]Element, error) {
	els, err := d.session.FindElements(ctx, by)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (d *remoteDriver) ExecuteScript(ctx context.Context, script string, args ...any) (gjson.Result, error) {
	return d.session.ExecuteScript(ctx, script, args...)
}

func (d *remoteDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.session.Screenshot(ctx)
}

func (d *remoteDriver) Rotate(ctx context.Context, o webdriver.Orientation) error {
	if !d.platform.IsMobile() {
		return fmt.Errorf("rotate: %w", ErrNotSupported)
	}
	return d.session.SetOrientation(ctx, o)
}

func (d *remoteDriver) AlertText(ctx context.Context) (string, error) {
	return d.session.AlertText(ctx)
}

func (d *remoteDriver) AcceptAlert(ctx context.Context) error {
	return d.session.AcceptAlert(ctx)
}

func (d *remoteDriver) DismissAlert(ctx context.Context) error {
	return d.session.DismissAlert(ctx)
}

func (d *remoteDriver) SwitchToFrame(ctx context.Context, id string) error {
	return d.session.SwitchToFrame(ctx, id)
}

func (d *remoteDriver) Quit(ctx context.Context) error {
	return d.session.Delete(ctx)
}
