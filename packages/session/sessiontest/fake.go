// Package sessiontest provides in-memory drivers for exercising the runtime
// without a browser, Grid, or Appium server.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
	"github.com/tidwall/gjson"
)

// Element is a fake UI element whose state tests can flip concurrently.
type Element struct {
	mu        sync.Mutex
	displayed bool
	enabled   bool
	text      string
	value     string
	attrs     map[string]string
	clicks    int
	onClick   func()
}

func NewElement(text string) *Element {
	return &Element{displayed: true, enabled: true, text: text, attrs: map[string]string{}}
}

func (e *Element) SetDisplayed(v bool) {
	e.mu.Lock()
	e.displayed = v
	e.mu.Unlock()
}

func (e *Element) SetEnabled(v bool) {
	e.mu.Lock()
	e.enabled = v
	e.mu.Unlock()
}

func (e *Element) SetText(v string) {
	e.mu.Lock()
	e.text = v
	e.mu.Unlock()
}

// OnClick registers a callback run on every click.
func (e *Element) OnClick(fn func()) {
	e.mu.Lock()
	e.onClick = fn
	e.mu.Unlock()
}

func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayed, nil
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "value" {
		return e.value, nil
	}
	return e.attrs[name], nil
}

func (e *Element) Click(ctx context.Context) error {
	e.mu.Lock()
	e.clicks++
	fn := e.onClick
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	e.mu.Lock()
	e.value = ""
	e.mu.Unlock()
	return nil
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	e.mu.Lock()
	e.value += text
	e.mu.Unlock()
	return nil
}

// Driver is a fake session.Driver. Elements are looked up by locator value.
type Driver struct {
	mu          sync.Mutex
	platform    session.Platform
	url         string
	title       string
	readyState  string
	elements    map[string]*Element
	alert       string
	alertOpen   bool
	frames      map[string]bool
	frame       string
	orientation webdriver.Orientation
	screenshot  []byte
	shotErr     error
	findErr     error
	quitErr     error
	quits       int
}

func NewDriver(platform session.Platform) *Driver {
	return &Driver{
		platform:    platform,
		readyState:  "complete",
		elements:    make(map[string]*Element),
		frames:      make(map[string]bool),
		orientation: webdriver.Portrait,
		screenshot:  []byte("\x89PNG\r\n\x1a\nfake"),
	}
}

// Put makes an element findable under locator value key.
func (d *Driver) Put(key string, el *Element) {
	d.mu.Lock()
	d.elements[key] = el
	d.mu.Unlock()
}

// Remove makes an element unfindable.
func (d *Driver) Remove(key string) {
	d.mu.Lock()
	delete(d.elements, key)
	d.mu.Unlock()
}

func (d *Driver) SetTitle(t string) {
	d.mu.Lock()
	d.title = t
	d.mu.Unlock()
}

func (d *Driver) SetURL(u string) {
	d.mu.Lock()
	d.url = u
	d.mu.Unlock()
}

func (d *Driver) SetReadyState(s string) {
	d.mu.Lock()
	d.readyState = s
	d.mu.Unlock()
}

func (d *Driver) OpenAlert(text string) {
	d.mu.Lock()
	d.alert = text
	d.alertOpen = true
	d.mu.Unlock()
}

func (d *Driver) AddFrame(id string) {
	d.mu.Lock()
	d.frames[id] = true
	d.mu.Unlock()
}

// FailScreenshots makes Screenshot return err.
func (d *Driver) FailScreenshots(err error) {
	d.mu.Lock()
	d.shotErr = err
	d.mu.Unlock()
}

// FailQuit makes Quit return err. The quit is still counted.
func (d *Driver) FailQuit(err error) {
	d.mu.Lock()
	d.quitErr = err
	d.mu.Unlock()
}

// FailFinds makes every Find return err.
func (d *Driver) FailFinds(err error) {
	d.mu.Lock()
	d.findErr = err
	d.mu.Unlock()
}

func (d *Driver) Quits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

func (d *Driver) Frame() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

func (d *Driver) Orientation() webdriver.Orientation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.orientation
}

func (d *Driver) AlertOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alertOpen
}

func (d *Driver) Platform() session.Platform {
	return d.platform
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.url = url
	d.mu.Unlock()
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Driver) Find(ctx context.Context, by webdriver.By) (session.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	el, ok := d.elements[by.Value]
	if !ok {
		return nil, &webdriver.Error{Status: 404, Code: "no such element", Message: by.String()}
	}
	return el, nil
}

func (d *Driver) FindAll(ctx context.Context, by webdriver.By) ([]session.Element, error) {
	el, err := d.Find(ctx, by)
	if errors.Is(err, webdriver.ErrNoSuchElement) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []session.Element{el}, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...any) (gjson.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if script == "return document.readyState" {
		return gjson.Parse(strconv.Quote(d.readyState)), nil
	}
	return gjson.Parse("null"), nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shotErr != nil {
		return nil, d.shotErr
	}
	return append([]byte(nil), d.screenshot...), nil
}

func (d *Driver) Rotate(ctx context.Context, o webdriver.Orientation) error {
	if !d.platform.IsMobile() {
		return fmt.Errorf("rotate: %w", session.ErrNotSupported)
	}
	d.mu.Lock()
	d.orientation = o
	d.mu.Unlock()
	return nil
}

func (d *Driver) AlertText(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alertOpen {
		return "", &webdriver.Error{Status: 404, Code: "no such alert"}
	}
	return d.alert, nil
}

func (d *Driver) AcceptAlert(ctx context.Context) error {
	return d.closeAlert()
}

func (d *Driver) DismissAlert(ctx context.Context) error {
	return d.closeAlert()
}

func (d *Driver) closeAlert() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alertOpen {
		return &webdriver.Error{Status: 404, Code: "no such alert"}
	}
	d.alertOpen = false
	return nil
}

func (d *Driver) SwitchToFrame(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id != "" && !d.frames[id] {
		return &webdriver.Error{Status: 404, Code: "no such frame", Message: id}
	}
	d.frame = id
	return nil
}

func (d *Driver) Quit(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return d.quitErr
}

// Provisioner hands out fake drivers and remembers them.
type Provisioner struct {
	mu      sync.Mutex
	err     error
	setup   func(*Driver)
	drivers []*Driver
}

func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Fail makes subsequent provisioning return err.
func (p *Provisioner) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Setup runs fn on every new driver before it is handed out.
func (p *Provisioner) Setup(fn func(*Driver)) {
	p.mu.Lock()
	p.setup = fn
	p.mu.Unlock()
}

func (p *Provisioner) Provision(ctx context.Context, profile session.Profile) (session.Driver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	d := NewDriver(profile.Platform)
	if p.setup != nil {
		p.setup(d)
	}
	p.drivers = append(p.drivers, d)
	return d, nil
}

// Drivers returns every driver provisioned so far.
func (p *Provisioner) Drivers() []*Driver {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Driver(nil), p.drivers...)
}

// Outstanding counts drivers that were provisioned but never quit.
func (p *Provisioner) Outstanding() int {
	n := 0
	for _, d := range p.Drivers() {
		if d.Quits() == 0 {
			n++
		}
	}
	return n
}
