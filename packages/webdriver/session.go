package webdriver

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// elementKey is the W3C web element identifier key.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// By is a locator strategy/value pair as sent on the wire.
type By struct {
	Using string
	Value string
}

func ByCSS(selector string) By { return By{Using: "css selector", Value: selector} }
func ByXPath(expr string) By { return By{Using: "xpath", Value: expr} }
func ByLinkText(text string) By { return By{Using: "link text", Value: text} }
func ByAccessibilityID(id string) By { return By{Using: "accessibility id", Value: id} }
func ByID(id string) By { return By{Using: "css selector", Value: "#" + id} }
func ByPartialLinkText(text string) By { return By{Using: "partial link text", Value: text} }

func (b By) String() string {
	return b.Using + "=" + b.Value
}

// Orientation of a mobile device screen.
type Orientation string

const (
	Portrait  Orientation = "PORTRAIT"
	Landscape Orientation = "LANDSCAPE"
)

// Session is one open remote-end session.
type Session struct {
	ID           string
	Capabilities gjson.Result
	client       *Client
}

func (s *Session) path(suffix string) string {
	return "/session/" + s.ID + suffix
}

// Delete ends the session on the remote end.
func (s *Session) Delete(ctx context.Context) error {
	_, err := s.client.do(ctx, http.MethodDelete, s.path(""), nil)
	return err
}

// SetTimeouts configures the implicit and page-load timeouts.
func (s *Session) SetTimeouts(ctx context.Context, implicit, pageLoad time.Duration) error {
	payload := map[string]any{}
	if implicit > 0 {
		payload["implicit"] = implicit.Milliseconds()
	}
	if pageLoad > 0 {
		payload["pageLoad"] = pageLoad.Milliseconds()
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := s.client.do(ctx, http.MethodPost, s.path("/timeouts"), payload)
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	_, err := s.client.do(ctx, http.MethodPost, s.path("/url"), map[string]any{"url": url})
	return err
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	v, err := s.client.do(ctx, http.MethodGet, s.path("/url"), nil)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	v, err := s.client.do(ctx, http.MethodGet, s.path("/title"), nil)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (s *Session) MaximizeWindow(ctx context.Context) error {
	_, err := s.client.do(ctx, http.MethodPost, s.path("/window/maximize"), nil)
	return err
}

// FindElement returns the first element matching by.
func (s *Session) FindElement(ctx context.Context, by By) (*Element, error) {
	v, err := s.client.do(ctx, http.MethodPost, s.path("/element"), map[string]any{
		"using": by.Using,
		"value": by.Value,
	})
	if err != nil {
		return nil, err
	}
	return s.element(v)
}

// FindElements returns every element matching by; an empty slice is not an error.
func (s *Session) FindElements(ctx context.Context, by By) ([]*Element, error) {
	v, err := s.client.do(ctx, http.MethodPost, s.path("/elements"), map[string]any{
		"using": by.Using,
		"value": by.Value,
	})
	if err != nil {
		return nil, err
	}

	var elements []*Element
	for _, item := range v.Array() {
		el, err := s.element(item)
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	return elements, nil
}

func (s *Session) element(v gjson.Result) (*Element, error) {
	id := v.Get(elementKey).String()
	if id == "" {
		id = v.Get("ELEMENT").String()
	}
	if id == "" {
		return nil, fmt.Errorf("webdriver: element reference missing in %s", v.Raw)
	}
	return &Element{ID: id, session: s}, nil
}

// ExecuteScript runs a synchronous script and returns its JSON result.
func (s *Session) ExecuteScript(ctx context.Context, script string, args ...any) (gjson.Result, error) {
	wireArgs := make([]any, 0, len(args))
	for _, a := range args {
		if el, ok := a.(*Element); ok {
			wireArgs = append(wireArgs, map[string]string{elementKey: el.ID})
			continue
		}
		wireArgs = append(wireArgs, a)
	}
	return s.client.do(ctx, http.MethodPost, s.path("/execute/sync"), map[string]any{
		"script": script,
		"args":   wireArgs,
	})
}

// Screenshot returns the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	v, err := s.client.do(ctx, http.MethodGet, s.path("/screenshot"), nil)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(v.String())
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return data, nil
}

func (s *Session) AlertText(ctx context.Context) (string, error) {
	v, err := s.client.do(ctx, http.MethodGet, s.path("/alert/text"), nil)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (s *Session) AcceptAlert(ctx context.Context) error {
	_, err := s.client.do(ctx, http.MethodPost, s.path("/alert/accept"), nil)
	return err
}

func (s *Session) DismissAlert(ctx context.Context) error {
	_, err := s.client.do(ctx, http.MethodPost, s.path("/alert/dismiss"), nil)
	return err
}

// SwitchToFrame switches into the frame located by id (a name/id attribute
// value) or to the top-level document when id is empty.
func (s *Session) SwitchToFrame(ctx context.Context, id string) error {
	if id == "" {
		_, err := s.client.do(ctx, http.MethodPost, s.path("/frame"), map[string]any{"id": nil})
		return err
	}
	el, err := s.FindElement(ctx, ByCSS(fmt.Sprintf("iframe[id=%q],iframe[name=%q],frame[id=%q],frame[name=%q]", id, id, id, id)))
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, http.MethodPost, s.path("/frame"), map[string]any{
		"id": map[string]string{elementKey: el.ID},
	})
	return err
}

// SetOrientation rotates a mobile device (Appium extension).
func (s *Session) SetOrientation(ctx context.Context, o Orientation) error {
	_, err := s.client.do(ctx, http.MethodPost, s.path("/orientation"), map[string]any{
		"orientation": strings.ToUpper(string(o)),
	})
	return err
}

// Element is a remote element reference.
type Element struct {
	ID      string
	session *Session
}

func (e *Element) path(suffix string) string {
	return e.session.path("/element/" + e.ID + suffix)
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	v, err := e.session.client.do(ctx, http.MethodGet, e.path("/displayed"), nil)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	v, err := e.session.client.do(ctx, http.MethodGet, e.path("/enabled"), nil)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	v, err := e.session.client.do(ctx, http.MethodGet, e.path("/text"), nil)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.session.client.do(ctx, http.MethodGet, e.path("/attribute/"+name), nil)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (e *Element) Click(ctx context.Context) error {
	_, err := e.session.client.do(ctx, http.MethodPost, e.path("/click"), nil)
	return err
}

func (e *Element) Clear(ctx context.Context) error {
	_, err := e.session.client.do(ctx, http.MethodPost, e.path("/clear"), nil)
	return err
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	_, err := e.session.client.do(ctx, http.MethodPost, e.path("/value"), map[string]any{"text": text})
	return err
}
