package webdriver

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultTimeout is the default timeout for a single wire command
	DefaultTimeout = 60 * time.Second
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client speaks the W3C WebDriver protocol to a remote end (Selenium Grid,
// a standalone browser driver, or an Appium server).
type Client struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
}

type ClientOption func(*Client)

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        DefaultTimeout,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithValidateSSL enables or disables TLS certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy routes wire commands through a proxy
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// BaseURL returns the remote end this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status queries the remote end's readiness.
func (c *Client) Status(ctx context.Context) (bool, string, error) {
	value, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return false, "", err
	}
	return value.Get("ready").Bool(), value.Get("message").String(), nil
}

// NewSession opens a browser or device session with the given capabilities
// under alwaysMatch.
func (c *Client) NewSession(ctx context.Context, caps map[string]any) (*Session, error) {
	payload := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": caps,
		},
	}

	value, err := c.do(ctx, http.MethodPost, "/session", payload)
	if err != nil {
		return nil, err
	}

	id := value.Get("sessionId").String()
	if id == "" {
		return nil, fmt.Errorf("new session: response carried no session id")
	}

	return &Session{
		ID:           id,
		Capabilities: value.Get("capabilities"),
		client:       c,
	}, nil
}

// do sends one wire command and returns the "value" member of the response.
func (c *Client) do(ctx context.Context, method, path string, payload any) (gjson.Result, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	} else if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return gjson.Result{}, err
	}

	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading %s %s: %w", method, path, err)
	}

	if !gjson.ValidBytes(data) {
		if resp.StatusCode >= 400 {
			return gjson.Result{}, &Error{Status: resp.StatusCode, Code: "unknown error", Message: strings.TrimSpace(string(data))}
		}
		return gjson.Result{}, fmt.Errorf("%s %s: response is not JSON", method, path)
	}

	parsed := gjson.ParseBytes(data)
	value := parsed.Get("value")

	if code := value.Get("error"); code.Exists() && resp.StatusCode >= 400 {
		return gjson.Result{}, &Error{
			Status:  resp.StatusCode,
			Code:    code.String(),
			Message: value.Get("message").String(),
		}
	}
	if resp.StatusCode >= 400 {
		return gjson.Result{}, &Error{Status: resp.StatusCode, Code: "unknown error", Message: parsed.Raw}
	}

	return value, nil
}
