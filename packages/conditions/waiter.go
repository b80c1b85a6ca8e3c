package conditions

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/wait"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
)

// Waiter runs the named conditions against one session with shared
// timeout, interval and ignore settings.
type Waiter struct {
	h   *session.Handle
	cfg wait.Config
}

type WaiterOption func(*Waiter)

func WithTimeout(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		w.cfg.Timeout = d
	}
}

func WithInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		w.cfg.Interval = d
	}
}

// WithIgnore replaces the default ignore set.
func WithIgnore(errs ...error) WaiterOption {
	return func(w *Waiter) {
		w.cfg.Ignore = errs
	}
}

func NewWaiter(h *session.Handle, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		h: h,
		cfg: wait.Config{
			Timeout:  wait.DefaultTimeout,
			Interval: wait.DefaultInterval,
			Ignore:   DefaultIgnore,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Timeout returns the effective timeout.
func (w *Waiter) Timeout() time.Duration {
	return w.cfg.Timeout
}

func (w *Waiter) Visible(ctx context.Context, by webdriver.By) (session.Element, error) {
	return wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("%s to be visible", by), Visible(by)))
}

func (w *Waiter) Clickable(ctx context.Context, by webdriver.By) (session.Element, error) {
	return wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("%s to be clickable", by), Clickable(by)))
}

func (w *Waiter) Present(ctx context.Context, by webdriver.By) (session.Element, error) {
	return wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("%s to be present", by), Present(by)))
}

func (w *Waiter) AllVisible(ctx context.Context, by webdriver.By) ([]session.Element, error) {
	return wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("all %s to be visible", by), AllVisible(by)))
}

func (w *Waiter) Invisible(ctx context.Context, by webdriver.By) error {
	_, err := wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("%s to disappear", by), Invisible(by)))
	return err
}

func (w *Waiter) TextPresent(ctx context.Context, by webdriver.By, text string) (string, error) {
	return wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("%s to contain %q", by, text), TextPresent(by, text)))
}

func (w *Waiter) URLContains(ctx context.Context, fragment string) (string, error) {
	return wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("url to contain %q", fragment), URLContains(fragment)))
}

func (w *Waiter) Alert(ctx context.Context) (string, error) {
	return wait.Await(ctx, w.h, wait.For(w.cfg, "alert to open", AlertPresent()))
}

// FrameAndSwitch waits for frame id and leaves the session switched into it.
func (w *Waiter) FrameAndSwitch(ctx context.Context, id string) error {
	_, err := wait.Await(ctx, w.h, wait.For(w.cfg, fmt.Sprintf("frame %q", id), FrameAvailable(id)))
	return err
}

func (w *Waiter) PageLoad(ctx context.Context) error {
	_, err := wait.Await(ctx, w.h, wait.For(w.cfg, "page load", PageReady()))
	return err
}

// Fluent waits for visibility with a one-off timeout and interval.
func (w *Waiter) Fluent(ctx context.Context, by webdriver.By, timeout, interval time.Duration) (session.Element, error) {
	cfg := w.cfg
	cfg.Timeout = timeout
	cfg.Interval = interval
	return wait.Await(ctx, w.h, wait.For(cfg, fmt.Sprintf("%s to be visible", by), Visible(by)))
}
