package conditions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/wait"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
)

// DefaultIgnore lists the errors every waiter treats as "not yet ready".
var DefaultIgnore = []error{webdriver.ErrNoSuchElement, webdriver.ErrStaleElement}

// Visible waits for an element to be located and displayed.
func Visible(by webdriver.By) wait.Predicate[session.Element] {
	return func(ctx context.Context, h *session.Handle) wait.Result[session.Element] {
		el, err := h.Driver().Find(ctx, by)
		if err != nil {
			return wait.Fatal[session.Element](err)
		}
		shown, err := el.IsDisplayed(ctx)
		if err != nil {
			return wait.Fatal[session.Element](err)
		}
		if !shown {
			return wait.NotReady[session.Element](fmt.Errorf("%s is not displayed", by))
		}
		return wait.Ready(el)
	}
}

// Clickable waits for an element to be displayed and enabled.
func Clickable(by webdriver.By) wait.Predicate[session.Element] {
	visible := Visible(by)
	return func(ctx context.Context, h *session.Handle) wait.Result[session.Element] {
		res := visible(ctx, h)
		el, ok := res.Value()
		if !ok {
			return res
		}
		enabled, err := el.IsEnabled(ctx)
		if err != nil {
			return wait.Fatal[session.Element](err)
		}
		if !enabled {
			return wait.NotReady[session.Element](fmt.Errorf("%s is disabled", by))
		}
		return res
	}
}

// Present waits for an element to exist in the document, shown or not.
func Present(by webdriver.By) wait.Predicate[session.Element] {
	return func(ctx context.Context, h *session.Handle) wait.Result[session.Element] {
		el, err := h.Driver().Find(ctx, by)
		if err != nil {
			return wait.Fatal[session.Element](err)
		}
		return wait.Ready(el)
	}
}

// AllVisible waits for at least one match and every match to be displayed.
func AllVisible(by webdriver.By) wait.Predicate[[]session.Element] {
	return func(ctx context.Context, h *session.Handle) wait.Result[[]session.Element] {
		els, err := h.Driver().FindAll(ctx, by)
		if err != nil {
			return wait.Fatal[[]session.Element](err)
		}
		if len(els) == 0 {
			return wait.NotReady[[]session.Element](fmt.Errorf("no elements match %s", by))
		}
		for i, el := range els {
			shown, err := el.IsDisplayed(ctx)
			if err != nil {
				return wait.Fatal[[]session.Element](err)
			}
			if !shown {
				return wait.NotReady[[]session.Element](fmt.Errorf("%s match %d is not displayed", by, i))
			}
		}
		return wait.Ready(els)
	}
}

// Invisible waits for an element to be hidden or gone.
func Invisible(by webdriver.By) wait.Predicate[bool] {
	return func(ctx context.Context, h *session.Handle) wait.Result[bool] {
		el, err := h.Driver().Find(ctx, by)
		if errors.Is(err, webdriver.ErrNoSuchElement) {
			return wait.Ready(true)
		}
		if err != nil {
			return wait.Fatal[bool](err)
		}
		shown, err := el.IsDisplayed(ctx)
		if errors.Is(err, webdriver.ErrStaleElement) {
			return wait.Ready(true)
		}
		if err != nil {
			return wait.Fatal[bool](err)
		}
		if shown {
			return wait.NotReady[bool](fmt.Errorf("%s is still displayed", by))
		}
		return wait.Ready(true)
	}
}

// TextPresent waits for an element's text to contain text.
func TextPresent(by webdriver.By, text string) wait.Predicate[string] {
	return func(ctx context.Context, h *session.Handle) wait.Result[string] {
		el, err := h.Driver().Find(ctx, by)
		if err != nil {
			return wait.Fatal[string](err)
		}
		got, err := el.Text(ctx)
		if err != nil {
			return wait.Fatal[string](err)
		}
		if !strings.Contains(got, text) {
			return wait.NotReady[string](fmt.Errorf("%s text %q does not contain %q", by, got, text))
		}
		return wait.Ready(got)
	}
}

// URLContains waits for the current URL to contain fragment.
func URLContains(fragment string) wait.Predicate[string] {
	return func(ctx context.Context, h *session.Handle) wait.Result[string] {
		url, err := h.Driver().CurrentURL(ctx)
		if err != nil {
			return wait.Fatal[string](err)
		}
		if !strings.Contains(url, fragment) {
			return wait.NotReady[string](fmt.Errorf("url %q does not contain %q", url, fragment))
		}
		return wait.Ready(url)
	}
}

// AlertPresent waits for a browser dialog and yields its text.
func AlertPresent() wait.Predicate[string] {
	return func(ctx context.Context, h *session.Handle) wait.Result[string] {
		text, err := h.Driver().AlertText(ctx)
		if errors.Is(err, webdriver.ErrNoSuchAlert) {
			return wait.NotReady[string](err)
		}
		if err != nil {
			return wait.Fatal[string](err)
		}
		return wait.Ready(text)
	}
}

// FrameAvailable waits for a frame and switches into it.
func FrameAvailable(id string) wait.Predicate[bool] {
	return func(ctx context.Context, h *session.Handle) wait.Result[bool] {
		err := h.Driver().SwitchToFrame(ctx, id)
		if errors.Is(err, webdriver.ErrNoSuchFrame) {
			return wait.NotReady[bool](err)
		}
		if err != nil {
			return wait.Fatal[bool](err)
		}
		return wait.Ready(true)
	}
}

// PageReady waits for document.readyState to be "complete".
func PageReady() wait.Predicate[bool] {
	return func(ctx context.Context, h *session.Handle) wait.Result[bool] {
		state, err := h.Driver().ExecuteScript(ctx, "return document.readyState")
		if err != nil {
			return wait.Fatal[bool](err)
		}
		if state.String() != "complete" {
			return wait.NotReady[bool](fmt.Errorf("document.readyState is %q", state.String()))
		}
		return wait.Ready(true)
	}
}
