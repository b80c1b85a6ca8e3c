package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/assertions"
	"github.com/abdul-hamid-achik/bankspec/packages/conditions"
	"github.com/abdul-hamid-achik/bankspec/packages/core/env"
	"github.com/abdul-hamid-achik/bankspec/packages/scenario"
	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrAssertion marks a step whose check did not hold.
var ErrAssertion = errors.New("assertion failed")

// StepError reports which step of a scenario failed.
type StepError struct {
	Index int
	Step  scenario.Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type stepExecutor struct {
	runner   *Runner
	handle   *session.Handle
	testID   string
	resolver *env.Resolver
}

func (x *stepExecutor) run(ctx context.Context, steps []scenario.Step) error {
	span := trace.SpanFromContext(ctx)
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Index: i, Step: st, Err: err}
		}

		resolved, err := x.resolve(st)
		if err != nil {
			return &StepError{Index: i, Step: st, Err: err}
		}

		span.AddEvent("step", trace.WithAttributes(tracing.AttrStep.String(resolved.String())))
		if err := x.exec(ctx, i, resolved); err != nil {
			return &StepError{Index: i, Step: resolved, Err: err}
		}

		if x.runner.config.ScreenshotEachStep && resolved.Action != scenario.ActionScreenshot {
			if _, err := x.runner.capturer.CaptureStep(ctx, x.handle, x.testID, i+1); err != nil {
				x.runner.log.Warn("step screenshot failed",
					zap.String("test", x.testID),
					zap.Int("step", i+1),
					zap.Error(err))
			}
		}
	}
	return nil
}

func (x *stepExecutor) resolve(st scenario.Step) (scenario.Step, error) {
	var err error
	if st.Target, err = x.resolver.ResolveStrict(st.Target); err != nil {
		return st, err
	}
	if st.Value, err = x.resolver.ResolveStrict(st.Value); err != nil {
		return st, err
	}
	return st, nil
}

func (x *stepExecutor) waiter(st scenario.Step) *conditions.Waiter {
	cfg := x.runner.config.Wait
	opts := []conditions.WaiterOption{}
	if cfg.Timeout > 0 {
		opts = append(opts, conditions.WithTimeout(cfg.Timeout))
	}
	if cfg.Interval > 0 {
		opts = append(opts, conditions.WithInterval(cfg.Interval))
	}
	if len(cfg.Ignore) > 0 {
		opts = append(opts, conditions.WithIgnore(cfg.Ignore...))
	}
	if st.Timeout > 0 {
		opts = append(opts, conditions.WithTimeout(st.Timeout))
	}
	return conditions.NewWaiter(x.handle, opts...)
}

func (x *stepExecutor) exec(ctx context.Context, index int, st scenario.Step) error {
	driver := x.handle.Driver()
	w := x.waiter(st)

	switch st.Action {
	case scenario.ActionOpen:
		return driver.Navigate(ctx, x.absoluteURL(st.Value))

	case scenario.ActionClick:
		by, err := scenario.ParseLocator(st.Target)
		if err != nil {
			return err
		}
		el, err := w.Clickable(ctx, by)
		if err != nil {
			return err
		}
		return el.Click(ctx)

	case scenario.ActionType:
		by, err := scenario.ParseLocator(st.Target)
		if err != nil {
			return err
		}
		el, err := w.Visible(ctx, by)
		if err != nil {
			return err
		}
		if err := el.Clear(ctx); err != nil {
			return err
		}
		return el.SendKeys(ctx, st.Value)

	case scenario.ActionClear:
		by, err := scenario.ParseLocator(st.Target)
		if err != nil {
			return err
		}
		el, err := w.Visible(ctx, by)
		if err != nil {
			return err
		}
		return el.Clear(ctx)

	case scenario.ActionWaitVisible:
		by, err := scenario.ParseLocator(st.Target)
		if err != nil {
			return err
		}
		_, err = w.Visible(ctx, by)
		return err

	case scenario.ActionWaitInvisible:
		by, err := scenario.ParseLocator(st.Target)
		if err != nil {
			return err
		}
		return w.Invisible(ctx, by)

	case scenario.ActionWaitText:
		by, err := scenario.ParseLocator(st.Target)
		if err != nil {
			return err
		}
		_, err = w.TextPresent(ctx, by, st.Value)
		return err

	case scenario.ActionWaitURL:
		_, err := w.URLContains(ctx, st.Value)
		return err

	case scenario.ActionWaitPageLoad:
		return w.PageLoad(ctx)

	case scenario.ActionAcceptAlert:
		if _, err := w.Alert(ctx); err != nil {
			return err
		}
		return driver.AcceptAlert(ctx)

	case scenario.ActionDismissAlert:
		if _, err := w.Alert(ctx); err != nil {
			return err
		}
		return driver.DismissAlert(ctx)

	case scenario.ActionSwitchFrame:
		if st.Value == "" {
			return driver.SwitchToFrame(ctx, "")
		}
		return w.FrameAndSwitch(ctx, st.Value)

	case scenario.ActionRotate:
		o, err := scenario.ParseOrientation(st.Value)
		if err != nil {
			return err
		}
		return driver.Rotate(ctx, o)

	case scenario.ActionAssertTitle:
		title, err := driver.Title(ctx)
		if err != nil {
			return err
		}
		return check(st, "title", title)

	case scenario.ActionAssertURL:
		url, err := driver.CurrentURL(ctx)
		if err != nil {
			return err
		}
		return check(st, "url", url)

	case scenario.ActionAssertText:
		by, err := scenario.ParseLocator(st.Target)
		if err != nil {
			return err
		}
		el, err := w.Visible(ctx, by)
		if err != nil {
			return err
		}
		text, err := el.Text(ctx)
		if err != nil {
			return err
		}
		return check(st, "text of "+st.Target, text)

	case scenario.ActionScreenshot:
		_, err := x.runner.capturer.CaptureStep(ctx, x.handle, x.testID, index+1)
		return err
	}

	return fmt.Errorf("unknown action %q", st.Action)
}

// check compares actual with the step's value using its operator.
func check(st scenario.Step, subject, actual string) error {
	op, err := st.Operator()
	if err != nil {
		return err
	}
	if res := assertions.Evaluate(subject, actual, op, st.Value); !res.Passed {
		return fmt.Errorf("%w: %s", ErrAssertion, res.Message)
	}
	return nil
}

// absoluteURL joins root-relative paths onto the configured base URL.
func (x *stepExecutor) absoluteURL(u string) string {
	base := x.runner.config.BaseURL
	if base == "" || !strings.HasPrefix(u, "/") {
		return u
	}
	return strings.TrimRight(base, "/") + u
}
