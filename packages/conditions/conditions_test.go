package conditions_test

import (
	"context"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/conditions"
	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/session/sessiontest"
	"github.com/abdul-hamid-achik/bankspec/packages/wait"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWaiter(t *testing.T) (*conditions.Waiter, *sessiontest.Driver) {
	t.Helper()
	d := sessiontest.NewDriver(session.PlatformWeb)
	h := session.NewHandle("w1", session.Profile{Platform: session.PlatformWeb}, d)
	return conditions.NewWaiter(h,
		conditions.WithTimeout(300*time.Millisecond),
		conditions.WithInterval(10*time.Millisecond),
	), d
}

func later(d time.Duration, fn func()) {
	go func() {
		time.Sleep(d)
		fn()
	}()
}

func TestWaiter_Visible(t *testing.T) {
	w, d := newWaiter(t)
	ctx := context.Background()

	// absent, then hidden, then shown
	later(30*time.Millisecond, func() {
		el := sessiontest.NewElement("Welcome")
		el.SetDisplayed(false)
		d.Put("#welcome", el)
		later(30*time.Millisecond, func() { el.SetDisplayed(true) })
	})

	el, err := w.Visible(ctx, webdriver.ByID("welcome"))
	require.NoError(t, err)
	text, _ := el.Text(ctx)
	assert.Equal(t, "Welcome", text)
}

func TestWaiter_VisibleTimesOutWithCause(t *testing.T) {
	w, _ := newWaiter(t)

	_, err := w.Visible(context.Background(), webdriver.ByCSS(".missing"))
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.ErrorIs(t, err, webdriver.ErrNoSuchElement)
}

func TestWaiter_Clickable(t *testing.T) {
	w, d := newWaiter(t)
	btn := sessiontest.NewElement("Login")
	btn.SetEnabled(false)
	d.Put("#login", btn)
	later(30*time.Millisecond, func() { btn.SetEnabled(true) })

	el, err := w.Clickable(context.Background(), webdriver.ByID("login"))
	require.NoError(t, err)
	require.NoError(t, el.Click(context.Background()))
	assert.Equal(t, 1, btn.Clicks())
}

func TestWaiter_Present(t *testing.T) {
	w, d := newWaiter(t)
	hidden := sessiontest.NewElement("")
	hidden.SetDisplayed(false)
	d.Put("input[name=csrf]", hidden)

	_, err := w.Present(context.Background(), webdriver.ByCSS("input[name=csrf]"))
	assert.NoError(t, err)
}

func TestWaiter_AllVisible(t *testing.T) {
	w, d := newWaiter(t)
	d.Put(".account-row", sessiontest.NewElement("Checking"))

	els, err := w.AllVisible(context.Background(), webdriver.ByCSS(".account-row"))
	require.NoError(t, err)
	assert.Len(t, els, 1)
}

func TestWaiter_Invisible(t *testing.T) {
	w, d := newWaiter(t)
	spinner := sessiontest.NewElement("")
	d.Put(".spinner", spinner)

	later(30*time.Millisecond, func() { spinner.SetDisplayed(false) })
	require.NoError(t, w.Invisible(context.Background(), webdriver.ByCSS(".spinner")))

	d.Remove(".spinner")
	require.NoError(t, w.Invisible(context.Background(), webdriver.ByCSS(".spinner")))
}

func TestWaiter_TextPresent(t *testing.T) {
	w, d := newWaiter(t)
	status := sessiontest.NewElement("Processing")
	d.Put("#status", status)
	later(30*time.Millisecond, func() { status.SetText("Transfer complete") })

	got, err := w.TextPresent(context.Background(), webdriver.ByID("status"), "complete")
	require.NoError(t, err)
	assert.Equal(t, "Transfer complete", got)
}

func TestWaiter_URLContains(t *testing.T) {
	w, d := newWaiter(t)
	d.SetURL("https://bank.example/login")
	later(30*time.Millisecond, func() { d.SetURL("https://bank.example/dashboard") })

	url, err := w.URLContains(context.Background(), "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "https://bank.example/dashboard", url)
}

func TestWaiter_Alert(t *testing.T) {
	w, d := newWaiter(t)
	later(30*time.Millisecond, func() { d.OpenAlert("Confirm transfer?") })

	text, err := w.Alert(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Confirm transfer?", text)
}

func TestWaiter_FrameAndSwitch(t *testing.T) {
	w, d := newWaiter(t)
	later(30*time.Millisecond, func() { d.AddFrame("payment") })

	require.NoError(t, w.FrameAndSwitch(context.Background(), "payment"))
	assert.Equal(t, "payment", d.Frame())
}

func TestWaiter_PageLoad(t *testing.T) {
	w, d := newWaiter(t)
	d.SetReadyState("loading")
	later(30*time.Millisecond, func() { d.SetReadyState("complete") })

	assert.NoError(t, w.PageLoad(context.Background()))
}

func TestWaiter_NonIgnorableFindErrorAborts(t *testing.T) {
	w, d := newWaiter(t)
	d.FailFinds(&webdriver.Error{Status: 404, Code: "invalid session id"})

	start := time.Now()
	_, err := w.Visible(context.Background(), webdriver.ByID("x"))
	assert.ErrorIs(t, err, webdriver.ErrInvalidSession)
	assert.NotErrorIs(t, err, wait.ErrTimeout)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaiter_Fluent(t *testing.T) {
	w, d := newWaiter(t)
	later(20*time.Millisecond, func() { d.Put("#otp", sessiontest.NewElement("")) })

	_, err := w.Fluent(context.Background(), webdriver.ByID("otp"), 200*time.Millisecond, 5*time.Millisecond)
	assert.NoError(t, err)
}
