package webdriver

import (
	"errors"
	"fmt"
)

// W3C error codes the harness branches on. Anything else surfaces as a
// plain *Error.
var (
	ErrNoSuchElement           = errors.New("no such element")
	ErrStaleElement            = errors.New("stale element reference")
	ErrNoSuchAlert             = errors.New("no such alert")
	ErrNoSuchFrame             = errors.New("no such frame")
	ErrElementNotInteractable  = errors.New("element not interactable")
	ErrElementClickIntercepted = errors.New("element click intercepted")
	ErrInvalidSession          = errors.New("invalid session id")
	ErrSessionNotCreated       = errors.New("session not created")
	ErrTimeout                 = errors.New("timeout")
)

var codeSentinels = map[string]error{
	"no such element":           ErrNoSuchElement,
	"stale element reference":   ErrStaleElement,
	"no such alert":             ErrNoSuchAlert,
	"no such frame":             ErrNoSuchFrame,
	"element not interactable":  ErrElementNotInteractable,
	"element click intercepted": ErrElementClickIntercepted,
	"invalid session id":        ErrInvalidSession,
	"session not created":       ErrSessionNotCreated,
	"timeout":                   ErrTimeout,
	"script timeout":            ErrTimeout,
}

// Error is a failed wire command as reported by the remote end.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("webdriver: %s (http %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("webdriver: %s: %s", e.Code, e.Message)
}

// Is lets errors.Is match an *Error against the package sentinels.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}
