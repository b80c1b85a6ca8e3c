package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/session"
)

const (
	// DefaultTimeout is used when a Config leaves Timeout unset
	DefaultTimeout = 15 * time.Second
	// DefaultInterval is used when a Descriptor or Config leaves Interval unset
	DefaultInterval = 500 * time.Millisecond
)

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("wait timed out")
	// ErrInvalidTimeout is returned for descriptors with a zero or negative timeout.
	ErrInvalidTimeout = errors.New("wait timeout must be positive")
)

type state int

const (
	stateNotReady state = iota
	stateReady
	stateFatal
)

// Result is what a predicate reports for one evaluation.
type Result[T any] struct {
	state state
	value T
	err   error
}

// Ready ends the wait successfully with v.
func Ready[T any](v T) Result[T] {
	return Result[T]{state: stateReady, value: v}
}

// NotReady asks for another evaluation; reason may be nil.
func NotReady[T any](reason error) Result[T] {
	return Result[T]{state: stateNotReady, err: reason}
}

// Fatal aborts the wait with err unless err is in the descriptor's Ignore set.
func Fatal[T any](err error) Result[T] {
	return Result[T]{state: stateFatal, err: err}
}

// Value returns the ready value and whether the result is Ready.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.state == stateReady
}

// Err returns the not-ready reason or fatal error, if any.
func (r Result[T]) Err() error {
	return r.err
}

// Predicate evaluates readiness against a session.
type Predicate[T any] func(ctx context.Context, h *session.Handle) Result[T]

// Descriptor describes one polling operation.
type Descriptor[T any] struct {
	// Description names the condition in timeout messages
	Description string
	Predicate   Predicate[T]
	Timeout     time.Duration
	Interval    time.Duration
	// Ignore lists errors (matched with errors.Is) that mean "not yet"
	Ignore []error
}

// Config carries the configured defaults for descriptors built with For.
type Config struct {
	Timeout  time.Duration
	Interval time.Duration
	Ignore   []error
}

// For builds a descriptor from configured defaults.
func For[T any](cfg Config, description string, pred Predicate[T]) Descriptor[T] {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return Descriptor[T]{
		Description: description,
		Predicate:   pred,
		Timeout:     timeout,
		Interval:    cfg.Interval,
		Ignore:      cfg.Ignore,
	}
}

// TimeoutError reports a predicate that never became ready.
type TimeoutError struct {
	Description string
	Timeout     time.Duration
	Elapsed     time.Duration
	Attempts    int
	// Last is the most recent not-ready cause, if any
	Last error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s (%d attempts)", e.Timeout, e.describe(), e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) describe() string {
	if e.Description == "" {
		return "condition"
	}
	return e.Description
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

func (d Descriptor[T]) ignores(err error) bool {
	for _, ign := range d.Ignore {
		if errors.Is(err, ign) {
			return true
		}
	}
	return false
}

// Await evaluates d.Predicate until it is ready, fails fatally, or d.Timeout
// elapses. Each evaluation runs under the wait's deadline, so a predicate
// that blocks (an implicit wait on the remote end, a slow driver) still
// times out on schedule. Cancellation of ctx aborts the wait promptly with
// ctx's error.
func Await[T any](ctx context.Context, h *session.Handle, d Descriptor[T]) (T, error) {
	var zero T

	if d.Timeout <= 0 {
		return zero, fmt.Errorf("%w: %s", ErrInvalidTimeout, d.Timeout)
	}
	if d.Predicate == nil {
		return zero, errors.New("wait: nil predicate")
	}

	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	deadline := start.Add(d.Timeout)
	attempts := 0
	var last error

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		attempts++
		evalCtx, cancel := context.WithDeadline(ctx, deadline)
		res := d.Predicate(evalCtx, h)
		expired := evalCtx.Err() != nil
		cancel()

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		switch {
		case res.state == stateReady:
			return res.value, nil
		case expired:
			// cut short by the deadline
			if res.err != nil && !errors.Is(res.err, context.DeadlineExceeded) {
				last = res.err
			}
		case res.state == stateFatal:
			if res.err == nil {
				return zero, fmt.Errorf("wait: %s failed", d.Description)
			}
			if !d.ignores(res.err) {
				return zero, res.err
			}
			last = res.err
		default:
			if res.err != nil {
				last = res.err
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, &TimeoutError{
				Description: d.Description,
				Timeout:     d.Timeout,
				Elapsed:     time.Since(start),
				Attempts:    attempts,
				Last:        last,
			}
		}

		timer.Reset(min(interval, remaining))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
