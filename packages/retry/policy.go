package retry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/abdul-hamid-achik/bankspec/packages/report"
	"go.uber.org/zap"
)

// DefaultMaxRetries is how many times a failing test is re-run.
const DefaultMaxRetries = 2

var (
	// ErrExhausted marks a failure that will not be retried again. The test's
	// own failure remains the reported cause.
	ErrExhausted = errors.New("retries exhausted")
	// ErrNotFailed is returned for records that did not fail.
	ErrNotFailed = errors.New("record did not fail")
)

// State is the retry bookkeeping for one test identity.
type State struct {
	TestID   string
	Attempts int
	Max      int
}

// Policy is shared by every worker of a run.
type Policy struct {
	max int
	log *zap.Logger

	mu     sync.Mutex
	states map[string]*State
}

type Option func(*Policy)

// WithMaxRetries sets the retry bound. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		if n < 0 {
			n = 0
		}
		p.max = n
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Policy) {
		p.log = log
	}
}

func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		max:    DefaultMaxRetries,
		log:    zap.NewNop(),
		states: make(map[string]*State),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) Max() int {
	return p.max
}

// Next records a failure of rec's test and returns nil when it should be
// re-run. Once the bound is reached it forgets the test and returns an
// error wrapping ErrExhausted.
func (p *Policy) Next(rec report.Record) error {
	if !rec.Failed() {
		return ErrNotFailed
	}

	p.mu.Lock()
	st, ok := p.states[rec.TestID]
	if !ok {
		st = &State{TestID: rec.TestID, Max: p.max}
		p.states[rec.TestID] = st
	}
	st.Attempts++
	attempt := st.Attempts
	exhausted := attempt > p.max
	if exhausted {
		delete(p.states, rec.TestID)
	}
	p.mu.Unlock()

	if exhausted {
		p.log.Info("retries exhausted",
			zap.String("test", rec.TestID),
			zap.Int("max", p.max))
		return fmt.Errorf("%s after %d retries: %w", rec.TestID, p.max, ErrExhausted)
	}

	p.log.Info("retrying test",
		zap.String("test", rec.TestID),
		zap.Int("attempt", attempt),
		zap.Int("max", p.max),
		zap.String("cause", rec.Err))
	return nil
}

// ShouldRetry reports whether rec's test should be re-run.
func (p *Policy) ShouldRetry(rec report.Record) bool {
	return p.Next(rec) == nil
}

// Passed forgets any retry state for testID.
func (p *Policy) Passed(testID string) {
	p.mu.Lock()
	delete(p.states, testID)
	p.mu.Unlock()
}

// State returns a copy of testID's retry state.
func (p *Policy) State(testID string) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.states[testID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Pending returns the number of tests currently between retries.
func (p *Policy) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.states)
}
