package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultReleaseTimeout bounds how long tearing down a session may take
	DefaultReleaseTimeout = 30 * time.Second
)

var (
	ErrUnsupportedProfile = errors.New("unsupported profile")
	ErrNoWorker           = errors.New("context carries no worker id")
	ErrAlreadyBound       = errors.New("worker already holds a live session")
)

// ProvisioningError means a session could not be created for a profile.
// It is fatal to the worker and never retried by the runtime.
type ProvisioningError struct {
	Platform Platform
	Target   string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s session (%s): %v", e.Platform, e.Target, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// WorkerID identifies one concurrently executing test worker.
type WorkerID string

type workerKey struct{}

// WithWorker binds a worker identity to ctx.
func WithWorker(ctx context.Context, id WorkerID) context.Context {
	return context.WithValue(ctx, workerKey{}, id)
}

// WorkerFrom returns the worker identity bound to ctx.
func WorkerFrom(ctx context.Context) (WorkerID, bool) {
	id, ok := ctx.Value(workerKey{}).(WorkerID)
	return id, ok && id != ""
}

// Handle is one live automation session owned by a single worker.
type Handle struct {
	ID        string
	Worker    WorkerID
	Profile   Profile
	CreatedAt time.Time

	driver  Driver
	alive   atomic.Bool
	release sync.Once
	err     error
}

// Driver returns the platform driver behind the handle.
func (h *Handle) Driver() Driver {
	return h.driver
}

// Alive reports whether the session has not been released yet.
func (h *Handle) Alive() bool {
	return h.alive.Load()
}

// NewHandle wraps an already provisioned driver. Registries use it
// internally; tests use it to drive waits and capture without a registry.
func NewHandle(worker WorkerID, profile Profile, driver Driver) *Handle {
	h := &Handle{
		ID:        uuid.NewString(),
		Worker:    worker,
		Profile:   profile,
		CreatedAt: time.Now(),
		driver:    driver,
	}
	h.alive.Store(true)
	return h
}

func (h *Handle) quit(ctx context.Context) error {
	h.release.Do(func() {
		h.alive.Store(false)
		h.err = h.driver.Quit(ctx)
	})
	return h.err
}

// Registry binds sessions to workers.
type Registry struct {
	provisioner    Provisioner
	limiter        *rate.Limiter
	releaseTimeout time.Duration
	log            *zap.Logger

	mu      sync.Mutex
	bound   map[WorkerID]*Handle
	// pending holds workers whose session is being provisioned
	pending map[WorkerID]struct{}
	live    atomic.Int64
}

type RegistryOption func(*Registry)

// WithProvisionRate caps how many sessions per second may be requested
// from the remote end. Zero or negative means unlimited.
func WithProvisionRate(perSecond float64, burst int) RegistryOption {
	return func(r *Registry) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

func WithReleaseTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.releaseTimeout = d
	}
}

func NewRegistry(p Provisioner, opts ...RegistryOption) *Registry {
	r := &Registry{
		provisioner:    p,
		releaseTimeout: DefaultReleaseTimeout,
		log:            zap.NewNop(),
		bound:          make(map[WorkerID]*Handle),
		pending:        make(map[WorkerID]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire provisions a session for the worker bound to ctx.
func (r *Registry) Acquire(ctx context.Context, profile Profile) (*Handle, error) {
	worker, ok := WorkerFrom(ctx)
	if !ok {
		return nil, ErrNoWorker
	}

	if err := profile.Validate(); err != nil {
		return nil, &ProvisioningError{Platform: profile.Platform, Target: profile.Target(), Err: err}
	}

	r.mu.Lock()
	_, held := r.bound[worker]
	_, busy := r.pending[worker]
	if held || busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyBound, worker)
	}
	r.pending[worker] = struct{}{}
	r.mu.Unlock()

	h, start, err := r.provision(ctx, worker, profile)

	r.mu.Lock()
	delete(r.pending, worker)
	if err == nil {
		r.bound[worker] = h
		r.live.Add(1)
	}
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.log.Debug("session acquired",
		zap.String("worker", string(worker)),
		zap.String("session", h.ID),
		zap.Stringer("platform", profile.Platform),
		zap.String("target", profile.Target()),
		zap.Duration("took", time.Since(start)))

	return h, nil
}

func (r *Registry) provision(ctx context.Context, worker WorkerID, profile Profile) (*Handle, time.Time, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, time.Time{}, &ProvisioningError{Platform: profile.Platform, Target: profile.Target(), Err: err}
		}
	}

	start := time.Now()
	driver, err := r.provisioner.Provision(ctx, profile)
	if err != nil {
		return nil, start, &ProvisioningError{Platform: profile.Platform, Target: profile.Target(), Err: err}
	}
	return NewHandle(worker, profile, driver), start, nil
}

// Current returns the session bound to the calling worker.
func (r *Registry) Current(ctx context.Context) (*Handle, bool) {
	worker, ok := WorkerFrom(ctx)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.bound[worker]
	return h, ok
}

// Release tears down the calling worker's session. Calling it when nothing
// is bound is a no-op. Teardown runs on a context detached from ctx's
// cancellation so cancelled suites still free their sessions.
func (r *Registry) Release(ctx context.Context) error {
	worker, ok := WorkerFrom(ctx)
	if !ok {
		return nil
	}

	r.mu.Lock()
	h, ok := r.bound[worker]
	delete(r.bound, worker)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	quitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.releaseTimeout)
	defer cancel()

	err := h.quit(quitCtx)
	r.live.Add(-1)

	if err != nil {
		r.log.Warn("session release failed",
			zap.String("worker", string(worker)),
			zap.String("session", h.ID),
			zap.Error(err))
		return fmt.Errorf("releasing session %s: %w", h.ID, err)
	}

	r.log.Debug("session released",
		zap.String("worker", string(worker)),
		zap.String("session", h.ID),
		zap.Duration("lifetime", time.Since(h.CreatedAt)))
	return nil
}

// Live returns the number of sessions acquired and not yet released.
func (r *Registry) Live() int {
	return int(r.live.Load())
}
