package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/session"
	"github.com/abdul-hamid-achik/bankspec/packages/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webProfile() session.Profile {
	return session.Profile{
		Platform:  session.PlatformWeb,
		Browser:   session.BrowserChrome,
		Headless:  true,
		RemoteURL: "http://grid.local:4444",
	}
}

func TestRegistry_AcquireRelease(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	reg := session.NewRegistry(prov)
	ctx := session.WithWorker(context.Background(), "w1")

	h, err := reg.Acquire(ctx, webProfile())
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.True(t, h.Alive())
	assert.Equal(t, 1, reg.Live())

	cur, ok := reg.Current(ctx)
	require.True(t, ok)
	assert.Same(t, h, cur)

	require.NoError(t, reg.Release(ctx))
	assert.False(t, h.Alive())
	assert.Equal(t, 0, reg.Live())
	assert.Equal(t, 0, prov.Outstanding())

	_, ok = reg.Current(ctx)
	assert.False(t, ok)
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	reg := session.NewRegistry(prov)
	ctx := session.WithWorker(context.Background(), "w1")

	_, err := reg.Acquire(ctx, webProfile())
	require.NoError(t, err)

	require.NoError(t, reg.Release(ctx))
	require.NoError(t, reg.Release(ctx))
	require.NoError(t, reg.Release(ctx))

	drivers := prov.Drivers()
	require.Len(t, drivers, 1)
	assert.Equal(t, 1, drivers[0].Quits())
	assert.Equal(t, 0, reg.Live())
}

func TestRegistry_ReleaseWithoutAcquire(t *testing.T) {
	reg := session.NewRegistry(sessiontest.NewProvisioner())

	assert.NoError(t, reg.Release(session.WithWorker(context.Background(), "nobody")))
	assert.NoError(t, reg.Release(context.Background()))
}

func TestRegistry_AcquireRequiresWorker(t *testing.T) {
	reg := session.NewRegistry(sessiontest.NewProvisioner())

	_, err := reg.Acquire(context.Background(), webProfile())
	assert.ErrorIs(t, err, session.ErrNoWorker)
}

func TestRegistry_OneSessionPerWorker(t *testing.T) {
	reg := session.NewRegistry(sessiontest.NewProvisioner())
	ctx := session.WithWorker(context.Background(), "w1")

	_, err := reg.Acquire(ctx, webProfile())
	require.NoError(t, err)

	_, err = reg.Acquire(ctx, webProfile())
	assert.ErrorIs(t, err, session.ErrAlreadyBound)
	assert.Equal(t, 1, reg.Live())
}

func TestRegistry_ConcurrentAcquireSameWorker(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	entered := make(chan struct{})
	proceed := make(chan struct{})
	prov.Setup(func(*sessiontest.Driver) {
		close(entered)
		<-proceed
	})
	reg := session.NewRegistry(prov)
	ctx := session.WithWorker(context.Background(), "w1")

	first := make(chan error, 1)
	go func() {
		_, err := reg.Acquire(ctx, webProfile())
		first <- err
	}()
	<-entered

	_, err := reg.Acquire(ctx, webProfile())
	assert.ErrorIs(t, err, session.ErrAlreadyBound)

	close(proceed)
	require.NoError(t, <-first)
	assert.Equal(t, 1, reg.Live())
	require.Len(t, prov.Drivers(), 1)

	require.NoError(t, reg.Release(ctx))
	assert.Zero(t, reg.Live())
	assert.Zero(t, prov.Outstanding())
}

func TestRegistry_FailedAcquireFreesWorker(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	reg := session.NewRegistry(prov)
	ctx := session.WithWorker(context.Background(), "w1")

	prov.Fail(errors.New("grid unreachable"))
	_, err := reg.Acquire(ctx, webProfile())
	require.Error(t, err)

	prov.Fail(nil)
	_, err = reg.Acquire(ctx, webProfile())
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Live())
}

func TestRegistry_ProvisioningErrors(t *testing.T) {
	t.Run("unknown browser", func(t *testing.T) {
		reg := session.NewRegistry(sessiontest.NewProvisioner())
		ctx := session.WithWorker(context.Background(), "w1")

		p := webProfile()
		p.Browser = "netscape"
		_, err := reg.Acquire(ctx, p)

		var perr *session.ProvisioningError
		require.True(t, errors.As(err, &perr))
		assert.ErrorIs(t, err, session.ErrUnsupportedProfile)
		assert.Equal(t, 0, reg.Live())
	})

	t.Run("unknown platform", func(t *testing.T) {
		_, err := session.ParsePlatform("blackberry")
		assert.ErrorIs(t, err, session.ErrUnsupportedProfile)
	})

	t.Run("service unreachable", func(t *testing.T) {
		prov := sessiontest.NewProvisioner()
		prov.Fail(errors.New("dial tcp 127.0.0.1:4444: connection refused"))
		reg := session.NewRegistry(prov)
		ctx := session.WithWorker(context.Background(), "w1")

		_, err := reg.Acquire(ctx, webProfile())

		var perr *session.ProvisioningError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, session.PlatformWeb, perr.Platform)
		assert.Contains(t, err.Error(), "connection refused")

		_, ok := reg.Current(ctx)
		assert.False(t, ok)
	})
}

func TestRegistry_WorkerIsolation(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	reg := session.NewRegistry(prov)

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := session.WithWorker(context.Background(), session.WorkerID(fmt.Sprintf("w%d", i)))

			h, err := reg.Acquire(ctx, webProfile())
			if err != nil {
				errs <- err
				return
			}
			defer func() { _ = reg.Release(ctx) }()

			for j := 0; j < 50; j++ {
				cur, ok := reg.Current(ctx)
				if !ok || cur != h || cur.Worker != h.Worker {
					errs <- fmt.Errorf("worker w%d saw foreign session", i)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	assert.Equal(t, 0, reg.Live())
	assert.Equal(t, 0, prov.Outstanding())
	assert.Len(t, prov.Drivers(), workers)
}

func TestRegistry_ReleaseAfterCancel(t *testing.T) {
	prov := sessiontest.NewProvisioner()
	reg := session.NewRegistry(prov)

	ctx, cancel := context.WithCancel(session.WithWorker(context.Background(), "w1"))
	_, err := reg.Acquire(ctx, webProfile())
	require.NoError(t, err)

	cancel()

	require.NoError(t, reg.Release(ctx))
	assert.Equal(t, 0, prov.Outstanding())
}

func TestRegistry_ProvisionRate(t *testing.T) {
	reg := session.NewRegistry(sessiontest.NewProvisioner(), session.WithProvisionRate(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		ctx := session.WithWorker(context.Background(), session.WorkerID(fmt.Sprintf("w%d", i)))
		_, err := reg.Acquire(ctx, webProfile())
		require.NoError(t, err)
	}

	// burst of 1 at 20/s: the 2nd and 3rd acquisitions wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
