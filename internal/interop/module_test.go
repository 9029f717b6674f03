package interop

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_ConcurrentCallersWaitForLoad(t *testing.T) {
	t.Parallel()

	imp := newFakeImporter()
	imp.gate = make(chan struct{})
	imp.obj.results["f"] = 42

	m := Import(imp, "./mod.js")
	t.Cleanup(func() { _ = m.Close() })

	const n = 16
	var (
		wg        sync.WaitGroup
		completed atomic.Int32
		results   = make([]int, n)
		errs      = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Invoke(context.Background(), "f", &results[i])
			completed.Add(1)
		}(i)
	}

	// nothing may reach the module before the load completes
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, completed.Load())
	assert.Zero(t, imp.obj.callCount())
	assert.False(t, m.IsReady())

	close(imp.gate)
	wg.Wait()

	require.EqualValues(t, n, completed.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, 42, results[i])
	}
	require.Equal(t, n, imp.obj.callCount())
	require.EqualValues(t, 1, imp.imports.Load())
	require.True(t, m.IsReady())
}

func TestModule_LoadFailureReachesPendingCall(t *testing.T) {
	t.Parallel()

	loadErr := errors.New("E: unexpected token")
	imp := newFakeImporter()
	imp.gate = make(chan struct{})
	imp.err = loadErr

	m := Import(imp, "./mod.js")
	t.Cleanup(func() { _ = m.Close() })

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.InvokeVoid(context.Background(), "f")
	}()

	close(imp.gate)

	var err error
	select {
	case err = <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("pending call was not released by the load failure")
	}

	require.ErrorIs(t, err, loadErr)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, "./mod.js", le.Locator)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, imp.obj.callCount())

	// not retried
	require.ErrorIs(t, m.Wait(context.Background()), loadErr)
	require.EqualValues(t, 1, imp.imports.Load())
}

func TestModule_CallFailurePassesThroughUnchanged(t *testing.T) {
	t.Parallel()

	remote := &RemoteError{Name: "TypeError", Message: "x is not a function"}
	imp := newFakeImporter()
	imp.obj.errs["boom"] = remote

	m := Import(imp, "./mod.js")
	t.Cleanup(func() { _ = m.Close() })

	err := m.InvokeVoid(context.Background(), "boom")
	require.Same(t, remote, err)
}

func TestModule_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	imp := newFakeImporter()
	m := Import(imp, "./mod.js")
	require.NoError(t, m.Wait(context.Background()))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	require.EqualValues(t, 1, imp.obj.releases.Load())
	require.False(t, m.IsReady())
	require.ErrorIs(t, m.InvokeVoid(context.Background(), "f"), ErrClosed)
	require.ErrorIs(t, m.Wait(context.Background()), ErrClosed)
}

func TestModule_ConcurrentCloseReleasesOnce(t *testing.T) {
	t.Parallel()

	imp := newFakeImporter()
	m := Import(imp, "./mod.js")
	require.NoError(t, m.Wait(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Close()
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, imp.obj.releases.Load())
}

func TestModule_CloseWhileLoading(t *testing.T) {
	t.Parallel()

	imp := newFakeImporter()
	imp.gate = make(chan struct{})
	m := Import(imp, "./mod.js")

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.InvokeVoid(context.Background(), "f")
	}()

	require.NoError(t, m.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not released by Close")
	}

	// Close cancels the load context, the fake importer gives up
	select {
	case <-m.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("load did not settle after Close")
	}
	require.Zero(t, imp.obj.callCount())
	require.False(t, m.IsReady())
}

func TestModule_CloseWhileLoadingIsNotAnError(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	imp := newFakeImporter()
	imp.gate = make(chan struct{})
	m := Import(imp, "./mod.js", WithLogger(logger))

	require.NoError(t, m.Close())
	select {
	case <-m.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("load did not settle after Close")
	}

	assert.NotContains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), `msg="module load abandoned"`)
}

func TestModule_LoadCompletingAfterCloseIsReleased(t *testing.T) {
	t.Parallel()

	imp := &slowImporter{obj: newFakeObject(), release: make(chan struct{})}
	m := Import(imp, "./mod.js")
	require.NoError(t, m.Close())

	close(imp.release)
	<-m.Ready()

	require.EqualValues(t, 1, imp.obj.releases.Load())
	require.False(t, m.IsReady())
}

// slowImporter ignores cancellation, so the load completes after Close.
type slowImporter struct {
	obj     *fakeObject
	release chan struct{}
}

func (s *slowImporter) Import(ctx context.Context, locator string) (ObjectReference, error) {
	<-s.release
	return s.obj, nil
}

func TestModule_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	imp := newFakeImporter()
	imp.gate = make(chan struct{})
	m := Import(imp, "./mod.js")
	t.Cleanup(func() { _ = m.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)
	// the module itself is unaffected
	close(imp.gate)
	require.NoError(t, m.Wait(context.Background()))
}

func TestModule_ParentContextCancelsLoad(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	imp := newFakeImporter()
	imp.gate = make(chan struct{})
	m := Import(imp, "./mod.js", WithContext(ctx))
	t.Cleanup(func() { _ = m.Close() })

	cancel()

	err := m.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	var le *LoadError
	require.ErrorAs(t, err, &le)
}

func TestCall_DecodesTypedResult(t *testing.T) {
	t.Parallel()

	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	imp := newFakeImporter()
	imp.obj.results["origin"] = map[string]int{"x": 3, "y": 4}
	imp.obj.results["name"] = "mod"

	m := Import(imp, "./mod.js")
	t.Cleanup(func() { _ = m.Close() })

	p, err := Call[point](context.Background(), m, "origin")
	require.NoError(t, err)
	require.Equal(t, point{X: 3, Y: 4}, p)

	name, err := Call[string](context.Background(), m, "name")
	require.NoError(t, err)
	require.Equal(t, "mod", name)

	imp.obj.errs["broken"] = &RemoteError{Message: "nope"}
	n, err := Call[int](context.Background(), m, "broken")
	require.Error(t, err)
	require.Zero(t, n)
}

func TestModule_Locator(t *testing.T) {
	t.Parallel()

	m := Import(newFakeImporter(), "./_content/jsop/jsop.js")
	t.Cleanup(func() { _ = m.Close() })
	require.Equal(t, "./_content/jsop/jsop.js", m.Locator())
}
