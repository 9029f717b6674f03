package jsop

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/jsinterop/internal/interop"
	"github.com/joeycumines/jsinterop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectEvent(t *testing.T, ctx context.Context, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-ctx.Done():
		t.Fatal("no event delivered")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestElementEventListener(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := testutil.Context(t)

	events := make(chan Event, 8)
	l, err := f.bridge.NewListener(func(e Event) { events <- e })
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	panel := interop.ElementByID("panel")
	require.NoError(t, f.bridge.AddElementEventListener(ctx, panel, "poke", l))
	// a second registration of the same listener is ignored
	require.NoError(t, f.bridge.AddElementEventListener(ctx, panel, "poke", l))

	_, err = f.Document.DispatchEvent(ctx, "btn", "poke")
	require.NoError(t, err)
	e := expectEvent(t, ctx, events)
	assert.Equal(t, "poke", e.Type)
	assert.Equal(t, "btn", e.TargetID, "the target is the element the event was fired at")
	assert.Nil(t, e.Detail)
	expectNoEvent(t, events)

	require.NoError(t, f.bridge.RemoveElementEventListener(ctx, panel, "poke", l))
	// removing twice is harmless
	require.NoError(t, f.bridge.RemoveElementEventListener(ctx, panel, "poke", l))
	_, err = f.Document.DispatchEvent(ctx, "btn", "poke")
	require.NoError(t, err)
	expectNoEvent(t, events)
}

func TestElementEventListener_Detail(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := testutil.Context(t)

	events := make(chan Event, 1)
	l, err := f.bridge.NewListener(func(e Event) { events <- e })
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, f.bridge.AddElementEventListener(ctx, interop.ElementByID("btn"), "custom", l))

	require.NoError(t, f.Runtime.Eval(ctx, `document.getElementById("btn").dispatchEvent(
		new CustomEvent("custom", {detail: {count: 3, tags: ["a"]}}))`, nil))
	e := expectEvent(t, ctx, events)
	assert.Equal(t, map[string]any{"count": float64(3), "tags": []any{"a"}}, e.Detail)
}

func TestWindowEventListener(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := testutil.Context(t)

	events := make(chan Event, 8)
	l, err := f.bridge.NewListener(func(e Event) { events <- e })
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, f.bridge.AddWindowEventListener(ctx, "resize", l))

	_, err = f.Document.DispatchEvent(ctx, "", "resize")
	require.NoError(t, err)
	e := expectEvent(t, ctx, events)
	assert.Equal(t, "resize", e.Type)
	assert.Empty(t, e.TargetID)

	// events bubble up to the window
	_, err = f.Document.DispatchEvent(ctx, "name", "resize")
	require.NoError(t, err)
	assert.Equal(t, "name", expectEvent(t, ctx, events).TargetID)

	require.NoError(t, f.bridge.RemoveWindowEventListener(ctx, "resize", l))
	_, err = f.Document.DispatchEvent(ctx, "", "resize")
	require.NoError(t, err)
	expectNoEvent(t, events)
}

func TestListener_SameCallbackDifferentTargets(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := testutil.Context(t)

	events := make(chan Event, 8)
	l, err := f.bridge.NewListener(func(e Event) { events <- e })
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	btn := interop.ElementByID("btn")
	name := interop.ElementByID("name")
	require.NoError(t, f.bridge.AddElementEventListener(ctx, btn, "ping", l))
	require.NoError(t, f.bridge.AddElementEventListener(ctx, name, "ping", l))
	require.NoError(t, f.bridge.RemoveElementEventListener(ctx, btn, "ping", l))

	_, err = f.Document.DispatchEvent(ctx, "btn", "ping")
	require.NoError(t, err)
	expectNoEvent(t, events)

	_, err = f.Document.DispatchEvent(ctx, "name", "ping")
	require.NoError(t, err)
	assert.Equal(t, "name", expectEvent(t, ctx, events).TargetID)
}

func TestListener_ClosedWhileRegisteredFailsLoudly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := testutil.Context(t)

	var calls int
	l, err := f.bridge.NewListener(func(Event) { calls++ })
	require.NoError(t, err)
	require.NoError(t, f.bridge.AddElementEventListener(ctx, interop.ElementByID("btn"), "ping", l))
	require.NoError(t, l.Close())

	notPrevented, err := f.Document.DispatchEvent(ctx, "btn", "ping")
	require.NoError(t, err)
	assert.True(t, notPrevented)
	assert.Zero(t, calls)
	assert.NotEmpty(t, f.Log.Search("disposed callback invoked"))
	assert.NotEmpty(t, f.Log.Search("has been disposed"))
}

func TestListener_UnsetActionIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := testutil.Context(t)

	l, err := interop.NewPayloadCallback[Event](f.Runtime)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, f.bridge.AddWindowEventListener(ctx, "ping", l))

	_, err = f.Document.DispatchEvent(ctx, "", "ping")
	require.NoError(t, err)
	assert.Empty(t, f.Log.Search("listener failed"))
}
