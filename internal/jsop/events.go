package jsop

import (
	"context"

	"github.com/joeycumines/jsinterop/internal/interop"
)

// Event is the payload a listener receives.
type Event struct {
	Type string `json:"type"`
	// TargetID is the id of the element the event was fired at, or empty
	// for the window and elements without an id.
	TargetID  string `json:"targetId"`
	TimeStamp int64  `json:"timeStamp"`
	Detail    any    `json:"detail"`
}

// Listener receives events. It is a PayloadCallback, so its action runs on
// its own goroutine and the owner must Close it once it is removed.
type Listener = interop.PayloadCallback[Event]

// NewListener creates a listener running fn.
func (b *Bridge) NewListener(fn func(Event)) (*Listener, error) {
	l, err := interop.NewPayloadCallback[Event](b.rt, interop.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	l.SetCallback(fn)
	return l, nil
}

// TriggerClick clicks el. A nil element is ignored.
func (b *Bridge) TriggerClick(ctx context.Context, el *interop.ElementReference) error {
	if el == nil {
		return nil
	}
	return b.callVoid(ctx, OpTriggerClick, *el)
}

// AddElementEventListener registers l for events of type on el. Adding the
// same listener twice for the same element and type has no effect.
func (b *Bridge) AddElementEventListener(ctx context.Context, el interop.ElementReference, typ string, l *Listener) error {
	return b.callVoid(ctx, OpAddElementEventListener, el, typ, l.Reference())
}

// RemoveElementEventListener undoes AddElementEventListener.
func (b *Bridge) RemoveElementEventListener(ctx context.Context, el interop.ElementReference, typ string, l *Listener) error {
	return b.callVoid(ctx, OpRemoveElementEventListener, el, typ, l.Reference())
}

// AddWindowEventListener registers l for events of type on the window,
// including those bubbling up from elements.
func (b *Bridge) AddWindowEventListener(ctx context.Context, typ string, l *Listener) error {
	return b.callVoid(ctx, OpAddWindowEventListener, typ, l.Reference())
}

// RemoveWindowEventListener undoes AddWindowEventListener.
func (b *Bridge) RemoveWindowEventListener(ctx context.Context, typ string, l *Listener) error {
	return b.callVoid(ctx, OpRemoveWindowEventListener, typ, l.Reference())
}
