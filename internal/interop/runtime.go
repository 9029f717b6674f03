package interop

import (
	"context"
	"io"
)

// Importer loads script modules. It is the "module load call" of the
// boundary: the returned reference is owned by the caller, who must Release it.
type Importer interface {
	Import(ctx context.Context, locator string) (ObjectReference, error)
}

// ObjectReference is an opaque handle to an object that lives on the script
// side.
type ObjectReference interface {
	// Invoke calls the function named identifier on the referenced object.
	// Arguments must be JSON-compatible values or one of the reference types
	// of this package. If result is non-nil, the return value is decoded into
	// it. Remote failures are returned as *RemoteError.
	Invoke(ctx context.Context, identifier string, result any, args ...any) error
	// Release drops the remote object. Invoke after Release fails.
	Release(ctx context.Context) error
}

// CallbackRegistrar mints references that let the script side invoke a
// Receiver.
type CallbackRegistrar interface {
	RegisterCallback(r Receiver) (CallbackReference, error)
}

// Receiver is the host-side target of a callback reference.
//
// Receive is called by the script side's runtime with the (possibly empty)
// payload. It must not block: it decodes the payload and returns the action
// to run, which the runtime executes on a separate goroutine.
type Receiver interface {
	Receive(payload Payload) (func(), error)
}

// CallbackReference is what the script side holds to invoke a Receiver.
// Passing it as an argument to ObjectReference.Invoke hands it across.
type CallbackReference interface {
	// ID identifies the reference within its runtime.
	ID() string
	// Release makes the reference unreachable for the script side.
	Release()
}

// ElementReference identifies a document element by its id attribute.
type ElementReference struct {
	ID string
}

// ElementByID is shorthand for ElementReference{ID: id}.
func ElementByID(id string) ElementReference {
	return ElementReference{ID: id}
}

// StreamReference hands a byte stream to the script side. The remote side
// buffers the whole stream before using it, so it is not suitable for
// unbounded streams. The reader is consumed at most once.
type StreamReference struct {
	Reader io.Reader
}
