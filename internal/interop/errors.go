package interop

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a handle after Close.
var ErrClosed = errors.New("interop: handle closed")

// LoadError reports a failed module load. Every caller waiting on the
// module's readiness receives the same LoadError.
type LoadError struct {
	Locator string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("interop: failed to load module %q: %v", e.Locator, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RemoteError is a failure raised by the script side, e.g. a thrown
// exception or a rejected promise. It is passed through to callers as-is.
type RemoteError struct {
	// Name is the error class on the remote side (e.g. "TypeError").
	Name    string
	Message string
	Stack   string
}

func (e *RemoteError) Error() string {
	if e.Name == "" {
		return "remote error: " + e.Message
	}
	return fmt.Sprintf("remote error: %s: %s", e.Name, e.Message)
}
