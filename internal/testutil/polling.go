// Package testutil holds helpers shared by the package tests: a runtime and
// document harness, polling for asynchronous state, and platform skips.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is the interval used by the Eventually helpers.
const DefaultPollInterval = 5 * time.Millisecond

// Poll checks condition every interval until it returns true, timeout
// elapses, or ctx is done. The condition is always checked at least once.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	_, err := WaitForState(ctx, func() bool { return condition() }, func(ok bool) bool { return ok }, timeout, interval)
	return err
}

// WaitForState polls getter until predicate accepts its value, and returns
// that value. On timeout or cancellation it returns the zero value and an
// error.
//
//	entries, err := WaitForState(ctx, console.Entries,
//		func(e []jsrt.ConsoleEntry) bool { return len(e) == 2 },
//		time.Second, DefaultPollInterval)
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if v := getter(); predicate(v) {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-deadline.C:
			var zero T
			return zero, fmt.Errorf("testutil: timed out after %v waiting for %T state", timeout, zero)
		case <-ticker.C:
		}
	}
}
