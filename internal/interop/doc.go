// Package interop implements the host side of a boundary between Go and a
// script runtime that lives on another goroutine (or another process) and is
// only reachable through asynchronous, serialized calls.
//
// Two handle types are provided:
//
//   - [Module] is an asynchronously loaded proxy for a script module. It is
//     created with [Import], which starts the load and returns immediately.
//     Every call through the handle waits until the load has completed.
//   - [Callback] and [PayloadCallback] are host-side identities the script
//     side can invoke by reference, optionally with one payload.
//
// Both handles follow the same disposal state machine: Active -> Closed.
// Close is idempotent and safe to call concurrently; only the first caller
// performs the release work.
//
// The script side is abstracted by [Importer] and [CallbackRegistrar]. The
// jsrt package provides the goja implementation.
package interop
