// Package jsrt hosts the script side of the interop bridge: a goja runtime
// driven by a goja_nodejs event loop.
//
// All goja access happens on the loop goroutine. Host goroutines schedule
// work with [Runtime.RunOnLoop] or wait for it with [Runtime.RunOnLoopSync];
// long running work such as fetching module source or reading streams is done
// off the loop, with only the result handed back.
//
// Runtime implements [interop.Importer] and [interop.CallbackRegistrar]:
//
//   - Import loads a CommonJS style module through a [SourceLoader] and
//     returns its exports as an [interop.ObjectReference]. Calls on the
//     reference are promise aware; arguments cross as JSON or as opaque
//     references resolved by [Converter]s.
//   - RegisterCallback mints a reference the script side sees as an object
//     with an invoke(payload) method returning a Promise. The host action runs
//     on its own goroutine so the loop is never blocked by it.
package jsrt
