// SPDX-License-Identifier: MPL-2.0

// Package runtime runs hook modules inside an embedded JavaScript engine.
//
// An Engine owns one goja runtime driven by a goja_nodejs event loop; every
// piece of JavaScript runs on that loop's goroutine. Work arrives through
// Engine.Run, which hops onto the loop and waits for the result, so callers
// stay on ordinary goroutines.
//
// Two Executor implementations turn a module body into an exports object:
//   - function: evaluates the body as a function expression and calls it with
//     module/exports and the delegates as parameters (the default)
//   - require: registers the body as a transient resource and loads it through
//     the engine's native require; delegates travel through a global slot
//
// Both share the same contract: Prepare runs off the loop (module-format pass
// and compilation), Execute runs on the loop and returns the exports object.
// A Registry maps executor names to implementations so configuration can pick
// one by name.
package runtime
