// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"github.com/invowk/relayhook/internal/transpile"
)

const (
	// InjectParams passes the context and delegates as function parameters.
	InjectParams Injection = "params"
	// InjectGlobalSlot passes them through a global slot read by the module prologue.
	InjectGlobalSlot Injection = "global-slot"

	// SlotName is the global the require executor hands bindings through.
	SlotName = "__hookSlot"

	// ActiveContextName is the global holding the context of the most recent
	// call into a hook. Compiled JSX reads its render primitive from it.
	ActiveContextName = "__hookActive"
)

var (
	// ErrExecution is the sentinel wrapped by ExecutionError.
	ErrExecution = errors.New("module execution failed")

	// ErrContractViolation is the sentinel wrapped by ContractViolation.
	ErrContractViolation = errors.New("module default export is not callable")
)

type (
	// Injection names how a module receives its context and delegates.
	Injection string

	// Executor turns a module body into an exports object.
	//
	// Prepare runs on any goroutine and does the expensive work (module-format
	// pass, compilation). Execute must be called on the engine loop.
	//
	// Execute only checks for a callable default export when
	// Bindings.RequireDefault is set. The loader sets it for the hook a call
	// starts from; modules reached through import() or require() may export
	// anything.
	Executor interface {
		Name() string
		Injection() Injection
		Prepare(source, filename string) (*Unit, error)
		Execute(rt *goja.Runtime, unit *Unit, b Bindings) (*goja.Object, error)
	}

	// Unit is a prepared module.
	Unit struct {
		Filename string
		// Code is the CommonJS body after the module-format pass.
		Code string
		// Requires lists the static require() specifiers found in Code.
		Requires []string

		program *goja.Program
	}

	// Bindings are the values a module body can reach besides globals.
	Bindings struct {
		// Context is the execution context object, seen as __hookContext.
		Context *goja.Object
		// Import is the module's import delegate, seen as __import.
		Import goja.Value
		// Require serves prefetched static imports synchronously.
		Require goja.Value
		// RequireDefault makes Execute reject exports without a callable
		// default with a *ContractViolation. Only the root hook sets it.
		RequireDefault bool
	}

	// ExecutionError reports an exception thrown while evaluating a module, or
	// a body the engine could not compile.
	ExecutionError struct {
		Filename string
		Message  string
		// Stack is the engine stack trace, when one is available.
		Stack string
		// Line is the 1-based line in Code, or 0 when unknown.
		Line int
		// Code is the prepared body, for snippets.
		Code string
		Err  error
	}

	// ContractViolation reports a module whose default export is missing or
	// not callable.
	ContractViolation struct {
		Filename string
		// Got is the JavaScript type found instead of a function.
		Got string
	}
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("execute %s:%d: %s", e.Filename, e.Line, e.Message)
	}
	return fmt.Sprintf("execute %s: %s", e.Filename, e.Message)
}

// Unwrap returns ErrExecution and the Go error that caused the exception, if any.
func (e *ExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExecution}
	}
	return []error{ErrExecution, e.Err}
}

// Snippet returns up to radius lines of Code on each side of Line, numbered,
// with the failing line marked.
func (e *ExecutionError) Snippet(radius int) string {
	if e.Line <= 0 || e.Code == "" {
		return ""
	}
	lines := strings.Split(e.Code, "\n")
	first := max(1, e.Line-radius)
	last := min(len(lines), e.Line+radius)

	var sb strings.Builder
	for n := first; n <= last; n++ {
		marker := "  "
		if n == e.Line {
			marker = "> "
		}
		fmt.Fprintf(&sb, "%s%4d | %s\n", marker, n, lines[n-1])
	}
	return sb.String()
}

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	return fmt.Sprintf("%s: default export must be a function, got %s", e.Filename, e.Got)
}

// Unwrap returns ErrContractViolation for errors.Is() compatibility.
func (e *ContractViolation) Unwrap() error { return ErrContractViolation }

// DefaultExport returns the callable default export of exports.
func DefaultExport(exports *goja.Object, filename string) (goja.Callable, error) {
	if exports == nil {
		return nil, &ContractViolation{Filename: filename, Got: "undefined"}
	}
	def := exports.Get("default")
	fn, ok := goja.AssertFunction(def)
	if !ok {
		return nil, &ContractViolation{Filename: filename, Got: typeOf(def)}
	}
	return fn, nil
}

// normalize runs the module-format pass; failures are execution errors since
// the body cannot be evaluated.
func normalize(source, filename, target string) (string, error) {
	code, err := transpile.Normalize(source, filename, target)
	if err != nil {
		return "", &ExecutionError{Filename: filename, Message: err.Error(), Code: source, Err: err}
	}
	return code, nil
}

// prologue binds the render primitive and fragment used by compiled JSX. h
// looks the primitive up on every call, so a cached module renders with the
// active caller's context and falls back to the one it was evaluated with.
// It is kept on a single line so engine line numbers are off by exactly one.
const prologue = `var h = function () { var c = globalThis.` + ActiveContextName + ` || __hookContext; return c.h.apply(null, arguments); }, Fragment = __hookContext && __hookContext.Fragment; (function () {`

// Activate makes ctx the context compiled JSX renders with until the next
// call. Async continuations of an earlier call see the newer context. Must
// be called on the loop.
func Activate(rt *goja.Runtime, ctx *goja.Object) {
	_ = rt.GlobalObject().Set(ActiveContextName, ctx)
}

const (
	prologueLines = 1
	epilogue      = "\n}).call(module.exports);"
)

// exportsOf reads module.exports after evaluation.
func exportsOf(rt *goja.Runtime, module *goja.Object, filename string) (*goja.Object, error) {
	v := module.Get("exports")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, &ExecutionError{Filename: filename, Message: "module.exports is " + typeOf(v), Err: ErrExecution}
	}
	return v.ToObject(rt), nil
}

// executionError converts an evaluation failure into an *ExecutionError and
// logs it with the filename.
func executionError(logger *log.Logger, unit *Unit, err error) error {
	ee := &ExecutionError{Filename: unit.Filename, Message: err.Error(), Code: unit.Code}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		ee.Message = exceptionMessage(ex)
		ee.Stack = ex.String()
		ee.Err = ValueError(ex.Value())
		for _, frame := range ex.Stack() {
			if name := frame.SrcName(); name == unit.Filename || strings.HasPrefix(name, BlobPrefix) {
				if line := frame.Position().Line - prologueLines; line > 0 {
					ee.Line = line
				}
				break
			}
		}
	} else {
		ee.Err = err
	}

	logger.Error("module execution failed", "file", unit.Filename, "err", ee.Message)
	return ee
}

func exceptionMessage(ex *goja.Exception) string {
	if obj, ok := ex.Value().(*goja.Object); ok {
		name, msg := obj.Get("name"), obj.Get("message")
		if msg != nil && !goja.IsUndefined(msg) {
			if name != nil && !goja.IsUndefined(name) {
				return name.String() + ": " + msg.String()
			}
			return msg.String()
		}
	}
	if ex.Value() != nil {
		return ex.Value().String()
	}
	return ex.Error()
}

func typeOf(v goja.Value) string {
	switch {
	case v == nil, goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if _, ok := goja.AssertFunction(v); ok {
		return "function"
	}
	switch v.Export().(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	}
	return "object"
}
