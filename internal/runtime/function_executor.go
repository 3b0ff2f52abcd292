// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"github.com/invowk/relayhook/internal/transpile"
)

// ExecutorFunction is the name of the function executor.
const ExecutorFunction = "function"

const functionHeader = `(function (__import, require, module, exports, __hookContext) { `

// FunctionExecutor evaluates a module body as a function expression and
// invokes it with a fresh module/exports pair. Both module.exports = X and
// exports.X = Y are honoured.
type FunctionExecutor struct {
	target string
	logger *log.Logger
}

// NewFunctionExecutor creates a FunctionExecutor emitting the given language
// target in its module-format pass.
func NewFunctionExecutor(target string, logger *log.Logger) *FunctionExecutor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &FunctionExecutor{target: target, logger: logger}
}

// Name returns the executor name.
func (x *FunctionExecutor) Name() string { return ExecutorFunction }

// Injection reports that bindings are passed as parameters.
func (x *FunctionExecutor) Injection() Injection { return InjectParams }

// Prepare normalizes and compiles the module body.
func (x *FunctionExecutor) Prepare(source, filename string) (*Unit, error) {
	code, err := normalize(source, filename, x.target)
	if err != nil {
		return nil, err
	}
	unit := newUnit(filename, code)

	prog, err := goja.Compile(filename, functionHeader+prologue+"\n"+code+epilogue+"\n})", false)
	if err != nil {
		return nil, &ExecutionError{Filename: filename, Message: err.Error(), Code: code, Err: err}
	}
	unit.program = prog
	return unit, nil
}

// Execute runs the compiled body. The default export is checked only when
// b.RequireDefault is set. Must be called on the engine loop.
func (x *FunctionExecutor) Execute(rt *goja.Runtime, unit *Unit, b Bindings) (*goja.Object, error) {
	if unit.program == nil {
		return nil, &ExecutionError{Filename: unit.Filename, Message: "unit was not prepared by the function executor", Err: ErrExecution}
	}

	fnValue, err := rt.RunProgram(unit.program)
	if err != nil {
		return nil, executionError(x.logger, unit, err)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, &ExecutionError{Filename: unit.Filename, Message: "module wrapper is not a function", Err: ErrExecution}
	}

	module := rt.NewObject()
	exports := rt.NewObject()
	_ = module.Set("exports", exports)

	_, err = fn(goja.Undefined(),
		orUndefined(b.Import),
		orUndefined(b.Require),
		module,
		exports,
		orUndefined(b.Context),
	)
	if err != nil {
		return nil, executionError(x.logger, unit, err)
	}

	out, err := exportsOf(rt, module, unit.Filename)
	if err != nil {
		return nil, err
	}
	if b.RequireDefault {
		if _, err := DefaultExport(out, unit.Filename); err != nil {
			x.logger.Error("module contract violated", "file", unit.Filename, "err", err)
			return nil, err
		}
	}
	return out, nil
}

func newUnit(filename, code string) *Unit {
	return &Unit{Filename: filename, Code: code, Requires: transpile.ParseRequires(code)}
}

func orUndefined(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v
}
