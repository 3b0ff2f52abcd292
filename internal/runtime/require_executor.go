// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"
)

const (
	// ExecutorRequire is the name of the require executor.
	ExecutorRequire = "require"

	// DefaultDisposeGrace is how long a transient resource outlives evaluation.
	DefaultDisposeGrace = time.Second
)

// slotHeader reads the global slot once, at evaluation time, and shadows the
// native require with the loader's shim.
const slotHeader = `var __slot = globalThis.` + SlotName + ` || {}; var __import = __slot.importer, __hookContext = __slot.context; require = __slot.require || require; `

// RequireExecutor loads a module body through the engine's native require.
// The body is registered as a transient resource under a unique path, loaded,
// then revoked after a grace period measured on a Clock.
type RequireExecutor struct {
	engine *Engine
	target string
	grace  time.Duration
	clock  Clock
	logger *log.Logger
}

// RequireExecutorOptions configures a RequireExecutor.
type RequireExecutorOptions struct {
	Target string
	// Grace is how long a resource stays registered after evaluation.
	// Zero selects DefaultDisposeGrace.
	Grace  time.Duration
	Clock  Clock
	Logger *log.Logger
}

// NewRequireExecutor creates a RequireExecutor bound to engine.
func NewRequireExecutor(engine *Engine, opts RequireExecutorOptions) *RequireExecutor {
	x := &RequireExecutor{
		engine: engine,
		target: opts.Target,
		grace:  opts.Grace,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
	if x.grace <= 0 {
		x.grace = DefaultDisposeGrace
	}
	if x.clock == nil {
		x.clock = RealClock{}
	}
	if x.logger == nil {
		x.logger = log.New(io.Discard)
	}
	return x
}

// Name returns the executor name.
func (x *RequireExecutor) Name() string { return ExecutorRequire }

// Injection reports that bindings travel through the global slot.
func (x *RequireExecutor) Injection() Injection { return InjectGlobalSlot }

// Prepare normalizes the body and checks that it compiles in the native
// require wrapper.
func (x *RequireExecutor) Prepare(source, filename string) (*Unit, error) {
	code, err := normalize(source, filename, x.target)
	if err != nil {
		return nil, err
	}
	unit := newUnit(filename, code)

	if _, err := goja.Compile(filename, "(function (exports, require, module) {"+x.body(unit)+"\n})", false); err != nil {
		return nil, &ExecutionError{Filename: filename, Message: err.Error(), Code: code, Err: err}
	}
	return unit, nil
}

// Execute registers the body, loads it and schedules its disposal. Like the
// function executor it checks the default export only when b.RequireDefault
// is set. Must be called on the engine loop.
func (x *RequireExecutor) Execute(rt *goja.Runtime, unit *Unit, b Bindings) (*goja.Object, error) {
	if x.engine.requirer == nil {
		return nil, &ExecutionError{Filename: unit.Filename, Message: "native require is not available", Err: ErrExecution}
	}

	slot := rt.NewObject()
	_ = slot.Set("context", orUndefined(b.Context))
	_ = slot.Set("importer", orUndefined(b.Import))
	_ = slot.Set("require", orUndefined(b.Require))
	_ = rt.Set(SlotName, slot)
	defer func() { _ = rt.GlobalObject().Delete(SlotName) }()

	p := x.engine.resources.Register(x.body(unit))
	defer x.dispose(p)

	v, err := x.engine.requirer.Require(p)
	if err != nil {
		return nil, executionError(x.logger, unit, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, &ExecutionError{Filename: unit.Filename, Message: "module.exports is " + typeOf(v), Err: ErrExecution}
	}

	out := v.ToObject(rt)
	if b.RequireDefault {
		if _, err := DefaultExport(out, unit.Filename); err != nil {
			x.logger.Error("module contract violated", "file", unit.Filename, "err", err)
			return nil, err
		}
	}
	return out, nil
}

func (x *RequireExecutor) body(unit *Unit) string {
	return slotHeader + prologue + "\n" + unit.Code + epilogue
}

// dispose revokes the resource after the grace period. Revocation only
// touches the resource table, so it is safe after the loop has stopped.
func (x *RequireExecutor) dispose(p string) {
	after := x.clock.After(x.grace)
	go func() {
		<-after
		if x.engine.resources.Revoke(p) {
			x.logger.Debug("transient module disposed", "path", p)
		}
	}()
}
