// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

// ErrEngineClosed is returned when work is submitted to a closed Engine.
var ErrEngineClosed = errors.New("engine closed")

type (
	// EngineOptions configures an Engine.
	EngineOptions struct {
		// Logger receives console output from modules. Nil discards it.
		Logger *log.Logger
	}

	// Engine owns the JavaScript runtime and the event loop driving it.
	Engine struct {
		loop      *eventloop.EventLoop
		registry  *require.Registry
		requirer  *require.RequireModule
		resources *Resources
		logger    *log.Logger

		closed    chan struct{}
		closeOnce sync.Once
	}
)

// NewEngine starts an event loop with a fresh runtime. The engine's native
// require only resolves transient resources registered through Resources.
// Call Close to stop the loop.
func NewEngine(opts EngineOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	e := &Engine{
		resources: newResources(),
		logger:    logger,
		closed:    make(chan struct{}),
	}
	e.registry = require.NewRegistry(require.WithLoader(e.resources.load))
	e.loop = eventloop.NewEventLoop(
		eventloop.WithRegistry(e.registry),
		eventloop.EnableConsole(false),
	)
	e.loop.Start()

	err := e.Run(context.Background(), func(rt *goja.Runtime) error {
		rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		e.requirer = e.registry.Enable(rt)
		bindConsole(rt, e.logger)
		return nil
	})
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("initialize engine: %w", err)
	}
	return e, nil
}

// Resources returns the transient resource table.
func (e *Engine) Resources() *Resources { return e.resources }

// Logger returns the logger console output is routed to.
func (e *Engine) Logger() *log.Logger { return e.logger }

// Run executes fn on the loop and waits for it. ctx only bounds the wait.
// Run must not be called from the loop itself.
func (e *Engine) Run(ctx context.Context, fn func(rt *goja.Runtime) error) error {
	done := make(chan error, 1)
	scheduled := e.loop.RunOnLoop(func(rt *goja.Runtime) {
		done <- safeRun(rt, fn)
	})
	if !scheduled {
		return ErrEngineClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.closed:
		return ErrEngineClosed
	}
}

// Schedule queues fn on the loop without waiting. It reports false when the
// loop is gone.
func (e *Engine) Schedule(fn func(rt *goja.Runtime)) bool {
	select {
	case <-e.closed:
		return false
	default:
	}
	return e.loop.RunOnLoop(fn)
}

// Await resolves v on the loop: promises are waited for, other values are
// returned as is. A rejected promise becomes an error; Go errors that crossed
// into the engine are recovered so errors.As keeps working.
func (e *Engine) Await(ctx context.Context, v goja.Value) (goja.Value, error) {
	type settled struct {
		val goja.Value
		err error
	}
	ch := make(chan settled, 1)

	err := e.Run(ctx, func(rt *goja.Runtime) error {
		p, ok := exportPromise(v)
		if !ok {
			ch <- settled{val: v}
			return nil
		}
		switch p.State() {
		case goja.PromiseStateFulfilled:
			ch <- settled{val: p.Result()}
			return nil
		case goja.PromiseStateRejected:
			ch <- settled{err: ValueError(p.Result())}
			return nil
		}

		then, ok := goja.AssertFunction(rt.ToValue(p).ToObject(rt).Get("then"))
		if !ok {
			return errors.New("promise has no then method")
		}
		onFulfilled := rt.ToValue(func(call goja.FunctionCall) goja.Value {
			ch <- settled{val: call.Argument(0)}
			return goja.Undefined()
		})
		onRejected := rt.ToValue(func(call goja.FunctionCall) goja.Value {
			ch <- settled{err: ValueError(call.Argument(0))}
			return goja.Undefined()
		})
		_, err := then(rt.ToValue(p), onFulfilled, onRejected)
		return err
	})
	if err != nil {
		return nil, err
	}

	select {
	case s := <-ch:
		return s.val, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.closed:
		return nil, ErrEngineClosed
	}
}

// Close stops the event loop. Pending waits return ErrEngineClosed.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.loop.Stop()
	})
}

// ValueError converts a thrown or rejected JavaScript value into a Go error.
// Values created from Go errors yield the original error.
func ValueError(v goja.Value) error {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return errors.New("rejected without a reason")
	}
	if obj, ok := v.(*goja.Object); ok {
		if inner := obj.Get("value"); inner != nil {
			if err, ok := inner.Export().(error); ok {
				return err
			}
		}
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return errors.New(msg.String())
		}
	}
	if err, ok := v.Export().(error); ok {
		return err
	}
	return errors.New(v.String())
}

func exportPromise(v goja.Value) (*goja.Promise, bool) {
	if v == nil {
		return nil, false
	}
	p, ok := v.Export().(*goja.Promise)
	return p, ok
}

// safeRun keeps a panicking callback from taking down the loop goroutine.
func safeRun(rt *goja.Runtime, fn func(rt *goja.Runtime) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*goja.Exception); ok {
				err = ex
				return
			}
			err = fmt.Errorf("panic on engine loop: %v", r)
		}
	}()
	return fn(rt)
}

func bindConsole(rt *goja.Runtime, logger *log.Logger) {
	console := rt.NewObject()
	levels := map[string]func(msg any, keyvals ...any){
		"log":   logger.Info,
		"info":  logger.Info,
		"debug": logger.Debug,
		"warn":  logger.Warn,
		"error": logger.Error,
	}
	for name, emit := range levels {
		_ = console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			emit(strings.Join(parts, " "), "source", "console")
			return goja.Undefined()
		})
	}
	_ = rt.Set("console", console)
}
