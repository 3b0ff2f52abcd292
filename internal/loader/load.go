// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/invowk/relayhook/internal/hookctx"
	"github.com/invowk/relayhook/internal/modcache"
	"github.com/invowk/relayhook/internal/runtime"
	"github.com/invowk/relayhook/internal/transpile"
)

type (
	// Module is the record of a successfully loaded module. Exports belongs to
	// the engine and may only be touched on its loop.
	Module struct {
		Key modcache.Key
		// URL is where the source came from: a peer URL or "host:" + path.
		URL          string
		SourceLength int
		// TranspiledLength is zero when the source was not transpiled.
		TranspiledLength int
		Exports          *goja.Object
		PhaseDurations   map[Phase]time.Duration
		// Imports are the static imports prefetched before evaluation.
		Imports []modcache.Key
	}

	// loadScope carries what a load inherits from the call that started it.
	loadScope struct {
		// root is the hook whose delegate backs ctx.helpers.loadModule.
		root modcache.Key
		hctx *hookctx.Context
		// tracker is only set for the hook itself.
		tracker        *tracker
		requireDefault bool
		// callCtx outlives the call for imports issued after it returned.
		callCtx context.Context
	}

	// prefetched is the outcome of loading one static import.
	prefetched struct {
		mod *Module
		err error
	}
)

// Transpiled reports whether the source went through the adapter.
func (m *Module) Transpiled() bool { return m.TranspiledLength > 0 }

func (s loadScope) nested() loadScope {
	return loadScope{root: s.root, hctx: s.hctx, callCtx: s.callCtx}
}

// loadNested loads a module through the cache on behalf of parent.
func (l *Loader) loadNested(ctx context.Context, key, parent modcache.Key, scope loadScope) (*Module, modcache.Outcome, error) {
	mod, outcome, err := l.cache.GetOrLoad(ctx, key, parent, func(ctx context.Context) (*Module, error) {
		return l.load(ctx, key, scope)
	})
	l.emitOutcome(key, outcome, err)
	return mod, outcome, err
}

// load runs fetch, transform and import for key. It is only called by the
// cache, once per key at a time.
func (l *Loader) load(ctx context.Context, key modcache.Key, scope loadScope) (*Module, error) {
	ctx, span := l.tracer.Start(ctx, "load "+key.String(), trace.WithAttributes(
		attribute.String("relayhook.module", key.String()),
	))
	defer span.End()
	scope.callCtx = ctx

	start := l.opts.Clock.Now()
	l.emitModule(key, StepCacheMiss, nil, nil)

	mod, err := l.loadUncached(ctx, key, scope)
	details := map[string]any{"duration": l.opts.Clock.Since(start)}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.emitModule(key, StepLoadFailure, err, details)
		return nil, err
	}
	details["transpiled"] = mod.Transpiled()
	l.emitModule(key, StepLoadSuccess, nil, details)
	return mod, nil
}

func (l *Loader) loadUncached(ctx context.Context, key modcache.Key, scope loadScope) (*Module, error) {
	t := scope.tracker
	mod := &Module{Key: key, PhaseDurations: make(map[Phase]time.Duration)}

	t.enter(PhaseFetch, map[string]any{"url": l.opts.Fetcher.URL(key.Host, key.Path)})
	start := l.opts.Clock.Now()
	source, origin, err := l.source(ctx, key, scope.hctx)
	if err != nil {
		return nil, err
	}
	mod.URL = origin
	mod.SourceLength = len(source)
	mod.PhaseDurations[PhaseFetch] = l.opts.Clock.Since(start)

	start = l.opts.Clock.Now()
	code := source
	if transpile.Detect(source, key.Path) {
		t.enter(PhaseTransform, map[string]any{"transpiled": true})
		out, err := l.opts.Adapter.Transpile(ctx, source, key.Path)
		switch {
		case err == nil:
			code = out
			mod.TranspiledLength = len(out)
			l.emitModule(key, StepTranspile, nil, map[string]any{"source_length": len(source), "transpiled_length": len(out)})
		case l.opts.LenientTranspile:
			l.opts.Logger.Warn("transpile failed, continuing with raw source", "file", key.Path, "err", err)
			l.emitModule(key, StepTranspileRaw, err, nil)
		default:
			return nil, err
		}
	} else {
		t.enter(PhaseTransform, map[string]any{"skipped": true})
	}
	mod.PhaseDurations[PhaseTransform] = l.opts.Clock.Since(start)

	t.enter(PhaseImport, nil)
	start = l.opts.Clock.Now()
	unit, err := l.opts.Executor.Prepare(code, key.Path)
	if err != nil {
		return nil, err
	}

	deps := l.prefetch(ctx, key, unit.Requires, scope.nested())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, spec := range slices.Sorted(maps.Keys(deps)) {
		if deps[spec].mod != nil {
			mod.Imports = append(mod.Imports, deps[spec].mod.Key)
		}
	}

	err = l.opts.Engine.Run(ctx, func(rt *goja.Runtime) error {
		exports, err := l.evaluate(rt, key, unit, deps, scope)
		mod.Exports = exports
		return err
	})
	if err != nil {
		return nil, err
	}
	mod.PhaseDurations[PhaseImport] = l.opts.Clock.Since(start)
	return mod, nil
}

// source returns the module body from the host loader, or from the peer.
func (l *Loader) source(ctx context.Context, key modcache.Key, hctx *hookctx.Context) (body, origin string, err error) {
	if l.opts.HostLoader != nil {
		src, err := l.opts.HostLoader.LoadSource(ctx, key.Path)
		if err == nil {
			l.emitModule(key, StepHostLoader, nil, nil)
			return src, "host:" + key.Path, nil
		}
		l.emitModule(key, StepHostLoader, err, map[string]any{"fallthrough": true})
	}

	l.emitModule(key, StepFetch, nil, map[string]any{"url": l.opts.Fetcher.URL(key.Host, key.Path)})
	src, err := l.opts.Fetcher.Fetch(ctx, key.Host, key.Path, hctx.Headers())
	if err != nil {
		return "", "", err
	}
	return src.Body, src.URL, nil
}

// prefetch loads the static imports of from in parallel so the require shim
// can serve them synchronously during evaluation. A failed import is kept
// with its error and only surfaces when the body requires it.
func (l *Loader) prefetch(ctx context.Context, from modcache.Key, specs []string, scope loadScope) map[string]prefetched {
	deps := make(map[string]prefetched, len(specs))
	var mu sync.Mutex

	var g errgroup.Group
	for _, spec := range specs {
		if l.isHostModule(spec) {
			continue
		}
		child := l.keyFor(spec, from.Path, PhaseImport)
		l.recordImport(from, child)
		g.Go(func() error {
			mod, _, err := l.loadNested(ctx, child, from, scope)
			mu.Lock()
			deps[spec] = prefetched{mod: mod, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return deps
}

// evaluate executes unit with bindings for key. Runs on the loop.
func (l *Loader) evaluate(rt *goja.Runtime, key modcache.Key, unit *runtime.Unit, deps map[string]prefetched, scope loadScope) (*goja.Object, error) {
	ctxObj := hookctx.Bind(rt, scope.hctx, rt.ToValue(l.delegate(rt, scope.root, scope)))
	runtime.Activate(rt, ctxObj)
	return l.opts.Executor.Execute(rt, unit, runtime.Bindings{
		Context:        ctxObj,
		Import:         rt.ToValue(l.delegate(rt, key, scope)),
		Require:        rt.ToValue(l.requireShim(rt, key, deps, ctxObj)),
		RequireDefault: scope.requireDefault,
	})
}

// requireShim serves prefetched static imports and host modules. A failed
// prefetch is thrown to the caller with its original error.
func (l *Loader) requireShim(rt *goja.Runtime, from modcache.Key, deps map[string]prefetched, ctxObj *goja.Object) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0).String()
		if l.isHostModule(spec) {
			return ctxObj
		}
		dep, ok := deps[spec]
		switch {
		case !ok:
			panic(rt.NewGoError(fmt.Errorf("require(%q) from %s: %w", spec, from.Path, ErrNotPrefetched)))
		case dep.err != nil:
			panic(rt.NewGoError(fmt.Errorf("require(%q) from %s: %w", spec, from.Path, dep.err)))
		}
		return dep.mod.Exports
	}
}

func (l *Loader) isHostModule(spec string) bool {
	return slices.Contains(l.opts.HostModules, spec)
}

func (l *Loader) emitModule(key modcache.Key, step string, err error, details map[string]any) {
	l.emit(Event{Phase: PhaseImport, Kind: KindModule, Key: key, Step: step, Err: err, Details: details})
}
