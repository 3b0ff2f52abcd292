// SPDX-License-Identifier: MPL-2.0

// Package loader orchestrates hook loading: resolution, caching with
// in-flight deduplication, fetching, transpiling and execution, with a
// diagnostics event for every step.
//
// A hook load walks the phases init, fetch, transform, import and exec in
// order. Nested modules reached through import() or static imports go through
// the same pipeline with their own import delegate, so relative specifiers
// always resolve against the importing module.
package loader

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/invowk/relayhook/internal/dag"
	"github.com/invowk/relayhook/internal/hookctx"
	"github.com/invowk/relayhook/internal/modcache"
	"github.com/invowk/relayhook/internal/runtime"
)

const tracerName = "github.com/invowk/relayhook/internal/loader"

type (
	// Loader loads and executes hooks from one peer.
	// It is safe for concurrent use.
	Loader struct {
		opts   Options
		cache  *modcache.Cache[*Module]
		tracer trace.Tracer

		mu      sync.Mutex
		imports *dag.Graph
	}

	// Result is the outcome of a hook execution.
	Result struct {
		// Value is the exported return value of the hook's default export.
		Value any
		// Module is the hook's record.
		Module *Module
		// Cached reports that the module came from the cache or a shared load.
		Cached bool
	}
)

// New creates a Loader and emits the options diagnostics event.
func New(opts Options) (*Loader, error) {
	if err := opts.withDefaults(); err != nil {
		return nil, err
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	l := &Loader{
		opts:    opts,
		cache:   modcache.New[*Module](modcache.Options{MaxEntries: opts.CacheMaxEntries}),
		tracer:  tp.Tracer(tracerName),
		imports: dag.New(),
	}
	l.emit(Event{Phase: PhaseOptions, Kind: KindPhase, Details: map[string]any{
		"host":              opts.Host,
		"executor":          opts.Executor.Name(),
		"injection":         string(opts.Executor.Injection()),
		"lenient_transpile": opts.LenientTranspile,
		"cache_max_entries": opts.CacheMaxEntries,
		"host_loader":       opts.HostLoader != nil,
		"host_modules":      slices.Clone(opts.HostModules),
		"default_base":      opts.Resolver.DefaultBase(),
	}})
	return l, nil
}

// Host returns the peer host modules are loaded from.
func (l *Loader) Host() string { return l.opts.Host }

// LoadAndExecuteHook loads the hook at hookPath and calls its default export
// with the execution context, awaiting a returned promise. Failures are
// wrapped in *PhaseError naming the phase they occurred in.
func (l *Loader) LoadAndExecuteHook(ctx context.Context, hookPath string, hctx *hookctx.Context) (*Result, error) {
	key := l.keyFor(hookPath, "", PhaseInit)
	ctx, span := l.tracer.Start(ctx, "hook "+key.String(), trace.WithAttributes(
		attribute.String("relayhook.host", key.Host),
		attribute.String("relayhook.path", key.Path),
	))
	defer span.End()

	t := newTracker(ctx, l.tracer, key, l.emit)
	defer t.finish()

	t.enter(PhaseInit, map[string]any{
		"path":     key.Path,
		"host":     key.Host,
		"executor": l.opts.Executor.Name(),
	})

	mod, outcome, err := l.cache.GetOrLoad(ctx, key, modcache.Key{}, func(ctx context.Context) (*Module, error) {
		return l.load(ctx, key, loadScope{root: key, hctx: hctx, tracker: t, requireDefault: true})
	})
	l.emitOutcome(key, outcome, err)
	if err != nil {
		return nil, l.fail(span, t, key, outcome, err)
	}
	cached := outcome != modcache.OutcomeLoaded
	if cached {
		t.enter(PhaseImport, map[string]any{"cached": true})
	}

	t.enter(PhaseExec, nil)
	value, err := l.exec(ctx, mod, hctx)
	if err != nil {
		return nil, l.fail(span, t, key, outcome, err)
	}
	return &Result{Value: value, Module: mod, Cached: cached}, nil
}

// LoadModule loads the module at path without executing a default export.
// Cached modules are returned without fetching.
func (l *Loader) LoadModule(ctx context.Context, path string, hctx *hookctx.Context) (*Module, error) {
	key := l.keyFor(path, "", PhaseInit)
	mod, _, err := l.loadNested(ctx, key, modcache.Key{}, loadScope{root: key, hctx: hctx})
	return mod, err
}

// ClearCache drops every cached module and the recorded import graph.
// Loads in progress are not affected.
func (l *Loader) ClearCache() {
	l.cache.Clear()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.imports = dag.New()
}

// Invalidate evicts the modules at paths and every recorded module that
// imports them, directly or transitively, so the next load sees fresh
// sources. It returns the evicted module keys.
func (l *Loader) Invalidate(paths ...string) []string {
	l.mu.Lock()
	names := make([]string, 0, len(paths))
	seen := make(map[string]bool)
	for _, p := range paths {
		root := modcache.Key{Host: l.opts.Host, Path: p}.String()
		for _, name := range append([]string{root}, l.imports.Dependents(root)...) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	for _, name := range names {
		l.imports.RemoveNode(name)
	}
	l.mu.Unlock()

	var evicted []string
	for _, name := range names {
		key := modcache.Key{Host: l.opts.Host, Path: strings.TrimPrefix(name, l.opts.Host)}
		if l.cache.Invalidate(key) {
			evicted = append(evicted, name)
		}
	}
	if len(evicted) > 0 {
		l.opts.Logger.Debug("invalidated modules", "count", len(evicted), "changed", paths)
	}
	return evicted
}

// Records returns the cached module records, most recently used first.
func (l *Loader) Records() []*Module {
	keys := l.cache.Keys()
	out := make([]*Module, 0, len(keys))
	for _, k := range keys {
		if m, ok := l.cache.Get(k); ok {
			out = append(out, m)
		}
	}
	return out
}

// LoadOrder returns the recorded modules with every module after the modules
// it imports. It fails with *dag.CycleError when dynamic imports formed a cycle.
func (l *Loader) LoadOrder() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.imports.TopologicalSort()
}

// CacheStats returns the module cache counters.
func (l *Loader) CacheStats() modcache.Stats { return l.cache.Stats() }

// exec calls the default export of mod with a freshly bound context.
func (l *Loader) exec(ctx context.Context, mod *Module, hctx *hookctx.Context) (any, error) {
	var ret goja.Value
	err := l.opts.Engine.Run(ctx, func(rt *goja.Runtime) error {
		fn, err := runtime.DefaultExport(mod.Exports, mod.Key.Path)
		if err != nil {
			return err
		}
		scope := loadScope{root: mod.Key, hctx: hctx, callCtx: context.WithoutCancel(ctx)}
		ctxObj := hookctx.Bind(rt, hctx, rt.ToValue(l.delegate(rt, mod.Key, scope)))
		runtime.Activate(rt, ctxObj)
		ret, err = fn(goja.Undefined(), ctxObj)
		if err != nil {
			return l.callError(mod, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v, err := l.opts.Engine.Await(ctx, ret)
	if err != nil {
		return nil, l.callError(mod, err)
	}
	if v == nil {
		return nil, nil
	}
	return v.Export(), nil
}

// callError turns an exception from the default export into an execution error.
func (l *Loader) callError(mod *Module, err error) error {
	ee := &runtime.ExecutionError{Filename: mod.Key.Path, Message: err.Error(), Err: err}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		ee.Message = ex.Error()
		ee.Stack = ex.String()
		ee.Err = runtime.ValueError(ex.Value())
	}
	l.opts.Logger.Error("hook execution failed", "file", mod.Key.Path, "err", ee.Message)
	return ee
}

func (l *Loader) fail(span trace.Span, t *tracker, key modcache.Key, outcome modcache.Outcome, err error) error {
	phase := t.phase()
	if outcome != modcache.OutcomeLoaded && phase != PhaseExec {
		phase = phaseOf(err, phase)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	t.fail(phase, err)
	return &PhaseError{Phase: phase, Key: key, Err: err}
}

// keyFor resolves specifier against fromPath. A degraded resolution is
// reported under phase: init for the path a call starts from, import for
// the specifiers it imports.
func (l *Loader) keyFor(specifier, fromPath string, phase Phase) modcache.Key {
	res := l.opts.Resolver.Resolve(specifier, fromPath)
	key := modcache.Key{Host: l.opts.Host, Path: res.Path}
	if res.Degraded {
		l.emit(Event{Phase: phase, Kind: KindModule, Key: key, Step: StepResolveDegraded, Details: map[string]any{
			"specifier": specifier,
			"from":      fromPath,
			"reason":    res.Reason,
		}})
	}
	return key
}

// recordImport adds the from -> to edge once, however often it is imported.
func (l *Loader) recordImport(from, to modcache.Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.imports.HasEdge(from.String(), to.String()) {
		l.imports.AddEdge(from.String(), to.String())
	}
}

// emitOutcome reports cache hits and joined loads; misses are reported by
// the load itself.
func (l *Loader) emitOutcome(key modcache.Key, outcome modcache.Outcome, err error) {
	var step string
	switch outcome {
	case modcache.OutcomeHit:
		step = StepCacheHit
	case modcache.OutcomeShared:
		step = StepCacheShared
	default:
		return
	}
	l.emit(Event{Phase: PhaseImport, Kind: KindModule, Key: key, Step: step, Err: err})
}

// emit forwards to the sink; a panicking sink never breaks a load.
func (l *Loader) emit(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.opts.Logger.Warn("diagnostics sink panicked", "recovered", r)
		}
	}()
	l.opts.Diagnostics(ev)
}
