// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/invowk/relayhook/internal/modcache"
)

// Phases of a hook load, in order. PhaseOptions is only emitted once, when a
// Loader is constructed.
const (
	PhaseInit      Phase = "init"
	PhaseOptions   Phase = "options"
	PhaseFetch     Phase = "fetch"
	PhaseTransform Phase = "transform"
	PhaseImport    Phase = "import"
	PhaseExec      Phase = "exec"
)

// Event kinds.
const (
	// KindPhase events are phase transitions of a LoadAndExecuteHook call.
	KindPhase EventKind = "phase"
	// KindModule events are cache, delegate and load steps of individual modules.
	KindModule EventKind = "module"
)

// Module event steps.
const (
	StepCacheHit        = "cache-hit"
	StepCacheMiss       = "cache-miss"
	StepCacheShared     = "cache-shared"
	StepResolveDegraded = "resolve-degraded"
	StepHostLoader      = "host-loader"
	StepFetch           = "fetch"
	StepTranspile       = "transpile"
	StepTranspileRaw    = "transpile-lenient"
	StepLoadSuccess     = "load-success"
	StepLoadFailure     = "load-failure"
	StepDelegateSuccess = "delegate-success"
	StepDelegateFailure = "delegate-failure"
)

var phaseOrder = []Phase{PhaseInit, PhaseFetch, PhaseTransform, PhaseImport, PhaseExec}

type (
	// Phase is a step of the hook loading state machine.
	Phase string

	// EventKind separates phase transitions from per-module steps.
	EventKind string

	// Event is a diagnostics record. Events are values; sinks may keep them.
	Event struct {
		Phase Phase
		Kind  EventKind
		// Key is the module the event is about. Zero for options events.
		Key modcache.Key
		// Step names the module step for KindModule events.
		Step string
		// Err is set on failures.
		Err     error
		Details map[string]any
	}

	// Sink receives diagnostics events. It is called synchronously from
	// whichever goroutine produced the event and must not block.
	Sink func(Event)

	// tracker drives the per-call phase state machine. Phases are entered in
	// order and each exactly once; entering a later phase first enters the
	// skipped ones as cached.
	tracker struct {
		mu      sync.Mutex
		emit    func(Event)
		tracer  trace.Tracer
		ctx     context.Context
		key     modcache.Key
		current int
		span    trace.Span
		done    bool
	}
)

func newTracker(ctx context.Context, tracer trace.Tracer, key modcache.Key, emit func(Event)) *tracker {
	return &tracker{ctx: ctx, tracer: tracer, key: key, emit: emit, current: -1}
}

// enter moves to phase p. Entering the current or an earlier phase is a no-op.
func (t *tracker) enter(p Phase, details map[string]any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}

	target := phaseIndex(p)
	for t.current < target {
		t.current++
		d := map[string]any{"cached": true}
		if t.current == target {
			d = details
		}
		t.startSpan(phaseOrder[t.current])
		t.emit(Event{Phase: phaseOrder[t.current], Kind: KindPhase, Key: t.key, Details: d})
	}
}

// phase returns the phase currently entered.
func (t *tracker) phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current < 0 {
		return PhaseInit
	}
	return phaseOrder[t.current]
}

// fail records err against the current phase and ends tracing.
func (t *tracker) fail(p Phase, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.span != nil {
		t.span.RecordError(err)
		t.span.SetStatus(codes.Error, err.Error())
	}
	t.emit(Event{Phase: p, Kind: KindPhase, Key: t.key, Err: err})
	t.endSpan()
	t.done = true
}

// finish ends tracing; later transitions from a load still running for other
// callers are dropped.
func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endSpan()
	t.done = true
}

// startSpan must be called with mu held.
func (t *tracker) startSpan(p Phase) {
	t.endSpan()
	_, t.span = t.tracer.Start(t.ctx, "phase "+string(p),
		trace.WithAttributes(
			attribute.String("relayhook.phase", string(p)),
			attribute.String("relayhook.module", t.key.String()),
		),
	)
}

func (t *tracker) endSpan() {
	if t.span != nil {
		t.span.End()
		t.span = nil
	}
}

func phaseIndex(p Phase) int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}
