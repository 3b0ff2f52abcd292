// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(EngineOptions{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// evaluate runs src on the loop and returns the resulting value.
func evaluate(t *testing.T, e *Engine, src string) goja.Value {
	t.Helper()
	var v goja.Value
	err := e.Run(t.Context(), func(rt *goja.Runtime) error {
		var err error
		v, err = rt.RunString(src)
		return err
	})
	if err != nil {
		t.Fatalf("evaluate %q: %v", src, err)
	}
	return v
}

func TestEngine_RunPropagatesErrors(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	boom := errors.New("boom")
	if err := e.Run(t.Context(), func(*goja.Runtime) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}

	err := e.Run(t.Context(), func(*goja.Runtime) error { panic("kaboom") })
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("expected the panic as an error, got %v", err)
	}

	// The loop survives a panicking callback.
	if v := evaluate(t, e, "1 + 1"); v.ToInteger() != 2 {
		t.Errorf("1 + 1 = %v", v)
	}
}

func TestEngine_RunAfterClose(t *testing.T) {
	t.Parallel()
	e, err := NewEngine(EngineOptions{})
	if err != nil {
		t.Fatal(err)
	}
	e.Close()
	e.Close()

	if err := e.Run(t.Context(), func(*goja.Runtime) error { return nil }); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("expected ErrEngineClosed, got %v", err)
	}
	if e.Schedule(func(*goja.Runtime) {}) {
		t.Error("Schedule should fail on a closed engine")
	}
}

func TestEngine_Await(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	tests := []struct {
		name    string
		src     string
		want    int64
		wantErr string
	}{
		{name: "plain value", src: "7", want: 7},
		{name: "resolved promise", src: "Promise.resolve(5)", want: 5},
		{name: "async function", src: "(async () => { await null; return 9 })()", want: 9},
		{name: "timer", src: "new Promise((resolve) => setTimeout(() => resolve(11), 5))", want: 11},
		{name: "rejected", src: "Promise.reject(new TypeError('bad hook'))", wantErr: "bad hook"},
		{name: "async throw", src: "(async () => { throw new Error('late') })()", wantErr: "late"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, err := e.Await(t.Context(), evaluate(t, e, tt.src))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.ToInteger() != tt.want {
				t.Errorf("got %v, want %d", v, tt.want)
			}
		})
	}
}

func TestEngine_AwaitRecoversGoErrors(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	sentinel := errors.New("fetch exploded")

	var p goja.Value
	err := e.Run(t.Context(), func(rt *goja.Runtime) error {
		promise, _, reject := rt.NewPromise()
		reject(rt.NewGoError(sentinel))
		p = rt.ToValue(promise)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Await(t.Context(), p); !errors.Is(err, sentinel) {
		t.Errorf("expected the original Go error, got %v", err)
	}
}

func TestEngine_AwaitHonoursContext(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	pending := evaluate(t, e, "new Promise(() => {})")
	ctx, cancel := contextWithTimeout(t, 20*time.Millisecond)
	defer cancel()
	if _, err := e.Await(ctx, pending); err == nil {
		t.Error("expected a context error for a promise that never settles")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEngine_ConsoleUsesLogger(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	logger := log.NewWithOptions(&out, log.Options{Level: log.DebugLevel, Prefix: "runtime"})
	e, err := NewEngine(EngineOptions{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)

	evaluate(t, e, `console.log("hello", 1); console.warn("careful"); console.debug("details")`)

	got := out.String()
	for _, want := range []string{"hello 1", "careful", "details", "runtime"} {
		if !strings.Contains(got, want) {
			t.Errorf("log output missing %q:\n%s", want, got)
		}
	}
}

func TestValueError(t *testing.T) {
	t.Parallel()
	rt := goja.New()

	if err := ValueError(goja.Undefined()); err == nil {
		t.Error("undefined should still produce an error")
	}
	if err := ValueError(rt.ToValue("plain")); err.Error() != "plain" {
		t.Errorf("string reason = %v", err)
	}
	v, _ := rt.RunString(`new RangeError("out of range")`)
	if err := ValueError(v); err.Error() != "out of range" {
		t.Errorf("error object = %v", err)
	}
}
