// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"testing"
	"testing/fstest"

	"github.com/invowk/relayhook/internal/hookctx"
	"github.com/invowk/relayhook/internal/loader"
	"github.com/invowk/relayhook/internal/resolve"
	"github.com/invowk/relayhook/internal/runtime"
	"github.com/invowk/relayhook/internal/transpile"
)

const (
	// sampleHook is a representative JSX hook with a relative import.
	sampleHook = `import { format } from "../shared/format.mjs";

export default function GetClient(ctx) {
  const rows = [1, 2, 3].map((n) => <li key={n}>{format(ctx.params.name, n)}</li>);
  return <div class="client"><ul>{rows}</ul></div>;
}
`

	// sampleShared is the module sampleHook imports.
	sampleShared = `export function format(name, n) {
  return name + " #" + n;
}
`

	// sampleTS exercises type stripping.
	sampleTS = `interface Client { id: number; name: string }

export default function describe(ctx: { params: Record<string, string> }): Client {
  const id: number = Number(ctx.params.id ?? 0);
  return { id, name: ctx.params.name as string };
}
`
)

func sampleFS() fstest.MapFS {
	return fstest.MapFS{
		"hooks/client/get-client.jsx": {Data: []byte(sampleHook)},
		"hooks/shared/format.mjs":     {Data: []byte(sampleShared)},
	}
}

func newLoader(b *testing.B, executor string) *loader.Loader {
	b.Helper()
	engine, err := runtime.NewEngine(runtime.EngineOptions{})
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}
	b.Cleanup(engine.Close)

	built := runtime.BuildRegistry(runtime.BuildRegistryOptions{Engine: engine})
	x, err := built.Registry.Get(executor)
	if err != nil {
		b.Fatalf("executor %s: %v", executor, err)
	}

	l, err := loader.New(loader.Options{
		Host:       "localhost",
		Engine:     engine,
		Executor:   x,
		HostLoader: loader.FSHostLoader{FS: sampleFS()},
	})
	if err != nil {
		b.Fatalf("loader.New failed: %v", err)
	}
	return l
}

func sampleContext() *hookctx.Context {
	return &hookctx.Context{Params: map[string]string{"name": "alice", "id": "7"}}
}

// BenchmarkResolve benchmarks specifier resolution across all kinds.
func BenchmarkResolve(b *testing.B) {
	r := resolve.New(resolve.Options{Aliases: map[string]string{"@app": "/hooks/app"}})
	specs := []string{"./b.mjs", "../shared/c.mjs", "/hooks/lib/x.js", "@app/util", "lodash", `.\win\path.mjs`}

	b.ResetTimer()
	for b.Loop() {
		for _, s := range specs {
			_ = r.Resolve(s, "/hooks/client/a.mjs")
		}
	}
}

// BenchmarkDetect benchmarks the JSX/TypeScript sniffing done on every fetched module.
func BenchmarkDetect(b *testing.B) {
	b.ResetTimer()
	for b.Loop() {
		_ = transpile.Detect(sampleHook, "/hooks/client/get-client.js")
		_ = transpile.Detect(sampleShared, "/hooks/shared/format.js")
	}
}

// BenchmarkTranspileJSX benchmarks the esbuild adapter on a JSX hook.
func BenchmarkTranspileJSX(b *testing.B) {
	adapter, err := transpile.NewESBuild(transpile.Options{})
	if err != nil {
		b.Fatalf("NewESBuild failed: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		if _, err := adapter.Transpile(b.Context(), sampleHook, "get-client.jsx"); err != nil {
			b.Fatalf("Transpile failed: %v", err)
		}
	}
}

// BenchmarkTranspileTS benchmarks type stripping.
func BenchmarkTranspileTS(b *testing.B) {
	adapter, err := transpile.NewESBuild(transpile.Options{})
	if err != nil {
		b.Fatalf("NewESBuild failed: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		if _, err := adapter.Transpile(b.Context(), sampleTS, "describe.ts"); err != nil {
			b.Fatalf("Transpile failed: %v", err)
		}
	}
}

// BenchmarkNormalize benchmarks the module-format pass.
func BenchmarkNormalize(b *testing.B) {
	b.ResetTimer()
	for b.Loop() {
		if _, err := transpile.Normalize(sampleShared, "format.mjs", ""); err != nil {
			b.Fatalf("Normalize failed: %v", err)
		}
	}
}

// BenchmarkColdLoad benchmarks a full load of a hook and its import, with
// the cache cleared before every iteration.
func BenchmarkColdLoad(b *testing.B) {
	for _, executor := range []string{runtime.ExecutorFunction, runtime.ExecutorRequire} {
		b.Run(executor, func(b *testing.B) {
			l := newLoader(b, executor)
			hctx := sampleContext()

			b.ResetTimer()
			for b.Loop() {
				l.ClearCache()
				if _, err := l.LoadAndExecuteHook(b.Context(), "/hooks/client/get-client.jsx", hctx); err != nil {
					b.Fatalf("LoadAndExecuteHook failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkCachedExecute benchmarks re-executing a hook whose module graph
// is already cached.
func BenchmarkCachedExecute(b *testing.B) {
	l := newLoader(b, runtime.ExecutorFunction)
	hctx := sampleContext()
	if _, err := l.LoadAndExecuteHook(b.Context(), "/hooks/client/get-client.jsx", hctx); err != nil {
		b.Fatalf("warm-up failed: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		res, err := l.LoadAndExecuteHook(b.Context(), "/hooks/client/get-client.jsx", hctx)
		if err != nil {
			b.Fatalf("LoadAndExecuteHook failed: %v", err)
		}
		if !res.Cached {
			b.Fatal("expected a cached module")
		}
	}
}
