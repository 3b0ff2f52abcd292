// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"github.com/dop251/goja"

	"github.com/invowk/relayhook/internal/hookctx"
	"github.com/invowk/relayhook/internal/modcache"
)

// delegate returns the import delegate of the module at from: a function of
// one specifier returning a promise of the imported module's exports.
// Specifiers resolve against from, never against shared state, so concurrent
// modules cannot see each other's paths.
//
// The load runs off the loop; only settling the promise hops back onto it.
// Dynamic imports never block the importer's own load, so they do not take
// part in the cache's waits-for graph.
func (l *Loader) delegate(rt *goja.Runtime, from modcache.Key, scope loadScope) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		spec := call.Argument(0).String()
		promise, resolve, reject := rt.NewPromise()

		if l.isHostModule(spec) {
			resolve(hookctx.Bind(rt, scope.hctx, nil))
			return rt.ToValue(promise)
		}

		child := l.keyFor(spec, from.Path, PhaseImport)
		l.recordImport(from, child)

		ctx := scope.callCtx
		go func() {
			start := l.opts.Clock.Now()
			mod, _, err := l.loadNested(ctx, child, modcache.Key{}, scope.nested())
			details := map[string]any{
				"specifier": spec,
				"from":      from.Path,
				"duration":  l.opts.Clock.Since(start),
			}
			if err != nil {
				l.emitModule(child, StepDelegateFailure, err, details)
			} else {
				l.emitModule(child, StepDelegateSuccess, nil, details)
			}

			scheduled := l.opts.Engine.Schedule(func(rt *goja.Runtime) {
				if err != nil {
					reject(rt.NewGoError(err))
					return
				}
				resolve(mod.Exports)
			})
			if !scheduled {
				l.opts.Logger.Debug("import settled after engine shutdown", "specifier", spec, "from", from.Path)
			}
		}()
		return rt.ToValue(promise)
	}
}
