// SPDX-License-Identifier: MPL-2.0

package hookctx

import (
	"maps"
	"slices"

	"github.com/dop251/goja"
)

// Bind builds the engine object hooks see as ctx. loadModule is installed as
// ctx.helpers.loadModule; it is supplied by the loader because it depends on
// the module being executed. Must be called on the engine's goroutine.
func Bind(rt *goja.Runtime, c *Context, loadModule goja.Value) *goja.Object {
	if c == nil {
		c = &Context{}
	}
	render := c.Render
	if render == nil {
		render = DefaultRender
	}
	layout := c.Layout
	if layout == nil {
		layout = DefaultLayout
	}

	h := createElement(rt, render)

	obj := rt.NewObject()
	_ = obj.Set("h", h)
	_ = obj.Set("createElement", h)
	_ = obj.Set("Fragment", Fragment)
	_ = obj.Set("Layout", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(layout(exportProps(call.Argument(0))))
	})

	params := rt.NewObject()
	for k, v := range c.Params {
		_ = params.Set(k, v)
	}
	_ = obj.Set("params", params)

	helpers := rt.NewObject()
	_ = helpers.Set("navigate", func(to string) {
		if c.Helpers.Navigate != nil {
			c.Helpers.Navigate(to)
		}
	})
	_ = helpers.Set("buildPeerUrl", func(p string) string {
		if c.Helpers.BuildPeerURL != nil {
			return c.Helpers.BuildPeerURL(p)
		}
		return p
	})
	if loadModule != nil {
		_ = helpers.Set("loadModule", loadModule)
	}
	if c.Helpers.SetBranch != nil {
		_ = helpers.Set("setBranch", c.Helpers.SetBranch)
	}
	if c.Helpers.BuildRepoHeaders != nil {
		_ = helpers.Set("buildRepoHeaders", func() map[string]any {
			out := make(map[string]any)
			for k, v := range c.Helpers.BuildRepoHeaders() {
				out[k] = v
			}
			return out
		})
	}
	_ = obj.Set("helpers", helpers)

	return obj
}

// createElement returns the JS render primitive h(type, props, ...children).
// Function components are called immediately with props.children set, so the
// result is a tree of intrinsic elements.
func createElement(rt *goja.Runtime, render RenderFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0)
		children := flattenChildren(call.Arguments[min(2, len(call.Arguments)):])

		if component, ok := goja.AssertFunction(typ); ok {
			props := rt.NewObject()
			if p, ok := call.Argument(1).(*goja.Object); ok {
				for _, k := range p.Keys() {
					_ = props.Set(k, p.Get(k))
				}
			}
			items := make([]any, len(children))
			for i, child := range children {
				items[i] = child
			}
			_ = props.Set("children", rt.NewArray(items...))
			out, err := component(goja.Undefined(), props)
			if err != nil {
				panic(err)
			}
			return out
		}

		exported := make([]any, 0, len(children))
		for _, child := range children {
			exported = append(exported, child.Export())
		}
		return rt.ToValue(render(typ.String(), exportProps(call.Argument(1)), exported))
	}
}

func exportProps(v goja.Value) map[string]any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return map[string]any{}
	}
	if m, ok := v.Export().(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// flattenChildren drops null, undefined and booleans and flattens arrays.
func flattenChildren(args []goja.Value) []goja.Value {
	var out []goja.Value
	for _, arg := range args {
		switch {
		case arg == nil, goja.IsUndefined(arg), goja.IsNull(arg):
			continue
		}
		if _, isBool := arg.Export().(bool); isBool {
			continue
		}
		if obj, ok := arg.(*goja.Object); ok && obj.ClassName() == "Array" {
			var items []goja.Value
			for _, k := range obj.Keys() {
				items = append(items, obj.Get(k))
			}
			out = append(out, flattenChildren(items)...)
			continue
		}
		out = append(out, arg)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
