// SPDX-License-Identifier: MPL-2.0

// Package hookctx defines the execution context handed to hooks and its
// binding into the JavaScript engine.
//
// The caller owns a Context; binding it produces a fresh engine object per
// hook execution and never mutates the Go value.
package hookctx

import (
	"fmt"
	"maps"
	"strings"
)

// Fragment is the element type produced by JSX fragments under the default
// render primitive.
const Fragment = "#fragment"

type (
	// RenderFunc is a render primitive. typ is an intrinsic element name or
	// Fragment; component functions are expanded before it is called.
	RenderFunc func(typ string, props map[string]any, children []any) any

	// Helpers are host capabilities exposed to hooks as ctx.helpers.
	Helpers struct {
		// Navigate asks the host to move to another location.
		Navigate func(to string)
		// BuildPeerURL maps a path to an address on the current peer.
		BuildPeerURL func(path string) string
		// SetBranch switches the repository branch. Optional.
		SetBranch func(branch string)
		// BuildRepoHeaders returns headers sent with every module fetch. Optional.
		BuildRepoHeaders func() map[string]string
	}

	// Context is the capability surface a hook receives as its only argument.
	Context struct {
		// Render is the render primitive; nil selects DefaultRender.
		Render RenderFunc
		// Layout is an optional layout component. It may be a Go RenderFunc-style
		// component (func(props map[string]any) any) or nil for the default.
		Layout func(props map[string]any) any
		// Params are the request parameters.
		Params  map[string]string
		Helpers Helpers
	}

	// Element is a rendered node produced by DefaultRender.
	Element struct {
		Type     string         `json:"type"`
		Props    map[string]any `json:"props"`
		Children []any          `json:"children"`
	}
)

// DefaultRender builds an Element.
func DefaultRender(typ string, props map[string]any, children []any) any {
	return &Element{Type: typ, Props: props, Children: children}
}

// DefaultLayout wraps its children in a "layout" element carrying the props.
func DefaultLayout(props map[string]any) any {
	rest := maps.Clone(props)
	children, _ := rest["children"].([]any)
	delete(rest, "children")
	return &Element{Type: "layout", Props: rest, Children: children}
}

// Headers returns the repository headers from BuildRepoHeaders, or nil.
func (c *Context) Headers() map[string]string {
	if c == nil || c.Helpers.BuildRepoHeaders == nil {
		return nil
	}
	return c.Helpers.BuildRepoHeaders()
}

// String renders the element tree in a compact markup form.
func (e *Element) String() string {
	var sb strings.Builder
	e.write(&sb)
	return sb.String()
}

func (e *Element) write(sb *strings.Builder) {
	sb.WriteString("<")
	sb.WriteString(e.Type)
	for _, k := range sortedKeys(e.Props) {
		fmt.Fprintf(sb, " %s=%q", k, fmt.Sprint(e.Props[k]))
	}
	if len(e.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteString(">")
	for _, child := range e.Children {
		if el, ok := child.(*Element); ok {
			el.write(sb)
			continue
		}
		fmt.Fprint(sb, child)
	}
	sb.WriteString("</")
	sb.WriteString(e.Type)
	sb.WriteString(">")
}
