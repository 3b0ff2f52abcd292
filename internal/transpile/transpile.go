// SPDX-License-Identifier: MPL-2.0

// Package transpile turns fetched hook sources into code the engine can run.
//
// Two passes exist. The Adapter lowers TypeScript and JSX to plain ES modules
// and is only invoked when Detect reports such syntax. Normalize then rewrites
// any ES module into the CommonJS shape both executors expect, with dynamic
// import() calls redirected to the per-module import delegate.
package transpile

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	// DefaultTarget is the language level emitted for the engine.
	DefaultTarget = "es2017"
	// DefaultJSXFactory is the render primitive JSX elements compile to.
	DefaultJSXFactory = "h"
	// DefaultJSXFragment is the fragment component JSX fragments compile to.
	DefaultJSXFragment = "Fragment"
)

var (
	// ErrTranspile is the sentinel wrapped by TranspileError.
	ErrTranspile = errors.New("transpile failed")

	// ErrUnknownTarget is returned for a target name esbuild does not know.
	ErrUnknownTarget = errors.New("unknown transpile target")

	targets = map[string]api.Target{
		"es2015": api.ES2015,
		"es2016": api.ES2016,
		"es2017": api.ES2017,
		"es2018": api.ES2018,
		"es2019": api.ES2019,
		"es2020": api.ES2020,
		"es2021": api.ES2021,
		"es2022": api.ES2022,
		"esnext": api.ESNext,
	}
)

type (
	// Adapter converts TypeScript/JSX source into plain JavaScript.
	// Implementations must be safe for concurrent use and idempotent for the
	// same input.
	Adapter interface {
		Transpile(ctx context.Context, source, filename string) (string, error)
	}

	// Options configures the esbuild-backed adapter.
	Options struct {
		// Target is the emitted language level (e.g. "es2017"). Empty means DefaultTarget.
		Target string
		// JSXFactory is the function JSX elements are compiled to.
		JSXFactory string
		// JSXFragment is the component JSX fragments are compiled to.
		JSXFragment string
	}

	// ESBuild is the default Adapter, backed by esbuild's transform API.
	ESBuild struct {
		target      api.Target
		jsxFactory  string
		jsxFragment string
	}

	// TranspileError reports source the adapter or the module pass rejected.
	TranspileError struct {
		Filename string
		// Messages are formatted esbuild diagnostics, one per error.
		Messages []string
		Err      error
	}
)

// Error implements the error interface.
func (e *TranspileError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("transpile %s: %v", e.Filename, e.Err)
	}
	return fmt.Sprintf("transpile %s: %s", e.Filename, strings.Join(e.Messages, "; "))
}

// Unwrap returns ErrTranspile for errors.Is() compatibility.
func (e *TranspileError) Unwrap() error { return e.Err }

// NewESBuild creates an esbuild adapter. Zero-valued options take the defaults.
func NewESBuild(opts Options) (*ESBuild, error) {
	target, err := ParseTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	a := &ESBuild{
		target:      target,
		jsxFactory:  opts.JSXFactory,
		jsxFragment: opts.JSXFragment,
	}
	if a.jsxFactory == "" {
		a.jsxFactory = DefaultJSXFactory
	}
	if a.jsxFragment == "" {
		a.jsxFragment = DefaultJSXFragment
	}
	return a, nil
}

// ParseTarget maps a target name such as "es2017" to its esbuild value.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		name = DefaultTarget
	}
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

// Transpile lowers TypeScript and JSX in source to ES module JavaScript.
// The esbuild loader is picked from the file extension, falling back to
// content sniffing for extensionless or .js files.
func (a *ESBuild) Transpile(ctx context.Context, source, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:      loaderFor(source, filename),
		Target:      a.target,
		Format:      api.FormatESModule,
		JSX:         api.JSXTransform,
		JSXFactory:  a.jsxFactory,
		JSXFragment: a.jsxFragment,
		Sourcefile:  filename,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", newTranspileError(filename, result.Errors)
	}
	return string(result.Code), nil
}

func loaderFor(source, filename string) api.Loader {
	switch strings.ToLower(path.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	}
	if looksTypeScript(source) {
		return api.LoaderTSX
	}
	return api.LoaderJSX
}

func newTranspileError(filename string, msgs []api.Message) *TranspileError {
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		loc := ""
		if msg.Location != nil {
			loc = fmt.Sprintf(" at line %d, column %d", msg.Location.Line, msg.Location.Column)
		}
		lines = append(lines, fmt.Sprintf("syntax error%s: %s", loc, msg.Text))
	}
	return &TranspileError{Filename: filename, Messages: lines, Err: ErrTranspile}
}
