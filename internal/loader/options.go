// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/invowk/relayhook/internal/fetch"
	"github.com/invowk/relayhook/internal/resolve"
	"github.com/invowk/relayhook/internal/runtime"
	"github.com/invowk/relayhook/internal/transpile"
)

// DefaultHostModule is the specifier hooks import the render primitives from.
// It is served from the execution context without fetching.
const DefaultHostModule = "@relay/hook-runtime"

var (
	// ErrNoHost is returned when Options.Host is empty.
	ErrNoHost = errors.New("peer host is required")
	// ErrNoEngine is returned when Options.Engine is nil.
	ErrNoEngine = errors.New("engine is required")
)

type (
	// Fetcher retrieves module sources from a peer. *fetch.Client implements it.
	Fetcher interface {
		Fetch(ctx context.Context, host, canonicalPath string, headers map[string]string) (*fetch.Source, error)
		URL(host, canonicalPath string) string
	}

	// HostLoader is an embedder-supplied source of modules tried before the
	// network. Any error makes the loader fall through to fetching.
	HostLoader interface {
		LoadSource(ctx context.Context, canonicalPath string) (string, error)
	}

	// FSHostLoader serves modules from a file system, keyed by canonical path.
	FSHostLoader struct {
		FS fs.FS
	}

	// Options configures a Loader.
	Options struct {
		// Host is the peer modules are fetched from.
		Host string
		// Engine runs module code. Required.
		Engine *runtime.Engine
		// Executor evaluates modules. Nil selects the function executor.
		Executor runtime.Executor
		// Fetcher defaults to a plain fetch.Client.
		Fetcher Fetcher
		// Resolver defaults to resolve.New with default options.
		Resolver *resolve.Resolver
		// Adapter defaults to the esbuild adapter with default options.
		Adapter transpile.Adapter
		// HostLoader, when set, is tried before fetching.
		HostLoader HostLoader
		// HostModules are specifiers served from the execution context object.
		// Nil selects DefaultHostModule; an empty non-nil slice disables them.
		HostModules []string
		// LenientTranspile continues with the raw source when transpiling fails.
		LenientTranspile bool
		// CacheMaxEntries bounds the module cache; zero is unbounded.
		CacheMaxEntries int
		// Diagnostics receives events. Nil discards them.
		Diagnostics Sink
		Logger      *log.Logger
		Clock       runtime.Clock
		// TracerProvider defaults to the global provider.
		TracerProvider trace.TracerProvider
	}
)

// LoadSource reads canonicalPath from the file system.
func (h FSHostLoader) LoadSource(_ context.Context, canonicalPath string) (string, error) {
	data, err := fs.ReadFile(h.FS, strings.TrimPrefix(canonicalPath, "/"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (o *Options) withDefaults() error {
	if o.Host == "" {
		return ErrNoHost
	}
	if o.Engine == nil {
		return ErrNoEngine
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.Executor == nil {
		o.Executor = runtime.NewFunctionExecutor("", o.Logger)
	}
	if o.Fetcher == nil {
		o.Fetcher = fetch.New(fetch.Options{})
	}
	if o.Resolver == nil {
		o.Resolver = resolve.New(resolve.Options{})
	}
	if o.Adapter == nil {
		a, err := transpile.NewESBuild(transpile.Options{})
		if err != nil {
			return err
		}
		o.Adapter = a
	}
	if o.HostModules == nil {
		o.HostModules = []string{DefaultHostModule}
	}
	if o.Diagnostics == nil {
		o.Diagnostics = func(Event) {}
	}
	if o.Clock == nil {
		o.Clock = runtime.RealClock{}
	}
	return nil
}
