// SPDX-License-Identifier: MPL-2.0

// Package resolve maps module specifiers found in hook source code onto the
// canonical absolute paths used to fetch and cache modules from a peer.
//
// Resolution never fails. Input that cannot be classified cleanly degrades to
// a naive slash-normalized join and is flagged on the Result, so a bad path
// surfaces later as a fetch failure rather than a resolution failure.
package resolve

import (
	"path"
	"strings"
)

const (
	// DefaultRoot is the root no relative specifier may climb above.
	DefaultRoot = "/"
	// DefaultBase is the directory used for relative specifiers when the
	// requesting module's path is unknown.
	DefaultBase = "/hooks/client/"
	// DefaultModuleDir is the directory bare specifiers are resolved against.
	DefaultModuleDir = "/hooks/lib/"

	// KindRelative is a "./" or "../" specifier.
	KindRelative Kind = "relative"
	// KindAbsolute is a specifier starting with "/".
	KindAbsolute Kind = "absolute"
	// KindScoped is an "@scope/..." specifier.
	KindScoped Kind = "scoped"
	// KindBare is any other specifier, resolved against the module directory.
	KindBare Kind = "bare"
)

type (
	// Kind classifies a specifier.
	Kind string

	// Options configures a Resolver. Zero values fall back to the package defaults.
	Options struct {
		// Root bounds relative resolution.
		Root string
		// DefaultBase is used when the requesting path is unknown.
		DefaultBase string
		// ModuleDir hosts bare specifiers.
		ModuleDir string
		// Aliases maps "@scope" prefixes to absolute directories.
		Aliases map[string]string
	}

	// Result is the outcome of a resolution.
	Result struct {
		// Path is the canonical absolute path.
		Path string
		// Kind is how the specifier was classified.
		Kind Kind
		// Degraded reports that the input was ambiguous and Path is a best-effort join.
		Degraded bool
		// Reason explains a degradation.
		Reason string
	}

	// Resolver resolves specifiers. It is immutable and safe for concurrent use.
	Resolver struct {
		root      string
		base      string
		moduleDir string
		aliases   map[string]string
	}
)

// New creates a Resolver from opts.
func New(opts Options) *Resolver {
	r := &Resolver{
		root:      normalizeDir(opts.Root, DefaultRoot),
		base:      normalizeDir(opts.DefaultBase, DefaultBase),
		moduleDir: normalizeDir(opts.ModuleDir, DefaultModuleDir),
		aliases:   make(map[string]string, len(opts.Aliases)),
	}
	for scope, dir := range opts.Aliases {
		scope = strings.TrimSuffix(strings.TrimSpace(scope), "/")
		if scope == "" {
			continue
		}
		r.aliases[scope] = normalizeDir(dir, r.root)
	}
	return r
}

// Root returns the configured root directory.
func (r *Resolver) Root() string { return r.root }

// DefaultBase returns the directory used when the requesting path is unknown.
func (r *Resolver) DefaultBase() string { return r.base }

// Resolve resolves specifier relative to fromPath, the canonical path of the
// requesting module. An empty fromPath selects the default base.
func (r *Resolver) Resolve(specifier, fromPath string) Result {
	var res Result
	spec := strings.TrimSpace(specifier)

	if spec == "" {
		res.degrade("empty specifier")
		res.Kind = KindRelative
		res.Path = r.within(r.baseDir(fromPath, &res))
		return res
	}
	if strings.Contains(spec, `\`) {
		spec = strings.ReplaceAll(spec, `\`, "/")
		res.degrade("backslash separators")
	}
	if i := strings.Index(spec, "://"); i > 0 && !strings.ContainsAny(spec[:i], "/.@") {
		spec = stripSchemeAndHost(spec[i+3:])
		res.degrade("absolute URL; host ignored")
	}
	if i := strings.IndexAny(spec, "?#"); i >= 0 {
		spec = spec[:i]
		res.degrade("query or fragment dropped")
		if spec == "" {
			spec = "."
		}
	}

	switch {
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		res.Kind = KindRelative
		base := r.baseDir(fromPath, &res)
		res.Path = r.within(path.Join(base, spec))
	case strings.HasPrefix(spec, "/"):
		res.Kind = KindAbsolute
		res.Path = path.Clean(spec)
	case strings.HasPrefix(spec, "@"):
		res.Kind = KindScoped
		scope, rest, _ := strings.Cut(spec, "/")
		if dir, ok := r.aliases[scope]; ok {
			res.Path = path.Join(dir, rest)
		} else {
			res.Path = path.Join(r.root, spec)
		}
	default:
		res.Kind = KindBare
		res.Path = path.Join(r.moduleDir, spec)
	}

	return res
}

// baseDir returns the directory relative specifiers resolve against.
func (r *Resolver) baseDir(fromPath string, res *Result) string {
	from := strings.TrimSpace(fromPath)
	if from == "" {
		return r.base
	}
	if !strings.HasPrefix(from, "/") {
		res.degrade("requesting path is not absolute")
		return r.base
	}
	if strings.HasSuffix(from, "/") {
		return path.Clean(from)
	}
	return path.Dir(from)
}

// within clamps an absolute, cleaned path so it never leaves the root.
func (r *Resolver) within(p string) string {
	p = path.Clean("/" + p)
	if r.root == "/" {
		return p
	}
	if p == r.root || strings.HasPrefix(p, r.root+"/") {
		return p
	}
	// The relative walk climbed out of the root: rebase what is left onto it.
	return path.Join(r.root, p)
}

func (res *Result) degrade(reason string) {
	if res.Degraded {
		res.Reason += "; " + reason
		return
	}
	res.Degraded = true
	res.Reason = reason
}

func stripSchemeAndHost(rest string) string {
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[i:]
	}
	return "/"
}

func normalizeDir(dir, fallback string) string {
	dir = strings.TrimSpace(strings.ReplaceAll(dir, `\`, "/"))
	if dir == "" {
		dir = fallback
	}
	return path.Clean("/" + dir)
}
