// SPDX-License-Identifier: MPL-2.0

// Package modcache caches loaded modules per (host, canonical path) and
// deduplicates concurrent loads of the same module.
//
// A load in progress is represented by a shared future: every concurrent
// caller for the same key waits on that one object, so near-simultaneous
// callers converge even when their lookups interleave. Failed loads are never
// cached, which lets a later call retry cleanly.
package modcache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/invowk/relayhook/internal/dag"
)

const (
	// OutcomeHit means the value came from the completed-entry cache.
	OutcomeHit Outcome = iota
	// OutcomeShared means the caller joined a load started by another caller.
	OutcomeShared
	// OutcomeLoaded means the caller's own load function produced the value.
	OutcomeLoaded
)

// ErrImportCycle is the sentinel wrapped by ImportCycleError.
var ErrImportCycle = errors.New("import cycle")

type (
	// Key identifies a loadable unit: the peer host and the canonical path on it.
	Key struct {
		Host string
		Path string
	}

	// Outcome reports how GetOrLoad satisfied a request.
	Outcome int

	// LoadFunc produces the value for a key on a cache miss.
	LoadFunc[V any] func(ctx context.Context) (V, error)

	// ImportCycleError is returned when waiting for a key would close a cycle
	// of loads that wait on each other.
	ImportCycleError struct {
		// Cycle lists the keys involved, starting and ending with the same key.
		Cycle []Key
	}

	// Stats are cumulative counters for a Cache.
	Stats struct {
		Hits      int
		Misses    int
		Shared    int
		Failures  int
		Evictions int
	}

	// Options configures a Cache.
	Options struct {
		// MaxEntries bounds the number of completed entries. Least recently used
		// entries are evicted first. Zero means unbounded.
		MaxEntries int
	}

	// Cache holds completed values and in-flight loads.
	Cache[V any] struct {
		mu       sync.Mutex
		max      int
		entries  map[Key]*list.Element
		lru      *list.List
		inflight map[Key]*future[V]
		waits    *dag.Graph
		stats    Stats
	}

	entry[V any] struct {
		key Key
		val V
	}

	future[V any] struct {
		done chan struct{}
		val  V
		err  error
	}
)

// String returns host followed by path, e.g. "peer.example/hooks/a.js".
func (k Key) String() string { return k.Host + k.Path }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.Host == "" && k.Path == "" }

// Error implements the error interface.
func (e *ImportCycleError) Error() string {
	names := make([]string, len(e.Cycle))
	for i, k := range e.Cycle {
		names[i] = k.String()
	}
	return (&dag.CycleError{Cycle: names}).Error()
}

// Unwrap returns ErrImportCycle for errors.Is() compatibility.
func (e *ImportCycleError) Unwrap() error { return ErrImportCycle }

// New creates an empty Cache.
func New[V any](opts Options) *Cache[V] {
	return &Cache[V]{
		max:      opts.MaxEntries,
		entries:  make(map[Key]*list.Element),
		lru:      list.New(),
		inflight: make(map[Key]*future[V]),
		waits:    dag.New(),
	}
}

// GetOrLoad returns the cached value for key, joins an in-flight load of it,
// or starts load. parent names the load that is blocked on key; it may be the
// zero Key when the caller is not itself a load. Waiting honours ctx, but the
// load keeps running for the remaining waiters once started.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key, parent Key, load LoadFunc[V]) (V, Outcome, error) {
	var zero V

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		c.stats.Hits++
		val := el.Value.(*entry[V]).val
		c.mu.Unlock()
		return val, OutcomeHit, nil
	}

	if !parent.IsZero() {
		if cycle := c.waits.Path(key.String(), parent.String()); cycle != nil {
			c.mu.Unlock()
			return zero, OutcomeShared, c.cycleError(parent, cycle)
		}
		c.waits.AddEdge(parent.String(), key.String())
		defer func() {
			c.mu.Lock()
			c.waits.RemoveEdge(parent.String(), key.String())
			c.mu.Unlock()
		}()
	}

	outcome := OutcomeShared
	f, ok := c.inflight[key]
	if ok {
		c.stats.Shared++
	} else {
		c.stats.Misses++
		outcome = OutcomeLoaded
		f = &future[V]{done: make(chan struct{})}
		c.inflight[key] = f
		go c.run(context.WithoutCancel(ctx), key, f, load)
	}
	c.mu.Unlock()

	select {
	case <-f.done:
		if f.err != nil {
			return zero, outcome, f.err
		}
		return f.val, outcome, nil
	case <-ctx.Done():
		return zero, outcome, fmt.Errorf("waiting for module %s: %w", key, ctx.Err())
	}
}

// Get returns a completed value without loading.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*entry[V]).val, true
	}
	var zero V
	return zero, false
}

// Invalidate drops the completed entry for key. In-flight loads are not affected.
func (c *Cache[V]) Invalidate(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.lru.Remove(el)
	delete(c.entries, key)
	return true
}

// Clear drops every completed entry. In-flight loads still complete and are
// cached afterwards.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*list.Element)
	c.lru.Init()
}

// Len returns the number of completed entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InFlight returns the number of loads in progress.
func (c *Cache[V]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Keys returns the completed keys, most recently used first.
func (c *Cache[V]) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache[V]) run(ctx context.Context, key Key, f *future[V], load LoadFunc[V]) {
	val, err := safeLoad(ctx, load)

	c.mu.Lock()
	delete(c.inflight, key)
	if err != nil {
		c.stats.Failures++
	} else {
		c.store(key, val)
	}
	f.val, f.err = val, err
	c.mu.Unlock()

	close(f.done)
}

// store inserts a completed value. Must be called with mu held.
func (c *Cache[V]) store(key Key, val V) {
	if el, ok := c.entries[key]; ok {
		el.Value.(*entry[V]).val = val
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&entry[V]{key: key, val: val})
	for c.max > 0 && c.lru.Len() > c.max {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry[V]).key)
		c.stats.Evictions++
	}
}

func (c *Cache[V]) cycleError(parent Key, path []string) error {
	keys := make([]Key, 0, len(path)+1)
	keys = append(keys, parent)
	for _, name := range path {
		keys = append(keys, c.keyOf(name, parent))
	}
	return &ImportCycleError{Cycle: keys}
}

// keyOf recovers a Key from its graph node name. Keys in the waits-for graph
// share the host of the load that closes the cycle in every practical case;
// when they do not, the whole name is kept as the path.
func (c *Cache[V]) keyOf(name string, like Key) Key {
	if like.Host != "" && len(name) > len(like.Host) && name[:len(like.Host)] == like.Host {
		return Key{Host: like.Host, Path: name[len(like.Host):]}
	}
	return Key{Path: name}
}

// safeLoad converts a panicking load into an error so waiters are always released.
func safeLoad[V any](ctx context.Context, load LoadFunc[V]) (val V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module load panicked: %v", r)
		}
	}()
	return load(ctx)
}
