// SPDX-License-Identifier: MPL-2.0

// Package watch reports changes to hook sources in a local directory.
//
// A Watcher monitors a directory tree, filters events by doublestar globs,
// and calls OnChange once per quiet period with the canonical module paths
// of every file that changed, so a loader can invalidate exactly those
// modules before re-running a hook.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before OnChange
// fires. Editors that write a temp file and rename it produce several events
// for one save.
const DefaultDebounce = 300 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

var (
	// defaultPatterns select module sources.
	defaultPatterns = []string{"**/*.{js,mjs,cjs,jsx,ts,tsx,mts,cts}"}

	// defaultIgnores are never watched: VCS metadata, dependency caches and
	// editor swap files.
	defaultIgnores = []string{
		"**/.git/**",
		"**/node_modules/**",
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// Change is one modified file.
	Change struct {
		// File is the path relative to the watched directory, with forward slashes.
		File string
		// ModulePath is the canonical module path the file is served under.
		ModulePath string
	}

	// Config holds the parameters for a Watcher.
	Config struct {
		// Dir is the directory to watch. Empty means the working directory.
		Dir string
		// MountPath is the canonical path Dir is served under. Empty means "/".
		MountPath string
		// Patterns select files that trigger OnChange. Empty selects JavaScript
		// and TypeScript sources.
		Patterns []string
		// Ignore adds patterns to the built-in ignores.
		Ignore []string
		// Debounce defaults to DefaultDebounce.
		Debounce time.Duration
		// OnChange receives the changes of one quiet period, sorted by path.
		// Calls never overlap; changes arriving during a call are delivered
		// by the next one.
		OnChange func(ctx context.Context, changes []Change) error
		Logger   *log.Logger
	}

	// Watcher monitors a directory tree. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		mount    string
		started  atomic.Bool
	}
)

// New validates cfg and registers every non-ignored directory under Dir.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.Dir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve directory: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	// Invalid globs fail here instead of silently never matching.
	if err := validatePatterns(patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	mount := cfg.MountPath
	if mount == "" {
		mount = "/"
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: patterns,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
		mount:    path.Clean("/" + mount),
	}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string { return w.baseDir }

// Run processes events until ctx is canceled. It returns nil on cancellation
// and an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire runs on the timer goroutine. If a previous OnChange is still
	// running it re-arms the timer so the pending set is not lost.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, deferring changes")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		files := make([]string, 0, len(pending))
		for f := range pending {
			files = append(files, f)
		}
		clear(pending)
		mu.Unlock()
		if len(files) == 0 {
			return
		}
		slices.Sort(files)

		changes := make([]Change, len(files))
		for i, f := range files {
			changes[i] = Change{File: f, ModulePath: path.Join(w.mount, f)}
		}
		w.logger.Info("sources changed", "count", len(changes), "first", changes[0].ModulePath)
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changes); err != nil {
				w.logger.Error("change handler failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			// New directories extend the recursive watch.
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name, rel)
			}
			if w.isIgnored(rel) || !w.matches(rel) {
				continue
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// addDirectories registers every non-ignored directory under the base.
// Inaccessible directories are skipped with a warning.
func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("skipping inaccessible path", "path", p, "err", walkErr)
			return nil //nolint:nilerr // keep watching the rest of the tree
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.baseDir, p)
		if err != nil {
			return nil //nolint:nilerr // outside the base
		}
		if w.isIgnoredDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk directory tree: %w", err)
	}
	return nil
}

func (w *Watcher) maybeAddDir(p, rel string) {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() || w.isIgnoredDir(rel) {
		return
	}
	if err := w.fsw.Add(p); err != nil {
		w.logger.Warn("add new directory", "path", p, "err", err)
	}
}

func (w *Watcher) isIgnoredDir(rel string) bool {
	return w.isIgnored(rel) || w.isIgnored(rel+"/")
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
