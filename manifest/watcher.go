package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/deep-rent/locus/backoff"
	"github.com/deep-rent/locus/locator"
	"github.com/deep-rent/locus/log"
	"github.com/deep-rent/locus/token"
)

const (
	// DefaultDebounce is the default quiet period before a reload.
	DefaultDebounce = 250 * time.Millisecond
	// DefaultRetries is the default number of retries after a failed reload.
	DefaultRetries = 3
)

// Watcher reloads manifests whenever one of their files changes and
// publishes the rebuilt snapshot to a locator.Store. A failed reload keeps
// the previously published snapshot.
//
// All reloads share one token.Hierarchy, so tokens keep their identity across
// reloads. Changing the supertypes of an existing type is therefore rejected
// until the process restarts.
type Watcher struct {
	paths    []string
	store    *locator.Store
	types    *token.Hierarchy
	debounce time.Duration
	log      *slog.Logger
	regOpts  []locator.Option
	onReload func(*locator.Registry)
	retries  int
	backoff  backoff.Strategy
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period that must pass after the last file
// event before a reload starts. Non-positive values are ignored.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger used to report reloads. Nil is ignored.
func WithLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) {
		if logger != nil {
			w.log = logger
		}
	}
}

// WithRetry makes the watcher retry a failed reload up to n times, waiting
// between attempts as s dictates. A file event restarts the count. Use n = 0
// to disable retries.
func WithRetry(n int, s backoff.Strategy) WatchOption {
	return func(w *Watcher) {
		w.retries = max(0, n)
		if s != nil {
			w.backoff = s
		}
	}
}

// WithRegistryOptions sets the options used for every rebuilt Registry.
func WithRegistryOptions(opts ...locator.Option) WatchOption {
	return func(w *Watcher) {
		w.regOpts = opts
	}
}

// OnReload registers a callback invoked after each successful reload with
// the newly published snapshot.
func OnReload(fn func(*locator.Registry)) WatchOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher creates a Watcher for the manifests at paths.
func NewWatcher(
	store *locator.Store,
	types *token.Hierarchy,
	paths []string,
	opts ...WatchOption,
) *Watcher {
	w := &Watcher{
		paths:    paths,
		store:    store,
		types:    types,
		debounce: DefaultDebounce,
		log:      slog.Default(),
		retries:  DefaultRetries,
		backoff:  backoff.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reload loads all manifests and publishes the result.
func (w *Watcher) Reload(ctx context.Context) error {
	m, err := LoadAll(ctx, w.paths...)
	if err != nil {
		return err
	}
	r, err := m.Build(w.types, w.regOpts...)
	if err != nil {
		return err
	}
	w.store.Swap(r)
	w.log.Info("Manifests loaded", log.KeyManifest, m.Source, "bindings", r.Len())
	if w.onReload != nil {
		w.onReload(r)
	}
	return nil
}

// Run performs an initial load and then reloads on every change until ctx
// is canceled. Only the initial load is fatal.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Reload(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	// Watch directories rather than files: editors often replace files.
	files := make(map[string]bool, len(w.paths))
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	failures := 0

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if abs, err := filepath.Abs(event.Name); err != nil || !files[abs] {
				continue
			}
			w.log.Debug("Manifest changed", log.KeyManifest, event.Name)
			failures = 0
			w.backoff.Reset()
			timer.Reset(w.debounce)

		case <-timer.C:
			err := w.Reload(ctx)
			if err == nil {
				failures = 0
				w.backoff.Reset()
				continue
			}
			if failures < w.retries {
				failures++
				delay := w.backoff.Next()
				w.log.Warn("Reload failed, retrying",
					log.KeyError, err, "attempt", failures, "delay", delay)
				timer.Reset(delay)
				continue
			}
			w.log.Warn("Reload failed, keeping previous bindings", log.KeyError, err)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", log.KeyError, err)
		}
	}
}
