package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/config"
	"git.home.luguber.info/inful/sassc/internal/discovery"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/logfields"
	"git.home.luguber.info/inful/sassc/internal/metrics"
	"git.home.luguber.info/inful/sassc/internal/paths"
)

// Entry describes one active watch.
type Entry struct {
	ID         string
	ConfigPath string
	Root       string
	Project    config.Project
	StartedAt  time.Time

	sub Subscription
	ctx context.Context
}

// SourceLister lists candidate source files below a project root.
type SourceLister func(ctx context.Context, root string) ([]string, error)

// Registry owns the active watches.
type Registry struct {
	compiler   *compile.ProjectCompiler
	subscriber Subscriber
	sources    SourceLister
	recorder   metrics.Recorder
	logger     *slog.Logger

	// opMu serializes Start, Destroy and Close. mu guards entries and order
	// so List never waits for a compile pass.
	opMu    sync.Mutex
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// Option configures a Registry.
type Option func(*Registry)

func WithSourceLister(l SourceLister) Option { return func(r *Registry) { r.sources = l } }
func WithRecorder(rec metrics.Recorder) Option { return func(r *Registry) { r.recorder = rec } }
func WithLogger(l *slog.Logger) Option         { return func(r *Registry) { r.logger = l } }

// NewRegistry creates an empty registry compiling through compiler and
// receiving saves from subscriber.
func NewRegistry(compiler *compile.ProjectCompiler, subscriber Subscriber, opts ...Option) *Registry {
	r := &Registry{
		compiler:   compiler,
		subscriber: subscriber,
		sources:    discovery.FindSources,
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
		entries:    make(map[string]*Entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start begins watching the project governed by configPath. It returns false
// without doing anything when the path is already watched. Otherwise every
// source under the project root is compiled once before the subscription is
// installed; if subscribing fails nothing is registered.
func (r *Registry) Start(ctx context.Context, configPath string, project config.Project) (bool, error) {
	key, err := filepath.Abs(configPath)
	if err != nil {
		return false, ferrors.FileSystemError("failed to resolve configuration path").WithCause(err).Build()
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	if r.Has(key) {
		r.logger.Info("Already watching", logfields.ConfigPath(key))
		return false, nil
	}

	entry := &Entry{
		ID:         uuid.NewString(),
		ConfigPath: key,
		Root:       config.ProjectRoot(key),
		Project:    project,
		StartedAt:  time.Now(),
		ctx:        context.WithoutCancel(ctx),
	}

	files, err := r.sources(ctx, entry.Root)
	if err != nil {
		return false, ferrors.WatchError("failed to list project sources").
			WithCause(err).
			WithContext("config", key).
			Build()
	}
	r.compiler.CompileProject(entry.ctx, files, project, entry.Root,
		compile.WithSaveError(),
		compile.WithTrigger(compile.TriggerInitial),
		compile.WithRunID(entry.ID))

	sub, err := r.subscriber.Subscribe(entry.Root, func(path string) { r.onSave(entry, path) })
	if err != nil {
		return false, ferrors.WatchError("failed to subscribe to file saves").
			WithCause(err).
			WithContext("config", key).
			Build()
	}
	entry.sub = sub

	r.mu.Lock()
	r.entries[key] = entry
	r.order = append(r.order, key)
	n := len(r.entries)
	r.mu.Unlock()

	r.recorder.SetActiveWatches(n)
	r.logger.Info("Watch started", logfields.ConfigPath(key), logfields.Root(entry.Root), logfields.WatchID(entry.ID))
	return true, nil
}

// Destroy stops the watch for configPath. It reports whether a watch existed.
func (r *Registry) Destroy(configPath string) bool {
	key, err := filepath.Abs(configPath)
	if err != nil {
		return false
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	ok, _ := r.destroyLocked(key)
	return ok
}

// destroyLocked requires opMu.
func (r *Registry) destroyLocked(key string) (bool, error) {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
		for i, k := range r.order {
			if k == key {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
	n := len(r.entries)
	r.mu.Unlock()

	if !ok {
		return false, nil
	}
	err := entry.sub.Close()
	if err != nil {
		r.logger.Warn("Closing subscription failed", logfields.ConfigPath(key), logfields.Error(err))
	}
	r.recorder.SetActiveWatches(n)
	r.logger.Info("Watch destroyed", logfields.ConfigPath(key), logfields.WatchID(entry.ID))
	return true, err
}

// Close destroys every watch. It is the shutdown path.
func (r *Registry) Close() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	var errs []error
	for _, key := range r.List() {
		if _, err := r.destroyLocked(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Has reports whether configPath is watched.
func (r *Registry) Has(configPath string) bool {
	key, err := filepath.Abs(configPath)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// List returns the watched configuration paths in the order they were started.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Get returns a snapshot of the watch for configPath.
func (r *Registry) Get(configPath string) (Entry, bool) {
	key, err := filepath.Abs(configPath)
	if err != nil {
		return Entry{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return Entry{}, false
	}
	cp := *e
	cp.sub, cp.ctx = nil, nil
	return cp, true
}

// Entries returns a snapshot of the active watches in start order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, k := range r.order {
		e := *r.entries[k]
		e.sub, e.ctx = nil, nil
		out = append(out, e)
	}
	return out
}

// acceptSave reports whether a save of path under root should recompile it.
func acceptSave(root, path string) bool {
	return paths.IsSubDirOf(path, root) && paths.IsSource(path) && !paths.IsPartial(path)
}

func (r *Registry) onSave(entry *Entry, path string) {
	if !acceptSave(entry.Root, path) {
		r.recorder.IncWatchEvent(false)
		return
	}
	r.recorder.IncWatchEvent(true)

	err := r.compiler.CompileAndReport(entry.ctx, entry.Root, path, entry.Project,
		compile.WithSaveError(),
		compile.WithTrigger(compile.TriggerSave),
		compile.WithRunID(entry.ID))
	if err != nil {
		r.logger.Warn("Compile failed", logfields.File(path), logfields.WatchID(entry.ID), logfields.Error(err))
		return
	}
	r.logger.Info("Compiled", logfields.File(path), logfields.WatchID(entry.ID))
}
