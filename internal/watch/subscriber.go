package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sassc/internal/logfields"
)

// Subscription is a live save-event stream. After Close returns no further
// callbacks run. Close must not be called from inside a callback.
type Subscription interface {
	Close() error
}

// Subscriber opens save-event streams for a directory tree.
type Subscriber interface {
	Subscribe(root string, onSave func(path string)) (Subscription, error)
}

// FSNotifySubscriber delivers saves observed through fsnotify. Bursts of
// events for the same file within Debounce collapse into one callback.
type FSNotifySubscriber struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

func NewFSNotifySubscriber(debounce time.Duration, logger *slog.Logger) *FSNotifySubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSNotifySubscriber{Debounce: debounce, Logger: logger}
}

// Subscribe watches root and every directory below it, including directories
// created later.
func (s *FSNotifySubscriber) Subscribe(root string, onSave func(path string)) (Subscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := w.Add(root); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}

	sub := &fsSubscription{
		watcher:  w,
		onSave:   onSave,
		debounce: s.Debounce,
		logger:   s.Logger,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	sub.addDirsRecursive(root)
	go sub.loop()
	return sub, nil
}

type fsSubscription struct {
	watcher  *fsnotify.Watcher
	onSave   func(string)
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	timers   map[string]*time.Timer
	closed   bool
	inflight sync.WaitGroup

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *fsSubscription) loop() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *fsSubscription) handle(ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	fi, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if fi.IsDir() {
		if ev.Has(fsnotify.Create) {
			s.addDirsRecursive(ev.Name)
		}
		return
	}
	s.schedule(ev.Name)
}

func (s *fsSubscription) schedule(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[path]; ok {
		t.Stop()
	}
	s.timers[path] = time.AfterFunc(s.debounce, func() { s.fire(path) })
}

func (s *fsSubscription) fire(path string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, path)
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	s.onSave(path)
}

func (s *fsSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for p, t := range s.timers {
			t.Stop()
			delete(s.timers, p)
		}
		s.mu.Unlock()

		s.closeErr = s.watcher.Close()
		<-s.done
		s.inflight.Wait()
	})
	return s.closeErr
}

func (s *fsSubscription) addDirsRecursive(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (d.Name() == "node_modules" || strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			s.logger.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent reports events for hidden, swap and backup files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	return strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")
}
