package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/config"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/sass"
)

type fakeSub struct {
	root   string
	onSave func(string)
	closed atomic.Bool
}

func (s *fakeSub) Close() error {
	s.closed.Store(true)
	return nil
}

// save delivers an event the way a live subscription would: never after Close.
func (s *fakeSub) save(path string) {
	if !s.closed.Load() {
		s.onSave(path)
	}
}

type fakeSubscriber struct {
	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

func (f *fakeSubscriber) Subscribe(root string, onSave func(string)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSub{root: root, onSave: onSave}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *fakeSubscriber) all() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSub(nil), f.subs...)
}

type outcomes struct {
	mu   sync.Mutex
	list []compile.Outcome
}

func (o *outcomes) OnCompile(out compile.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, out)
}

func (o *outcomes) count(trigger compile.Trigger) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, out := range o.list {
		if out.Trigger == trigger {
			n++
		}
	}
	return n
}

func echoCompiler() sass.Compiler {
	return sass.CompilerFunc(func(_ context.Context, opts sass.Options) (sass.Output, error) {
		b, err := os.ReadFile(opts.File)
		if err != nil {
			return sass.Output{}, err
		}
		if string(b) == "broken" {
			return sass.Output{}, errors.New("Error: expected expression")
		}
		return sass.Output{CSS: b}, nil
	})
}

type fixture struct {
	root       string
	configPath string
	subscriber *fakeSubscriber
	outcomes   *outcomes
	registry   *Registry
	sink       *compile.MemorySink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		root:       root,
		configPath: filepath.Join(root, config.ProjectFileName),
		subscriber: &fakeSubscriber{},
		outcomes:   &outcomes{},
		sink:       &compile.MemorySink{},
	}
	write(t, f.configPath, "{}")
	write(t, filepath.Join(root, "main.scss"), "main")
	write(t, filepath.Join(root, "_vars.scss"), "vars")

	pc := compile.NewProjectCompiler(compile.NewUnit(echoCompiler(), false),
		compile.WithObserver(f.outcomes),
		compile.WithSink(f.sink))
	f.registry = NewRegistry(pc, f.subscriber)
	t.Cleanup(func() { _ = f.registry.Close() })
	return f
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStartCompilesProjectOnce(t *testing.T) {
	f := newFixture(t)

	started, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)
	require.True(t, started)
	require.Equal(t, 1, f.outcomes.count(compile.TriggerInitial))
	require.FileExists(t, filepath.Join(f.root, "main.css"))
	require.NoFileExists(t, filepath.Join(f.root, "_vars.css"))

	started, err = f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)
	require.False(t, started)

	require.Equal(t, []string{f.configPath}, f.registry.List())
	require.Len(t, f.subscriber.all(), 1)
	require.Equal(t, 1, f.outcomes.count(compile.TriggerInitial))
}

func TestStartWritesErrorsIntoOutputs(t *testing.T) {
	f := newFixture(t)
	write(t, filepath.Join(f.root, "bad.scss"), "broken")

	_, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(f.root, "bad.css"))
	require.NoError(t, err)
	require.Equal(t, "Error: expected expression", string(b))
	require.Len(t, f.sink.Lines(), 1)
}

func TestStartCompletesInitialPassAfterCancel(t *testing.T) {
	f := newFixture(t)
	write(t, filepath.Join(f.root, "second.scss"), "second")
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	var calls atomic.Int32
	compiler := sass.CompilerFunc(func(ctx context.Context, opts sass.Options) (sass.Output, error) {
		if err := ctx.Err(); err != nil {
			return sass.Output{}, err
		}
		if calls.Add(1) == 1 {
			cancel()
		}
		return echoCompiler().Compile(ctx, opts)
	})
	pc := compile.NewProjectCompiler(compile.NewUnit(compiler, false),
		compile.WithSink(f.sink),
		compile.WithConcurrency(1))
	registry := NewRegistry(pc, f.subscriber)
	t.Cleanup(func() { _ = registry.Close() })

	started, err := registry.Start(ctx, f.configPath, config.Project{})
	require.NoError(t, err)
	require.True(t, started)
	require.Equal(t, int32(2), calls.Load())
	require.Empty(t, f.sink.Lines())

	b, err := os.ReadFile(filepath.Join(f.root, "main.css"))
	require.NoError(t, err)
	require.Equal(t, "main", string(b))
	b, err = os.ReadFile(filepath.Join(f.root, "second.css"))
	require.NoError(t, err)
	require.Equal(t, "second", string(b))
}

func TestSaveRecompilesSingleFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)
	sub := f.subscriber.all()[0]
	require.Equal(t, f.root, sub.root)

	main := filepath.Join(f.root, "main.scss")
	write(t, main, "changed")
	sub.save(main)
	require.Equal(t, 1, f.outcomes.count(compile.TriggerSave))
	b, err := os.ReadFile(filepath.Join(f.root, "main.css"))
	require.NoError(t, err)
	require.Equal(t, "changed", string(b))

	write(t, main, "broken")
	sub.save(main)
	b, err = os.ReadFile(filepath.Join(f.root, "main.css"))
	require.NoError(t, err)
	require.Equal(t, "Error: expected expression", string(b))
}

func TestSaveFilter(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)
	sub := f.subscriber.all()[0]

	outside := filepath.Join(t.TempDir(), "other.scss")
	write(t, outside, "x")

	sub.save(filepath.Join(f.root, "_vars.scss"))
	sub.save(filepath.Join(f.root, "main.css"))
	sub.save(f.configPath)
	sub.save(outside)
	require.Equal(t, 0, f.outcomes.count(compile.TriggerSave))

	suffixed := filepath.Join(f.root, "theme_.scss")
	write(t, suffixed, "x")
	sub.save(suffixed)
	require.Equal(t, 1, f.outcomes.count(compile.TriggerSave))
}

func TestAcceptSave(t *testing.T) {
	require.True(t, acceptSave("/p", "/p/a.scss"))
	require.True(t, acceptSave("/p", "/p/deep/a.sass"))
	require.False(t, acceptSave("/p", "/p/_a.scss"))
	require.False(t, acceptSave("/p", "/q/a.scss"))
	require.False(t, acceptSave("/p", "/p/a.css"))
}

func TestDestroy(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)
	sub := f.subscriber.all()[0]

	require.True(t, f.registry.Destroy(f.configPath))
	require.Empty(t, f.registry.List())
	require.False(t, f.registry.Has(f.configPath))
	require.True(t, sub.closed.Load())

	sub.save(filepath.Join(f.root, "main.scss"))
	require.Equal(t, 0, f.outcomes.count(compile.TriggerSave))

	require.False(t, f.registry.Destroy(f.configPath))

	started, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)
	require.True(t, started)
	require.Equal(t, 2, f.outcomes.count(compile.TriggerInitial))
}

func TestSubscribeFailureRegistersNothing(t *testing.T) {
	f := newFixture(t)
	f.subscriber.err = errors.New("too many open files")

	started, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.Error(t, err)
	require.False(t, started)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryWatch))
	require.Empty(t, f.registry.List())
}

func TestSourceListerFailure(t *testing.T) {
	f := newFixture(t)
	f.registry.sources = func(context.Context, string) ([]string, error) {
		return nil, errors.New("permission denied")
	}
	_, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryWatch))
	require.Empty(t, f.subscriber.all())
}

func TestListKeepsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	var configs []string
	for _, name := range []string{"zeta", "alpha", "mid"} {
		p := filepath.Join(f.root, name, config.ProjectFileName)
		write(t, p, "{}")
		configs = append(configs, p)
		_, err := f.registry.Start(t.Context(), p, config.Project{})
		require.NoError(t, err)
	}
	require.Equal(t, configs, f.registry.List())

	require.True(t, f.registry.Destroy(configs[1]))
	require.Equal(t, []string{configs[0], configs[2]}, f.registry.List())

	entries := f.registry.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, filepath.Join(f.root, "zeta"), entries[0].Root)
	require.NotEmpty(t, entries[0].ID)
	require.NotEqual(t, entries[0].ID, entries[1].ID)

	got, ok := f.registry.Get(configs[2])
	require.True(t, ok)
	require.Equal(t, entries[1].ID, got.ID)
	_, ok = f.registry.Get(configs[1])
	require.False(t, ok)
}

func TestConcurrentStartDestroy(t *testing.T) {
	f := newFixture(t)
	var configs []string
	for i := range 5 {
		p := filepath.Join(f.root, fmt.Sprintf("p%d", i), config.ProjectFileName)
		write(t, p, "{}")
		configs = append(configs, p)
	}

	var wg sync.WaitGroup
	for range 4 {
		for _, p := range configs {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = f.registry.Start(t.Context(), p, config.Project{})
			}()
			go func() {
				defer wg.Done()
				_ = f.registry.List()
			}()
		}
	}
	wg.Wait()

	require.ElementsMatch(t, configs, f.registry.List())
	require.Len(t, f.subscriber.all(), len(configs))

	for _, p := range configs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.registry.Destroy(p)
		}()
	}
	wg.Wait()
	require.Empty(t, f.registry.List())
	for _, s := range f.subscriber.all() {
		require.True(t, s.closed.Load())
	}
}

func TestCloseReleasesAll(t *testing.T) {
	f := newFixture(t)
	other := filepath.Join(f.root, "sub", config.ProjectFileName)
	write(t, other, "{}")
	_, err := f.registry.Start(t.Context(), f.configPath, config.Project{})
	require.NoError(t, err)
	_, err = f.registry.Start(t.Context(), other, config.Project{})
	require.NoError(t, err)

	require.NoError(t, f.registry.Close())
	require.Empty(t, f.registry.List())
	for _, s := range f.subscriber.all() {
		require.True(t, s.closed.Load())
	}
}
