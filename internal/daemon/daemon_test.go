package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sassc/internal/api"
	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/config"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/sass"
	"git.home.luguber.info/inful/sassc/internal/watch"
)

type nopSub struct{}

func (nopSub) Close() error { return nil }

type nopSubscriber struct{}

func (nopSubscriber) Subscribe(string, func(string)) (watch.Subscription, error) {
	return nopSub{}, nil
}

func echoCompiler() sass.Compiler {
	return sass.CompilerFunc(func(_ context.Context, opts sass.Options) (sass.Output, error) {
		b, err := os.ReadFile(opts.File)
		if err != nil {
			return sass.Output{}, err
		}
		return sass.Output{CSS: b}, nil
	})
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newDaemon(t *testing.T, cfg Config) *Daemon {
	t.Helper()
	if cfg.Settings == nil {
		cfg.Settings = config.DefaultSettings()
		cfg.Settings.Metrics.Enabled = true
	}
	cfg.Compiler = echoCompiler()
	cfg.Subscriber = nopSubscriber{}
	cfg.Sink = &compile.MemorySink{}
	d, err := New(cfg, nil)
	require.NoError(t, err)
	return d
}

func TestNewRequiresCompiler(t *testing.T) {
	_, err := New(Config{Workspace: t.TempDir()}, nil)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryDaemon))
}

func TestRescanReconcilesProjects(t *testing.T) {
	ws := t.TempDir()
	write(t, filepath.Join(ws, "a", config.ProjectFileName), "{}")
	write(t, filepath.Join(ws, "a", "main.scss"), "a {}")

	d := newDaemon(t, Config{Workspace: ws, AutoDiscover: true})
	t.Cleanup(d.stop)
	ctx := t.Context()

	res := d.Rescan(ctx)
	require.Equal(t, 1, res.Started)
	require.FileExists(t, filepath.Join(ws, "a", "main.css"))

	write(t, filepath.Join(ws, "b", config.ProjectFileName), "{}")
	write(t, filepath.Join(ws, "b", "main.scss"), "b {}")
	res = d.Rescan(ctx)
	require.Equal(t, 1, res.Started)
	require.Len(t, d.Watches(), 2)

	res = d.Rescan(ctx)
	require.False(t, res.changed())

	write(t, filepath.Join(ws, "b", config.ProjectFileName), `{"outDir": "dist"}`)
	res = d.Rescan(ctx)
	require.Equal(t, 1, res.Reloaded)
	require.FileExists(t, filepath.Join(ws, "b", "dist", "main.css"))

	require.NoError(t, os.Remove(filepath.Join(ws, "a", config.ProjectFileName)))
	res = d.Rescan(ctx)
	require.Equal(t, 1, res.Stopped)

	watches := d.Watches()
	require.Len(t, watches, 1)
	require.Equal(t, filepath.Join(ws, "b", config.ProjectFileName), watches[0].Config)
	require.Equal(t, "dist", watches[0].OutDir)
}

func TestRescanKeepsWatchOnBrokenConfig(t *testing.T) {
	ws := t.TempDir()
	cfgPath := filepath.Join(ws, config.ProjectFileName)
	write(t, cfgPath, "{}")

	d := newDaemon(t, Config{Workspace: ws})
	t.Cleanup(d.stop)

	resp, err := d.StartWatch(t.Context(), cfgPath)
	require.NoError(t, err)
	require.True(t, resp.Started)

	write(t, cfgPath, "{not json")
	res := d.Rescan(t.Context())
	require.Zero(t, res.Stopped)
	require.Zero(t, res.Reloaded)
	require.True(t, d.Registry().Has(cfgPath))
}

func TestStartWatchTwice(t *testing.T) {
	ws := t.TempDir()
	cfgPath := filepath.Join(ws, config.ProjectFileName)
	write(t, cfgPath, "{}")

	d := newDaemon(t, Config{Workspace: ws})
	t.Cleanup(d.stop)

	first, err := d.StartWatch(t.Context(), cfgPath)
	require.NoError(t, err)
	second, err := d.StartWatch(t.Context(), cfgPath)
	require.NoError(t, err)
	require.True(t, first.Started)
	require.False(t, second.Started)
	require.Equal(t, first.Watch.ID, second.Watch.ID)

	require.True(t, d.StopWatch(cfgPath))
	require.False(t, d.StopWatch(cfgPath))
}

func TestRunServesAdminAPI(t *testing.T) {
	ws := t.TempDir()
	cfgPath := filepath.Join(ws, "site", config.ProjectFileName)
	write(t, cfgPath, "{}")
	write(t, filepath.Join(ws, "site", "main.scss"), "a {}")
	other := filepath.Join(ws, "other", config.ProjectFileName)
	write(t, other, "{}")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d := newDaemon(t, Config{Workspace: ws, Configs: []string{cfgPath}, Listener: l})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, 5*time.Second, 10*time.Millisecond)

	c := api.NewClient(l.Addr().String())
	list, err := c.ListWatches(t.Context())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, cfgPath, list[0].Config)

	resp, err := c.StartWatch(t.Context(), other)
	require.NoError(t, err)
	require.True(t, resp.Started)

	stopped, err := c.StopWatch(t.Context(), cfgPath)
	require.NoError(t, err)
	require.True(t, stopped)

	hist, err := c.History(t.Context(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	require.True(t, strings.HasSuffix(hist[len(hist)-1].Source, "main.scss"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("daemon did not stop")
	}
	require.Equal(t, StatusStopped, d.GetStatus())
	require.Empty(t, d.Registry().List())
}

func TestRunFailsOnInvalidExplicitConfig(t *testing.T) {
	ws := t.TempDir()
	cfgPath := filepath.Join(ws, config.ProjectFileName)
	write(t, cfgPath, "{oops")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d := newDaemon(t, Config{Workspace: ws, Configs: []string{cfgPath}, Listener: l})

	err = d.Run(t.Context())
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.Equal(t, StatusStopped, d.GetStatus())
}
