// Package daemon hosts long-running watches behind an admin HTTP API.
package daemon

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/sassc/internal/api"
	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/config"
	"git.home.luguber.info/inful/sassc/internal/discovery"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/history"
	"git.home.luguber.info/inful/sassc/internal/logfields"
	"git.home.luguber.info/inful/sassc/internal/metrics"
	"git.home.luguber.info/inful/sassc/internal/notify"
	"git.home.luguber.info/inful/sassc/internal/retry"
	"git.home.luguber.info/inful/sassc/internal/sass"
	"git.home.luguber.info/inful/sassc/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// Config describes what the daemon watches and how.
type Config struct {
	Settings *config.Settings
	// Workspace is searched for sassconfig.json files when AutoDiscover is
	// set and anchors the history database.
	Workspace    string
	Configs      []string
	AutoDiscover bool
	Compiler     sass.Compiler
	// Subscriber defaults to fsnotify with Settings.Watch.Debounce.
	Subscriber watch.Subscriber
	// Listener defaults to Settings.Watch.AdminAddr.
	Listener net.Listener
	// Sink receives failure lines; defaults to stderr.
	Sink compile.LogSink
}

// Daemon owns the watch registry and everything serving it.
type Daemon struct {
	cfg      Config
	logger   *slog.Logger
	registry *watch.Registry
	server   *api.Server
	history  *history.Store
	notifier *notify.Notifier

	status    atomic.Value // Status
	startTime time.Time
	mu        sync.Mutex
}

// New wires a daemon. Nothing runs until Run.
func New(cfg Config, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Compiler == nil {
		return nil, ferrors.DaemonError("a compiler is required").Build()
	}
	if cfg.Settings == nil {
		cfg.Settings = config.DefaultSettings()
	}
	if cfg.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, ferrors.DaemonError("failed to resolve workspace").WithCause(err).Build()
		}
		cfg.Workspace = wd
	}
	if cfg.Sink == nil {
		cfg.Sink = compile.NewWriterSink(os.Stderr)
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = watch.NewFSNotifySubscriber(cfg.Settings.Watch.Debounce, logger)
	}

	d := &Daemon{cfg: cfg, logger: logger}
	d.status.Store(StatusStopped)

	var (
		compilerOpts = []compile.CompilerOption{
			compile.WithSink(cfg.Sink),
			compile.WithConcurrency(cfg.Settings.Build.Concurrency),
			compile.WithLogger(logger),
		}
		serverOpts = []api.ServerOption{api.WithLogger(logger)}
		recorder   metrics.Recorder = metrics.NoopRecorder{}
	)

	if cfg.Settings.Metrics.Enabled {
		reg := metrics.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		compilerOpts = append(compilerOpts, compile.WithObserver(metrics.Observer(recorder)))
		serverOpts = append(serverOpts, api.WithMetricsHandler(metrics.HTTPHandler(reg)))
	}

	store, err := history.Open(cfg.Settings.HistoryPath(cfg.Workspace))
	if err != nil {
		return nil, ferrors.DaemonError("failed to open compile history").WithCause(err).Build()
	}
	d.history = store
	compilerOpts = append(compilerOpts, compile.WithObserver(store.Observer(logger)))
	serverOpts = append(serverOpts, api.WithHistory(store))

	if url := cfg.Settings.Notify.NATSURL; url != "" {
		policy := retry.NewPolicy(retry.Mode(cfg.Settings.Notify.ConnectBackoff), 0, 0, cfg.Settings.Notify.ConnectRetries)
		n, err := notify.ConnectWithRetry(context.Background(), url, cfg.Settings.Notify.Subject, policy, logger)
		if err != nil {
			logger.Warn("Compile notifications disabled", logfields.Error(err))
		} else {
			d.notifier = n
			compilerOpts = append(compilerOpts, compile.WithObserver(n))
		}
	}

	unit := compile.NewUnit(cfg.Compiler, cfg.Settings.SingleCompilation.UseIndentedStyle)
	pc := compile.NewProjectCompiler(unit, compilerOpts...)
	d.registry = watch.NewRegistry(pc, cfg.Subscriber, watch.WithRecorder(recorder), watch.WithLogger(logger))
	d.server = api.NewServer(cfg.Settings.Watch.AdminAddr, d, serverOpts...)
	return d, nil
}

// Registry exposes the watch registry.
func (d *Daemon) Registry() *watch.Registry { return d.registry }

// Handler is the admin API handler.
func (d *Daemon) Handler() http.Handler { return d.server.Handler() }

// GetStatus returns the lifecycle state.
func (d *Daemon) GetStatus() Status {
	return d.status.Load().(Status)
}

// Run starts every configured watch, serves the admin API and rescans
// periodically until ctx is cancelled. An explicitly configured project that
// cannot be watched aborts the run.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.GetStatus() != StatusStopped {
		d.mu.Unlock()
		return ferrors.DaemonError("daemon is already running").Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.mu.Unlock()

	err := d.run(ctx)
	d.stop()
	return err
}

func (d *Daemon) run(ctx context.Context) error {
	l := d.cfg.Listener
	if l == nil {
		var err error
		l, err = net.Listen("tcp", d.cfg.Settings.Watch.AdminAddr)
		if err != nil {
			return ferrors.DaemonError("failed to listen for admin API").
				WithCause(err).
				WithContext("addr", d.cfg.Settings.Watch.AdminAddr).
				Build()
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- d.server.Serve(l) }()

	for _, path := range d.cfg.Configs {
		if _, err := d.StartWatch(ctx, path); err != nil {
			return err
		}
	}
	if d.cfg.AutoDiscover {
		d.Rescan(ctx)
	}

	sched, err := NewScheduler(d.logger)
	if err != nil {
		return ferrors.DaemonError("failed to create scheduler").WithCause(err).Build()
	}
	if _, err := sched.ScheduleRescan(d.cfg.Settings.Watch.RescanInterval, func() { d.Rescan(ctx) }); err != nil {
		return ferrors.DaemonError("failed to schedule rescan").WithCause(err).Build()
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			d.logger.Warn("Failed to stop scheduler", logfields.Error(err))
		}
	}()

	d.status.Store(StatusRunning)
	d.logger.Info("Daemon running",
		logfields.Count(len(d.registry.List())),
		logfields.Addr(l.Addr().String()),
		slog.Duration("rescan_interval", d.cfg.Settings.Watch.RescanInterval))

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		if err != nil {
			return ferrors.DaemonError("admin API stopped").WithCause(err).Build()
		}
		return nil
	}
}

// stop shuts components down in reverse order.
func (d *Daemon) stop() {
	d.status.Store(StatusStopping)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Error("Failed to stop admin API", logfields.Error(err))
	}
	if err := d.registry.Close(); err != nil {
		d.logger.Error("Failed to close watches", logfields.Error(err))
	}
	if d.notifier != nil {
		d.notifier.Close()
	}
	if err := d.history.Close(); err != nil {
		d.logger.Error("Failed to close compile history", logfields.Error(err))
	}

	d.status.Store(StatusStopped)
	d.logger.Info("Daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
}

// StartWatch loads configPath and starts watching it.
func (d *Daemon) StartWatch(ctx context.Context, configPath string) (api.StartResponse, error) {
	project, err := config.LoadProject(configPath)
	if err != nil {
		return api.StartResponse{}, err
	}
	started, err := d.registry.Start(ctx, configPath, project)
	if err != nil {
		return api.StartResponse{}, err
	}
	e, _ := d.registry.Get(configPath)
	return api.StartResponse{Started: started, Watch: toWatch(e)}, nil
}

// StopWatch stops watching configPath.
func (d *Daemon) StopWatch(configPath string) bool {
	return d.registry.Destroy(configPath)
}

// Watches lists the active watches.
func (d *Daemon) Watches() []api.Watch {
	entries := d.registry.Entries()
	out := make([]api.Watch, 0, len(entries))
	for _, e := range entries {
		out = append(out, toWatch(e))
	}
	return out
}

func toWatch(e watch.Entry) api.Watch {
	return api.Watch{
		ID:        e.ID,
		Config:    e.ConfigPath,
		Root:      e.Root,
		OutDir:    e.Project.OutDir,
		StartedAt: e.StartedAt,
	}
}

// Rescan reconciles the registry with the filesystem: watches whose
// configuration file disappeared are stopped, changed configurations are
// restarted and, with AutoDiscover, new configurations are started.
func (d *Daemon) Rescan(ctx context.Context) RescanResult {
	start := time.Now()
	var res RescanResult

	for _, e := range d.registry.Entries() {
		if _, err := os.Stat(e.ConfigPath); errors.Is(err, fs.ErrNotExist) {
			if d.registry.Destroy(e.ConfigPath) {
				res.Stopped++
			}
			continue
		}
		project, err := config.LoadProject(e.ConfigPath)
		if err != nil {
			d.logger.Warn("Keeping previous configuration", logfields.ConfigPath(e.ConfigPath), logfields.Error(err))
			continue
		}
		if reflect.DeepEqual(project, e.Project) {
			continue
		}
		d.registry.Destroy(e.ConfigPath)
		if _, err := d.registry.Start(ctx, e.ConfigPath, project); err != nil {
			d.logger.Error("Failed to restart watch", logfields.ConfigPath(e.ConfigPath), logfields.Error(err))
			res.Stopped++
			continue
		}
		res.Reloaded++
	}

	if d.cfg.AutoDiscover {
		configs, err := discovery.FindConfigs(ctx, d.cfg.Workspace)
		if err != nil {
			d.logger.Warn("Config discovery failed", logfields.Root(d.cfg.Workspace), logfields.Error(err))
		}
		for _, path := range configs {
			if d.registry.Has(path) {
				continue
			}
			resp, err := d.StartWatch(ctx, path)
			if err != nil {
				d.logger.Warn("Skipping project", logfields.ConfigPath(path), logfields.Error(err))
				continue
			}
			if resp.Started {
				res.Started++
			}
		}
	}

	res.Duration = time.Since(start)
	if res.changed() {
		d.logger.Info("Rescan applied",
			slog.Int("started", res.Started),
			slog.Int("stopped", res.Stopped),
			slog.Int("reloaded", res.Reloaded),
			logfields.Duration(res.Duration))
	}
	return res
}
