package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/daemon"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Configs []string `arg:"" optional:"" help:"Project configuration files (default: search the workspace)" type:"path"`
	All     bool     `help:"Watch every project in the workspace, including ones created later"`
	Addr    string   `help:"Admin API listen address (overrides watch.admin_addr)"`
	Metrics bool     `help:"Serve Prometheus metrics on the admin API"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return w.run(ctx, g, root)
}

func (w *WatchCmd) run(ctx context.Context, g *Global, root *CLI) error {
	settings, err := root.LoadSettings()
	if err != nil {
		return err
	}
	if w.Addr != "" {
		settings.Watch.AdminAddr = w.Addr
	}
	if w.Metrics {
		settings.Metrics.Enabled = true
	}

	cfg := daemon.Config{Settings: settings, AutoDiscover: w.All, Sink: compile.NewWriterSink(g.Stderr)}
	if w.All {
		cfg.Configs = w.Configs
	} else if cfg.Configs, err = resolveConfigs(root, w.Configs, false); err != nil {
		return err
	}
	if cfg.Workspace, err = root.Workspace(); err != nil {
		return err
	}

	c, release, err := g.compiler(settings)
	if err != nil {
		return err
	}
	defer release()
	cfg.Compiler = c

	d, err := daemon.New(cfg, g.Logger)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
