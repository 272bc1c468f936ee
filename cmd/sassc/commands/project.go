package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/config"
	"git.home.luguber.info/inful/sassc/internal/discovery"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/history"
	"git.home.luguber.info/inful/sassc/internal/logfields"
)

// ProjectCmd implements the 'project' command.
type ProjectCmd struct {
	Config string `short:"c" help:"Project configuration file (default: search the workspace)" type:"path"`
	All    bool   `help:"Compile every project in the workspace"`
}

func (p *ProjectCmd) Run(g *Global, root *CLI) error {
	settings, err := root.LoadSettings()
	if err != nil {
		return err
	}
	var explicit []string
	if p.Config != "" {
		explicit = []string{p.Config}
	}
	configs, err := resolveConfigs(root, explicit, p.All)
	if err != nil {
		return err
	}

	ws, err := root.Workspace()
	if err != nil {
		return err
	}
	store, err := history.Open(settings.HistoryPath(ws))
	if err != nil {
		return ferrors.EventStoreError("failed to open compile history").WithCause(err).Build()
	}
	defer func() { _ = store.Close() }()

	unit, release, err := g.newUnit(settings)
	if err != nil {
		return err
	}
	defer release()

	pc := compile.NewProjectCompiler(unit,
		compile.WithSink(compile.NewWriterSink(g.Stderr)),
		compile.WithObserver(store.Observer(g.Logger)),
		compile.WithConcurrency(settings.Build.Concurrency),
		compile.WithLogger(g.Logger))

	failed := 0
	for _, path := range configs {
		report, err := compileProject(context.Background(), pc, path, g.Logger)
		if err != nil {
			return err
		}
		failed += report.Failed
		status := color.New(color.FgGreen)
		if report.Failed > 0 {
			status = color.New(color.FgRed)
		}
		_, _ = status.Fprintf(g.Stdout, "%s: %d compiled, %d failed, %d partials skipped (%s)\n",
			path, report.Compiled, report.Failed, report.Skipped, report.Duration.Round(time.Millisecond))
	}
	if failed > 0 {
		return ferrors.CompileError(fmt.Sprintf("%d file(s) failed to compile", failed)).Build()
	}
	return nil
}

func compileProject(ctx context.Context, pc *compile.ProjectCompiler, configPath string, logger *slog.Logger) (compile.Report, error) {
	project, err := config.LoadProject(configPath)
	if err != nil {
		return compile.Report{}, err
	}
	root := config.ProjectRoot(configPath)
	files, err := discovery.FindSources(ctx, root)
	if err != nil {
		return compile.Report{}, err
	}
	runID := uuid.NewString()
	logger.Debug("Compiling project", logfields.ConfigPath(configPath), logfields.RunID(runID), logfields.Count(len(files)))
	return pc.CompileProject(ctx, files, project, root,
		compile.WithTrigger(compile.TriggerProject),
		compile.WithRunID(runID)), nil
}
