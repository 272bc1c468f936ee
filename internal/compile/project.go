package compile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sassc/internal/config"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/logfields"
	"git.home.luguber.info/inful/sassc/internal/paths"
)

// ProjectCompiler compiles project files and writes their artifacts.
type ProjectCompiler struct {
	unit        *Unit
	sink        LogSink
	observers   []Observer
	concurrency int
	logger      *slog.Logger
}

// CompilerOption configures a ProjectCompiler.
type CompilerOption func(*ProjectCompiler)

// WithSink sets the failure log sink.
func WithSink(sink LogSink) CompilerOption {
	return func(pc *ProjectCompiler) { pc.sink = sink }
}

// WithObserver adds an outcome observer.
func WithObserver(o Observer) CompilerOption {
	return func(pc *ProjectCompiler) { pc.observers = append(pc.observers, o) }
}

// WithConcurrency bounds parallel compiles; n <= 0 means GOMAXPROCS.
func WithConcurrency(n int) CompilerOption {
	return func(pc *ProjectCompiler) { pc.concurrency = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) CompilerOption {
	return func(pc *ProjectCompiler) { pc.logger = l }
}

func NewProjectCompiler(unit *Unit, opts ...CompilerOption) *ProjectCompiler {
	pc := &ProjectCompiler{unit: unit, sink: discardSink{}, logger: slog.Default()}
	for _, o := range opts {
		o(pc)
	}
	if pc.concurrency <= 0 {
		pc.concurrency = runtime.GOMAXPROCS(0)
	}
	return pc
}

// Unit returns the underlying compile unit.
func (pc *ProjectCompiler) Unit() *Unit { return pc.unit }

type runOptions struct {
	saveError bool
	trigger   Trigger
	runID     string
}

// Option adjusts a single compile call.
type Option func(*runOptions)

// WithSaveError writes a failure message into the output file in place of CSS.
func WithSaveError() Option {
	return func(o *runOptions) { o.saveError = true }
}

// WithTrigger labels the outcomes of a call.
func WithTrigger(t Trigger) Option {
	return func(o *runOptions) { o.trigger = t }
}

// WithRunID groups the outcomes of a call.
func WithRunID(id string) Option {
	return func(o *runOptions) { o.runID = id }
}

func newRunOptions(opts []Option) runOptions {
	ro := runOptions{trigger: TriggerProject}
	for _, o := range opts {
		o(&ro)
	}
	return ro
}

// FileFailure is one failed file of a batch.
type FileFailure struct {
	Source  string
	Message string
}

// Report summarizes a batch.
type Report struct {
	Compiled int
	Failed   int
	Skipped  int
	Failures []FileFailure
	Duration time.Duration
}

// CompileProject compiles every non-partial file concurrently and returns
// once all attempts have finished. Failures are appended to the sink and
// never stop sibling files. Cancelling ctx does not abort the batch: every
// queued file is still compiled.
func (pc *ProjectCompiler) CompileProject(ctx context.Context, files []string, project config.Project, root string, opts ...Option) Report {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	var (
		mu     sync.Mutex
		report Report
		g      errgroup.Group
	)
	g.SetLimit(pc.concurrency)

	for _, file := range files {
		if paths.IsPartial(file) {
			report.Skipped++
			continue
		}
		g.Go(func() error {
			err := pc.CompileAndReport(ctx, root, file, project, opts...)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Failures = append(report.Failures, FileFailure{Source: file, Message: describe(err)})
				return nil
			}
			report.Compiled++
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	pc.logger.Info("Project compiled",
		logfields.Root(root),
		slog.Int("compiled", report.Compiled),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		logfields.Duration(report.Duration))
	return report
}

// CompileAndReport is CompileAndSave plus a sink line on failure.
func (pc *ProjectCompiler) CompileAndReport(ctx context.Context, root, file string, project config.Project, opts ...Option) error {
	err := pc.CompileAndSave(ctx, root, file, project, opts...)
	if err != nil {
		pc.sink.AppendLine(failureLine(file, err))
	}
	return err
}

// CompileAndSave compiles one file and writes its artifacts. With
// WithSaveError a failure message is written to the output path as well as
// returned.
func (pc *ProjectCompiler) CompileAndSave(ctx context.Context, root, file string, project config.Project, opts ...Option) error {
	ro := newRunOptions(opts)
	start := time.Now()
	out := paths.ResolveOutputPath(file, root, project.OutDir)

	err := pc.compileAndSave(ctx, file, out, project, ro.saveError)

	outcome := Outcome{
		RunID:    ro.runID,
		Source:   file,
		Output:   out,
		Trigger:  ro.trigger,
		Started:  start,
		Duration: time.Since(start),
		Err:      err,
	}
	for _, o := range pc.observers {
		o.OnCompile(outcome)
	}

	if err != nil {
		pc.logger.Debug("Compile failed", logfields.File(file), logfields.Output(out), logfields.Error(err))
	} else {
		pc.logger.Debug("Compiled", logfields.File(file), logfields.Output(out), logfields.Duration(outcome.Duration))
	}
	return err
}

func (pc *ProjectCompiler) compileAndSave(ctx context.Context, file, out string, project config.Project, saveError bool) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return ferrors.FileSystemError("failed to create output directory").
			WithCause(err).
			WithContext("file", file).
			Build()
	}

	res := pc.unit.CompileFile(ctx, file, project, out)
	if !res.OK() {
		cerr := ferrors.CompileError(res.Failure().Message).WithContext("file", file).Build()
		if saveError {
			if err := os.WriteFile(out, []byte(res.Failure().Message), 0o644); err != nil {
				return ferrors.FileSystemError("failed to write error output").
					WithCause(err).
					WithContext("file", file).
					Build()
			}
			if project.SourceMaps {
				// The previous map describes CSS that was just replaced.
				if err := os.Remove(paths.MapFileName(out)); err != nil && !os.IsNotExist(err) {
					return ferrors.FileSystemError("failed to remove stale source map").
						WithCause(err).
						WithContext("file", file).
						Build()
				}
			}
		}
		return cerr
	}

	if err := os.WriteFile(out, res.CSS(), 0o644); err != nil {
		return ferrors.FileSystemError("failed to write output").
			WithCause(err).
			WithContext("file", file).
			Build()
	}
	if project.SourceMaps && res.Map() != nil {
		if err := os.WriteFile(paths.MapFileName(out), res.Map(), 0o644); err != nil {
			return ferrors.FileSystemError("failed to write source map").
				WithCause(err).
				WithContext("file", file).
				Build()
		}
	}
	return nil
}

// describe renders an error without its classification prefix.
func describe(err error) string {
	if ce, ok := ferrors.AsClassified(err); ok {
		if ce.Cause() != nil {
			return ce.Message() + ": " + ce.Cause().Error()
		}
		return ce.Message()
	}
	return err.Error()
}
