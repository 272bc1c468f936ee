package sass

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bep/godartsass/v2"
)

// DartSassConfig configures the embedded Dart Sass process.
type DartSassConfig struct {
	// Binary is the sass executable; empty means "sass" on PATH.
	Binary       string
	Timeout      time.Duration
	IncludePaths []string
}

// DartSass compiles through a long-lived Dart Sass embedded process.
// It is safe for concurrent use.
type DartSass struct {
	cfg        DartSassConfig
	transpiler *godartsass.Transpiler
	logger     *slog.Logger
}

// NewDartSass starts the compiler process. Callers must Close it.
func NewDartSass(cfg DartSassConfig, logger *slog.Logger) (*DartSass, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: cfg.Binary,
		Timeout:                  cfg.Timeout,
		LogEventHandler: func(ev godartsass.LogEvent) {
			logger.Warn("sass: "+ev.Message, slog.Int("type", int(ev.Type)))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start dart sass: %w", err)
	}
	return &DartSass{cfg: cfg, transpiler: t, logger: logger}, nil
}

// Compile implements Compiler.
func (d *DartSass) Compile(ctx context.Context, opts Options) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	args, err := d.args(opts)
	if err != nil {
		return Output{}, err
	}
	res, err := d.transpiler.Execute(args)
	if err != nil {
		return Output{}, err
	}
	return applyFormatting(res.CSS, []byte(res.SourceMap), opts)
}

func (d *DartSass) args(opts Options) (godartsass.Args, error) {
	args := godartsass.Args{
		Source:          opts.Data,
		OutputStyle:     godartsass.OutputStyleExpanded,
		SourceSyntax:    godartsass.SourceSyntaxSCSS,
		EnableSourceMap: opts.SourceMap,
		IncludePaths:    append(append([]string(nil), d.cfg.IncludePaths...), opts.IncludePaths...),
	}
	if opts.OutputStyle == StyleCompressed {
		args.OutputStyle = godartsass.OutputStyleCompressed
	}
	if opts.IndentedSyntax {
		args.SourceSyntax = godartsass.SourceSyntaxSASS
	}

	if opts.File != "" {
		abs, err := filepath.Abs(opts.File)
		if err != nil {
			return args, err
		}
		args.URL = "file://" + filepath.ToSlash(abs)
		if opts.Data == "" {
			src, err := os.ReadFile(abs)
			if err != nil {
				return args, err
			}
			args.Source = string(src)
			args.IncludePaths = append(args.IncludePaths, filepath.Dir(abs))
		}
	}
	return args, nil
}

// Close stops the compiler process.
func (d *DartSass) Close() error {
	return d.transpiler.Close()
}
