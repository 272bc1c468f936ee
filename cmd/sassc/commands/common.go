package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/config"
	"git.home.luguber.info/inful/sassc/internal/discovery"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/logfields"
	"git.home.luguber.info/inful/sassc/internal/sass"
)

// CompilerFactory creates the compiler used by a command and a function
// releasing it.
type CompilerFactory func(s *config.Settings, logger *slog.Logger) (sass.Compiler, func() error, error)

// DartSassCompiler starts the embedded Dart Sass compiler.
func DartSassCompiler(s *config.Settings, logger *slog.Logger) (sass.Compiler, func() error, error) {
	c, err := sass.NewDartSass(sass.DartSassConfig{
		Binary:       s.Compiler.DartSassBinary,
		Timeout:      s.Compiler.Timeout,
		IncludePaths: s.Compiler.IncludePaths,
	}, logger)
	if err != nil {
		return nil, nil, ferrors.ConfigError("failed to start Dart Sass; install it or set compiler.dart_sass_binary").
			WithCause(err).
			Build()
	}
	return c, c.Close, nil
}

// Global holds process-wide dependencies shared by every command.
type Global struct {
	Logger      *slog.Logger
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	NewCompiler CompilerFactory
}

// NewGlobal wires the real process streams and Dart Sass.
func NewGlobal() *Global {
	return &Global{
		Logger:      slog.Default(),
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		NewCompiler: DartSassCompiler,
	}
}

// compiler starts the configured compiler. release must be called when the
// command is done.
func (g *Global) compiler(s *config.Settings) (c sass.Compiler, release func(), err error) {
	c, closeFn, err := g.NewCompiler(s, g.Logger)
	if err != nil {
		return nil, nil, err
	}
	release = func() {
		if closeFn == nil {
			return
		}
		if err := closeFn(); err != nil {
			g.Logger.Warn("Failed to stop compiler", logfields.Error(err))
		}
	}
	return c, release, nil
}

func (g *Global) newUnit(s *config.Settings) (*compile.Unit, func(), error) {
	c, release, err := g.compiler(s)
	if err != nil {
		return nil, nil, err
	}
	return compile.NewUnit(c, s.SingleCompilation.UseIndentedStyle), release, nil
}

// CLI definition & global flags.
type CLI struct {
	Dir      string           `short:"C" help:"Run as if started in this directory" default:"." type:"existingdir"`
	Settings string           `short:"s" help:"Tool settings file, relative to --dir" default:"sassc.yaml" env:"SASSC_SETTINGS"`
	Verbose  bool             `short:"v" help:"Enable verbose logging"`
	LogLevel string           `help:"Log level (debug, info, warn, error)" env:"SASSC_LOG_LEVEL" default:"info"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Compile CompileCmd `cmd:"" help:"Compile a single file or stdin"`
	Live    LiveCmd    `cmd:"" help:"Recompile a file on every save and map cursor positions"`
	Project ProjectCmd `cmd:"" help:"Compile every source of a project"`
	Watch   WatchCmd   `cmd:"" help:"Watch projects and recompile saved files"`
	Watches WatchesCmd `cmd:"" help:"Manage the watches of a running 'sassc watch'"`
	History HistoryCmd `cmd:"" help:"Show recent compile outcomes"`
	Init    InitCmd    `cmd:"" help:"Write a starter sassconfig.json"`
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return ferrors.ConfigError(fmt.Sprintf("invalid log level %q", c.LogLevel)).Build()
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// WorkDir is the absolute form of --dir.
func (c *CLI) WorkDir() (string, error) {
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return "", ferrors.FileSystemError("failed to resolve working directory").WithCause(err).Build()
	}
	return dir, nil
}

// LoadSettings reads the tool settings, falling back to defaults when the
// file does not exist.
func (c *CLI) LoadSettings() (*config.Settings, error) {
	path := c.Settings
	if !filepath.IsAbs(path) {
		dir, err := c.WorkDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, path)
	}
	return config.LoadSettingsOrDefault(path)
}

// Workspace returns the repository root containing --dir, or --dir itself.
func (c *CLI) Workspace() (string, error) {
	dir, err := c.WorkDir()
	if err != nil {
		return "", err
	}
	return discovery.WorkspaceRoot(dir)
}

// resolveConfigs returns the configuration files a command operates on.
// Explicit paths win; otherwise the workspace is searched and more than one
// hit requires all.
func resolveConfigs(c *CLI, explicit []string, all bool) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	dir, err := c.WorkDir()
	if err != nil {
		return nil, err
	}
	// a config in --dir itself wins over the workspace search
	if local := filepath.Join(dir, config.ProjectFileName); !all && fileExists(local) {
		return []string{local}, nil
	}

	found, err := discovery.FindConfigs(context.Background(), ws)
	if err != nil {
		return nil, err
	}
	switch {
	case len(found) == 0:
		return nil, ferrors.NotFoundError("no " + config.ProjectFileName + " found").
			WithContext("workspace", ws).
			Build()
	case len(found) > 1 && !all:
		return nil, ferrors.ValidationError(fmt.Sprintf(
			"found %d projects, pass --config or --all:\n  %s", len(found), strings.Join(found, "\n  "))).Build()
	}
	return found, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
