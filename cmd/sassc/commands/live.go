package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/sassc/internal/compile"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/live"
	"git.home.luguber.info/inful/sassc/internal/logfields"
	"git.home.luguber.info/inful/sassc/internal/paths"
	"git.home.luguber.info/inful/sassc/internal/watch"
)

// LiveCmd implements the 'live' command: the file is recompiled on every
// save and "line:column" lines on stdin (0-based, as editors report them)
// are answered with the matching position in the generated CSS.
type LiveCmd struct {
	File   string `arg:"" help:"Source file to follow" type:"existingfile"`
	Syntax string `help:"Source syntax (auto infers from the file name)" enum:"auto,sass,scss" default:"auto"`
}

func (c *LiveCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return c.run(ctx, g, root)
}

func (c *LiveCmd) run(ctx context.Context, g *Global, root *CLI) error {
	settings, err := root.LoadSettings()
	if err != nil {
		return err
	}
	file, err := filepath.Abs(c.File)
	if err != nil {
		return ferrors.FileSystemError("failed to resolve file").WithCause(err).Build()
	}

	unit, release, err := g.newUnit(settings)
	if err != nil {
		return err
	}
	defer release()

	indented := syntaxFlag(c.Syntax)
	if indented == nil && paths.IsSource(file) {
		v := paths.IsIndentedSyntax(file)
		indented = &v
	}
	display := &terminalDisplay{out: g.Stdout}
	sess := live.NewSession(unit, indented, display, g.Logger)

	edit := func() {
		b, err := os.ReadFile(file)
		if err != nil {
			g.Logger.Warn("Cannot read file", logfields.File(file), logfields.Error(err))
			return
		}
		sess.Edit(ctx, string(b))
	}
	edit()

	sub, err := watch.NewFSNotifySubscriber(settings.Watch.Debounce, g.Logger).
		Subscribe(filepath.Dir(file), func(p string) {
			if p == file {
				edit()
			}
		})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(g.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			l, col, err := parseCursor(line)
			if err != nil {
				display.notice(err.Error())
				continue
			}
			if _, ok := sess.Cursor(l, col); !ok {
				display.notice("no generated position")
			}
		}
	}
}

// parseCursor reads "line:column".
func parseCursor(s string) (int, int, error) {
	ls, cs, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected line:column, got %q", s)
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l < 0 {
		return 0, 0, fmt.Errorf("invalid line %q", ls)
	}
	c, err := strconv.Atoi(cs)
	if err != nil || c < 0 {
		return 0, 0, fmt.Errorf("invalid column %q", cs)
	}
	return l, c, nil
}

// terminalDisplay prints results and positions as plain lines.
type terminalDisplay struct {
	mu  sync.Mutex
	out io.Writer
}

func (d *terminalDisplay) ShowResult(res compile.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !res.OK() {
		_, _ = color.New(color.FgRed).Fprintln(d.out, res.Failure().Message)
		return
	}
	_, _ = fmt.Fprint(d.out, res.Text())
	if !strings.HasSuffix(res.Text(), "\n") {
		_, _ = fmt.Fprintln(d.out)
	}
}

func (d *terminalDisplay) ShowPosition(pos live.Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = color.New(color.FgCyan).Fprintf(d.out, "-> %d:%d\n", pos.Line, pos.Column)
}

func (d *terminalDisplay) notice(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = color.New(color.FgYellow).Fprintln(d.out, msg)
}
