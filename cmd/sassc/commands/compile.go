package commands

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/sassc/internal/compile"
	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
)

// CompileCmd implements the 'compile' command.
type CompileCmd struct {
	File   string `arg:"" help:"Source file, or - to read stdin"`
	Mode   string `short:"m" help:"Where to deliver the CSS: output (stdout), across (sibling .css file) or file (--dest)" enum:"output,across,file" default:"output"`
	Dest   string `short:"d" help:"Destination for --mode=file" type:"path"`
	Syntax string `help:"Source syntax (auto infers from the file name, falling back to settings)" enum:"auto,sass,scss" default:"auto"`
}

func (c *CompileCmd) Run(g *Global, root *CLI) error {
	settings, err := root.LoadSettings()
	if err != nil {
		return err
	}

	req := compile.SingleRequest{Mode: compile.Mode(c.Mode), Dest: c.Dest, Indented: syntaxFlag(c.Syntax)}
	if c.File == "-" {
		b, err := io.ReadAll(g.Stdin)
		if err != nil {
			return ferrors.FileSystemError("failed to read stdin").WithCause(err).Build()
		}
		req.Text = string(b)
	} else {
		b, err := os.ReadFile(c.File)
		if err != nil {
			return ferrors.NotFoundError("cannot read source file").
				WithCause(err).
				WithContext("file", c.File).
				Build()
		}
		req.Name, req.Text = c.File, string(b)
	}
	// fail fast on an unusable destination before starting the compiler
	dest, err := req.Destination()
	if err != nil {
		return err
	}

	unit, release, err := g.newUnit(settings)
	if err != nil {
		return err
	}
	defer release()

	res, err := unit.CompileSingle(context.Background(), req, g.Stdout)
	if err != nil {
		return err
	}
	if dest != "" {
		if res.OK() {
			_, _ = color.New(color.FgGreen).Fprintf(g.Stderr, "Wrote %s\n", dest)
		} else {
			_, _ = color.New(color.FgRed).Fprintf(g.Stderr, "Compile failed, message written to %s\n", dest)
		}
	}
	if !res.OK() {
		return ferrors.CompileError(res.Failure().Message).WithContext("file", c.File).Build()
	}
	return nil
}

func syntaxFlag(s string) *bool {
	switch s {
	case "sass":
		v := true
		return &v
	case "scss":
		v := false
		return &v
	default:
		return nil
	}
}
