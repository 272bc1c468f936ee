package commands

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/sassc/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite an existing sassconfig.json"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	dir, err := root.WorkDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, config.ProjectFileName)
	if err := config.WriteProject(path, config.StarterProject(), i.Force); err != nil {
		return err
	}
	_, _ = color.New(color.FgGreen).Fprintf(g.Stdout, "Wrote %s\n", path)
	_, _ = fmt.Fprintln(g.Stdout, "Run 'sassc project' to compile it.")
	return nil
}
