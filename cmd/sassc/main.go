package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sassc/cmd/sassc/commands"
	"git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("sassc"),
		kong.Description("Compile Sass/SCSS projects driven by sassconfig.json."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	g := commands.NewGlobal()
	err := parser.Run(g, cli)
	os.Exit(errors.NewCLIErrorAdapter(cli.Verbose, g.Logger).HandleError(err))
}
