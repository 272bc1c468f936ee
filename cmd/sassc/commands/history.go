package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit  int  `short:"n" help:"Number of records to show" default:"20"`
	Failed bool `help:"Only show failures"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	if h.Limit <= 0 {
		return ferrors.ValidationError("--limit must be positive").Build()
	}
	settings, err := root.LoadSettings()
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

	records, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	ok, bad := color.New(color.FgGreen), color.New(color.FgRed)
	shown := 0
	for _, r := range records {
		if h.Failed && r.Success {
			continue
		}
		status := ok.Sprint("ok")
		if !r.Success {
			status = bad.Sprint("failed")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.At.Local().Format(time.DateTime), r.Trigger, status, r.Source, r.Duration.Round(time.Millisecond))
		if r.Message != "" {
			_, _ = fmt.Fprintf(tw, "\t\t\t%s\t\n", r.Message)
		}
		shown++
	}
	if shown == 0 {
		_, _ = fmt.Fprintln(g.Stdout, "no compile history")
		return nil
	}
	return tw.Flush()
}
