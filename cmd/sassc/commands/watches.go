package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/sassc/internal/api"
)

// WatchesCmd talks to the admin API of a running 'sassc watch'.
type WatchesCmd struct {
	Addr string `help:"Admin API address (default: watch.admin_addr from settings)" env:"SASSC_ADMIN_ADDR"`

	List  WatchesListCmd  `cmd:"" default:"1" help:"List active watches"`
	Start WatchesStartCmd `cmd:"" help:"Start watching a project"`
	Stop  WatchesStopCmd  `cmd:"" help:"Stop watching a project"`
}

func (w *WatchesCmd) client(root *CLI) (*api.Client, error) {
	addr := w.Addr
	if addr == "" {
		settings, err := root.LoadSettings()
		if err != nil {
			return nil, err
		}
		addr = settings.Watch.AdminAddr
	}
	return api.NewClient(addr), nil
}

// WatchesListCmd implements 'watches list'.
type WatchesListCmd struct{}

func (*WatchesListCmd) Run(g *Global, root *CLI) error {
	c, err := root.Watches.client(root)
	if err != nil {
		return err
	}
	watches, err := c.ListWatches(context.Background())
	if err != nil {
		return err
	}
	if len(watches) == 0 {
		_, _ = fmt.Fprintln(g.Stdout, "no active watches")
		return nil
	}
	tw := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CONFIG\tSINCE\tID")
	for _, w := range watches {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", w.Config, w.StartedAt.Local().Format(time.DateTime), w.ID)
	}
	return tw.Flush()
}

// WatchesStartCmd implements 'watches start'.
type WatchesStartCmd struct {
	Config string `arg:"" help:"Project configuration file" type:"path"`
}

func (s *WatchesStartCmd) Run(g *Global, root *CLI) error {
	c, err := root.Watches.client(root)
	if err != nil {
		return err
	}
	resp, err := c.StartWatch(context.Background(), s.Config)
	if err != nil {
		return err
	}
	if !resp.Started {
		_, _ = color.New(color.FgYellow).Fprintf(g.Stdout, "already watching %s\n", resp.Watch.Config)
		return nil
	}
	_, _ = color.New(color.FgGreen).Fprintf(g.Stdout, "watching %s\n", filepath.Dir(resp.Watch.Config))
	return nil
}

// WatchesStopCmd implements 'watches stop'.
type WatchesStopCmd struct {
	Config string `arg:"" help:"Project configuration file" type:"path"`
}

func (s *WatchesStopCmd) Run(g *Global, root *CLI) error {
	c, err := root.Watches.client(root)
	if err != nil {
		return err
	}
	stopped, err := c.StopWatch(context.Background(), s.Config)
	if err != nil {
		return err
	}
	if !stopped {
		_, _ = fmt.Fprintf(g.Stdout, "not watching %s\n", s.Config)
		return nil
	}
	_, _ = fmt.Fprintf(g.Stdout, "stopped %s\n", s.Config)
	return nil
}
