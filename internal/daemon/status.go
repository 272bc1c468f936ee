package daemon

import "time"

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// RescanResult counts what one rescan changed.
type RescanResult struct {
	Started  int
	Stopped  int
	Reloaded int
	Duration time.Duration
}

func (r RescanResult) changed() bool {
	return r.Started+r.Stopped+r.Reloaded > 0
}
