package compile

import "time"

// Trigger names what caused a compile.
type Trigger string

const (
	TriggerProject Trigger = "project"
	TriggerInitial Trigger = "initial"
	TriggerSave    Trigger = "save"
	TriggerSingle  Trigger = "single"
)

// Outcome records one per-file attempt.
type Outcome struct {
	RunID    string
	Source   string
	Output   string
	Trigger  Trigger
	Started  time.Time
	Duration time.Duration
	Err      error
}

func (o Outcome) Succeeded() bool { return o.Err == nil }

// Message is the failure text without classification, or "" on success.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return describe(o.Err)
}

// Observer receives every per-file outcome. Implementations must be safe for
// concurrent use since outcomes arrive from pool goroutines.
type Observer interface {
	OnCompile(o Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(o Outcome)

func (f ObserverFunc) OnCompile(o Outcome) { f(o) }

// NoopObserver ignores outcomes.
type NoopObserver struct{}

func (NoopObserver) OnCompile(Outcome) {}
