package metrics

import (
	"time"

	"git.home.luguber.info/inful/sassc/internal/compile"
)

// ResultLabel enumerates per-file compile results for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for compiles and watches.
type Recorder interface {
	ObserveCompileDuration(trigger string, d time.Duration)
	IncCompileResult(trigger string, result ResultLabel)
	SetActiveWatches(n int)
	IncWatchEvent(accepted bool)
}

// NoopRecorder is the default when metrics are disabled.
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompileDuration(string, time.Duration) {}
func (NoopRecorder) IncCompileResult(string, ResultLabel)         {}
func (NoopRecorder) SetActiveWatches(int)                         {}
func (NoopRecorder) IncWatchEvent(bool)                           {}

// Observer adapts a Recorder to compile.Observer.
func Observer(rec Recorder) compile.Observer {
	return recorderObserver{rec: rec}
}

type recorderObserver struct{ rec Recorder }

func (r recorderObserver) OnCompile(o compile.Outcome) {
	if r.rec == nil {
		return
	}
	r.rec.ObserveCompileDuration(string(o.Trigger), o.Duration)
	result := ResultSuccess
	if !o.Succeeded() {
		result = ResultFailed
	}
	r.rec.IncCompileResult(string(o.Trigger), result)
}
