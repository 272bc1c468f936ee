package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sassc"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	compileDuration *prom.HistogramVec
	compileResults  *prom.CounterVec
	activeWatches   prom.Gauge
	watchEvents     *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		compileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of single file compiles",
			Buckets:   prom.DefBuckets,
		}, []string{"trigger"}),
		compileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compile_results_total",
			Help:      "Compile results by trigger and outcome",
		}, []string{"trigger", "result"}),
		activeWatches: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_watches",
			Help:      "Number of project configurations currently watched",
		}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "Save events seen by watches, by whether they triggered a compile",
		}, []string{"accepted"}),
	}
	reg.MustRegister(pr.compileDuration, pr.compileResults, pr.activeWatches, pr.watchEvents)
	return pr
}

func (p *PrometheusRecorder) ObserveCompileDuration(trigger string, d time.Duration) {
	if p == nil {
		return
	}
	p.compileDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompileResult(trigger string, result ResultLabel) {
	if p == nil {
		return
	}
	p.compileResults.WithLabelValues(trigger, string(result)).Inc()
}

func (p *PrometheusRecorder) SetActiveWatches(n int) {
	if p == nil {
		return
	}
	p.activeWatches.Set(float64(n))
}

func (p *PrometheusRecorder) IncWatchEvent(accepted bool) {
	if p == nil {
		return
	}
	label := "false"
	if accepted {
		label = "true"
	}
	p.watchEvents.WithLabelValues(label).Inc()
}
