// Package metrics records compile and watch activity.
//
// Components hold a Recorder and default to NoopRecorder, so nothing needs
// nil checks when metrics are off:
//
//	pc := compile.NewProjectCompiler(unit,
//	    compile.WithObserver(metrics.Observer(recorder)))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry
// and HTTPHandler serves that registry for scraping.
package metrics
