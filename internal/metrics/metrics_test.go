package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sassc/internal/compile"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := NewRegistry()
	pr := NewPrometheusRecorder(reg)

	obs := Observer(pr)
	obs.OnCompile(compile.Outcome{Trigger: compile.TriggerSave, Duration: 20 * time.Millisecond})
	obs.OnCompile(compile.Outcome{Trigger: compile.TriggerSave, Err: errors.New("bad")})
	obs.OnCompile(compile.Outcome{Trigger: compile.TriggerProject})
	pr.SetActiveWatches(2)
	pr.IncWatchEvent(true)
	pr.IncWatchEvent(false)
	pr.IncWatchEvent(false)

	require.InDelta(t, 1, testutil.ToFloat64(pr.compileResults.WithLabelValues("save", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.compileResults.WithLabelValues("save", "failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.compileResults.WithLabelValues("project", "success")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(pr.activeWatches), 0)
	require.InDelta(t, 2, testutil.ToFloat64(pr.watchEvents.WithLabelValues("false")), 0)
	require.Equal(t, 2, testutil.CollectAndCount(pr.compileDuration))
}

func TestHTTPHandler(t *testing.T) {
	reg := NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.SetActiveWatches(1)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "sassc_active_watches 1"), body)
	require.Contains(t, body, "go_goroutines")
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	require.NotPanics(t, func() {
		Observer(rec).OnCompile(compile.Outcome{})
		rec.SetActiveWatches(3)
		rec.IncWatchEvent(true)
	})

	var nilRec *PrometheusRecorder
	require.NotPanics(t, func() { nilRec.SetActiveWatches(1) })
}
