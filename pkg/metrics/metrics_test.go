package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return New(reg, reg)
}

func TestCounters(t *testing.T) {
	m := newTestMetrics()

	m.CacheResult("hit")
	m.CacheResult("hit")
	m.CacheResult("miss")
	m.SymbolFailed("BAD")
	m.PipelineRun("ok")
	m.JobRun("cache_warm", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchFailures.WithLabelValues("BAD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("cache_warm", "success")))
}

func TestSetAlert(t *testing.T) {
	m := newTestMetrics()
	levels := []string{"normal", "opportunity", "risk", "unavailable"}

	m.SetAlert("NVDA", "risk", levels)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertLevels.WithLabelValues("NVDA", "risk")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.alertLevels.WithLabelValues("NVDA", "normal")))

	m.SetAlert("NVDA", "normal", levels)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.alertLevels.WithLabelValues("NVDA", "risk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertLevels.WithLabelValues("NVDA", "normal")))
}

func TestHandler(t *testing.T) {
	m := newTestMetrics()
	m.ObserveFetch("ok", 250*time.Millisecond)
	m.ClientsConnected(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "findash_fetch_duration_seconds")
	assert.Contains(t, string(body), "findash_realtime_clients 2")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheResult("hit")
		m.ObserveFetch("ok", time.Second)
		m.SymbolFailed("X")
		m.PipelineRun("ok")
		m.SetAlert("X", "risk", []string{"risk"})
		m.ClientsConnected(1)
	})
	assert.NotNil(t, m.Handler())
}
