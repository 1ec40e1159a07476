package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/findash/internal/api/handlers"
	"github.com/wonny/findash/internal/cache"
	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/export"
	"github.com/wonny/findash/internal/realtime"
	"github.com/wonny/findash/internal/scheduler"
	"github.com/wonny/findash/internal/scheduler/jobs"
	"github.com/wonny/findash/pkg/logger"
	"github.com/wonny/findash/pkg/metrics"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	empty bool
}

func (f *stubFetcher) Fetch(ctx context.Context, symbols []string, lookback contracts.Lookback) contracts.FetchResult {
	f.mu.Lock()
	f.calls++
	empty := f.empty
	f.mu.Unlock()

	if empty {
		return contracts.FetchResult{Diagnostic: "no data returned for any of 16 symbols"}
	}

	dates := make([]time.Time, 8)
	for r := range dates {
		dates[r] = time.Date(2024, 3, 1+r, 0, 0, 0, 0, time.UTC)
	}
	t := contracts.NewTable(dates, symbols)
	for c, sym := range symbols {
		base := 100 + 10*float64(c)
		switch sym {
		case "NVDA":
			base = 400
		case "MXN=X":
			base = 18
		}
		for r := range dates {
			t.Values[c][r] = base * (1 + 0.02*math.Sin(float64(r*(c+1))))
		}
	}
	return contracts.FetchResult{Table: t, FetchedAt: dates[len(dates)-1]}
}

func (f *stubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	srv     *httptest.Server
	fetcher *stubFetcher
	service *dashboard.Service
	sched   *scheduler.Scheduler
}

func newFixture(t *testing.T, empty bool) *fixture {
	t.Helper()
	log := logger.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, reg)

	fetcher := &stubFetcher{empty: empty}
	hub := realtime.NewHub(log, m)
	svc, err := dashboard.NewService(dashboardconfig.Default(), fetcher,
		cache.NewSeriesCache(log), time.Hour, hub, m, log)
	require.NoError(t, err)

	sched := scheduler.New(log, scheduler.WithRetry(0, 0))
	require.NoError(t, sched.AddJob(jobs.NewCacheWarmJob(svc, "0 */30 * * * *", log)))

	router := NewRouter(Routes{
		Dashboard: handlers.NewDashboardHandler(svc, log),
		Jobs:      handlers.NewJobsHandler(sched, log),
		Alerts:    hub,
		Metrics:   m,
	}, log)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &fixture{srv: srv, fetcher: fetcher, service: svc, sched: sched}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decode(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "findash", decode(t, body)["service"])
}

func TestGetDashboard(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/api/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	out := decode(t, body)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "findash_default", out["dashboard_id"])
	assert.Len(t, out["assets"], 7)
	assert.Len(t, out["alerts"], 2)
	assert.Len(t, out["kpis"], 4)
	assert.Equal(t, true, out["correlation"].(map[string]interface{})["ok"])

	// second request is served from the cache
	_, body = f.get(t, "/api/dashboard?category=fx&start=2024-03-03")
	out = decode(t, body)
	assert.Equal(t, true, out["cache_hit"])
	assert.Equal(t, []interface{}{"USD/MXN", "EUR/USD"}, out["assets"])
	assert.Equal(t, "2024-03-03T00:00:00Z", out["range"].(map[string]interface{})["start"])
	assert.Equal(t, 1, f.fetcher.Calls())
}

func TestGetDashboard_BadQuery(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantKind   string
		wantField  string
	}{
		{"bad date", "?start=03/01/2024", http.StatusBadRequest, "invalid_request", "start"},
		{"assets and category", "?assets=AAPL&category=fx", http.StatusBadRequest, "invalid_request", "category"},
		{"unknown category", "?category=crypto", http.StatusNotFound, "missing_column", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.get(t, "/api/dashboard"+tt.query)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var er handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.Equal(t, tt.wantKind, er.Kind)
			if tt.wantField != "" {
				require.NotEmpty(t, er.Fields)
				assert.Equal(t, tt.wantField, er.Fields[0].Field)
			}
		})
	}
}

func TestGetDashboard_InvalidRangeFallsBack(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/api/dashboard?start=2024-03-06&end=2024-03-02")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode(t, body)
	assert.Equal(t, true, out["range_fell_back"])
	assert.Equal(t, "2024-03-01T00:00:00Z", out["range"].(map[string]interface{})["start"])
}

func TestGetCorrelation(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/api/correlation?category=fx")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode(t, body)
	assert.Len(t, out["pairs"], 1)
	assert.Equal(t, []interface{}{"USD/MXN", "EUR/USD"}, out["matrix"].(map[string]interface{})["labels"])

	resp, body = f.get(t, "/api/correlation?assets=AAPL")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "insufficient_data", decode(t, body)["kind"])
}

func TestGetPricesTail(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/api/prices/tail?assets=NVDA,AAPL")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tbl contracts.Table
	require.NoError(t, json.Unmarshal(body, &tbl))
	assert.Equal(t, []string{"NVDA", "AAPL"}, tbl.Columns)
	assert.Equal(t, 8, tbl.Rows())
}

func TestHaltedFetch(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.get(t, "/api/dashboard")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	out := decode(t, body)
	assert.Equal(t, "halted", out["status"])
	assert.Len(t, out["thresholds"], 2, "thresholds stay visible")

	resp, body = f.get(t, "/api/alerts")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var alerts handlers.AlertsResponse
	require.NoError(t, json.Unmarshal(body, &alerts))
	require.Len(t, alerts.Alerts, 2)
	for _, a := range alerts.Alerts {
		assert.Equal(t, contracts.SeverityUnavailable, a.Severity)
	}

	resp, body = f.get(t, "/api/kpis")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"display":"N/A"`)

	resp, _ = f.get(t, "/api/prices/tail")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, false)
	f.get(t, "/api/dashboard")

	resp, err := http.Post(f.srv.URL+"/api/cache/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out handlers.RefreshResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", string(out.Status))
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, 2, f.fetcher.Calls())

	_, body := f.get(t, "/api/cache")
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Len(t, stats.Entries, 1)
	assert.EqualValues(t, 2, stats.Misses)
}

func TestExport(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/api/export.xlsx?category=fx")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "findash_default_")

	wb, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(export.SheetPrices)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "USD/MXN", "EUR/USD"}, rows[0])
}

func TestGetReport(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/api/report.md")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown"))
	assert.True(t, strings.HasPrefix(string(body), "# findash_default"))
}

func TestGetConfig(t *testing.T) {
	f := newFixture(t, false)

	_, body := f.get(t, "/api/config")
	var out handlers.ConfigResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, f.service.ConfigHash(), out.Hash)
	assert.Equal(t, "findash_default", out.Config.Meta.DashboardID)
	assert.NotNil(t, out.Warnings)
}

func TestJobs(t *testing.T) {
	f := newFixture(t, false)

	_, body := f.get(t, "/api/jobs")
	var stats []scheduler.JobStats
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "cache_warm", stats[0].JobName)

	resp, err := http.Post(f.srv.URL+"/api/jobs/cache_warm/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Eventually(t, func() bool {
		return f.sched.GetJobStats()["cache_warm"].SuccessCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Post(f.srv.URL+"/api/jobs/nope/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.get(t, "/api/dashboard")

	resp, body := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `findash_pipeline_runs_total{outcome="ok"} 1`)
}

func TestAlertStream(t *testing.T) {
	f := newFixture(t, false)
	// first run is a cache miss and publishes the alert list
	f.get(t, "/api/alerts")

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e realtime.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, realtime.EventAlerts, e.Type)
	assert.Len(t, e.Alerts, 2)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{contracts.ErrInvalidRange, http.StatusBadRequest},
		{contracts.ErrMissingColumn, http.StatusNotFound},
		{contracts.ErrInsufficientData, http.StatusUnprocessableEntity},
		{contracts.ErrDomain, http.StatusUnprocessableEntity},
		{contracts.ErrEmptyResult, http.StatusServiceUnavailable},
		{contracts.ErrFetchFailure, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(contracts.Kind(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, handlers.StatusFor(tt.err))
		})
	}
}
