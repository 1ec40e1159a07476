package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/findash/internal/cache"
	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/pipeline"
	"github.com/wonny/findash/internal/realtime"
	"github.com/wonny/findash/pkg/logger"
	"github.com/wonny/findash/pkg/metrics"
)

type fakeFetcher struct {
	mu     sync.Mutex
	calls  int
	result func(symbols []string) contracts.FetchResult
}

func (f *fakeFetcher) Fetch(ctx context.Context, symbols []string, lookback contracts.Lookback) contracts.FetchResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result(symbols)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Publish(e realtime.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func prices(nvda float64) func(symbols []string) contracts.FetchResult {
	return func(symbols []string) contracts.FetchResult {
		dates := []time.Time{
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC),
		}
		t := contracts.NewTable(dates, symbols)
		for c, sym := range symbols {
			base := 100 + float64(c)
			switch sym {
			case "NVDA":
				base = nvda
			case "MXN=X":
				base = 18
			}
			t.Values[c] = []float64{base * 0.99, base * 1.01, base}
		}
		return contracts.FetchResult{Table: t, FetchedAt: dates[2]}
	}
}

func newService(t *testing.T, f *fakeFetcher, pub Publisher, m *metrics.Metrics) *Service {
	t.Helper()
	svc, err := NewService(dashboardconfig.Default(), f, cache.NewSeriesCache(logger.Nop()), time.Hour, pub, m, logger.Nop())
	require.NoError(t, err)
	return svc
}

func TestSnapshot_UsesCache(t *testing.T) {
	f := &fakeFetcher{result: prices(480)}
	svc := newService(t, f, nil, nil)

	first := svc.Snapshot(context.Background(), pipeline.Filters{})
	second := svc.Snapshot(context.Background(), pipeline.Filters{Assets: []string{"AAPL", "MSFT"}})

	assert.Equal(t, 1, f.Calls())
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, "findash_default", first.DashboardID)
	assert.Len(t, first.ConfigHash, 64)
	assert.Equal(t, pipeline.StatusOK, first.Status)
	assert.Equal(t, []string{"AAPL", "MSFT"}, second.Assets)
}

func TestRefresh_RefetchesAndPublishes(t *testing.T) {
	f := &fakeFetcher{result: prices(480)}
	pub := &recorder{}
	svc := newService(t, f, pub, nil)

	svc.Snapshot(context.Background(), pipeline.Filters{})
	require.Equal(t, 1, pub.Len())

	// cache hit, unchanged alerts: nothing new
	svc.Snapshot(context.Background(), pipeline.Filters{})
	assert.Equal(t, 1, pub.Len())

	snap := svc.Refresh(context.Background())
	assert.Equal(t, 2, f.Calls())
	assert.False(t, snap.CacheHit)
	assert.Equal(t, 2, pub.Len())
	assert.Equal(t, snap.RunID, pub.events[1].RunID)
}

func TestSnapshot_PublishesOnSeverityChange(t *testing.T) {
	f := &fakeFetcher{result: prices(480)}
	pub := &recorder{}
	svc := newService(t, f, pub, nil)

	svc.Snapshot(context.Background(), pipeline.Filters{})

	f.result = prices(120)
	svc.cache.Invalidate(context.Background(), svc.CacheKey())
	snap := svc.Snapshot(context.Background(), pipeline.Filters{})

	require.Equal(t, 2, pub.Len())
	assert.Equal(t, contracts.SeverityRisk, snap.Alerts[0].Severity)
	assert.Equal(t, contracts.SeverityRisk, pub.events[1].Alerts[0].Severity)
}

func TestSnapshot_EmptyFetchHalts(t *testing.T) {
	f := &fakeFetcher{result: func([]string) contracts.FetchResult {
		return contracts.FetchResult{Table: contracts.EmptyTable(), Diagnostic: "provider unreachable"}
	}}
	svc := newService(t, f, nil, nil)

	snap := svc.Snapshot(context.Background(), pipeline.Filters{})
	svc.Snapshot(context.Background(), pipeline.Filters{})

	assert.Equal(t, pipeline.StatusHalted, snap.Status)
	assert.Contains(t, snap.Diagnostics, "provider unreachable")
	assert.Equal(t, 2, f.Calls(), "empty results are not cached")
}

func TestSnapshot_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, reg)
	f := &fakeFetcher{result: prices(800)}
	svc := newService(t, f, nil, m)

	svc.Snapshot(context.Background(), pipeline.Filters{})

	n, err := testutil.GatherAndCount(reg, "findash_pipeline_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(reg, "findash_fetch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(reg, "findash_alerts_active")
	require.NoError(t, err)
	assert.Equal(t, 8, n) // 2 subjects × 4 severities
}
