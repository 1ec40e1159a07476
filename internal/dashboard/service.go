package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/findash/internal/cache"
	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/external/yahoo"
	"github.com/wonny/findash/internal/pipeline"
	"github.com/wonny/findash/internal/realtime"
	"github.com/wonny/findash/pkg/logger"
	"github.com/wonny/findash/pkg/metrics"
)

// Publisher receives the alert list of every fresh run
type Publisher interface {
	Publish(e realtime.Event) error
}

// Snapshot is one pipeline run with its provenance
type Snapshot struct {
	RunID       string    `json:"run_id"`
	DashboardID string    `json:"dashboard_id"`
	ConfigHash  string    `json:"config_hash"`
	GeneratedAt time.Time `json:"generated_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	CacheHit    bool      `json:"cache_hit"`
	pipeline.Output
}

// Service runs the pipeline over cached market data
// ⭐ SSOT: 대시보드 스냅샷 생성은 이 서비스에서만
type Service struct {
	cfg        *dashboardconfig.Config
	configHash string
	fetcher    yahoo.Fetcher
	cache      *cache.SeriesCache
	ttl        time.Duration
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time

	mu        sync.Mutex
	published *realtime.Event
}

// NewService wires the pipeline; publisher and m may be nil
func NewService(
	cfg *dashboardconfig.Config,
	fetcher yahoo.Fetcher,
	seriesCache *cache.SeriesCache,
	ttl time.Duration,
	publisher Publisher,
	m *metrics.Metrics,
	log *logger.Logger,
) (*Service, error) {
	hash, err := dashboardconfig.Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		configHash: hash,
		fetcher:    fetcher,
		cache:      seriesCache,
		ttl:        ttl,
		publisher:  publisher,
		metrics:    m,
		logger:     log.Component("dashboard"),
		now:        time.Now,
	}, nil
}

// Config returns the dashboard definition
func (s *Service) Config() *dashboardconfig.Config {
	return s.cfg
}

// ConfigHash identifies the dashboard definition
func (s *Service) ConfigHash() string {
	return s.configHash
}

// CacheKey is the series cache key of the configured universe
func (s *Service) CacheKey() string {
	return cache.Key(s.cfg.Symbols(), s.cfg.Lookback())
}

// CacheStats exposes the series cache counters
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Snapshot fetches (or reuses) prices and runs the pipeline for filters.
// It never fails: a halted run carries its error in Output.Err.
func (s *Service) Snapshot(ctx context.Context, filters pipeline.Filters) *Snapshot {
	raw, hit := s.cache.GetOrFetch(ctx, s.CacheKey(), s.ttl, s.fetch)
	snap := s.run(raw, hit, filters)
	if !hit {
		s.publish(snap, false)
	}
	return snap
}

// Refresh drops the cached prices, fetches again and runs the default view.
// The fresh alert list is always published.
func (s *Service) Refresh(ctx context.Context) *Snapshot {
	s.cache.Invalidate(ctx, s.CacheKey())
	raw, hit := s.cache.GetOrFetch(ctx, s.CacheKey(), s.ttl, s.fetch)
	snap := s.run(raw, hit, pipeline.Filters{})
	s.publish(snap, true)
	return snap
}

func (s *Service) fetch(ctx context.Context) contracts.FetchResult {
	start := time.Now()
	res := s.fetcher.Fetch(ctx, s.cfg.Symbols(), s.cfg.Lookback())

	outcome := "ok"
	switch {
	case !res.OK():
		outcome = "empty"
	case len(res.Failed) > 0:
		outcome = "partial"
	}
	s.metrics.ObserveFetch(outcome, time.Since(start))
	for sym := range res.Failed {
		s.metrics.SymbolFailed(sym)
	}

	return res
}

func (s *Service) run(raw contracts.FetchResult, hit bool, filters pipeline.Filters) *Snapshot {
	out := pipeline.Run(pipeline.Input{Raw: raw, Config: s.cfg, Filters: filters})

	snap := &Snapshot{
		RunID:       uuid.New().String(),
		DashboardID: s.cfg.Meta.DashboardID,
		ConfigHash:  s.configHash,
		GeneratedAt: s.now(),
		FetchedAt:   raw.FetchedAt,
		CacheHit:    hit,
		Output:      out,
	}

	s.metrics.PipelineRun(string(out.Status))
	severities := make([]string, 0, len(contracts.Severities()))
	for _, sev := range contracts.Severities() {
		severities = append(severities, string(sev))
	}
	for _, a := range out.Alerts {
		s.metrics.SetAlert(a.Subject, string(a.Severity), severities)
	}

	fields := map[string]interface{}{
		"run_id":    snap.RunID,
		"status":    out.Status,
		"cache_hit": hit,
		"assets":    len(out.Assets),
	}
	if out.Err != nil {
		s.logger.WithFields(fields).WithError(out.Err).Warn("Pipeline halted")
	} else {
		s.logger.WithFields(fields).Debug("Pipeline run completed")
	}

	return snap
}

// publish pushes the alert list when severities changed, or always when forced
func (s *Service) publish(snap *Snapshot, force bool) {
	if s.publisher == nil {
		return
	}

	e := realtime.Event{
		Type:        realtime.EventAlerts,
		RunID:       snap.RunID,
		GeneratedAt: snap.GeneratedAt,
		AsOf:        snap.Quality.AsOf,
		Alerts:      snap.Alerts,
	}

	s.mu.Lock()
	changed := e.Changed(s.published)
	if force || changed {
		s.published = &e
	}
	s.mu.Unlock()

	if !force && !changed {
		return
	}
	if err := s.publisher.Publish(e); err != nil {
		s.logger.WithError(err).Warn("Failed to publish alerts")
	}
}
