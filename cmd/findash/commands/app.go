package commands

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wonny/findash/internal/cache"
	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/external/yahoo"
	"github.com/wonny/findash/internal/realtime"
	"github.com/wonny/findash/internal/scheduler"
	"github.com/wonny/findash/internal/scheduler/jobs"
	"github.com/wonny/findash/pkg/config"
	"github.com/wonny/findash/pkg/httputil"
	"github.com/wonny/findash/pkg/logger"
	"github.com/wonny/findash/pkg/metrics"
	"github.com/wonny/findash/pkg/redis"
)

// app holds everything a command needs to run the pipeline
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	redis    *redis.Client
	metrics  *metrics.Metrics
	series   *cache.SeriesCache
	hub      *realtime.Hub
	service  *dashboard.Service
	warnings []dashboardconfig.Warning
}

type appOptions struct {
	logOut  io.Writer
	metrics bool // register collectors on the default registry
	hub     bool // publish alerts over websocket
}

// newApp wires config → logger → redis → http client → yahoo → cache → service
func newApp(opts appOptions) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dashboardFile != "" {
		cfg.DashboardFile = dashboardFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.NewWithWriter(cfg, opts.logOut)

	// 3. Load dashboard definition
	dash, _, err := dashboardconfig.Load(cfg.DashboardFile)
	if err != nil {
		return nil, fmt.Errorf("load dashboard: %w", err)
	}
	warnings := dashboardconfig.Warn(dash)
	for _, w := range warnings {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	// 4. Connect to redis (no-op when disabled)
	rdb, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	var m *metrics.Metrics
	if opts.metrics && cfg.MetricsEnabled {
		m = metrics.NewDefault()
	}

	// 5. Create HTTP client, rate limited across processes when redis is shared
	httpClient := httputil.NewWithTimeout(cfg, log, cfg.Yahoo.Timeout).
		WithRetry(cfg.Yahoo.MaxRetries, 500*time.Millisecond).
		WithHeader("User-Agent", "Mozilla/5.0 (compatible; findash)").
		WithLimiter(newLimiter(cfg, rdb))

	// 6. Create fetcher and cache
	fetcher := yahoo.NewClient(httpClient, cfg.Yahoo, log)
	series := cache.NewSeriesCache(log).WithMetrics(m)
	if rdb.Enabled() {
		series = series.WithShared(redis.NewCache(rdb, rdb.Prefix()))
	}

	// 7. Create service
	a := &app{
		cfg:      cfg,
		log:      log,
		redis:    rdb,
		metrics:  m,
		series:   series,
		warnings: warnings,
	}
	var publisher dashboard.Publisher
	if opts.hub {
		a.hub = realtime.NewHub(log, m)
		publisher = a.hub
	}

	a.service, err = dashboard.NewService(dash, fetcher, series, cfg.Cache.TTL, publisher, m, log)
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("create dashboard service: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"dashboard": dash.Meta.DashboardID,
		"symbols":   len(dash.Symbols()),
		"redis":     rdb.Enabled(),
		"ttl":       cfg.Cache.TTL,
	}).Debug("Pipeline wired")

	return a, nil
}

func newLimiter(cfg *config.Config, rdb *redis.Client) httputil.Limiter {
	if !rdb.Enabled() || cfg.Yahoo.RatePerSec <= 0 {
		return httputil.NewRateLimiter(cfg.Yahoo.RatePerSec, cfg.Yahoo.Burst)
	}
	limit := redis.YahooRateLimit
	limit.Limit = int(math.Max(1, math.Ceil(cfg.Yahoo.RatePerSec)))
	return redis.NewRateLimiter(rdb, rdb.Prefix()).Bind(limit)
}

// newScheduler registers the cache jobs on a scheduler that is not started yet
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, scheduler.WithMetrics(a.metrics))

	if err := sched.AddJob(jobs.NewCacheWarmJob(a.service, a.cfg.Cache.WarmSchedule, a.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewCacheCleanupJob(a.series, a.cfg.Cache.CleanupSchedule, a.log)); err != nil {
		return nil, err
	}

	return sched, nil
}

func (a *app) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Redis close failed")
	}
}
