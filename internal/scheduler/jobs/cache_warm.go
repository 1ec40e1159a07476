package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/pkg/logger"
)

// Refresher re-fetches the configured universe and runs the default view
type Refresher interface {
	Refresh(ctx context.Context) *dashboard.Snapshot
}

// CacheWarmJob refreshes the series cache ahead of user requests
// ⭐ SSOT: 캐시 예열 스케줄은 이 Job에서만
type CacheWarmJob struct {
	service  Refresher
	schedule string
	logger   *logger.Logger
}

// NewCacheWarmJob creates a cache warm job running on schedule
func NewCacheWarmJob(service Refresher, schedule string, log *logger.Logger) *CacheWarmJob {
	return &CacheWarmJob{
		service:  service,
		schedule: schedule,
		logger:   log.Component("cache_warm"),
	}
}

// Name returns the job name
func (j *CacheWarmJob) Name() string {
	return "cache_warm"
}

// Schedule returns the cron schedule (with seconds)
func (j *CacheWarmJob) Schedule() string {
	return j.schedule
}

// Run refreshes the cache. A halted run is a failure so the scheduler retries it;
// a degraded one is logged and kept.
func (j *CacheWarmJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled cache warm")

	snap := j.service.Refresh(ctx)
	if snap.Halted() {
		return fmt.Errorf("cache warm: %w", snap.Err)
	}

	fields := map[string]interface{}{
		"run_id":  snap.RunID,
		"status":  snap.Status,
		"rows":    snap.Quality.Rows,
		"fetched": snap.Quality.Fetched,
	}
	if len(snap.Quality.Failed) > 0 {
		fields["failed"] = len(snap.Quality.Failed)
		j.logger.WithFields(fields).Warn("Cache warmed with missing symbols")
		return nil
	}

	j.logger.WithFields(fields).Info("Cache warm completed")
	return nil
}
