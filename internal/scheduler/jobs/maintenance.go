package jobs

import (
	"context"

	"github.com/wonny/findash/pkg/logger"
)

// ExpiredCleaner drops cache entries past their TTL
type ExpiredCleaner interface {
	CleanExpired() int
}

// CacheCleanupJob evicts expired series from the in-process cache
type CacheCleanupJob struct {
	cache    ExpiredCleaner
	schedule string
	logger   *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(seriesCache ExpiredCleaner, schedule string, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:    seriesCache,
		schedule: schedule,
		logger:   log.Component("cache_cleanup"),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes by default)
func (j *CacheCleanupJob) Schedule() string {
	return j.schedule
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	count := j.cache.CleanExpired()
	if count > 0 {
		j.logger.WithField("removed", count).Info("Cache cleanup completed")
	}

	return nil
}
