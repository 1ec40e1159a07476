package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/pkg/logger"
	"github.com/wonny/findash/pkg/metrics"
	"github.com/wonny/findash/pkg/redis"
)

// DefaultFetchTimeout bounds a shared fetch once it no longer follows any caller's context
const DefaultFetchTimeout = 2 * time.Minute

// FetchFunc produces a fresh result on a miss
type FetchFunc func(ctx context.Context) contracts.FetchResult

// SeriesCache memoizes fetch results per (symbol set, lookback) for a TTL
// ⭐ SSOT: 가격 시계열 캐싱은 이 구조체에서만
// Stored results are immutable: callers always receive a deep copy.
type SeriesCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group

	shared  *redis.Cache
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time

	fetchTimeout time.Duration

	hits       atomic.Int64
	sharedHits atomic.Int64
	misses     atomic.Int64
}

type entry struct {
	result   contracts.FetchResult
	storedAt time.Time
	ttl      time.Duration
}

// fresh reports whether the entry is younger than both its stored TTL and ttl.
// CleanExpired passes the stored TTL, so anything it keeps is at least as
// fresh as what a lookup would accept.
func (e entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Before(e.storedAt.Add(min(e.ttl, ttl)))
}

func (e entry) expiresAt() time.Time {
	return e.storedAt.Add(e.ttl)
}

// EntryInfo describes one cached fetch
type EntryInfo struct {
	Key       string    `json:"key"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
}

// Stats is a point-in-time view of the cache
type Stats struct {
	Entries    []EntryInfo `json:"entries"`
	Hits       int64       `json:"hits"`
	SharedHits int64       `json:"shared_hits"`
	Misses     int64       `json:"misses"`
}

// NewSeriesCache creates an empty in-process cache
func NewSeriesCache(log *logger.Logger) *SeriesCache {
	return &SeriesCache{
		entries: make(map[string]entry),
		logger:  log.Component("series_cache"),
		now:     time.Now,

		fetchTimeout: DefaultFetchTimeout,
	}
}

// WithShared adds a Redis tier consulted after the in-process map
func (c *SeriesCache) WithShared(shared *redis.Cache) *SeriesCache {
	c.shared = shared
	return c
}

// WithMetrics records lookups on m
func (c *SeriesCache) WithMetrics(m *metrics.Metrics) *SeriesCache {
	c.metrics = m
	return c
}

// WithClock overrides the clock used for ages
func (c *SeriesCache) WithClock(now func() time.Time) *SeriesCache {
	c.now = now
	return c
}

// WithFetchTimeout bounds each shared fetch; d <= 0 keeps the default
func (c *SeriesCache) WithFetchTimeout(d time.Duration) *SeriesCache {
	if d > 0 {
		c.fetchTimeout = d
	}
	return c
}

// Key identifies a fetch by its symbol set and lookback; symbol order does not matter
func Key(symbols []string, lookback contracts.Lookback) string {
	set := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		set = append(set, s)
	}
	sort.Strings(set)
	return redis.SeriesKey(set, lookback.String())
}

// GetOrFetch returns the stored result for key when it is younger than ttl,
// otherwise calls fetch, stores a result that carries data, and returns it.
// Concurrent misses on the same key share a single fetch. The shared fetch is
// detached from any one caller's cancellation and bounded by the fetch timeout;
// a caller whose ctx ends first gets an empty result carrying ctx's error while
// the others keep waiting.
// hit is true when no fetch was needed for this call.
func (c *SeriesCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (contracts.FetchResult, bool) {
	if res, ok := c.lookup(key, ttl); ok {
		c.hits.Add(1)
		c.metrics.CacheResult("hit")
		return res.Clone(), true
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		// another caller may have stored it while we waited
		if res, ok := c.lookup(key, ttl); ok {
			return flight{result: res, cached: true}, nil
		}

		if res, ok := c.loadShared(fctx, key, ttl); ok {
			c.sharedHits.Add(1)
			c.metrics.CacheResult("shared_hit")
			c.store(key, res, res.FetchedAt, ttl)
			return flight{result: res, cached: true}, nil
		}

		c.misses.Add(1)
		c.metrics.CacheResult("miss")
		res := fetch(fctx)
		if !res.OK() {
			c.logger.WithFields(map[string]interface{}{
				"key":        key,
				"diagnostic": res.Diagnostic,
			}).Warn("Fetch returned no data, not caching")
			return flight{result: res}, nil
		}

		c.store(key, res, c.now(), ttl)
		c.saveShared(fctx, key, res, ttl)
		return flight{result: res}, nil
	})

	select {
	case r := <-ch:
		f := r.Val.(flight)
		return f.result.Clone(), f.cached
	case <-ctx.Done():
		c.logger.WithFields(map[string]interface{}{
			"key":   key,
			"error": ctx.Err().Error(),
		}).Debug("Caller left before shared fetch finished")
		return contracts.FetchResult{Diagnostic: ctx.Err().Error()}, false
	}
}

type flight struct {
	result contracts.FetchResult
	cached bool
}

func (c *SeriesCache) lookup(key string, ttl time.Duration) (contracts.FetchResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.fresh(c.now(), ttl) {
		return contracts.FetchResult{}, false
	}
	return e.result, true
}

func (c *SeriesCache) store(key string, res contracts.FetchResult, storedAt time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		result:   res.Clone(),
		storedAt: storedAt,
		ttl:      ttl,
	}

	c.logger.WithFields(map[string]interface{}{
		"key":     key,
		"rows":    res.Table.Rows(),
		"columns": res.Table.Width(),
		"ttl":     ttl.String(),
	}).Debug("Stored series")
}

func (c *SeriesCache) loadShared(ctx context.Context, key string, ttl time.Duration) (contracts.FetchResult, bool) {
	if !c.shared.Enabled() {
		return contracts.FetchResult{}, false
	}

	var res contracts.FetchResult
	found, err := c.shared.Get(ctx, key, &res)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Shared cache read failed")
		return contracts.FetchResult{}, false
	}
	if !found || !res.OK() || c.now().Sub(res.FetchedAt) >= ttl {
		return contracts.FetchResult{}, false
	}
	return res, true
}

func (c *SeriesCache) saveShared(ctx context.Context, key string, res contracts.FetchResult, ttl time.Duration) {
	if !c.shared.Enabled() {
		return
	}
	if err := c.shared.Set(ctx, key, res, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Shared cache write failed")
	}
}

// Invalidate drops key from both tiers
func (c *SeriesCache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.shared.Enabled() {
		if err := c.shared.Delete(ctx, key); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Shared cache delete failed")
		}
	}
}

// CleanExpired removes expired entries and returns how many were dropped
func (c *SeriesCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !e.fresh(now, e.ttl) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.logger.WithField("removed", removed).Info("Cleaned expired series")
	}
	return removed
}

// Len returns the number of stored entries, expired or not
func (c *SeriesCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns counters and per-entry metadata sorted by key
func (c *SeriesCache) Stats() Stats {
	c.mu.RLock()
	infos := make([]EntryInfo, 0, len(c.entries))
	for key, e := range c.entries {
		infos = append(infos, EntryInfo{
			Key:       key,
			StoredAt:  e.storedAt,
			ExpiresAt: e.expiresAt(),
			Rows:      e.result.Table.Rows(),
			Columns:   e.result.Table.Width(),
		})
	}
	c.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	return Stats{
		Entries:    infos,
		Hits:       c.hits.Load(),
		SharedHits: c.sharedHits.Load(),
		Misses:     c.misses.Load(),
	}
}
