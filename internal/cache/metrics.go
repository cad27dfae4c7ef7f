package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mehranjanati/saas-backend/pkg/metrics"
	"github.com/mehranjanati/saas-backend/pkg/models"
)

// hourKeyLayout produces zero-padded hour keys whose lexicographic order is
// also their time order, which is what retention pruning relies on.
const hourKeyLayout = "2006-01-02:15"

// retentionWindow is how long hourly buckets are kept.
const retentionWindow = 24 * time.Hour

type queryCounters struct {
	hits         uint64
	misses       uint64
	totalSavedMs float64
}

// Aggregator accumulates cache hit/miss counters, per-query breakdowns and
// hourly rollups. All state lives in memory and resets on process restart;
// access is serialized by a single mutex.
type Aggregator struct {
	mu sync.Mutex

	logger *zap.Logger
	now    func() time.Time

	hits         uint64
	misses       uint64
	totalSavedMs float64
	perQuery     map[string]*queryCounters
	hourly       map[string]*models.HourlyBucket
	since        time.Time
}

// NewAggregator creates an empty metrics aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	a := &Aggregator{
		logger: logger,
		now:    time.Now,
	}
	a.resetLocked()
	return a
}

func (a *Aggregator) resetLocked() {
	a.hits = 0
	a.misses = 0
	a.totalSavedMs = 0
	a.perQuery = make(map[string]*queryCounters)
	a.hourly = make(map[string]*models.HourlyBucket)
	a.since = a.now()
}

func (a *Aggregator) queryLocked(name string) *queryCounters {
	q, ok := a.perQuery[name]
	if !ok {
		q = &queryCounters{}
		a.perQuery[name] = q
	}
	return q
}

func (a *Aggregator) bucketLocked() *models.HourlyBucket {
	key := a.now().Format(hourKeyLayout)
	b, ok := a.hourly[key]
	if !ok {
		b = &models.HourlyBucket{}
		a.hourly[key] = b
	}
	return b
}

// RecordHit registers a cache hit for a query together with the estimated
// time saved. Emits a summary log line every 100th global hit.
func (a *Aggregator) RecordHit(queryName string, savedMs float64) {
	metrics.CacheHits.WithLabelValues(queryName).Inc()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.hits++
	a.totalSavedMs += savedMs

	q := a.queryLocked(queryName)
	q.hits++
	q.totalSavedMs += savedMs

	b := a.bucketLocked()
	b.Hits++
	b.TotalSavedMs += savedMs

	if a.hits%100 == 0 {
		total := a.hits + a.misses
		a.logger.Info("cache hit rate checkpoint",
			zap.Float64("hit_rate", float64(a.hits)/float64(total)*100),
			zap.Float64("total_saved_s", a.totalSavedMs/1000),
		)
	}
}

// RecordMiss registers a cache miss for a query.
func (a *Aggregator) RecordMiss(queryName string) {
	metrics.CacheMisses.WithLabelValues(queryName).Inc()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.misses++
	a.queryLocked(queryName).misses++
	a.bucketLocked().Misses++
}

// QueryStats returns counters for a single query. The bool is false when the
// query has never been seen; the returned record is zeroed in that case.
func (a *Aggregator) QueryStats(name string) (models.QueryStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	q, ok := a.perQuery[name]
	if !ok {
		return models.QueryStats{Name: name}, false
	}
	return queryStats(name, q), true
}

func queryStats(name string, q *queryCounters) models.QueryStats {
	stats := models.QueryStats{
		Name:         name,
		Hits:         q.hits,
		Misses:       q.misses,
		TotalSavedMs: q.totalSavedMs,
	}
	if total := q.hits + q.misses; total > 0 {
		stats.HitRate = float64(q.hits) / float64(total) * 100
	}
	if q.hits > 0 {
		stats.AvgTimeSavedMs = q.totalSavedMs / float64(q.hits)
	}
	return stats
}

// Summary returns the aggregated view: totals, hit rate, the top 5 queries by
// average time saved per hit, and the hourly rollups. As a side effect it
// prunes hourly buckets older than 24 hours.
func (a *Aggregator) Summary() models.MetricsSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := a.hits + a.misses
	summary := models.MetricsSummary{
		TotalRequests: total,
		Hits:          a.hits,
		Misses:        a.misses,
		TotalSavedMs:  a.totalSavedMs,
		Since:         a.since,
	}
	if total > 0 {
		summary.HitRate = float64(a.hits) / float64(total) * 100
	}
	if a.hits > 0 {
		summary.AvgTimeSavedMs = a.totalSavedMs / float64(a.hits)
	}

	top := make([]models.QueryStats, 0, len(a.perQuery))
	for name, q := range a.perQuery {
		top = append(top, queryStats(name, q))
	}
	sort.Slice(top, func(i, j int) bool {
		return top[i].AvgTimeSavedMs > top[j].AvgTimeSavedMs
	})
	if len(top) > 5 {
		top = top[:5]
	}
	summary.TopQueries = top

	// Hour keys are zero-padded, so a lexicographic comparison against the
	// cutoff key is a correct time comparison.
	cutoff := a.now().Add(-retentionWindow).Format(hourKeyLayout)
	summary.HourlyStats = make(map[string]models.HourlyBucket, len(a.hourly))
	for key, b := range a.hourly {
		if key < cutoff {
			delete(a.hourly, key)
			continue
		}
		summary.HourlyStats[key] = *b
	}

	return summary
}

// Reset atomically replaces all counters with a fresh zero state and stamps a
// new since timestamp.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.resetLocked()
	a.mu.Unlock()
	a.logger.Info("cache metrics reset")
}
