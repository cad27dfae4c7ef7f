package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(zap.NewNop())
}

func TestHitRate(t *testing.T) {
	a := newTestAggregator(t)

	summary := a.Summary()
	assert.Zero(t, summary.HitRate, "hit rate must be 0 with no requests")

	for i := 0; i < 3; i++ {
		a.RecordHit("get_orders", 90)
	}
	a.RecordMiss("get_orders")

	summary = a.Summary()
	assert.Equal(t, uint64(4), summary.TotalRequests)
	assert.Equal(t, uint64(3), summary.Hits)
	assert.Equal(t, uint64(1), summary.Misses)
	assert.InDelta(t, 75.0, summary.HitRate, 0.001)
	assert.InDelta(t, 90.0, summary.AvgTimeSavedMs, 0.001)
}

func TestCounterConservation(t *testing.T) {
	a := newTestAggregator(t)

	a.RecordHit("get_orders", 50)
	a.RecordHit("get_users", 80)
	a.RecordMiss("get_orders")
	a.RecordMiss("get_products")
	a.RecordHit("get_orders", 70)

	summary := a.Summary()

	var perQueryTotal uint64
	for _, name := range []string{"get_orders", "get_users", "get_products"} {
		stats, ok := a.QueryStats(name)
		require.True(t, ok, name)
		perQueryTotal += stats.Hits + stats.Misses
	}
	assert.Equal(t, summary.Hits+summary.Misses, perQueryTotal)
}

func TestQueryStatsUnseen(t *testing.T) {
	a := newTestAggregator(t)

	stats, ok := a.QueryStats("never_seen")
	assert.False(t, ok)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.TotalSavedMs)
}

func TestReset(t *testing.T) {
	a := newTestAggregator(t)

	a.RecordHit("get_orders", 42)
	a.RecordMiss("get_orders")
	before := a.Summary().Since

	time.Sleep(5 * time.Millisecond)
	a.Reset()

	summary := a.Summary()
	assert.Zero(t, summary.Hits)
	assert.Zero(t, summary.Misses)
	assert.Zero(t, summary.TotalSavedMs)
	assert.Empty(t, summary.TopQueries)
	assert.True(t, summary.Since.After(before), "reset must stamp a newer since")
}

func TestTopQueriesRankedByAvgSaved(t *testing.T) {
	a := newTestAggregator(t)

	// avg saved: slow_query 200, medium 100, fast 10
	a.RecordHit("slow_query", 200)
	a.RecordHit("medium_query", 100)
	a.RecordHit("fast_query", 10)
	for _, name := range []string{"a", "b", "c"} {
		a.RecordHit(name, 1)
	}

	top := a.Summary().TopQueries
	require.Len(t, top, 5)
	assert.Equal(t, "slow_query", top[0].Name)
	assert.Equal(t, "medium_query", top[1].Name)
	assert.Equal(t, "fast_query", top[2].Name)
}

func TestHourlyRetention(t *testing.T) {
	a := newTestAggregator(t)

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// Two days ago: outside the window.
	a.now = func() time.Time { return base.Add(-48 * time.Hour) }
	a.RecordHit("get_orders", 50)

	// Two hours ago: inside the window.
	a.now = func() time.Time { return base.Add(-2 * time.Hour) }
	a.RecordHit("get_orders", 50)

	a.now = func() time.Time { return base }
	summary := a.Summary()

	cutoff := base.Add(-24 * time.Hour).Format(hourKeyLayout)
	require.Len(t, summary.HourlyStats, 1)
	for key := range summary.HourlyStats {
		assert.GreaterOrEqual(t, key, cutoff)
	}

	// Pruning mutates stored state, not just the returned view.
	assert.Len(t, a.hourly, 1)
}

func TestEvery100thHitLogsWithoutPanic(t *testing.T) {
	a := newTestAggregator(t)
	for i := 0; i < 205; i++ {
		a.RecordHit("get_orders", 10)
	}
	assert.Equal(t, uint64(205), a.Summary().Hits)
}
