package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// failingBackend simulates a cache backend that is down: every operation
// errors.
type failingBackend struct{}

func (failingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingBackend) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingBackend) Delete(ctx context.Context, keys ...string) error {
	return errors.New("connection refused")
}

func (failingBackend) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (failingBackend) Close() error { return nil }

func newTestStore(t *testing.T, backend Backend) (*Store, *Aggregator) {
	t.Helper()
	agg := NewAggregator(zap.NewNop())
	store := NewStore(backend, agg, zap.NewNop(), StoreOptions{})
	return store, agg
}

func TestComputeKeyDeterministic(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryBackend())

	varsA := map[string]any{"limit": 10, "status": "open", "user": "u-1"}
	varsB := map[string]any{"user": "u-1", "limit": 10, "status": "open"}

	keyA, err := store.ComputeKey("get_orders", varsA, "user-42")
	require.NoError(t, err)
	keyB, err := store.ComputeKey("get_orders", varsB, "user-42")
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB, "key must not depend on variable insertion order")

	// Repeated calls are stable too.
	for i := 0; i < 10; i++ {
		key, err := store.ComputeKey("get_orders", varsA, "user-42")
		require.NoError(t, err)
		assert.Equal(t, keyA, key)
	}
}

func TestComputeKeyParts(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryBackend())

	bare, err := store.ComputeKey("get_orders", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "get_orders", bare)

	scoped, err := store.ComputeKey("get_orders", nil, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "get_orders:user-42", scoped)

	withVars, err := store.ComputeKey("get_orders", map[string]any{"limit": 5}, "user-42")
	require.NoError(t, err)
	assert.Equal(t, `get_orders:{"limit":5}:user-42`, withVars)
}

func TestComputeKeyUnserializableVars(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryBackend())

	// A channel has no JSON encoding; the key must error out rather than
	// silently collapse onto the vars-free key.
	_, err := store.ComputeKey("get_orders", map[string]any{"ch": make(chan int)}, "user-1")
	assert.Error(t, err)
}

func TestComputeKeyDistinctInputs(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryBackend())

	base, err := store.ComputeKey("get_orders", nil, "user-1")
	require.NoError(t, err)
	for _, other := range []struct {
		query     string
		vars      map[string]any
		principal string
	}{
		{"get_orders", nil, "user-2"},
		{"get_users", nil, "user-1"},
		{"get_orders", map[string]any{"x": 1}, "user-1"},
	} {
		key, err := store.ComputeKey(other.query, other.vars, other.principal)
		require.NoError(t, err)
		assert.NotEqual(t, base, key)
	}
}

func TestCacheAsideRoundTrip(t *testing.T) {
	store, agg := newTestStore(t, NewMemoryBackend())
	ctx := context.Background()

	key, err := store.ComputeKey("get_orders", nil, "user-1")
	require.NoError(t, err)

	_, found := store.Get(ctx, "get_orders", key)
	assert.False(t, found)

	store.Set(ctx, "get_orders", key, map[string]any{"orders": []string{"a", "b"}}, time.Minute)

	value, found := store.Get(ctx, "get_orders", key)
	require.True(t, found)
	assert.JSONEq(t, `{"orders":["a","b"]}`, string(value))

	summary := agg.Summary()
	assert.Equal(t, uint64(1), summary.Hits)
	assert.Equal(t, uint64(1), summary.Misses)
}

func TestGetDegradesToMissWhenBackendDown(t *testing.T) {
	store, agg := newTestStore(t, failingBackend{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		value, found := store.Get(ctx, "get_orders", "get_orders:user-1")
		assert.Nil(t, value)
		assert.False(t, found)
	}

	// Writes are best-effort and must not panic or propagate.
	store.Set(ctx, "get_orders", "get_orders:user-1", "data", time.Minute)

	summary := agg.Summary()
	assert.Equal(t, uint64(0), summary.Hits)
	assert.Equal(t, uint64(5), summary.Misses, "every failed lookup records a miss")
}

func TestGetInvalidPayloadCountsAsMiss(t *testing.T) {
	backend := NewMemoryBackend()
	store, agg := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, backend.SetWithTTL(ctx, "get_orders:user-1", []byte("{not json"), time.Minute))

	_, found := store.Get(ctx, "get_orders", "get_orders:user-1")
	assert.False(t, found)
	assert.Equal(t, uint64(1), agg.Summary().Misses)
}

func TestInvalidate(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryBackend())
	ctx := context.Background()

	store.Set(ctx, "get_orders", "get_orders:user-1", "data", time.Minute)
	require.NoError(t, store.Invalidate(ctx, "get_orders:user-1"))

	_, found := store.Get(ctx, "get_orders", "get_orders:user-1")
	assert.False(t, found)
}

func TestInvalidateByPattern(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryBackend())
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		key := fmt.Sprintf(`get_orders:{"page":%d}:user-1`, i)
		store.Set(ctx, "get_orders", key, i, time.Minute)
	}
	store.Set(ctx, "get_orders", "get_orders:user-2", "other user", time.Minute)
	store.Set(ctx, "get_users", "get_users:user-1", "other query", time.Minute)

	count, err := store.InvalidateByPattern(ctx, "get_orders:*:user-1")
	require.NoError(t, err)
	assert.Equal(t, 250, count)

	// Unrelated entries survive.
	_, found := store.Get(ctx, "get_orders", "get_orders:user-2")
	assert.True(t, found)
	_, found = store.Get(ctx, "get_users", "get_users:user-1")
	assert.True(t, found)
}

func TestInvalidateByPatternNoMatches(t *testing.T) {
	store, _ := newTestStore(t, NewMemoryBackend())

	count, err := store.InvalidateByPattern(context.Background(), "get_orders:*:nobody")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScanKeysMatchesSlashedValues(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	// JSON-encoded variables can carry slashes (dates, URLs); the glob must
	// still span them the way a Redis MATCH does.
	key := `get_orders:{"since":"2025/06/01"}:user-1`
	require.NoError(t, backend.SetWithTTL(ctx, key, []byte(`{}`), time.Minute))

	keys, err := backend.ScanKeys(ctx, "get_orders:*:user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"get_orders:*", "get_orders:user-1", true},
		{"get_orders:*:user-1", `get_orders:{"a":"b/c"}:user-1`, true},
		{"get_orders:*:user-1", "get_orders:user-2", false},
		{"get_?rders", "get_orders", true},
		{"*", "anything/at/all", true},
		{"get_orders", "get_orders", true},
		{"get_orders", "get_users", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, globMatch(tc.pattern, tc.s), "%s vs %s", tc.pattern, tc.s)
	}
}

func TestMemoryBackendExpiry(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, backend.SetWithTTL(ctx, "k", []byte(`"v"`), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := backend.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNoopBackend(t *testing.T) {
	backend := NewNoopBackend()
	ctx := context.Background()

	require.NoError(t, backend.SetWithTTL(ctx, "k", []byte(`"v"`), time.Minute))
	_, err := backend.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := backend.ScanKeys(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
