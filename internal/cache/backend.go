package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Backend.Get when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Backend is the key-value capability the store runs against. Implementations
// are selected once at startup; call sites never branch on backend identity.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}

// redisBackend is the production Backend over a Redis connection.
type redisBackend struct {
	rdb redis.UniversalClient
}

// NewRedisBackend wraps an established Redis client as a Backend.
func NewRedisBackend(rdb redis.UniversalClient) Backend {
	return &redisBackend{rdb: rdb}
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (b *redisBackend) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *redisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// ScanKeys enumerates keys matching a glob pattern with an incremental SCAN.
func (b *redisBackend) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := b.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (b *redisBackend) Close() error {
	return b.rdb.Close()
}

// noopBackend stands in when Redis is unreachable at startup. Every read
// misses and every write is discarded, so the service stays correct without
// the cache.
type noopBackend struct{}

// NewNoopBackend returns a Backend that never stores anything.
func NewNoopBackend() Backend {
	return noopBackend{}
}

func (noopBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrNotFound
}

func (noopBackend) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (noopBackend) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (noopBackend) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	return nil, nil
}

func (noopBackend) Close() error {
	return nil
}

// memoryBackend is an in-process Backend used by tests and single-node
// deployments that run without Redis.
type memoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryBackend returns an empty in-memory Backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{entries: make(map[string]memoryEntry)}
}

func (b *memoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	entry, ok := b.entries[key]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		b.mu.Lock()
		delete(b.entries, key)
		b.mu.Unlock()
		return nil, ErrNotFound
	}
	return entry.value, nil
}

func (b *memoryBackend) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	b.mu.Lock()
	b.entries[key] = entry
	b.mu.Unlock()
	return nil
}

func (b *memoryBackend) Delete(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	for _, key := range keys {
		delete(b.entries, key)
	}
	b.mu.Unlock()
	return nil
}

// ScanKeys matches keys against a Redis-style glob.
func (b *memoryBackend) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for key := range b.entries {
		if globMatch(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// globMatch implements the `*`/`?` subset of Redis MATCH semantics. Unlike
// path.Match, `*` spans every byte including slashes, which keys carrying
// JSON-encoded variables (dates, URLs) can contain.
func globMatch(pattern, s string) bool {
	px, sx := 0, 0
	starPx, starSx := -1, -1
	for sx < len(s) {
		switch {
		case px < len(pattern) && (pattern[px] == '?' || pattern[px] == s[sx]):
			px++
			sx++
		case px < len(pattern) && pattern[px] == '*':
			starPx, starSx = px, sx
			px++
		case starPx >= 0:
			starSx++
			px, sx = starPx+1, starSx
		default:
			return false
		}
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}

func (b *memoryBackend) Close() error {
	return nil
}

// Connect probes Redis and returns the real backend on success, or the no-op
// fallback when the probe fails. Cache unavailability is never fatal.
func Connect(addr, password string, db int, dialTimeout time.Duration, logger *zap.Logger) Backend {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis connection failed, falling back to no-op cache backend",
			zap.String("addr", addr),
			zap.Error(err),
		)
		_ = rdb.Close()
		return NewNoopBackend()
	}

	logger.Info("Redis connection successful",
		zap.String("addr", addr),
		zap.Int("db", db),
	)
	return NewRedisBackend(rdb)
}
