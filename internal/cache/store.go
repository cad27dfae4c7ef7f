package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const deleteBatchSize = 100

// Store implements the cache-aside pattern in front of the remote query
// backend: callers check Get first, and populate with Set after a miss. Every
// outcome is reported to the Aggregator. The backend is never a hard
// dependency: any backend failure degrades to a miss.
type Store struct {
	backend       Backend
	metrics       *Aggregator
	logger        *zap.Logger
	defaultTTL    time.Duration
	assumedCostMs float64
}

// StoreOptions carries tuning knobs for the Store.
type StoreOptions struct {
	// DefaultTTL is applied when Set is called with a zero TTL.
	DefaultTTL time.Duration
	// AssumedCostMs is the estimated cost of the query the cache avoided.
	// The time-saved figure for a hit is AssumedCostMs minus the observed
	// lookup time; it is a heuristic, not a measurement.
	AssumedCostMs float64
}

// NewStore creates a cache-aside store over the given backend.
func NewStore(backend Backend, metrics *Aggregator, logger *zap.Logger, opts StoreOptions) *Store {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	if opts.AssumedCostMs <= 0 {
		opts.AssumedCostMs = 100
	}
	return &Store{
		backend:       backend,
		metrics:       metrics,
		logger:        logger,
		defaultTTL:    opts.DefaultTTL,
		assumedCostMs: opts.AssumedCostMs,
	}
}

// ComputeKey derives a deterministic cache key from the query name, its
// variables and the requesting principal. Identical inputs always produce the
// same key: encoding/json serializes map keys in sorted order, so variable
// ordering does not matter. A variable set that cannot be serialized is an
// error; dropping it silently would collapse distinct requests onto the same
// key, so callers bypass the cache for that request instead.
func (s *Store) ComputeKey(queryName string, variables map[string]any, principal string) (string, error) {
	parts := []string{queryName}
	if len(variables) > 0 {
		encoded, err := json.Marshal(variables)
		if err != nil {
			s.logger.Warn("cache key: variables not serializable, bypassing cache",
				zap.String("query", queryName),
				zap.Error(err),
			)
			return "", fmt.Errorf("cache key: marshal variables: %w", err)
		}
		parts = append(parts, string(encoded))
	}
	if principal != "" {
		parts = append(parts, principal)
	}
	return strings.Join(parts, ":"), nil
}

// Get attempts a cache lookup. The second return value reports whether the
// lookup hit. Backend errors and undecodable payloads both count as a miss
// and are never surfaced to the caller.
func (s *Store) Get(ctx context.Context, queryName, key string) (json.RawMessage, bool) {
	start := time.Now()

	data, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordMiss(queryName)
		return nil, false
	}
	if !json.Valid(data) {
		s.logger.Warn("cache entry is not valid JSON, treating as miss", zap.String("key", key))
		s.metrics.RecordMiss(queryName)
		return nil, false
	}

	elapsedMs := float64(time.Since(start).Microseconds()) / 1000
	s.metrics.RecordHit(queryName, s.assumedCostMs-elapsedMs)
	return json.RawMessage(data), true
}

// Set stores a value best-effort. Failures are logged, never propagated.
func (s *Store) Set(ctx context.Context, queryName, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("cache set: marshal failed", zap.String("query", queryName), zap.Error(err))
		return
	}
	if err := s.backend.SetWithTTL(ctx, key, data, ttl); err != nil {
		s.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.logger.Debug("stored in cache",
		zap.String("query", queryName),
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
}

// Invalidate deletes a single cache entry.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// InvalidateByPattern enumerates keys matching a glob pattern and deletes
// them in bounded batches. Returns the number of keys deleted.
func (s *Store) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	keys, err := s.backend.ScanKeys(ctx, pattern)
	if err != nil {
		s.logger.Warn("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
		return 0, err
	}
	if len(keys) == 0 {
		s.logger.Info("no cache keys matched pattern", zap.String("pattern", pattern))
		return 0, nil
	}

	deleted := 0
	for i := 0; i < len(keys); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := s.backend.Delete(ctx, keys[i:end]...); err != nil {
			s.logger.Error("cache batch delete failed", zap.String("pattern", pattern), zap.Error(err))
			return deleted, err
		}
		deleted += end - i
	}

	s.logger.Info("invalidated cache keys",
		zap.String("pattern", pattern),
		zap.Int("count", deleted),
	)
	return deleted, nil
}

// Close releases the underlying backend connection.
func (s *Store) Close() error {
	return s.backend.Close()
}
