package cache

import (
	"context"
	"strings"
	"time"

	"apex-dashboard/internal/metrics"
	"apex-dashboard/pkg/logging"

	"go.uber.org/zap"
)

// LoggingCache wraps a Cache with per-operation logging and hit/miss metrics.
type LoggingCache struct {
	inner Cache
}

// NewLoggingCache returns a cache that logs and records metrics.
func NewLoggingCache(inner Cache) Cache {
	return &LoggingCache{inner: inner}
}

func (c *LoggingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	value, ok := c.inner.Get(ctx, key)

	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(result).Inc()

	logging.L(ctx).Debug("cache_get", append(keyFields(key),
		zap.String("cache_result", result),
		zap.Float64("latency_ms", sinceMs(start)),
	)...)

	return value, ok
}

func (c *LoggingCache) Set(ctx context.Context, key string, value []byte) bool {
	start := time.Now()
	persisted := c.inner.Set(ctx, key, value)

	fields := append(keyFields(key),
		zap.Int("bytes", len(value)),
		zap.Bool("persisted", persisted),
		zap.Float64("latency_ms", sinceMs(start)),
	)
	if persisted {
		logging.L(ctx).Debug("cache_set", fields...)
	} else {
		logging.L(ctx).Warn("cache_set", fields...)
	}
	return persisted
}

func (c *LoggingCache) Delete(ctx context.Context, key string) bool {
	removed := c.inner.Delete(ctx, key)
	logging.L(ctx).Info("cache_delete", append(keyFields(key), zap.Bool("removed", removed))...)
	return removed
}

func (c *LoggingCache) ClearAll(ctx context.Context) int {
	start := time.Now()
	n := c.inner.ClearAll(ctx)
	logging.L(ctx).Info("cache_clear_all",
		zap.Int("removed", n),
		zap.Float64("latency_ms", sinceMs(start)),
	)
	return n
}

func (c *LoggingCache) ClearExpired(ctx context.Context) int {
	start := time.Now()
	n := c.inner.ClearExpired(ctx)
	logging.L(ctx).Info("cache_clear_expired",
		zap.Int("removed", n),
		zap.Float64("latency_ms", sinceMs(start)),
	)
	return n
}

func (c *LoggingCache) Info(ctx context.Context) Info {
	return c.inner.Info(ctx)
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// keyFields splits a BuildKey key into source/resource fields when possible.
func keyFields(key string) []zap.Field {
	fields := []zap.Field{zap.String("cache_key", key)}
	parts := strings.SplitN(key, ":", 3)
	if len(parts) >= 2 {
		fields = append(fields,
			zap.String("source", parts[0]),
			zap.String("resource", parts[1]),
		)
	}
	return fields
}
