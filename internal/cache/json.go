package cache

import (
	"context"
	"encoding/json"

	"apex-dashboard/pkg/logging"

	"go.uber.org/zap"
)

// GetJSON reads key and decodes it into T. A payload that no longer decodes
// (for example after a type change between releases) is deleted and
// reported as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var out T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		logging.L(ctx).Warn("cached payload does not decode; dropping",
			zap.String("key", key),
			zap.Error(err),
		)
		c.Delete(ctx, key)
		var zero T
		return zero, false
	}
	return out, true
}

// SetJSON encodes v and stores it under key. Encoding failures are logged
// and reported like a failed durable write.
func SetJSON(ctx context.Context, c Cache, key string, v any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		logging.L(ctx).Warn("cannot encode cache payload", zap.String("key", key), zap.Error(err))
		return false
	}
	return c.Set(ctx, key, raw)
}
