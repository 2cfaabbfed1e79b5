package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// RedisTier keeps entries in Redis under "<prefix>:<key>". Redis expires
// them natively after ttl; the byte budget is left to the server's
// maxmemory policy.
type RedisTier struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Prefix string
	TTL    time.Duration
}

// NewRedisTier wraps an already connected client. The caller owns the client.
func NewRedisTier(client *redis.Client, cfg RedisConfig) *RedisTier {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "apex"
	}
	return &RedisTier{client: client, prefix: prefix, ttl: cfg.TTL}
}

func (r *RedisTier) Name() string { return "redis" }

func (r *RedisTier) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisTier) Load(ctx context.Context, key string) (Entry, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: redis get %s: %w", key, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if rec.Key != key {
		return Entry{}, fmt.Errorf("%w: %s: stored under %q", ErrCorrupt, key, rec.Key)
	}
	return Entry{Key: rec.Key, Value: rec.Value, CreatedAt: rec.CreatedAt}, nil
}

func (r *RedisTier) Store(ctx context.Context, e Entry) ([]string, error) {
	raw, err := json.Marshal(diskRecord{Key: e.Key, CreatedAt: e.CreatedAt, Value: e.Value})
	if err != nil {
		return nil, fmt.Errorf("cache: encode %s: %w", e.Key, err)
	}
	if err := r.client.Set(ctx, r.key(e.Key), raw, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis set %s: %w", e.Key, err)
	}
	return nil, nil
}

func (r *RedisTier) Remove(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: redis del %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *RedisTier) Purge(ctx context.Context) (int, error) {
	removed := 0
	err := r.scan(ctx, func(keys []string) error {
		n, err := r.client.Del(ctx, keys...).Result()
		removed += int(n)
		return err
	})
	return removed, err
}

func (r *RedisTier) PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	var removed []string
	var errs error
	err := r.scan(ctx, func(keys []string) error {
		vals, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				// Expired between SCAN and MGET.
				continue
			}
			id := keys[i]
			if rec, err := decodeRecord([]byte(s)); err == nil {
				if !expiredAt(rec.CreatedAt, cutoff) {
					continue
				}
				id = rec.Key
			}
			if err := r.client.Del(ctx, keys[i]).Err(); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			removed = append(removed, id)
		}
		return nil
	})
	return removed, multierr.Append(err, errs)
}

func (r *RedisTier) Usage(ctx context.Context) (Usage, error) {
	var u Usage
	err := r.scan(ctx, func(keys []string) error {
		pipe := r.client.Pipeline()
		cmds := make([]*redis.IntCmd, len(keys))
		for i, k := range keys {
			cmds[i] = pipe.StrLen(ctx, k)
		}
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		for _, c := range cmds {
			if n := c.Val(); n > 0 {
				u.Entries++
				u.Bytes += n
			}
		}
		return nil
	})
	return u, err
}

// Close is a no-op; main owns the client.
func (r *RedisTier) Close() error { return nil }

// Ping checks if Redis connection is healthy.
func (r *RedisTier) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// scan walks every key under the prefix in batches.
func (r *RedisTier) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+":*", 200).Result()
		if err != nil {
			return fmt.Errorf("cache: redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
