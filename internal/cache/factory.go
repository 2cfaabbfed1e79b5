package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend names accepted by Config.Backend.
const (
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Backend        string
	Dir            string
	SQLitePath     string
	TTL            time.Duration
	MaxMemoryItems int
	MaxDiskBytes   int64
	Prefix         string
}

// NewDurableTier returns the durable tier selected by cfg.Backend, or nil
// for a memory-only store. redisClient is only used for the redis backend.
func NewDurableTier(cfg Config, redisClient *redis.Client, logger *zap.Logger) (Tier, error) {
	switch cfg.Backend {
	case BackendMemory:
		return nil, nil
	case BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("cache: redis backend needs a client")
		}
		return NewRedisTier(redisClient, RedisConfig{Prefix: cfg.Prefix, TTL: cfg.TTL}), nil
	case BackendSQLite:
		return OpenSQLiteTier(cfg.SQLitePath, cfg.MaxDiskBytes)
	case BackendDisk, "":
		return NewDiskTier(cfg.Dir, cfg.MaxDiskBytes, logger)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

// NewFromConfig builds the store and its durable tier. If the durable tier
// cannot be opened the store degrades to memory-only and logs why.
func NewFromConfig(cfg Config, redisClient *redis.Client, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tier, err := NewDurableTier(cfg, redisClient, logger)
	if err != nil {
		logger.Warn("durable cache unavailable; running memory-only",
			zap.String("backend", cfg.Backend),
			zap.Error(err),
		)
		tier = nil
	}

	return NewStore(Options{
		TTL:            cfg.TTL,
		MaxMemoryItems: cfg.MaxMemoryItems,
		Durable:        tier,
		DurableLimit:   cfg.MaxDiskBytes,
		Logger:         logger,
	})
}
