// Package config reads the dashboard settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"apex-dashboard/internal/cache"
	"apex-dashboard/internal/jolpica"
)

const (
	defaultTTLHours       = 24
	defaultMaxMemoryItems = 50
	defaultMaxSizeMB      = 500
)

type Config struct {
	Port           string
	RequestTimeout time.Duration

	CacheBackend   string // disk | sqlite | redis | memory
	CacheDir       string
	CacheTTL       time.Duration
	MaxMemoryItems int
	MaxDiskBytes   int64
	SweepInterval  time.Duration
	SQLitePath     string
	RedisAddr      string
	CachePrefix    string

	JolpicaBaseURL     string
	JolpicaAPIKey      string
	UpstreamTimeout    time.Duration
	UpstreamMaxRetries int
}

// Load reads every setting, falling back to defaults for unset variables.
// All malformed values are reported together.
func Load() (Config, error) {
	var errs error

	cfg := Config{
		Port:         getenv("PORT", "8080"),
		CacheBackend: strings.ToLower(getenv("CACHE_BACKEND", cache.BackendDisk)),
		CacheDir:     getenv("CACHE_DIR", defaultCacheDir()),
		SQLitePath:   getenv("SQLITE_PATH", "apex_cache.db"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),
		CachePrefix:  getenv("CACHE_PREFIX", "apex"),

		JolpicaBaseURL: getenv("JOLPICA_BASE_URL", jolpica.DefaultBaseURL),
		JolpicaAPIKey:  os.Getenv("JOLPICA_API_KEY"),
	}

	ttlHours := intEnv("CACHE_TTL_HOURS", defaultTTLHours, &errs)
	cfg.CacheTTL = time.Duration(ttlHours) * time.Hour
	cfg.MaxMemoryItems = intEnv("CACHE_MAX_MEMORY_ITEMS", defaultMaxMemoryItems, &errs)
	cfg.MaxDiskBytes = int64(intEnv("CACHE_MAX_SIZE_MB", defaultMaxSizeMB, &errs)) * 1024 * 1024
	cfg.SweepInterval = durationEnv("CACHE_SWEEP_INTERVAL", time.Hour, &errs)
	cfg.RequestTimeout = durationEnv("REQUEST_TIMEOUT", 30*time.Second, &errs)
	cfg.UpstreamTimeout = durationEnv("UPSTREAM_TIMEOUT", 10*time.Second, &errs)
	cfg.UpstreamMaxRetries = intEnv("UPSTREAM_MAX_RETRIES", 2, &errs)

	if ttlHours <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("CACHE_TTL_HOURS must be positive, got %d", ttlHours))
	}
	if cfg.MaxMemoryItems <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("CACHE_MAX_MEMORY_ITEMS must be positive, got %d", cfg.MaxMemoryItems))
	}
	if cfg.MaxDiskBytes <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("CACHE_MAX_SIZE_MB must be positive"))
	}
	switch cfg.CacheBackend {
	case cache.BackendDisk, cache.BackendSQLite, cache.BackendRedis, cache.BackendMemory:
	default:
		errs = multierr.Append(errs, fmt.Errorf("CACHE_BACKEND %q is not one of disk, sqlite, redis, memory", cfg.CacheBackend))
	}

	return cfg, errs
}

// Cache returns the cache.Config derived from cfg.
func (c Config) Cache() cache.Config {
	return cache.Config{
		Backend:        c.CacheBackend,
		Dir:            c.CacheDir,
		SQLitePath:     c.SQLitePath,
		TTL:            c.CacheTTL,
		MaxMemoryItems: c.MaxMemoryItems,
		MaxDiskBytes:   c.MaxDiskBytes,
		Prefix:         c.CachePrefix,
	}
}

// Jolpica returns the upstream client config derived from cfg.
func (c Config) Jolpica() jolpica.Config {
	return jolpica.Config{
		BaseURL:         c.JolpicaBaseURL,
		APIKey:          c.JolpicaAPIKey,
		UpstreamTimeout: c.UpstreamTimeout,
		MaxRetries:      c.UpstreamMaxRetries,
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + string(os.PathSeparator) + "apex-dashboard"
	}
	return ".apex_cache"
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int, errs *error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// durationEnv accepts Go durations ("90s", "1h") and bare seconds.
func durationEnv(key string, def time.Duration, errs *error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
