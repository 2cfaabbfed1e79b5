package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"apex-dashboard/internal/metrics"
)

// Options configures a Store.
type Options struct {
	// TTL is the maximum age of an entry. Required.
	TTL time.Duration
	// MaxMemoryItems caps the memory tier; <= 0 means unbounded.
	MaxMemoryItems int
	// Durable is the persistent tier. Nil makes the store memory-only.
	Durable Tier
	// DurableLimit is reported by Info; the tier enforces it.
	DurableLimit int64
	Logger       *zap.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store is the two-tier cache: a FIFO-bounded memory tier in front of a
// durable Tier. It is safe for concurrent use.
//
// Locking is coarse. mu guards the memory tier and lets readers proceed in
// parallel on the memory fast path. writeMu serializes everything that
// touches the durable tier, so memory and durable tier agree on the latest
// write for a key and a promotion can never resurrect a superseded value.
type Store struct {
	ttl          time.Duration
	durableLimit int64
	now          func() time.Time
	logger       *zap.Logger

	mu     sync.RWMutex
	memory *memoryTier

	writeMu sync.Mutex
	durable Tier
}

// NewStore builds a Store. It is constructed once in main and passed to
// the accessor layer.
func NewStore(opts Options) (*Store, error) {
	if opts.TTL <= 0 {
		return nil, errors.New("cache: TTL must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		ttl:          opts.TTL,
		durableLimit: opts.DurableLimit,
		now:          opts.Now,
		logger:       opts.Logger.Named("cache"),
		memory:       newMemoryTier(opts.MaxMemoryItems),
		durable:      opts.Durable,
	}, nil
}

var _ Cache = (*Store)(nil)

func (s *Store) cutoff() time.Time {
	return s.now().Add(-s.ttl)
}

// Get returns the value for key if either tier holds an unexpired, readable
// entry. A durable hit is promoted into memory.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	cutoff := s.cutoff()

	s.mu.RLock()
	e, ok := s.memory.get(key)
	s.mu.RUnlock()

	if ok {
		if !expiredAt(e.CreatedAt, cutoff) {
			return cloneBytes(e.Value), true
		}
		s.mu.Lock()
		if s.memory.removeIfCreatedAt(key, e.CreatedAt) {
			metrics.CacheExpirationsTotal.WithLabelValues("memory").Inc()
		}
		s.mu.Unlock()
	}

	if s.durable == nil {
		return nil, false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	e, err := s.durable.Load(ctx, key)
	switch {
	case errors.Is(err, ErrMiss):
		return nil, false
	case errors.Is(err, ErrCorrupt):
		s.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		s.removeDurableLocked(ctx, key, "corrupt")
		return nil, false
	case err != nil:
		s.logger.Warn("durable cache read failed", zap.String("key", key), zap.Error(err))
		metrics.CacheErrorsTotal.WithLabelValues(s.durable.Name(), "load").Inc()
		return nil, false
	}

	if expiredAt(e.CreatedAt, cutoff) {
		metrics.CacheExpirationsTotal.WithLabelValues(s.durable.Name()).Inc()
		s.removeDurableLocked(ctx, key, "expired")
		return nil, false
	}

	s.mu.Lock()
	promoted, evicted := s.memory.promote(e)
	s.mu.Unlock()
	s.recordMemoryEvictions(evicted)

	if promoted {
		s.logger.Debug("promoted durable entry", zap.String("key", key))
	}
	return cloneBytes(e.Value), true
}

// Set writes value to memory and then, best-effort, to the durable tier.
// It returns false only when a durable write was attempted and failed; the
// memory copy stays authoritative for the life of the process either way.
func (s *Store) Set(ctx context.Context, key string, value []byte) bool {
	e := Entry{Key: key, Value: cloneBytes(value), CreatedAt: s.now()}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	evicted := s.memory.put(e)
	s.mu.Unlock()
	s.recordMemoryEvictions(evicted)

	if s.durable == nil {
		return true
	}

	dropped, err := s.durable.Store(ctx, e)
	if n := len(dropped); n > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues(s.durable.Name()).Add(float64(n))
		s.logger.Debug("durable tier evicted entries",
			zap.String("tier", s.durable.Name()),
			zap.Strings("evicted", dropped),
		)
	}
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues(s.durable.Name(), "store").Inc()
		s.logger.Warn("durable cache write failed; keeping memory copy",
			zap.String("key", key),
			zap.String("tier", s.durable.Name()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Delete removes key from both tiers. It reports whether either tier held it.
func (s *Store) Delete(ctx context.Context, key string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	removed := s.memory.remove(key)
	s.mu.Unlock()

	if s.durable == nil {
		return removed
	}
	existed, err := s.durable.Remove(ctx, key)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues(s.durable.Name(), "remove").Inc()
		s.logger.Warn("durable cache delete failed", zap.String("key", key), zap.Error(err))
		return removed
	}
	return removed || existed
}

// ClearAll empties both tiers. It returns the number of durable records
// removed, or the number of memory entries for a memory-only store.
func (s *Store) ClearAll(ctx context.Context) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	inMemory := s.memory.clear()
	s.mu.Unlock()

	if s.durable == nil {
		return inMemory
	}

	removed, err := s.durable.Purge(ctx)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues(s.durable.Name(), "purge").Inc()
		s.logger.Warn("durable cache clear incomplete",
			zap.Int("removed", removed),
			zap.Error(err),
		)
	}
	s.logger.Info("cache cleared",
		zap.Int("memory_entries", inMemory),
		zap.Int("durable_entries", removed),
	)
	return removed
}

// ClearExpired removes every entry older than the TTL from both tiers and
// returns the number of distinct keys removed.
func (s *Store) ClearExpired(ctx context.Context) int {
	cutoff := s.cutoff()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	fromMemory := s.memory.removeExpired(cutoff)
	s.mu.Unlock()
	metrics.CacheExpirationsTotal.WithLabelValues("memory").Add(float64(len(fromMemory)))

	seen := make(map[string]struct{}, len(fromMemory))
	for _, k := range fromMemory {
		seen[k] = struct{}{}
	}

	if s.durable != nil {
		fromDurable, err := s.durable.PurgeExpired(ctx, cutoff)
		if err != nil {
			metrics.CacheErrorsTotal.WithLabelValues(s.durable.Name(), "purge_expired").Inc()
			s.logger.Warn("durable expiry sweep incomplete", zap.Error(err))
		}
		metrics.CacheExpirationsTotal.WithLabelValues(s.durable.Name()).Add(float64(len(fromDurable)))
		for _, k := range fromDurable {
			seen[k] = struct{}{}
		}
	}

	return len(seen)
}

// Info reports tier occupancy. Durable usage errors are logged and reported
// as zero usage.
func (s *Store) Info(ctx context.Context) Info {
	s.mu.RLock()
	n := s.memory.len()
	s.mu.RUnlock()

	info := Info{
		Backend:       "memory",
		TTL:           s.ttl,
		MemoryEntries: n,
		MemoryLimit:   s.memory.maxItems,
		DurableLimit:  s.durableLimit,
	}
	if s.durable == nil {
		return info
	}

	info.Backend = s.durable.Name()
	s.writeMu.Lock()
	u, err := s.durable.Usage(ctx)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Warn("durable cache usage failed", zap.Error(err))
		return info
	}
	info.Durable = u
	return info
}

// Close releases the durable tier.
func (s *Store) Close() error {
	if s.durable == nil {
		return nil
	}
	return s.durable.Close()
}

func (s *Store) removeDurableLocked(ctx context.Context, key, reason string) {
	if _, err := s.durable.Remove(ctx, key); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues(s.durable.Name(), "remove").Inc()
		s.logger.Warn("failed to remove durable entry",
			zap.String("key", key),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (s *Store) recordMemoryEvictions(keys []string) {
	if len(keys) == 0 {
		return
	}
	metrics.CacheEvictionsTotal.WithLabelValues("memory").Add(float64(len(keys)))
	s.logger.Debug("memory tier evicted entries", zap.Strings("evicted", keys))
}
