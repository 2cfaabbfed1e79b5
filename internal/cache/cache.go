package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned by a Tier when it holds no record for a key.
	ErrMiss = errors.New("cache: miss")

	// ErrCorrupt is returned by a Tier when a record exists but cannot be decoded.
	ErrCorrupt = errors.New("cache: corrupt entry")

	// ErrEntryTooLarge is returned when a single entry exceeds the tier's byte budget.
	ErrEntryTooLarge = errors.New("cache: entry exceeds size budget")
)

// Entry is one cached value. It is never mutated after it is written;
// a newer Set for the same key replaces it wholesale.
type Entry struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
}

// Usage describes how much a tier currently holds.
type Usage struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Info is a point-in-time snapshot of the store.
type Info struct {
	Backend       string        `json:"backend"`
	TTL           time.Duration `json:"ttl"`
	MemoryEntries int           `json:"memory_entries"`
	MemoryLimit   int           `json:"memory_limit"`
	Durable       Usage         `json:"durable"`
	DurableLimit  int64         `json:"durable_limit_bytes"`
}

// Cache is what the accessor layer and the HTTP handlers depend on.
// Implemented by *Store and by the LoggingCache decorator.
//
// No method returns an error: a cache failure is indistinguishable from a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) bool
	Delete(ctx context.Context, key string) bool
	ClearAll(ctx context.Context) int
	ClearExpired(ctx context.Context) int
	Info(ctx context.Context) Info
}

// Tier is a durable backing store for the memory tier.
//
// Load returns ErrMiss when nothing is stored and ErrCorrupt when a stored
// record cannot be decoded. Store returns the keys it evicted to stay under
// its byte budget; if the new entry alone exceeds the budget it is dropped
// and ErrEntryTooLarge is returned. Remove reports whether a record existed.
type Tier interface {
	Name() string
	Load(ctx context.Context, key string) (Entry, error)
	Store(ctx context.Context, e Entry) (evicted []string, err error)
	Remove(ctx context.Context, key string) (bool, error)
	Purge(ctx context.Context) (int, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error)
	Usage(ctx context.Context) (Usage, error)
	Close() error
}

// expiredAt reports whether an entry created at createdAt is expired at
// cutoff = now - ttl. Age equal to the TTL counts as expired.
func expiredAt(createdAt, cutoff time.Time) bool {
	return !createdAt.After(cutoff)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
