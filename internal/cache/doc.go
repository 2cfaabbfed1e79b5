// Package cache implements the two-tier cache that fronts the results API.
//
// A Store keeps recent entries in memory (bounded by entry count, FIFO) and
// every entry in a durable Tier (one file per key on disk by default,
// optionally SQLite or Redis) bounded by total bytes. Entries older than the
// TTL are never returned; they are removed lazily on read or by an explicit
// ClearExpired pass. Durable failures degrade to memory-only behaviour and
// are never surfaced to callers.
package cache
