package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// cacheRecord is one row of the cache_entries table. Timestamps are stored as
// Unix nanoseconds so range predicates compare integers, not strings.
type cacheRecord struct {
	CacheKey    string `gorm:"column:cache_key;primaryKey"`
	Value       []byte `gorm:"column:value"`
	CreatedNano int64  `gorm:"column:created_nano;index"`
	Size        int64  `gorm:"column:size"`
}

func (cacheRecord) TableName() string { return "cache_entries" }

// SQLiteTier keeps entries in a single SQLite table and bounds the sum of
// value sizes by deleting the oldest rows first.
type SQLiteTier struct {
	db       *gorm.DB
	maxBytes int64
	owned    bool
}

// OpenSQLiteTier opens (or creates) the database at path and migrates it.
// Use ":memory:" for an ephemeral store.
func OpenSQLiteTier(path string, maxBytes int64) (*SQLiteTier, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite %s: %w", path, err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across the pool.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("cache: sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t, err := NewSQLiteTier(db, maxBytes)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	t.owned = true
	return t, nil
}

// NewSQLiteTier uses an existing gorm handle. The caller keeps ownership.
func NewSQLiteTier(db *gorm.DB, maxBytes int64) (*SQLiteTier, error) {
	if err := db.AutoMigrate(&cacheRecord{}); err != nil {
		return nil, fmt.Errorf("cache: migrate sqlite: %w", err)
	}
	return &SQLiteTier{db: db, maxBytes: maxBytes}, nil
}

func (s *SQLiteTier) Name() string { return "sqlite" }

func (s *SQLiteTier) Load(ctx context.Context, key string) (Entry, error) {
	var rec cacheRecord
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: sqlite load %s: %w", key, err)
	}
	if rec.CreatedNano <= 0 {
		return Entry{}, fmt.Errorf("%w: %s: missing timestamp", ErrCorrupt, key)
	}
	return Entry{Key: rec.CacheKey, Value: rec.Value, CreatedAt: time.Unix(0, rec.CreatedNano)}, nil
}

func (s *SQLiteTier) Store(ctx context.Context, e Entry) ([]string, error) {
	rec := cacheRecord{
		CacheKey:    e.Key,
		Value:       e.Value,
		CreatedNano: e.CreatedAt.UnixNano(),
		Size:        int64(len(e.Value)),
	}

	var evicted []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
			return err
		}
		if s.maxBytes <= 0 {
			return nil
		}

		var total int64
		if err := tx.Model(&cacheRecord{}).Select("COALESCE(SUM(size), 0)").Scan(&total).Error; err != nil {
			return err
		}
		for total > s.maxBytes {
			var oldest cacheRecord
			err := tx.Where("cache_key <> ?", e.Key).Order("created_nano ASC").Take(&oldest).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			if err != nil {
				return err
			}
			if err := tx.Delete(&cacheRecord{}, "cache_key = ?", oldest.CacheKey).Error; err != nil {
				return err
			}
			total -= oldest.Size
			evicted = append(evicted, oldest.CacheKey)
		}
		if total > s.maxBytes {
			return fmt.Errorf("%w: %s", ErrEntryTooLarge, e.Key)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEntryTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("cache: sqlite store %s: %w", e.Key, err)
	}
	return evicted, nil
}

func (s *SQLiteTier) Remove(ctx context.Context, key string) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&cacheRecord{}, "cache_key = ?", key)
	if res.Error != nil {
		return false, fmt.Errorf("cache: sqlite remove %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLiteTier) Purge(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&cacheRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("cache: sqlite purge: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *SQLiteTier) PurgeExpired(ctx context.Context, cutoff time.Time) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&cacheRecord{}).
			Where("created_nano <= ?", cutoff.UnixNano()).
			Pluck("cache_key", &keys).Error; err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		return tx.Delete(&cacheRecord{}, "cache_key IN ?", keys).Error
	})
	if err != nil {
		return nil, fmt.Errorf("cache: sqlite purge expired: %w", err)
	}
	return keys, nil
}

func (s *SQLiteTier) Usage(ctx context.Context) (Usage, error) {
	var row struct {
		Entries int64
		Bytes   int64
	}
	err := s.db.WithContext(ctx).Model(&cacheRecord{}).
		Select("COUNT(*) AS entries, COALESCE(SUM(size), 0) AS bytes").
		Scan(&row).Error
	if err != nil {
		return Usage{}, fmt.Errorf("cache: sqlite usage: %w", err)
	}
	return Usage{Entries: int(row.Entries), Bytes: row.Bytes}, nil
}

func (s *SQLiteTier) Close() error {
	if !s.owned {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
