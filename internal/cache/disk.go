package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	entryExt  = ".json"
	tmpPrefix = ".tmp-"
)

// diskRecord is the on-disk shape of an Entry.
type diskRecord struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	Value     []byte    `json:"value"`
}

// DiskTier stores one file per key under dir and keeps the total size of
// those files at or below maxBytes by deleting the oldest (by mtime) first.
type DiskTier struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger

	// mu serializes directory mutations so that size accounting sees a
	// consistent listing.
	mu sync.Mutex
}

// NewDiskTier creates dir if needed. maxBytes <= 0 disables the size cap.
func NewDiskTier(dir string, maxBytes int64, logger *zap.Logger) (*DiskTier, error) {
	if dir == "" {
		return nil, errors.New("cache: disk tier needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiskTier{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.Named("disk"),
	}, nil
}

func (d *DiskTier) Name() string { return "disk" }

// Dir returns the cache root.
func (d *DiskTier) Dir() string { return d.dir }

func (d *DiskTier) path(key string) string {
	return filepath.Join(d.dir, fileName(key))
}

func (d *DiskTier) Load(_ context.Context, key string) (Entry, error) {
	raw, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: read %s: %w", key, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	if rec.Key != key {
		// Same file name, different key: hash collision, not corruption.
		return Entry{}, ErrMiss
	}
	return Entry{Key: rec.Key, Value: rec.Value, CreatedAt: rec.CreatedAt}, nil
}

func (d *DiskTier) Store(_ context.Context, e Entry) ([]string, error) {
	raw, err := json.Marshal(diskRecord{Key: e.Key, CreatedAt: e.CreatedAt, Value: e.Value})
	if err != nil {
		return nil, fmt.Errorf("cache: encode %s: %w", e.Key, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// The directory may have been removed underneath us since startup.
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir %s: %w", d.dir, err)
	}

	target := d.path(e.Key)
	if err := writeFileAtomic(d.dir, target, raw); err != nil {
		return nil, fmt.Errorf("cache: write %s: %w", e.Key, err)
	}

	return d.enforceBudgetLocked(e.Key, target)
}

// enforceBudgetLocked deletes the oldest files until the directory is within
// maxBytes. The file just written is kept unless it alone is over budget.
func (d *DiskTier) enforceBudgetLocked(key, justWritten string) ([]string, error) {
	if d.maxBytes <= 0 {
		return nil, nil
	}

	files, total, err := d.listLocked()
	if err != nil {
		return nil, err
	}
	if total <= d.maxBytes {
		return nil, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	var evicted []string
	var errs error
	for _, f := range files {
		if total <= d.maxBytes {
			break
		}
		if f.path == justWritten {
			continue
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		total -= f.size
		evicted = append(evicted, f.name)
	}

	if total > d.maxBytes {
		_ = os.Remove(justWritten)
		return evicted, multierr.Append(errs, fmt.Errorf("%w: %s", ErrEntryTooLarge, key))
	}
	if errs != nil {
		d.logger.Warn("disk eviction incomplete", zap.Error(errs))
	}
	return evicted, nil
}

func (d *DiskTier) Remove(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(d.path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("cache: remove %s: %w", key, err)
	}
}

func (d *DiskTier) Purge(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	files, _, err := d.listLocked()
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs error
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}

	// Writes hold d.mu, so any temp file left now is from a crashed process.
	if leftovers, err := filepath.Glob(filepath.Join(d.dir, tmpPrefix+"*")); err == nil {
		for _, p := range leftovers {
			_ = os.Remove(p)
		}
	}
	return removed, errs
}

// PurgeExpired removes files whose recorded creation time is at or before
// cutoff. Unreadable files are removed too and reported by file name.
func (d *DiskTier) PurgeExpired(_ context.Context, cutoff time.Time) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	files, _, err := d.listLocked()
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs error
	for _, f := range files {
		id := f.name
		raw, err := os.ReadFile(f.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if rec, err := decodeRecord(raw); err == nil {
			if !expiredAt(rec.CreatedAt, cutoff) {
				continue
			}
			id = rec.Key
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		removed = append(removed, id)
	}
	return removed, errs
}

func (d *DiskTier) Usage(_ context.Context) (Usage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	files, total, err := d.listLocked()
	if err != nil {
		return Usage{}, err
	}
	return Usage{Entries: len(files), Bytes: total}, nil
}

func (d *DiskTier) Close() error { return nil }

type diskFile struct {
	name    string
	path    string
	size    int64
	modTime time.Time
}

// listLocked returns the entry files (temp files excluded) and their total size.
func (d *DiskTier) listLocked() ([]diskFile, int64, error) {
	dirents, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("cache: list %s: %w", d.dir, err)
	}

	var files []diskFile
	var total int64
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, entryExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, diskFile{
			name:    name,
			path:    filepath.Join(d.dir, name),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	return files, total, nil
}

func decodeRecord(raw []byte) (diskRecord, error) {
	var rec diskRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return diskRecord{}, err
	}
	if rec.Key == "" || rec.CreatedAt.IsZero() {
		return diskRecord{}, errors.New("missing key or timestamp")
	}
	return rec, nil
}

// writeFileAtomic writes to a temp file in dir and renames it over target so
// readers never observe a partially written entry.
func writeFileAtomic(dir, target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
