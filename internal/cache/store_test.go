package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStore_SetThenGet(t *testing.T) {
	s, tier, _ := newDiskStore(t, 10, 0)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "jolpica:race_results:2024:8", []byte(`[{"position":"1"}]`)))

	got, ok := s.Get(ctx, "jolpica:race_results:2024:8")
	require.True(t, ok)
	require.Equal(t, `[{"position":"1"}]`, string(got))
	require.Len(t, entryFiles(t, tier.Dir()), 1)
}

func TestStore_ReplaceIsWholesale(t *testing.T) {
	s, _, clock := newDiskStore(t, 10, 0)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("old"))
	clock.Advance(time.Minute)
	s.Set(ctx, "k", []byte("new"))

	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "new", string(got))

	s.dropMemory()
	got, ok = s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "new", string(got))
}

func TestStore_ReturnedValueIsACopy(t *testing.T) {
	s, _, _ := newDiskStore(t, 10, 0)
	ctx := context.Background()

	in := []byte("abc")
	s.Set(ctx, "k", in)
	in[0] = 'x'

	got, _ := s.Get(ctx, "k")
	got[1] = 'y'

	again, _ := s.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}

func TestStore_ExpiredEntryIsAbsentWhileFileExists(t *testing.T) {
	s, tier, clock := newDiskStore(t, 10, 0)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"))
	clock.Advance(24 * time.Hour)

	files := entryFiles(t, tier.Dir())
	require.Len(t, files, 1, "file must still be on disk before the read")

	_, ok := s.Get(ctx, "k")
	require.False(t, ok, "age equal to the TTL counts as expired")

	// Lazy deletion removed the stale file on read.
	require.Empty(t, entryFiles(t, tier.Dir()))
}

func TestStore_BackdatedDurableEntryIsAbsent(t *testing.T) {
	s, tier, clock := newDiskStore(t, 10, 0)
	ctx := context.Background()

	_, err := tier.Store(ctx, Entry{
		Key:       "k",
		Value:     []byte("v"),
		CreatedAt: clock.Now().Add(-25 * time.Hour),
	})
	require.NoError(t, err)

	_, ok := s.Get(ctx, "k")
	require.False(t, ok)
}

func TestStore_MemoryEvictionIsFIFOAndDiskStillServes(t *testing.T) {
	const maxItems = 3
	s, _, clock := newDiskStore(t, maxItems, 0)
	ctx := context.Background()

	for i := 0; i <= maxItems; i++ {
		s.Set(ctx, fmt.Sprintf("k%d", i), []byte(fmt.Sprintf("v%d", i)))
		clock.Advance(time.Second)
	}

	require.Equal(t, []string{"k1", "k2", "k3"}, s.memoryKeys())

	got, ok := s.Get(ctx, "k0")
	require.True(t, ok, "evicted from memory but still on disk")
	require.Equal(t, "v0", string(got))
}

func TestStore_ReadsDoNotChangeEvictionOrder(t *testing.T) {
	s, _, _ := newDiskStore(t, 2, 0)
	ctx := context.Background()

	s.Set(ctx, "a", []byte("A"))
	s.Set(ctx, "b", []byte("B"))
	_, _ = s.Get(ctx, "a")
	s.Set(ctx, "c", []byte("C"))

	require.Equal(t, []string{"b", "c"}, s.memoryKeys())
}

func TestStore_PromotesDurableHitIntoMemory(t *testing.T) {
	s, _, _ := newDiskStore(t, 10, 0)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"))
	s.dropMemory()
	require.Empty(t, s.memoryKeys())

	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "v", string(got))
	require.Equal(t, []string{"k"}, s.memoryKeys())
}

func TestStore_CorruptFileIsMissAndRemoved(t *testing.T) {
	s, tier, _ := newDiskStore(t, 10, 0)
	ctx := context.Background()

	path := filepath.Join(tier.Dir(), fileName("k"))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := s.Get(ctx, "k")
	require.False(t, ok)

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "corrupt file should be removed")
}

func TestStore_ConcurrentSetsLeaveOneWholeValue(t *testing.T) {
	s, _, _ := newDiskStore(t, 10, 0)
	ctx := context.Background()

	v1 := []byte(`{"winner":"VER","points":25}`)
	v2 := []byte(`{"winner":"NOR","points":26,"fastest_lap":true}`)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); s.Set(ctx, "k", v1) }()
		go func() { defer wg.Done(); s.Set(ctx, "k", v2) }()
	}
	wg.Wait()

	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	require.Contains(t, []string{string(v1), string(v2)}, string(got))

	// The durable copy must agree with memory.
	s.dropMemory()
	fromDisk, ok := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, string(got), string(fromDisk))
}

func TestStore_ClearAll(t *testing.T) {
	s, tier, _ := newDiskStore(t, 2, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"))
	}

	require.Equal(t, 5, s.ClearAll(ctx))
	for i := 0; i < 5; i++ {
		_, ok := s.Get(ctx, fmt.Sprintf("k%d", i))
		require.False(t, ok)
	}
	require.Empty(t, entryFiles(t, tier.Dir()))
	require.Zero(t, s.Info(ctx).MemoryEntries)
}

func TestStore_ClearExpired(t *testing.T) {
	s, tier, clock := newDiskStore(t, 10, 0)
	ctx := context.Background()

	s.Set(ctx, "old1", []byte("v"))
	s.Set(ctx, "old2", []byte("v"))
	clock.Advance(20 * time.Hour)
	s.Set(ctx, "fresh", []byte("v"))
	clock.Advance(5 * time.Hour)

	require.Equal(t, 2, s.ClearExpired(ctx))
	require.Equal(t, []string{"fresh"}, s.memoryKeys())
	require.Len(t, entryFiles(t, tier.Dir()), 1)

	_, ok := s.Get(ctx, "fresh")
	require.True(t, ok)
}

func TestStore_DurableFailureKeepsMemoryCopy(t *testing.T) {
	s, tier, _ := newDiskStore(t, 10, 0)
	ctx := context.Background()

	// Point the tier below a regular file so every write fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	tier.dir = filepath.Join(blocker, "cache")

	require.False(t, s.Set(ctx, "k", []byte("v")))

	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "v", string(got))

	// Clearing with a broken directory must not panic or surface an error.
	require.Equal(t, 0, s.ClearAll(ctx))
}

func TestStore_MemoryOnly(t *testing.T) {
	s, err := NewStore(Options{TTL: time.Hour, MaxMemoryItems: 1, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	ctx := context.Background()

	require.True(t, s.Set(ctx, "a", []byte("A")))
	require.True(t, s.Set(ctx, "b", []byte("B")))

	_, ok := s.Get(ctx, "a")
	require.False(t, ok, "no durable tier to fall back to")

	info := s.Info(ctx)
	require.Equal(t, "memory", info.Backend)
	require.Equal(t, 1, info.MemoryEntries)
	require.Equal(t, 1, s.ClearAll(ctx))
}

func TestNewStore_RequiresTTL(t *testing.T) {
	_, err := NewStore(Options{})
	require.Error(t, err)
}

func TestStore_Info(t *testing.T) {
	s, _, _ := newDiskStore(t, 10, 1<<20)
	ctx := context.Background()

	s.Set(ctx, "a", []byte("A"))
	s.Set(ctx, "b", []byte("B"))

	info := s.Info(ctx)
	require.Equal(t, "disk", info.Backend)
	require.Equal(t, 2, info.MemoryEntries)
	require.Equal(t, 2, info.Durable.Entries)
	require.Positive(t, info.Durable.Bytes)
	require.Equal(t, int64(1<<20), info.DurableLimit)
}

func TestStore_DeleteReportsWhetherAnythingWasRemoved(t *testing.T) {
	s, tier, _ := newDiskStore(t, 10, 0)
	ctx := context.Background()

	require.False(t, s.Delete(ctx, "never-cached"))

	s.Set(ctx, "k", []byte("v"))
	require.True(t, s.Delete(ctx, "k"))
	require.Empty(t, entryFiles(t, tier.Dir()))
	require.False(t, s.Delete(ctx, "k"))

	// Only on disk: memory was dropped, the file is still there.
	s.Set(ctx, "d", []byte("v"))
	s.dropMemory()
	require.True(t, s.Delete(ctx, "d"))
	_, ok := s.Get(ctx, "d")
	require.False(t, ok)
}
