package cache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newDiskStore(t *testing.T, maxItems int, maxBytes int64) (*Store, *DiskTier, *fakeClock) {
	t.Helper()

	tier, err := NewDiskTier(t.TempDir(), maxBytes, zaptest.NewLogger(t))
	require.NoError(t, err)

	clock := newFakeClock()
	s, err := NewStore(Options{
		TTL:            24 * time.Hour,
		MaxMemoryItems: maxItems,
		Durable:        tier,
		DurableLimit:   maxBytes,
		Logger:         zaptest.NewLogger(t),
		Now:            clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, tier, clock
}

// keys returns keys oldest first.
func (m *memoryTier) keys() []string {
	out := make([]string, 0, m.order.Len())
	for el := m.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(Entry).Key)
	}
	return out
}

func (s *Store) memoryKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory.keys()
}

func (s *Store) dropMemory() {
	s.mu.Lock()
	s.memory.clear()
	s.mu.Unlock()
}

func entryFiles(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, de := range des {
		if strings.HasSuffix(de.Name(), entryExt) && !strings.HasPrefix(de.Name(), tmpPrefix) {
			out = append(out, filepath.Join(dir, de.Name()))
		}
	}
	sort.Strings(out)
	return out
}
