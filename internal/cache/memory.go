package cache

import (
	"container/list"
	"time"
)

// memoryTier is the in-process tier: a map for lookup plus a list that keeps
// insertion order. Front is the oldest entry and is the first to go when the
// tier is full. Reads never reorder (FIFO, not LRU).
//
// memoryTier is not safe for concurrent use; Store guards it.
type memoryTier struct {
	maxItems int
	items    map[string]*list.Element
	order    *list.List
}

func newMemoryTier(maxItems int) *memoryTier {
	return &memoryTier{
		maxItems: maxItems,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (m *memoryTier) get(key string) (Entry, bool) {
	el, ok := m.items[key]
	if !ok {
		return Entry{}, false
	}
	return el.Value.(Entry), true
}

// put inserts or replaces e and returns the keys evicted to make room.
// A replaced key moves to the newest position because its timestamp is new.
func (m *memoryTier) put(e Entry) []string {
	if el, ok := m.items[e.Key]; ok {
		m.order.Remove(el)
		delete(m.items, e.Key)
	}

	var evicted []string
	if m.maxItems > 0 {
		for len(m.items) >= m.maxItems {
			oldest := m.order.Front()
			if oldest == nil {
				break
			}
			k := oldest.Value.(Entry).Key
			m.order.Remove(oldest)
			delete(m.items, k)
			evicted = append(evicted, k)
		}
	}

	m.items[e.Key] = m.order.PushBack(e)
	return evicted
}

// promote inserts a durable hit unless memory already holds the same key
// with an equal or newer timestamp.
func (m *memoryTier) promote(e Entry) (bool, []string) {
	if cur, ok := m.get(e.Key); ok && !cur.CreatedAt.Before(e.CreatedAt) {
		return false, nil
	}
	return true, m.put(e)
}

func (m *memoryTier) remove(key string) bool {
	el, ok := m.items[key]
	if !ok {
		return false
	}
	m.order.Remove(el)
	delete(m.items, key)
	return true
}

// removeIfCreatedAt removes key only if it still holds the entry written at
// createdAt, so a concurrent replacement is left alone.
func (m *memoryTier) removeIfCreatedAt(key string, createdAt time.Time) bool {
	cur, ok := m.get(key)
	if !ok || !cur.CreatedAt.Equal(createdAt) {
		return false
	}
	return m.remove(key)
}

func (m *memoryTier) removeExpired(cutoff time.Time) []string {
	var removed []string
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(Entry)
		if expiredAt(e.CreatedAt, cutoff) {
			m.order.Remove(el)
			delete(m.items, e.Key)
			removed = append(removed, e.Key)
		}
		el = next
	}
	return removed
}

func (m *memoryTier) clear() int {
	n := len(m.items)
	m.items = make(map[string]*list.Element)
	m.order.Init()
	return n
}

func (m *memoryTier) len() int {
	return len(m.items)
}
