package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu     sync.Mutex
	ok     bool
	got    [][]byte
	closed bool
}

func (c *fakeClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok {
		return false
	}
	c.got = append(c.got, message)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func TestHub_PublishFansOut(t *testing.T) {
	h := NewHub()
	a, b := &fakeClient{ok: true}, &fakeClient{ok: true}
	h.Register(a)
	h.Register(b)

	h.Publish(context.Background(), EventCacheCleared, map[string]int{"removed": 3})

	for _, c := range []*fakeClient{a, b} {
		require.Len(t, c.got, 1)
		var ev Event
		require.NoError(t, json.Unmarshal(c.got[0], &ev))
		require.Equal(t, EventCacheCleared, ev.Type)
		_, err := uuid.Parse(ev.ID)
		require.NoError(t, err)
		require.False(t, ev.Time.IsZero())
	}
}

func TestHub_DropsFailingClients(t *testing.T) {
	h := NewHub()
	good, bad := &fakeClient{ok: true}, &fakeClient{ok: false}
	h.Register(good)
	h.Register(bad)

	h.Publish(context.Background(), EventFetchFailed, nil)

	require.Equal(t, 1, h.Len())
	require.True(t, bad.closed)
	require.False(t, good.closed)
}

func TestHub_Unregister(t *testing.T) {
	h := NewHub()
	c := &fakeClient{ok: true}
	h.Register(c)
	h.Unregister(c)

	h.Publish(context.Background(), EventCacheSwept, nil)

	require.Zero(t, h.Len())
	require.Empty(t, c.got)
}
