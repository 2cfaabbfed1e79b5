package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"apex-dashboard/internal/cache"
	"apex-dashboard/internal/realtime"
)

type publishedEvent struct {
	eventType string
	data      any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType, data})
}

func newCacheRouter(t *testing.T) (http.Handler, *cache.Store, *recordingPublisher) {
	t.Helper()
	store, err := cache.NewStore(cache.Options{TTL: time.Hour, MaxMemoryItems: 10})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	pub := &recordingPublisher{}
	h := NewCacheHandler(store, pub)

	r := chi.NewRouter()
	r.Get("/v1/cache", h.Info)
	r.Post("/v1/cache/clear", h.Clear)
	r.Post("/v1/cache/clear-expired", h.ClearExpired)
	r.Delete("/v1/cache/{key}", h.Delete)
	return r, store, pub
}

func TestCacheHandler_InfoAndClear(t *testing.T) {
	h, store, pub := newCacheRouter(t)
	ctx := context.Background()
	store.Set(ctx, "jolpica:schedule:2023", []byte(`[]`))
	store.Set(ctx, "jolpica:schedule:2024", []byte(`[]`))

	rr := do(t, h, http.MethodGet, "/v1/cache")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var info cache.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.MemoryEntries != 2 || info.MemoryLimit != 10 {
		t.Fatalf("unexpected info: %#v", info)
	}

	rr = do(t, h, http.MethodPost, "/v1/cache/clear")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["removed"] != 2 {
		t.Fatalf("expected 2 removed, got %d", resp["removed"])
	}
	if _, ok := store.Get(ctx, "jolpica:schedule:2023"); ok {
		t.Fatalf("entry survived clear")
	}

	if len(pub.events) != 1 || pub.events[0].eventType != realtime.EventCacheCleared {
		t.Fatalf("unexpected events: %#v", pub.events)
	}
}

func TestCacheHandler_ClearExpired(t *testing.T) {
	h, _, pub := newCacheRouter(t)

	rr := do(t, h, http.MethodPost, "/v1/cache/clear-expired")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(pub.events) != 1 || pub.events[0].eventType != realtime.EventCacheSwept {
		t.Fatalf("unexpected events: %#v", pub.events)
	}
}

func TestCacheHandler_Delete(t *testing.T) {
	h, store, _ := newCacheRouter(t)
	ctx := context.Background()
	store.Set(ctx, "jolpica:driver:hamilton", []byte(`{}`))

	rr := do(t, h, http.MethodDelete, "/v1/cache/jolpica:driver:hamilton")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Key     string `json:"key"`
		Removed bool   `json:"removed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Key != "jolpica:driver:hamilton" || !resp.Removed {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if _, ok := store.Get(ctx, "jolpica:driver:hamilton"); ok {
		t.Fatalf("entry survived delete")
	}

	rr = do(t, h, http.MethodDelete, "/v1/cache/jolpica:driver:hamilton")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Removed {
		t.Fatalf("second delete should report nothing removed")
	}
}

func TestCacheHandler_DeleteDecodesKeyOnce(t *testing.T) {
	h, store, _ := newCacheRouter(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		key    string
		target string
	}{
		{"literal percent", "jolpica:search:100%", "/v1/cache/jolpica:search:100%25"},
		{"escaped slash", "jolpica:search:a/b", "/v1/cache/jolpica:search:a%2Fb"},
		{"escaped percent and slash", "jolpica:search:50%/x", "/v1/cache/jolpica:search:50%25%2Fx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.Set(ctx, tt.key, []byte(`{}`))

			rr := do(t, h, http.MethodDelete, tt.target)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			var resp struct {
				Key     string `json:"key"`
				Removed bool   `json:"removed"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Key != tt.key || !resp.Removed {
				t.Fatalf("unexpected response: %#v", resp)
			}
			if _, ok := store.Get(ctx, tt.key); ok {
				t.Fatalf("entry %q survived delete", tt.key)
			}
		})
	}
}

func TestCacheHandler_DeleteUnknownKeyWithDurableTier(t *testing.T) {
	tier, err := cache.NewDiskTier(t.TempDir(), 1<<20, nil)
	if err != nil {
		t.Fatalf("disk tier: %v", err)
	}
	store, err := cache.NewStore(cache.Options{TTL: time.Hour, MaxMemoryItems: 10, Durable: tier})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := NewCacheHandler(store, nil)
	r := chi.NewRouter()
	r.Delete("/v1/cache/{key}", h.Delete)

	rr := do(t, r, http.MethodDelete, "/v1/cache/jolpica:schedule:1949")
	var resp struct {
		Removed bool `json:"removed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Removed {
		t.Fatalf("nothing was cached, expected removed=false")
	}
}
