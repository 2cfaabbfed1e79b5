package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"apex-dashboard/internal/cache"
	"apex-dashboard/internal/realtime"
	"apex-dashboard/pkg/logging"
)

// Publisher receives cache maintenance events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any)
}

// CacheHandler exposes cache inspection and the "Clear Cache" actions.
type CacheHandler struct {
	Cache  cache.Cache
	Events Publisher
}

func NewCacheHandler(c cache.Cache, events Publisher) *CacheHandler {
	return &CacheHandler{Cache: c, Events: events}
}

// Info handles GET /v1/cache.
func (h *CacheHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.Info(r.Context()))
}

// Clear handles POST /v1/cache/clear.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n := h.Cache.ClearAll(ctx)
	h.publish(ctx, realtime.EventCacheCleared, n)
	logging.L(ctx).Info("cache_cleared_by_request", zap.Int("removed", n))
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// ClearExpired handles POST /v1/cache/clear-expired.
func (h *CacheHandler) ClearExpired(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n := h.Cache.ClearExpired(ctx)
	h.publish(ctx, realtime.EventCacheSwept, n)
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// Delete handles DELETE /v1/cache/{key}.
func (h *CacheHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, err := cacheKeyParam(r)
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "key is required")
		return
	}
	removed := h.Cache.Delete(r.Context(), key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "removed": removed})
}

func (h *CacheHandler) publish(ctx context.Context, eventType string, removed int) {
	if h.Events == nil {
		return
	}
	h.Events.Publish(ctx, eventType, map[string]int{"removed": removed})
}

// cacheKeyParam returns the {key} segment decoded exactly once. chi matches
// on RawPath when the request carries one, leaving the segment escaped.
func cacheKeyParam(r *http.Request) (string, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, nil
	}
	return url.PathUnescape(key)
}
