package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"apex-dashboard/pkg/logging"
)

// Event types pushed to dashboard clients.
const (
	EventCacheCleared   = "cache_cleared"
	EventCacheSwept     = "cache_swept"
	EventFetchCompleted = "fetch_completed"
	EventFetchFailed    = "fetch_failed"
)

// Event is one message on the /v1/events stream.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// Client is one subscriber. The network conn is managed in the ws handler.
// Send must not block; it returns false when the client cannot keep up or
// is gone.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub fans events out to every registered client.
type Hub struct {
	mu      sync.RWMutex
	clients map[Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[Client]struct{})}
}

// Register adds a client.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister removes a client. It does not close it.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish wraps data in an Event and sends it to every client. Clients whose
// Send fails are dropped and closed.
func (h *Hub) Publish(ctx context.Context, eventType string, data any) {
	ev := Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		logging.L(ctx).Warn("cannot encode event", zap.String("type", eventType), zap.Error(err))
		return
	}

	var dead []Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.Send(msg) {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range dead {
		delete(h.clients, c)
	}
	h.mu.Unlock()
	for _, c := range dead {
		c.Close()
	}
	logging.L(ctx).Info("dropped slow event clients",
		zap.String("event_type", eventType),
		zap.Int("dropped", len(dead)),
	)
}
