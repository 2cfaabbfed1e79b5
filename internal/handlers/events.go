package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"apex-dashboard/internal/realtime"
	"apex-dashboard/pkg/logging"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 32
)

// wsClient implements realtime.Client. Send only queues; a single writer
// goroutine owns the connection's write side.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}
}

func (c *wsClient) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		// Buffer full: the client is too slow.
		return false
	}
}

func (c *wsClient) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump delivers queued events and keeps the connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}

// EventsHandler streams realtime.Hub events over a websocket.
type EventsHandler struct {
	Hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func NewEventsHandler(hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{
		Hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may subscribe; the stream carries no private data.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream handles GET /v1/events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	logger := logging.L(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		logger.Warn("websocket_upgrade_error", zap.Error(err))
		return
	}

	client := newWSClient(conn)
	h.Hub.Register(client)
	logger.Info("event_client_connected", zap.Int("clients", h.Hub.Len()))

	go client.writePump()
	defer func() {
		h.Hub.Unregister(client)
		client.Close()
		logger.Info("event_client_disconnected")
	}()

	// Reader loop: the stream is one-way, reads only drive pong handling and
	// detect the close.
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
