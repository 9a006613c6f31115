package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 64
)

// Stream message types.
const (
	MessageConnected    = "connected"
	MessageNotification = "notification"
	MessageEvent        = "event"
)

// StreamMessage is one frame sent to a websocket client.
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type wsClient struct {
	userID string
	send   chan []byte
}

// Hub pushes notifications and activity-log events to connected
// websocket clients. It implements domain.Notifier.
type Hub struct {
	events   *service.EventService
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

// NewHub creates a hub. An empty origin list or "*" accepts any origin.
func NewHub(events *service.EventService, allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		events:  events,
		logger:  logger,
		clients: make(map[string]map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// Notify delivers n to every connection of userID. Slow clients miss
// messages rather than block the caller.
func (h *Hub) Notify(userID string, n domain.Notification) {
	h.broadcast(userID, StreamMessage{Type: MessageNotification, Data: n})
}

func (h *Hub) broadcast(userID string, msg StreamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to serialize stream message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("websocket client too slow, dropping message", "user_id", userID, "type", msg.Type)
		}
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// ServeWS handles GET /api/v1/ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{userID: userID(r), send: make(chan []byte, wsSendBuffer)}
	h.register(c)

	var subID uint64
	var eventCh <-chan domain.Event
	if h.events != nil {
		subID, eventCh = h.events.Subscribe(c.userID)
	}

	h.logger.Info("websocket client connected", "user_id", c.userID, "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, c, eventCh, done)

	h.unregister(c)
	if h.events != nil {
		h.events.Unsubscribe(subID)
	}
	conn.Close()
	h.logger.Info("websocket client disconnected", "user_id", c.userID)
}

// readPump discards client frames and closes done when the peer goes away.
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *wsClient, eventCh <-chan domain.Event, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	write := func(data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	hello, _ := json.Marshal(StreamMessage{Type: MessageConnected, Data: map[string]string{"user_id": c.userID}})
	if !write(hello) {
		return
	}

	for {
		select {
		case <-done:
			return

		case data := <-c.send:
			if !write(data) {
				return
			}

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := json.Marshal(StreamMessage{Type: MessageEvent, Data: toEventResponse(event)})
			if err != nil {
				h.logger.Warn("failed to serialize event", "event_id", event.ID, "error", err)
				continue
			}
			if !write(data) {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
