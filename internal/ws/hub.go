package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is the envelope pushed to connected clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client is a single WebSocket connection owned by one user. A user may hold
// several clients (multiple tabs/devices).
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan Event
}

// Hub tracks connected clients and fans events out to them. Push only: the
// read side of each connection is drained just to observe close.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}

	bufferSize int
	keepAlive  time.Duration
	logger     *zap.Logger
}

// NewHub builds a hub.
func NewHub(bufferSize int, keepAlive time.Duration, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		bufferSize: bufferSize,
		keepAlive:  keepAlive,
		logger:     logger,
	}
}

// AddClient registers a connection and starts its write pump. The returned
// client must be removed with RemoveClient when the connection ends.
func (h *Hub) AddClient(ctx context.Context, userID string, conn *websocket.Conn) *Client {
	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, h.bufferSize),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(ctx, client)
	return client
}

// RemoveClient unregisters a connection.
func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	if set, ok := h.clients[client.UserID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	h.mu.Unlock()
}

// BroadcastToUsers pushes an event to every connection of the given users.
// Slow clients are skipped rather than blocking the caller.
func (h *Hub) BroadcastToUsers(userIDs []string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, userID := range userIDs {
		for client := range h.clients[userID] {
			select {
			case client.Send <- event:
			default:
				h.logger.Sugar().Warnw("dropping event for slow client", "user_id", userID, "event", event.Type)
			}
		}
	}
}

// ConnectedUsers returns the number of users with at least one connection.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) writePump(ctx context.Context, client *Client) {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-client.Send:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, client.Conn, event)
			cancel()
			if err != nil {
				h.logger.Sugar().Debugw("write to client failed", "user_id", client.UserID, "error", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := client.Conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
