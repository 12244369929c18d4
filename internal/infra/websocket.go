package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsReadTimeout    = 60 * time.Second
	wsPingInterval   = 30 * time.Second
	wsMaxMessageSize = 1024
	wsSendBuffer     = 64
)

// WSHub manages WebSocket connections and room-based message delivery. Each team
// is one room.
type WSHub struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]*WSConn // room -> connID -> conn
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// WSConn is one client connection. Conn is nil for connections created in tests.
type WSConn struct {
	ID       string
	Room     string
	PlayerID int64
	Send     chan []byte
	Conn     *websocket.Conn

	closeOnce sync.Once
}

// NewWSConn creates an unattached connection.
func NewWSConn(room string, playerID int64) *WSConn {
	return &WSConn{ID: uuid.NewString(), Room: room, PlayerID: playerID, Send: make(chan []byte, wsSendBuffer)}
}

func (c *WSConn) close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewWSHub creates a new WebSocket hub. checkOrigin may be nil to accept any origin.
func NewWSHub(checkOrigin func(r *http.Request) bool, logger *slog.Logger) *WSHub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHub{
		rooms: make(map[string]map[string]*WSConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

// Join adds a connection to its room.
func (h *WSHub) Join(conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[conn.Room] == nil {
		h.rooms[conn.Room] = make(map[string]*WSConn)
	}
	h.rooms[conn.Room][conn.ID] = conn
}

// Leave removes a connection from its room and closes its send channel.
func (h *WSHub) Leave(conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conn.Room]; ok {
		if _, ok := conns[conn.ID]; ok {
			delete(conns, conn.ID)
			conn.close()
		}
		if len(conns) == 0 {
			delete(h.rooms, conn.Room)
		}
	}
}

// Publish sends a message to all connections in a room. Connections whose buffer
// is full miss the message; the next snapshot supersedes it.
func (h *WSHub) Publish(room string, event string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", room, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.rooms[room] {
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", conn.ID, "room", room)
		}
	}
}

// Serve upgrades the request and pumps messages until the client goes away. It
// returns once the connection is closed. onJoin, when set, runs after the
// connection joined its room so the caller can push an initial message.
func (h *WSHub) Serve(w http.ResponseWriter, r *http.Request, room string, playerID int64, onJoin func(*WSConn)) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	conn := NewWSConn(room, playerID)
	conn.Conn = ws
	h.Join(conn)
	h.logger.Info("ws connected", "conn_id", conn.ID, "room", room, "player_id", playerID)
	if onJoin != nil {
		onJoin(conn)
	}

	go h.writePump(conn)
	h.readPump(conn)
	return nil
}

// readPump discards client frames and detects disconnects.
func (h *WSHub) readPump(c *WSConn) {
	defer func() {
		h.Leave(c)
		c.Conn.Close()
		h.logger.Info("ws disconnected", "conn_id", c.ID, "room", c.Room)
	}()

	c.Conn.SetReadLimit(wsMaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("ws unexpected close", "conn_id", c.ID, "error", err)
			}
			return
		}
	}
}

func (h *WSHub) writePump(c *WSConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn("ws write failed", "conn_id", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.rooms {
		count += len(conns)
	}
	return count
}

// RoomCount returns the number of active rooms.
func (h *WSHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown closes all connections gracefully.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for _, conn := range conns {
			conn.close()
		}
		delete(h.rooms, room)
	}
}
