package handlers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/arnold/achievements-api/internal/metrics"
	"github.com/arnold/achievements-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Event types sent over WebSocket
const (
	EventSnapshot = "snapshot"
)

// WSEvent is the JSON message sent to connected clients
type WSEvent struct {
	Type string      `json:"type"`
	Day  models.Day  `json:"day"`
	Data interface{} `json:"data,omitempty"`
}

// connection owns one websocket. Broadcasts only wake its writer, which reads
// the day's current list when it sends.
type connection struct {
	conn  *websocket.Conn
	day   models.Day
	items func() []models.Achievement

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newConnection(conn *websocket.Conn, day models.Day, items func() []models.Achievement) *connection {
	return &connection{
		conn:  conn,
		day:   day,
		items: items,
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// notify never blocks; pending wakes collapse into one.
func (c *connection) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// writeLoop sends a snapshot per wake until quit. A write that misses its
// deadline closes the socket, which also ends the read loop.
func (c *connection) writeLoop(timeout time.Duration, log *zap.Logger) {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case <-c.wake:
		}

		msg, err := snapshotMessage(c.day, c.items())
		if err != nil {
			log.Error("ws snapshot marshal error", zap.Error(err))
			continue
		}
		err = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err == nil {
			err = c.conn.WriteMessage(websocket.TextMessage, msg)
		}
		if err != nil {
			log.Debug("ws write error, dropping client", zap.String("day", string(c.day)), zap.Error(err))
			c.conn.Close()
			return
		}
	}
}

// Hub manages WebSocket connections per day
type Hub struct {
	mu           sync.RWMutex
	rooms        map[models.Day]map[*connection]bool
	writeTimeout time.Duration
	log          *zap.Logger
}

func NewHub(log *zap.Logger, writeTimeout time.Duration) *Hub {
	return &Hub{
		rooms:        make(map[models.Day]map[*connection]bool),
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// register adds a connection to a day room
func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[conn.day] == nil {
		h.rooms[conn.day] = make(map[*connection]bool)
	}
	h.rooms[conn.day][conn] = true
	metrics.LiveConnections.WithLabelValues(string(conn.day)).Inc()
	h.log.Debug("ws register", zap.String("day", string(conn.day)), zap.Int("total", len(h.rooms[conn.day])))
}

// unregister removes a connection from a day room
func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conn.day]; ok {
		if !conns[conn] {
			return
		}
		delete(conns, conn)
		metrics.LiveConnections.WithLabelValues(string(conn.day)).Dec()
		h.log.Debug("ws unregister", zap.String("day", string(conn.day)), zap.Int("remaining", len(conns)))
		if len(conns) == 0 {
			delete(h.rooms, conn.day)
		}
	}
}

func snapshotMessage(day models.Day, items []models.Achievement) ([]byte, error) {
	if items == nil {
		items = []models.Achievement{}
	}
	return json.Marshal(WSEvent{Type: EventSnapshot, Day: day, Data: items})
}

// Broadcast wakes every connection in the day's room. It never blocks on a
// socket; each writer sends the list as it is when it gets to write.
func (h *Hub) Broadcast(day models.Day, _ []models.Achievement) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[day] {
		c.notify()
	}
}

// WebSocketUpgrade checks the upgrade request and the requested day
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}

// HandleWebSocket streams the day's list: once on connect, then on every change.
func (h *Handler) HandleWebSocket(c *websocket.Conn) {
	day, ok := models.ParseDay(c.Params("day"))
	if !ok {
		c.Close()
		return
	}
	list, ok := h.Board.Day(day)
	if !ok {
		c.Close()
		return
	}

	conn := newConnection(c, day, list.Items)
	h.Hub.register(conn)
	go conn.writeLoop(h.Hub.writeTimeout, h.Hub.log)
	defer func() {
		h.Hub.unregister(conn)
		close(conn.quit)
		<-conn.done
	}()
	conn.notify()

	// Keep connection alive; read messages (client sends pings/keepalives)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
