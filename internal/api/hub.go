package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/models"
)

const (
	maxActivityConnections = 50
	activityWriteWait      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ActivityHub fans activity log entries out to connected dashboards.
type ActivityHub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger

	// writeWait bounds each write so a stalled client cannot hold up dispatch.
	writeWait time.Duration
}

func NewActivityHub(logger *logging.Logger) *ActivityHub {
	return &ActivityHub{
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
		writeWait:   activityWriteWait,
	}
}

// AddConnection registers conn. It reports false when the hub is full.
func (h *ActivityHub) AddConnection(conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if len(h.connections) >= maxActivityConnections {
		h.logger.Warnf("Max activity connections reached (%d)", maxActivityConnections)
		return false
	}
	h.connections[conn] = true
	h.logger.Infof("Added activity connection (total: %d)", len(h.connections))
	return true
}

func (h *ActivityHub) RemoveConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.connections[conn]; !ok {
		return
	}
	delete(h.connections, conn)
	h.logger.Infof("Removed activity connection (remaining: %d)", len(h.connections))
}

// Broadcast sends entry to every connection, dropping the ones that fail.
func (h *ActivityHub) Broadcast(entry models.LogEntry) {
	message, err := json.Marshal(entry)
	if err != nil {
		h.logger.Errorf("Failed to encode activity entry %d: %v", entry.ID, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Errorf("Failed to send activity message: %v", err)
			delete(h.connections, conn)
			conn.Close()
		}
	}
}

func (h *ActivityHub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

// Serve upgrades the request and holds the connection until the client leaves.
func (h *ActivityHub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	if !h.AddConnection(conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return
	}
	defer func() {
		h.RemoveConnection(conn)
		conn.Close()
	}()

	// Clients only listen; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
