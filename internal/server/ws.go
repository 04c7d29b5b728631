package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveHandler broadcasts every view of the capture loop via WebSocket.
type LiveHandler struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

func newLiveHandler(logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends msg to all connected clients. It is only called from the
// Feed goroutine, so each connection has a single writer.
func (h *LiveHandler) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
		}
	}
}

func (h *LiveHandler) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture stopped"),
			time.Now().Add(writeWait))
	}
}
