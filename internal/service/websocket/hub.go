package websocket

import (
	"context"
	"sync"

	"weapondetection/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const broadcastBuffer = 16

// ViewerGauge tracks the number of connected viewers.
type ViewerGauge interface {
	SetViewers(n int)
}

type client struct {
	id   string
	conn *websocket.Conn
}

// HubService fans dashboard messages out to every connected viewer.
type HubService struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	gauge      ViewerGauge
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// SetViewerGauge installs a gauge updated on every connect and disconnect.
func (h *HubService) SetViewerGauge(g ViewerGauge) {
	h.gauge = g
}

// Run owns the client set until ctx is cancelled, then closes every connection.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			c := &client{id: uuid.NewString(), conn: conn}
			h.mutex.Lock()
			h.clients[conn] = c
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer %s connected. Total: %d", c.id, total)
			h.updateGauge(total)

		case conn := <-h.unregister:
			h.mutex.Lock()
			c, ok := h.clients[conn]
			if ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			if ok {
				h.logger.Info("Viewer %s disconnected. Total: %d", c.id, total)
				h.updateGauge(total)
			}

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	removed := false
	for conn, c := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message to viewer %s: %v", c.id, err)
			delete(h.clients, conn)
			conn.Close()
			removed = true
		}
	}
	if removed {
		h.updateGauge(len(h.clients))
	}
}

func (h *HubService) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.updateGauge(0)
}

func (h *HubService) updateGauge(n int) {
	if h.gauge != nil {
		h.gauge.SetViewers(n)
	}
}

// Register adds a viewer. After the hub stopped the connection is closed instead.
func (h *HubService) Register(conn *websocket.Conn) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

func (h *HubService) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. When viewers fall behind and the queue
// is full the message is dropped and false is returned.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// GetClientCount returns the number of connected viewers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
