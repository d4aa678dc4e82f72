package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"proctor/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	// broadcastBuffer bounds how many stream updates may wait for the hub loop.
	broadcastBuffer = 16
	// writeWait is how long a single viewer may take to accept one update.
	writeWait = 2 * time.Second
)

// HubService keeps the set of live viewers and fans stream updates out to them.
// The client set is owned by the Run loop; the count is mirrored atomically for callers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	count      atomic.Int64
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	writeWait  time.Duration
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		writeWait:  writeWait,
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes every client.
// Register and Unregister return immediately once Run has stopped.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.Info("Viewer connected. Total: %d", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
			}
			h.logger.Info("Viewer disconnected. Total: %d", len(h.clients))

		case message := <-h.broadcast:
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(h.writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Error("Error sending message, dropping viewer: %v", err)
					h.drop(client)
				}
			}
		}
	}
}

func (h *HubService) drop(client *websocket.Conn) {
	delete(h.clients, client)
	h.count.Store(int64(len(h.clients)))
	client.Close()
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. When the queue is full the message is
// dropped so the capture loop never waits on slow viewers.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.logger.Warning("Broadcast queue full - dropping stream update")
		return false
	}
}

// GetClientCount never blocks on the Run loop.
func (h *HubService) GetClientCount() int {
	return int(h.count.Load())
}
