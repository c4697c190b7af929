package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dennisdiepolder/monti/acw/internal/metrics"
	"github.com/dennisdiepolder/monti/acw/internal/types"
	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	m := metrics.Get()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			m.RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", h.ClientCount()).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				m.RecordWebSocketDisconnect()
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastRaw(message)
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// BroadcastReport pushes rep as an acw_overview widget
func (h *Hub) BroadcastReport(rep *types.Report) error {
	data, err := json.Marshal(types.Widget{
		Type:      types.WidgetTypeACWOverview,
		Timestamp: rep.GeneratedAt,
		Report:    rep,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal widget: %w", err)
	}

	h.logger.Debug().
		Str("run_id", rep.RunID).
		Int("service_count", len(rep.Services)).
		Int("clients", h.ClientCount()).
		Msg("broadcasting widget")

	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcastRaw sends a raw message to all clients
func (h *Hub) broadcastRaw(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := metrics.Get()
	for client := range h.clients {
		select {
		case client.send <- message:
			m.RecordWebSocketMessage()
		default:
			// Client's send buffer is full, close and remove it
			close(client.send)
			delete(h.clients, client)
			m.RecordWebSocketDisconnect()
			h.logger.Warn().
				Str("client_id", client.id).
				Msg("client send buffer full, closing connection")
		}
	}
}
