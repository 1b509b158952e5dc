package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vendwatch/vendwatch-core/internal/infrastructure/config"
	"github.com/vendwatch/vendwatch-core/internal/infrastructure/logging"
)

// Event types carried in the "type" field of every outbound frame.
const (
	EventSalesUpdate    = "salesUpdate"
	EventIntrusionAlert = "intrusionAlert"
	EventDeviceStatus   = "deviceStatus"

	// sendBufferSize is the per-client outbound message buffer size.
	sendBufferSize = 256
)

// Message is the wire envelope for every frame pushed to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SalesUpdate is the payload for EventSalesUpdate frames. Nil fields are
// omitted so partial updates (a single interval report) stay partial on
// the wire.
type SalesUpdate struct {
	Daily   *float64 `json:"daily,omitempty"`
	Weekly  *float64 `json:"weekly,omitempty"`
	Monthly *float64 `json:"monthly,omitempty"`
}

// IntrusionUpdate is the payload for EventIntrusionAlert frames. DeviceID
// is empty for fleet-wide alarms (panel button, alarm flag file).
type IntrusionUpdate struct {
	Alert    bool   `json:"alert"`
	DeviceID string `json:"device_id,omitempty"`
}

// DeviceStatusUpdate is the payload for EventDeviceStatus frames.
type DeviceStatusUpdate struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
}

// Hub manages WebSocket connections and broadcasts telemetry events.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// New creates a hub with no connected clients.
func New(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Publish serializes the event once and delivers it to every connected
// client. Delivery is best-effort: a slow client's full buffer drops the
// frame rather than stalling the caller.
// Lock ordering: the client snapshot is taken under the hub lock, which is
// released before any send. Publishers never block on client I/O.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(Message{Type: eventType, Data: payload})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "type", eventType, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
	if len(clients) > 0 {
		h.logger.Debug("broadcast sent", "type", eventType, "recipients", len(clients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}
