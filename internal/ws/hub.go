package ws

import (
	"sync"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/crdt"
)

// Hub manages WebSocket clients and broadcasts canvas traffic.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// canvases maps canvas ID to set of client IDs
	canvases map[string]map[string]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		canvases: make(map[string]map[string]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
}

// Unregister removes a client from the hub and its canvas subscription.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(client.ID, client.CanvasID())
	delete(h.clients, client.ID)
}

// Subscribe adds a client to a canvas's broadcast list.
func (h *Hub) Subscribe(client *Client, canvasID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Unsubscribe from previous canvas
	if old := client.CanvasID(); old != "" && old != canvasID {
		h.leave(client.ID, old)
	}

	if h.canvases[canvasID] == nil {
		h.canvases[canvasID] = make(map[string]struct{})
	}

	h.canvases[canvasID][client.ID] = struct{}{}
	client.SetCanvasID(canvasID)
}

// Unsubscribe removes a client from a canvas's broadcast list.
func (h *Hub) Unsubscribe(client *Client, canvasID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(client.ID, canvasID)

	if client.CanvasID() == canvasID {
		client.SetCanvasID("")
	}
}

func (h *Hub) leave(clientID, canvasID string) {
	if canvasID == "" {
		return
	}

	if clients, ok := h.canvases[canvasID]; ok {
		delete(clients, clientID)

		if len(clients) == 0 {
			delete(h.canvases, canvasID)
		}
	}
}

// Broadcast sends a message to all clients subscribed to a canvas,
// except the sender (identified by excludeClientID).
func (h *Hub) Broadcast(canvasID string, msg Message, excludeClientID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientIDs, ok := h.canvases[canvasID]
	if !ok {
		return
	}

	for clientID := range clientIDs {
		if clientID == excludeClientID {
			continue
		}

		client, ok := h.clients[clientID]
		if !ok {
			continue
		}

		// Send in goroutine to avoid blocking on slow clients. Delivery order
		// across sends is not preserved; updates commute.
		go func(c *Client) {
			_ = c.Send(msg)
		}(client)
	}
}

// BroadcastUpdate relays document entries to the other clients of a canvas.
func (h *Hub) BroadcastUpdate(canvasID string, u crdt.Update, excludeClientID string) {
	h.Broadcast(canvasID, Message{
		Type:    MessageTypeUpdate,
		Payload: UpdatePayload{CanvasID: canvasID, Update: u},
	}, excludeClientID)
}

// BroadcastAwareness relays peer presence to the other clients of a canvas.
func (h *Hub) BroadcastAwareness(canvasID string, u awareness.Update, excludeClientID string) {
	h.Broadcast(canvasID, Message{
		Type:    MessageTypeAwareness,
		Payload: AwarenessPayload{CanvasID: canvasID, Update: u},
	}, excludeClientID)
}

// ClientCount returns the number of clients subscribed to a canvas.
func (h *Hub) ClientCount(canvasID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.canvases[canvasID]; ok {
		return len(clients)
	}

	return 0
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
