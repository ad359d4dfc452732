package ws

import (
	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/crdt"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	// Client to Server messages.
	MessageTypeSync MessageType = "sync" // Client asks for the canvas state

	// Server to Client messages.
	MessageTypeState MessageType = "state" // Full document and awareness state
	MessageTypeError MessageType = "error" // Server reports an error

	// Both directions.
	MessageTypeUpdate    MessageType = "update"    // Document entries
	MessageTypeAwareness MessageType = "awareness" // Peer presence
)

// Message is the envelope for all WebSocket communication.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// SyncPayload requests the state of a canvas.
type SyncPayload struct {
	CanvasID string `json:"canvasId"`
}

// StatePayload carries everything a peer needs to catch up.
type StatePayload struct {
	CanvasID  string           `json:"canvasId"`
	Update    crdt.Update      `json:"update"`
	Awareness awareness.Update `json:"awareness"`
}

// UpdatePayload relays document entries.
type UpdatePayload struct {
	CanvasID string      `json:"canvasId"`
	Update   crdt.Update `json:"update"`
}

// AwarenessPayload relays peer presence.
type AwarenessPayload struct {
	CanvasID string           `json:"canvasId"`
	Update   awareness.Update `json:"update"`
}

// ErrorPayload reports an error to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInvalidUpdate  = "invalid_update"
	ErrorCodeInternalError  = "internal_error"
)
