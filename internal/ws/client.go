package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownMessage is returned by Receive for an unrecognized message type.
var ErrUnknownMessage = errors.New("unknown message type")

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Client represents one connected peer.
type Client struct {
	ID   string
	conn Conn
	wmu  sync.Mutex // serializes writes

	mu       sync.Mutex
	canvasID string // Currently subscribed canvas
	peerID   string // Awareness id the peer announced
}

// NewClient creates a new client wrapper.
func NewClient(id, peerID string, conn Conn) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		peerID: peerID,
	}
}

// Send sends a message to the client.
func (c *Client) Send(msg Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	return c.conn.WriteJSON(msg)
}

// SendError sends an error message to the client.
func (c *Client) SendError(code, message string) error {
	return c.Send(Message{
		Type: MessageTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Receive reads a message from the client and decodes its payload by type.
func (c *Client) Receive() (Message, error) {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := c.conn.ReadJSON(&raw); err != nil {
		return Message{}, err
	}

	msg := Message{Type: raw.Type}

	var err error

	switch raw.Type {
	case MessageTypeSync:
		msg.Payload, err = decode[SyncPayload](raw.Payload)
	case MessageTypeState:
		msg.Payload, err = decode[StatePayload](raw.Payload)
	case MessageTypeUpdate:
		msg.Payload, err = decode[UpdatePayload](raw.Payload)
	case MessageTypeAwareness:
		msg.Payload, err = decode[AwarenessPayload](raw.Payload)
	case MessageTypeError:
		msg.Payload, err = decode[ErrorPayload](raw.Payload)
	default:
		return msg, fmt.Errorf("%w: %q", ErrUnknownMessage, raw.Type)
	}

	if err != nil {
		return Message{}, err
	}

	return msg, nil
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}

	err := json.Unmarshal(data, &v)

	return v, err
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CanvasID returns the canvas the client is subscribed to.
func (c *Client) CanvasID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.canvasID
}

// SetCanvasID sets the canvas the client is subscribed to.
func (c *Client) SetCanvasID(canvasID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.canvasID = canvasID
}

// SetPeerID records the awareness id the peer announced.
func (c *Client) SetPeerID(peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.peerID = peerID
}

// Peer returns the announced awareness id.
func (c *Client) Peer() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.peerID
}
