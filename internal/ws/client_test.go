package ws_test

import (
	"errors"
	"testing"

	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/serroba/online-canvas/internal/ws"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	msg := ws.Message{
		Type: ws.MessageTypeUpdate,
		Payload: ws.UpdatePayload{
			CanvasID: testCanvasID,
		},
	}

	err := client.Send(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := conn.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	if messages[0].Type != ws.MessageTypeUpdate {
		t.Errorf("expected update type, got %s", messages[0].Type)
	}
}

func TestClient_SendError(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	err := client.SendError(ws.ErrorCodeInvalidMessage, "bad frame")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	messages := conn.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	if messages[0].Type != ws.MessageTypeError {
		t.Errorf("expected error type, got %s", messages[0].Type)
	}
}

func TestClient_Receive_DecodesPayload(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	conn.incoming <- ws.Message{
		Type: ws.MessageTypeUpdate,
		Payload: ws.UpdatePayload{
			CanvasID: testCanvasID,
			Update:   crdt.Update{Entries: []crdt.Entry{{Map: crdt.MapShapes, Key: "r1", Timestamp: 3, Node: "n1"}}},
		},
	}

	msg, err := client.Receive()
	require.NoError(t, err)

	payload, ok := msg.Payload.(ws.UpdatePayload)
	require.True(t, ok, "payload is %T", msg.Payload)
	require.Len(t, payload.Update.Entries, 1)
	require.Equal(t, "r1", payload.Update.Entries[0].Key)

	conn.incoming <- ws.Message{Type: ws.MessageTypeSync}

	msg, err = client.Receive()
	require.NoError(t, err)
	require.Equal(t, ws.SyncPayload{}, msg.Payload)
}

func TestClient_Receive_UnknownType(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	conn.incoming <- ws.Message{Type: "operation"}

	_, err := client.Receive()
	if !errors.Is(err, ws.ErrUnknownMessage) {
		t.Errorf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := ws.NewClient("c1", "user1", conn)

	err := client.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !conn.IsClosed() {
		t.Error("expected connection to be closed")
	}
}

func TestClient_CanvasAndPeer(t *testing.T) {
	t.Parallel()

	conn := newMockConn()
	client := ws.NewClient("c1", "", conn)

	if client.CanvasID() != "" {
		t.Errorf("expected empty canvasID, got %s", client.CanvasID())
	}

	client.SetCanvasID("canvas1")
	client.SetPeerID("peer-a")

	if client.CanvasID() != "canvas1" {
		t.Errorf("expected canvas1, got %s", client.CanvasID())
	}

	if client.Peer() != "peer-a" {
		t.Errorf("expected peer-a, got %s", client.Peer())
	}
}
