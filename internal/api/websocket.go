package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/serroba/online-canvas/internal/collab"
	"github.com/serroba/online-canvas/internal/ws"
)

// handleWebSocket handles GET /ws?canvasId={id}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	canvasID := r.URL.Query().Get("canvasId")
	if canvasID == "" {
		http.Error(w, "canvasId query parameter is required", http.StatusBadRequest)

		return
	}

	peerID := ClientIDFromContext(r.Context())

	client, cleanup, err := s.setupWebSocketClient(w, r, canvasID, peerID)
	if err != nil {
		return
	}

	defer cleanup()

	if err := s.sendState(client, canvasID); err != nil {
		return
	}

	s.handleMessages(client, canvasID)
}

// setupWebSocketClient upgrades the connection and creates a client.
func (s *Server) setupWebSocketClient(
	w http.ResponseWriter, r *http.Request, canvasID, peerID string,
) (*ws.Client, func(), error) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", "error", err)

		return nil, nil, err
	}

	client := ws.NewClient(uuid.NewString(), peerID, conn)
	s.hub.Register(client)
	s.hub.Subscribe(client, canvasID)

	s.logger.Info("peer connected", "canvas", canvasID, "peer", peerID, "conn", client.ID)

	cleanup := func() {
		if room := s.manager.GetRoom(canvasID); room != nil {
			room.Leave(client.ID)
		}

		s.hub.Unregister(client)
		_ = client.Close()

		// The last peer to leave closes the room, which keeps a snapshot.
		if s.hub.ClientCount(canvasID) == 0 {
			if err := s.manager.CloseRoom(canvasID); err != nil {
				s.logger.Warn("close room failed", "canvas", canvasID, "error", err)
			}
		}

		s.logger.Info("peer disconnected", "canvas", canvasID, "peer", client.Peer(), "conn", client.ID)
	}

	return client, cleanup, nil
}

// withRoom runs fn against the room of canvasID. A room closed between
// lookup and use is reopened once.
func (s *Server) withRoom(canvasID string, fn func(*collab.Room) error) error {
	for attempt := 0; ; attempt++ {
		room, err := s.manager.GetOrCreateRoom(canvasID)
		if err != nil {
			return err
		}

		err = fn(room)
		if errors.Is(err, collab.ErrRoomClosed) && attempt == 0 {
			continue
		}

		return err
	}
}

// sendState sends the full canvas state to the client.
func (s *Server) sendState(client *ws.Client, canvasID string) error {
	var payload ws.StatePayload

	err := s.withRoom(canvasID, func(room *collab.Room) error {
		update, presence, err := room.State()
		payload = ws.StatePayload{CanvasID: canvasID, Update: update, Awareness: presence}

		return err
	})
	if err != nil {
		s.logger.Error("load canvas failed", "canvas", canvasID, "error", err)
		_ = client.SendError(ws.ErrorCodeInternalError, "failed to load canvas")

		return err
	}

	return client.Send(ws.Message{Type: ws.MessageTypeState, Payload: payload})
}

// handleMessages processes incoming messages from a client.
func (s *Server) handleMessages(client *ws.Client, canvasID string) {
	for {
		msg, err := client.Receive()
		if errors.Is(err, ws.ErrUnknownMessage) {
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "unexpected message type")

			continue
		}

		if err != nil {
			return
		}

		switch msg.Type {
		case ws.MessageTypeSync:
			_ = s.sendState(client, canvasID)
		case ws.MessageTypeUpdate:
			s.handleUpdate(client, canvasID, msg)
		case ws.MessageTypeAwareness:
			s.handleAwareness(client, canvasID, msg)
		case ws.MessageTypeState, ws.MessageTypeError:
			// Server-to-client messages - reject if received from client
			_ = client.SendError(ws.ErrorCodeInvalidMessage, "unexpected message type")
		}
	}
}

// handleUpdate merges document entries and relays them.
func (s *Server) handleUpdate(client *ws.Client, canvasID string, msg ws.Message) {
	payload, ok := msg.Payload.(ws.UpdatePayload)
	if !ok {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid update payload")

		return
	}

	err := s.withRoom(canvasID, func(room *collab.Room) error {
		_, err := room.ApplyUpdate(client.ID, payload.Update)

		return err
	})
	if err != nil {
		s.logger.Debug("update rejected", "canvas", canvasID, "conn", client.ID, "error", err)
		_ = client.SendError(ws.ErrorCodeInvalidUpdate, err.Error())
	}
}

// handleAwareness records and relays peer presence.
func (s *Server) handleAwareness(client *ws.Client, canvasID string, msg ws.Message) {
	payload, ok := msg.Payload.(ws.AwarenessPayload)
	if !ok {
		_ = client.SendError(ws.ErrorCodeInvalidMessage, "invalid awareness payload")

		return
	}

	if client.Peer() == "" && len(payload.Update.Peers) > 0 {
		client.SetPeerID(payload.Update.Peers[0].ClientID)
	}

	err := s.withRoom(canvasID, func(room *collab.Room) error {
		return room.ApplyAwareness(client.ID, payload.Update)
	})
	if err != nil {
		_ = client.SendError(ws.ErrorCodeInternalError, err.Error())
	}
}
