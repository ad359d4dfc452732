package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/storage"
)

// ShapesResponse is the last known content of a canvas, keyed by the names
// of the replicated maps.
type ShapesResponse struct {
	Paths  []element.Stroke  `json:"paths"`
	Shapes []element.Shape   `json:"shapes"`
	Texts  []element.TextBox `json:"texts"`
}

// HealthResponse reports server load.
type HealthResponse struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"clients"`
}

// handleGetShapes handles GET /canvas/{id}/shapes.
func (s *Server) handleGetShapes(w http.ResponseWriter, _ *http.Request, canvasID string) {
	snap, err := s.manager.Snapshot(canvasID)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			http.Error(w, "canvas not found", http.StatusNotFound)

			return
		}

		s.logger.Error("load snapshot failed", "canvas", canvasID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	s.writeJSON(w, http.StatusOK, ShapesResponse{
		Paths:  nonNil(snap.Elements.Strokes),
		Shapes: nonNil(snap.Elements.Shapes),
		Texts:  nonNil(snap.Elements.Texts),
	})
}

// handleDeleteCanvas handles DELETE /canvas/{id}. Connected peers keep
// their replicas; only the server's copy is dropped.
func (s *Server) handleDeleteCanvas(w http.ResponseWriter, _ *http.Request, canvasID string) {
	// Close any active room first
	if err := s.manager.CloseRoom(canvasID); err != nil {
		s.logger.Warn("close room failed", "canvas", canvasID, "error", err)
	}

	if s.store == nil {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	if err := s.store.DeleteSnapshot(canvasID); err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			http.Error(w, "canvas not found", http.StatusNotFound)

			return
		}

		http.Error(w, "internal server error", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	resp := HealthResponse{Rooms: s.manager.RoomCount()}
	if s.hub != nil {
		resp.Clients = s.hub.TotalClients()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// splitCanvasPath splits /canvas/{id}/{rest} into id and rest.
func splitCanvasPath(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/canvas/")
	if trimmed == path {
		return "", ""
	}

	id, rest, _ := strings.Cut(trimmed, "/")

	return id, rest
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
