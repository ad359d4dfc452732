package api

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/serroba/online-canvas/internal/collab"
	"github.com/serroba/online-canvas/internal/storage"
	"github.com/serroba/online-canvas/internal/ws"
)

// Server handles HTTP requests for the relay API.
type Server struct {
	manager  *collab.Manager
	store    storage.Store
	hub      *ws.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Manager *collab.Manager
	Store   storage.Store
	Hub     *ws.Hub
	Logger  *slog.Logger
	// AllowedOrigins restricts websocket upgrades. Empty allows all origins.
	AllowedOrigins []string
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	origins := cfg.AllowedOrigins

	return &Server{
		manager: cfg.Manager,
		store:   cfg.Store,
		hub:     cfg.Hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}

				return slices.Contains(origins, r.Header.Get("Origin"))
			},
		},
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Canvas endpoints
	mux.HandleFunc("/canvas/", s.handleCanvasByID)

	// WebSocket endpoint (identifies the peer)
	mux.Handle("/ws", s.clientMiddleware(http.HandlerFunc(s.handleWebSocket)))

	mux.HandleFunc("/healthz", s.handleHealth)

	return mux
}

// handleCanvasByID routes GET /canvas/{id}/shapes and DELETE /canvas/{id}.
func (s *Server) handleCanvasByID(w http.ResponseWriter, r *http.Request) {
	canvasID, rest := splitCanvasPath(r.URL.Path)
	if canvasID == "" {
		http.Error(w, "canvas ID is required", http.StatusBadRequest)

		return
	}

	switch {
	case rest == "shapes" && r.Method == http.MethodGet:
		s.handleGetShapes(w, r, canvasID)
	case rest == "" && r.Method == http.MethodDelete:
		s.handleDeleteCanvas(w, r, canvasID)
	case rest == "shapes" || rest == "":
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}
