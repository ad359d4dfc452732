package collab

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/serroba/online-canvas/internal/storage"
	"github.com/serroba/online-canvas/internal/ws"
)

// Manager manages the rooms of every open canvas.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	// Shared dependencies
	store          storage.Store
	hub            *ws.Hub
	snapshotPolicy *storage.SnapshotPolicy
	logger         *slog.Logger
}

// ManagerConfig holds configuration for creating a manager.
type ManagerConfig struct {
	Store          storage.Store
	Hub            *ws.Hub
	SnapshotPolicy *storage.SnapshotPolicy
	Logger         *slog.Logger
}

// NewManager creates a new room manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		rooms:          make(map[string]*Room),
		store:          cfg.Store,
		hub:            cfg.Hub,
		snapshotPolicy: cfg.SnapshotPolicy,
		logger:         logger,
	}
}

// GetOrCreateRoom returns an existing room or creates a new one.
func (m *Manager) GetOrCreateRoom(canvasID string) (*Room, error) {
	// Try read lock first
	m.mu.RLock()
	room, exists := m.rooms[canvasID]
	m.mu.RUnlock()

	if exists {
		return room, nil
	}

	// Need to create - acquire write lock
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if room, exists = m.rooms[canvasID]; exists {
		return room, nil
	}

	room = NewRoom(RoomConfig{
		CanvasID:       canvasID,
		Store:          m.store,
		Hub:            m.hub,
		SnapshotPolicy: m.snapshotPolicy,
		Logger:         m.logger,
	})

	// Load from storage
	if err := room.Load(); err != nil {
		return nil, err
	}

	m.rooms[canvasID] = room
	m.logger.Debug("room opened", "canvas", canvasID)

	return room, nil
}

// GetRoom returns an existing room or nil if not found.
func (m *Manager) GetRoom(canvasID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.rooms[canvasID]
}

// Snapshot returns the live state of an open canvas, or its last stored
// snapshot.
func (m *Manager) Snapshot(canvasID string) (storage.Snapshot, error) {
	if room := m.GetRoom(canvasID); room != nil {
		return room.Snapshot(), nil
	}

	if m.store == nil {
		return storage.Snapshot{}, storage.ErrSnapshotNotFound
	}

	return m.store.LoadSnapshot(canvasID)
}

// CloseRoom closes and removes a room.
func (m *Manager) CloseRoom(canvasID string) error {
	m.mu.Lock()
	room, exists := m.rooms[canvasID]

	if !exists {
		m.mu.Unlock()

		return nil
	}

	delete(m.rooms, canvasID)
	m.mu.Unlock()

	m.logger.Debug("room closed", "canvas", canvasID)

	return room.Close()
}

// CloseAll closes all rooms.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))

	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}

	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	var errs []error

	for _, r := range rooms {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RoomCount returns the number of open rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms)
}
