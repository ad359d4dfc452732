package storage

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is how many canvases a MemoryStore keeps.
const DefaultCapacity = 256

// MemoryStore is an in-memory implementation of the Store interface. It
// keeps the most recently saved or loaded canvases and evicts the rest.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, Snapshot]
}

// NewMemoryStore creates a new in-memory store holding up to capacity
// canvases. A non-positive capacity uses DefaultCapacity.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	cache, err := lru.New[string, Snapshot](capacity)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}

	return &MemoryStore{cache: cache}, nil
}

// SaveSnapshot keeps snap as the latest state of its canvas.
func (m *MemoryStore) SaveSnapshot(snap Snapshot) error {
	if snap.CanvasID == "" {
		return ErrEmptyCanvasID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.cache.Peek(snap.CanvasID); ok && cur.Revision > snap.Revision {
		return ErrStaleSnapshot
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	m.cache.Add(snap.CanvasID, snap)

	return nil
}

// LoadSnapshot retrieves the latest snapshot for a canvas.
func (m *MemoryStore) LoadSnapshot(canvasID string) (Snapshot, error) {
	snap, ok := m.cache.Get(canvasID)
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}

	return snap, nil
}

// DeleteSnapshot forgets a canvas.
func (m *MemoryStore) DeleteSnapshot(canvasID string) error {
	if !m.cache.Remove(canvasID) {
		return ErrSnapshotNotFound
	}

	return nil
}

// Len returns the number of canvases kept.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
