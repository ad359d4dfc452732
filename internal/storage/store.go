package storage

import (
	"errors"
	"time"

	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/serroba/online-canvas/internal/element"
)

// Common errors.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrStaleSnapshot    = errors.New("snapshot is older than the stored one")
	ErrEmptyCanvasID    = errors.New("empty canvas id")
)

// Snapshot represents a point-in-time capture of a canvas.
type Snapshot struct {
	CanvasID string
	// Revision counts the updates the room had applied when it was taken.
	Revision int
	// Update is the full replicated state, tombstones included.
	Update crdt.Update
	// Elements is the live content decoded from Update.
	Elements  element.Set
	CreatedAt time.Time
}

// Store defines the interface for keeping canvas snapshots.
// Implementations can use in-memory storage, databases, or other backends.
type Store interface {
	// SaveSnapshot keeps snap as the latest state of its canvas.
	// Returns ErrStaleSnapshot if a snapshot with a higher revision is kept.
	SaveSnapshot(snap Snapshot) error

	// LoadSnapshot retrieves the latest snapshot for a canvas.
	// Returns ErrSnapshotNotFound if there is none.
	LoadSnapshot(canvasID string) (Snapshot, error)

	// DeleteSnapshot forgets a canvas.
	// Returns ErrSnapshotNotFound if there is none.
	DeleteSnapshot(canvasID string) error
}
