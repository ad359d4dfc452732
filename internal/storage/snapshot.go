package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/serroba/online-canvas/internal/crdt"
)

// SnapshotPolicy determines when to create snapshots.
type SnapshotPolicy struct {
	mu                   sync.Mutex
	threshold            int            // Create snapshot every N updates
	updatesSinceSnapshot map[string]int // Track updates per canvas since last snapshot
}

// NewSnapshotPolicy creates a policy that triggers snapshots every N updates.
func NewSnapshotPolicy(threshold int) *SnapshotPolicy {
	return &SnapshotPolicy{
		threshold:            threshold,
		updatesSinceSnapshot: make(map[string]int),
	}
}

// RecordUpdate records that an update was applied.
// Returns true if a snapshot should be created.
func (p *SnapshotPolicy) RecordUpdate(canvasID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.updatesSinceSnapshot[canvasID]++

	return p.updatesSinceSnapshot[canvasID] >= p.threshold
}

// Reset resets the counter after a snapshot is created.
func (p *SnapshotPolicy) Reset(canvasID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.updatesSinceSnapshot, canvasID)
}

// UpdatesSinceSnapshot returns the number of updates since the last snapshot.
func (p *SnapshotPolicy) UpdatesSinceSnapshot(canvasID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.updatesSinceSnapshot[canvasID]
}

// LoadResult contains the result of restoring a canvas.
type LoadResult struct {
	Revision int  // Revision of the snapshot restored
	IsNew    bool // True if no snapshot existed
}

// Restore loads the latest snapshot of canvasID into doc.
func Restore(store Store, canvasID string, doc *crdt.Doc) (LoadResult, error) {
	snap, err := store.LoadSnapshot(canvasID)

	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		return LoadResult{IsNew: true}, nil
	case err != nil:
		return LoadResult{}, err
	}

	if err := doc.ApplyUpdate(snap.Update, crdt.OriginRemote); err != nil {
		return LoadResult{}, fmt.Errorf("restore canvas %s: %w", canvasID, err)
	}

	return LoadResult{Revision: snap.Revision}, nil
}
