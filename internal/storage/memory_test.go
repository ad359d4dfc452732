package storage_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/serroba/online-canvas/internal/storage"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *storage.MemoryStore {
	t.Helper()

	store, err := storage.NewMemoryStore(0)
	require.NoError(t, err)

	return store
}

func TestMemoryStore_SaveAndLoadSnapshot(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	err := store.SaveSnapshot(storage.Snapshot{CanvasID: "canvas1", Revision: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot, err := store.LoadSnapshot("canvas1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.CanvasID != "canvas1" {
		t.Errorf("expected canvasID canvas1, got %s", snapshot.CanvasID)
	}

	if snapshot.Revision != 10 {
		t.Errorf("expected revision 10, got %d", snapshot.Revision)
	}

	if snapshot.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestMemoryStore_SaveSnapshot_EmptyCanvasID(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	err := store.SaveSnapshot(storage.Snapshot{})
	if !errors.Is(err, storage.ErrEmptyCanvasID) {
		t.Errorf("expected ErrEmptyCanvasID, got %v", err)
	}
}

func TestMemoryStore_SaveSnapshot_Stale(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	require.NoError(t, store.SaveSnapshot(storage.Snapshot{CanvasID: "canvas1", Revision: 5}))

	err := store.SaveSnapshot(storage.Snapshot{CanvasID: "canvas1", Revision: 4})
	if !errors.Is(err, storage.ErrStaleSnapshot) {
		t.Errorf("expected ErrStaleSnapshot, got %v", err)
	}

	require.NoError(t, store.SaveSnapshot(storage.Snapshot{CanvasID: "canvas1", Revision: 5}))

	snapshot, err := store.LoadSnapshot("canvas1")
	require.NoError(t, err)
	require.Equal(t, 5, snapshot.Revision)
}

func TestMemoryStore_LoadSnapshot_NotFound(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	_, err := store.LoadSnapshot("nonexistent")
	if !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestMemoryStore_DeleteSnapshot(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	require.NoError(t, store.SaveSnapshot(storage.Snapshot{CanvasID: "canvas1"}))

	require.NoError(t, store.DeleteSnapshot("canvas1"))

	err := store.DeleteSnapshot("canvas1")
	if !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	store, err := storage.NewMemoryStore(2)
	require.NoError(t, err)

	require.NoError(t, store.SaveSnapshot(storage.Snapshot{CanvasID: "a"}))
	require.NoError(t, store.SaveSnapshot(storage.Snapshot{CanvasID: "b"}))

	// Reading a makes b the oldest.
	_, err = store.LoadSnapshot("a")
	require.NoError(t, err)

	require.NoError(t, store.SaveSnapshot(storage.Snapshot{CanvasID: "c"}))

	if store.Len() != 2 {
		t.Errorf("expected 2 canvases, got %d", store.Len())
	}

	if _, err := store.LoadSnapshot("b"); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("expected b to be evicted, got %v", err)
	}

	if _, err := store.LoadSnapshot("a"); err != nil {
		t.Errorf("expected a to be kept, got %v", err)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("canvas-%d", n%5)
			_ = store.SaveSnapshot(storage.Snapshot{CanvasID: id, Revision: n})
			_, _ = store.LoadSnapshot(id)
		}(i)
	}

	wg.Wait()

	if store.Len() != 5 {
		t.Errorf("expected 5 canvases, got %d", store.Len())
	}
}
