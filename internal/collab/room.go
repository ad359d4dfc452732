package collab

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/storage"
	"github.com/serroba/online-canvas/internal/ws"
)

// Common errors.
var (
	ErrRoomClosed = errors.New("room is closed")
)

// relayNode is the node id of the server replica. The server never writes
// entries of its own, so it never wins a tie.
const relayNode = "relay"

// Room relays one canvas between its connected peers. It keeps a replica of
// the document so late joiners receive the full state, and the latest
// awareness of every peer so departures can be announced.
type Room struct {
	canvasID string
	logger   *slog.Logger

	mu       sync.RWMutex
	doc      *crdt.Doc
	aw       *awareness.Awareness
	peers    map[string]map[string]struct{} // connection id -> announced peer ids
	revision int
	closed   bool

	// Dependencies
	store          storage.Store
	hub            *ws.Hub
	snapshotPolicy *storage.SnapshotPolicy
}

// RoomConfig holds configuration for creating a room.
type RoomConfig struct {
	CanvasID       string
	Store          storage.Store
	Hub            *ws.Hub
	SnapshotPolicy *storage.SnapshotPolicy
	Logger         *slog.Logger
}

// NewRoom creates a new relay room.
func NewRoom(cfg RoomConfig) *Room {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Room{
		canvasID:       cfg.CanvasID,
		logger:         logger.With("canvas", cfg.CanvasID),
		doc:            crdt.NewDoc(relayNode),
		aw:             awareness.New(relayNode),
		peers:          make(map[string]map[string]struct{}),
		store:          cfg.Store,
		hub:            cfg.Hub,
		snapshotPolicy: cfg.SnapshotPolicy,
	}
}

// Load initializes the room from the latest stored snapshot, if any.
func (r *Room) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}

	if r.store == nil {
		return nil
	}

	result, err := storage.Restore(r.store, r.canvasID, r.doc)
	if err != nil {
		return err
	}

	r.revision = result.Revision

	if !result.IsNew {
		r.logger.Debug("room restored", "revision", result.Revision)
	}

	return nil
}

// ApplyUpdate merges document entries sent by a connection and relays them
// to the other connections of the canvas.
func (r *Room) ApplyUpdate(clientID string, u crdt.Update) (int, error) {
	if u.IsEmpty() {
		return r.Revision(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRoomClosed
	}

	if err := r.doc.ApplyUpdate(u, crdt.OriginRemote); err != nil {
		return 0, fmt.Errorf("apply update from %s: %w", clientID, err)
	}

	r.revision++
	r.maybeSnapshot()

	if r.hub != nil {
		r.hub.BroadcastUpdate(r.canvasID, u, clientID)
	}

	return r.revision, nil
}

// ApplyAwareness records the presence a connection announced and relays it.
func (r *Room) ApplyAwareness(clientID string, u awareness.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}

	for _, p := range u.Peers {
		if p.ClientID == "" || p.Removed {
			continue
		}

		if r.peers[clientID] == nil {
			r.peers[clientID] = make(map[string]struct{})
		}

		r.peers[clientID][p.ClientID] = struct{}{}
	}

	r.aw.ApplyUpdate(u)

	if r.hub != nil {
		r.hub.BroadcastAwareness(r.canvasID, u, clientID)
	}

	return nil
}

// Leave announces that every peer of a closed connection is gone.
func (r *Room) Leave(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.peers[clientID]
	delete(r.peers, clientID)

	for id := range ids {
		u, ok := r.aw.RemovePeer(id)
		if !ok {
			continue
		}

		r.logger.Debug("peer left", "peer", id)

		if r.hub != nil {
			r.hub.BroadcastAwareness(r.canvasID, u, clientID)
		}
	}
}

// State returns the full document and awareness state of the canvas.
func (r *Room) State() (crdt.Update, awareness.Update, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return crdt.Update{}, awareness.Update{}, ErrRoomClosed
	}

	return r.doc.State(), r.aw.Snapshot(), nil
}

// Snapshot captures the current canvas.
func (r *Room) Snapshot() storage.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot()
}

func (r *Room) snapshot() storage.Snapshot {
	var (
		set    element.Set
		bad, n int
	)

	set.Strokes, n = crdt.Decode[element.Stroke](r.doc.Map(crdt.MapPaths))
	bad += n
	set.Shapes, n = crdt.Decode[element.Shape](r.doc.Map(crdt.MapShapes))
	bad += n
	set.Texts, n = crdt.Decode[element.TextBox](r.doc.Map(crdt.MapTexts))
	bad += n

	if bad > 0 {
		r.logger.Warn("undecodable entries skipped", "count", bad)
	}

	return storage.Snapshot{
		CanvasID:  r.canvasID,
		Revision:  r.revision,
		Update:    r.doc.State(),
		Elements:  set,
		CreatedAt: time.Now(),
	}
}

// maybeSnapshot checks if a snapshot should be created and does so.
func (r *Room) maybeSnapshot() {
	if r.snapshotPolicy == nil {
		return
	}

	if r.snapshotPolicy.RecordUpdate(r.canvasID) {
		if err := r.saveSnapshot(); err != nil {
			r.logger.Warn("snapshot failed", "error", err)
		}

		r.snapshotPolicy.Reset(r.canvasID)
	}
}

// saveSnapshot persists a snapshot of the current canvas state.
func (r *Room) saveSnapshot() error {
	if r.store == nil {
		return nil
	}

	return r.store.SaveSnapshot(r.snapshot())
}

// CanvasID returns the canvas ID for this room.
func (r *Room) CanvasID() string {
	return r.canvasID
}

// Revision returns the number of updates applied.
func (r *Room) Revision() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.revision
}

// Close closes the room and saves a final snapshot.
func (r *Room) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	// Save final snapshot of a canvas that saw any update
	var err error
	if r.revision > 0 {
		err = r.saveSnapshot()
	}

	r.closed = true
	r.doc.Destroy()
	r.aw.Destroy()

	return err
}
