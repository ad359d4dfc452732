// Package bridge keeps the element stores and the replicated document in
// step and exposes remote peers' transient elements as a render overlay.
//
// Inbound, every change to a replicated map replaces the matching store's
// contents without echoing back. Outbound, every local store change writes
// only the touched ids whose serialized value differs from the replicated one,
// all in one transaction. While suspended, local changes are held back and
// written together on Resume, so a gesture reaches peers as a single update.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/store"
)

var (
	ErrAlreadyStarted = errors.New("bridge already started")
	ErrMissingDoc     = errors.New("bridge requires a document")
	ErrMissingStores  = errors.New("bridge requires stores")
)

// MapName returns the replicated map holding elements of kind.
func MapName(kind element.Kind) string {
	switch kind {
	case element.KindStroke:
		return crdt.MapPaths
	case element.KindShape:
		return crdt.MapShapes
	case element.KindText:
		return crdt.MapTexts
	default:
		return ""
	}
}

// Config configures a Bridge.
type Config struct {
	Doc       *crdt.Doc
	Awareness *awareness.Awareness
	Stores    *store.Stores
	Logger    *slog.Logger
}

// Bridge wires one document and awareness channel to one set of stores.
type Bridge struct {
	doc    *crdt.Doc
	aw     *awareness.Awareness
	stores *store.Stores
	logger *slog.Logger
	origin crdt.Origin

	mu        sync.Mutex
	started   bool
	suspended int
	pending   map[element.Kind]map[string]struct{}
	unsubs    []func()

	overlay *overlayState
}

// New creates a bridge. Call Start to attach it.
func New(cfg Config) (*Bridge, error) {
	if cfg.Doc == nil {
		return nil, ErrMissingDoc
	}

	if cfg.Stores == nil {
		return nil, ErrMissingStores
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		doc:     cfg.Doc,
		aw:      cfg.Awareness,
		stores:  cfg.Stores,
		logger:  logger,
		origin:  crdt.Origin("bridge:" + cfg.Doc.Node()),
		pending: newPending(),
		overlay: newOverlayState(),
	}, nil
}

// Origin is the origin tag of the bridge's own transactions.
func (b *Bridge) Origin() crdt.Origin {
	return b.origin
}

// Start loads the current document into the stores and subscribes to both
// sides.
func (b *Bridge) Start() error {
	b.mu.Lock()

	if b.started {
		b.mu.Unlock()

		return ErrAlreadyStarted
	}

	b.started = true
	b.mu.Unlock()

	for _, kind := range element.Kinds {
		b.pull(kind)
	}

	unsubs := []func(){b.stores.Subscribe(b.push)}

	for _, kind := range element.Kinds {
		unsubs = append(unsubs, b.doc.Map(MapName(kind)).Observe(func(ev crdt.MapEvent) {
			if ev.Origin == b.origin {
				return
			}

			b.pull(kind)
		}))
	}

	if b.aw != nil {
		unsubs = append(unsubs, b.aw.OnChange(func(awareness.Change) { b.refreshOverlay() }))
		b.refreshOverlay()
	}

	b.mu.Lock()
	b.unsubs = unsubs
	b.mu.Unlock()

	return nil
}

// Close detaches the bridge. Pending local changes are flushed first.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.suspended = 0
	b.mu.Unlock()

	b.Flush()

	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.started = false
	b.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Suspend holds back outbound writes until the matching Resume. Calls nest.
func (b *Bridge) Suspend() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.suspended++
}

// Resume ends one Suspend. The outermost Resume writes every held-back
// change in one transaction.
func (b *Bridge) Resume() {
	b.mu.Lock()

	if b.suspended > 0 {
		b.suspended--
	}

	done := b.suspended == 0
	b.mu.Unlock()

	if done {
		b.Flush()
	}
}

// Batch runs fn with outbound writes suspended and writes its changes as one
// transaction.
func (b *Bridge) Batch(fn func()) {
	b.Suspend()
	defer b.Resume()

	fn()
}

// Suspended reports whether outbound writes are held back.
func (b *Bridge) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.suspended > 0
}

// Flush writes every held-back change now.
func (b *Bridge) Flush() {
	b.mu.Lock()
	pending := b.pending
	b.pending = newPending()
	b.mu.Unlock()

	if err := b.write(pending); err != nil {
		b.logger.Error("bridge: flush failed", "error", err)
	}
}

// push handles a local store change.
func (b *Bridge) push(c store.Change) {
	if c.SkipEcho {
		return
	}

	b.mu.Lock()

	if !b.started {
		b.mu.Unlock()

		return
	}

	for _, id := range c.Upserted {
		b.pending[c.Kind][id] = struct{}{}
	}

	for _, id := range c.Removed {
		b.pending[c.Kind][id] = struct{}{}
	}

	suspended := b.suspended > 0
	b.mu.Unlock()

	if !suspended {
		b.Flush()
	}
}

// write brings the replicated maps in line with the stores for the given ids.
func (b *Bridge) write(ids map[element.Kind]map[string]struct{}) error {
	empty := true

	for _, set := range ids {
		if len(set) > 0 {
			empty = false

			break
		}
	}

	if empty {
		return nil
	}

	return b.doc.Transact(b.origin, func(tx *crdt.Txn) error {
		for _, kind := range element.Kinds {
			name := MapName(kind)

			for id := range ids[kind] {
				local, ok, err := b.encodeLocal(kind, id)
				if err != nil {
					return err
				}

				remote, inDoc := tx.Get(name, id)

				switch {
				case ok && inDoc && bytes.Equal(local, remote):
				case ok:
					if err := tx.Set(name, id, json.RawMessage(local)); err != nil {
						return err
					}
				case inDoc:
					tx.Delete(name, id)
				}
			}
		}

		return nil
	})
}

func (b *Bridge) encodeLocal(kind element.Kind, id string) ([]byte, bool, error) {
	var (
		v  any
		ok bool
	)

	switch kind {
	case element.KindStroke:
		v, ok = b.stores.Strokes.Get(id)
	case element.KindShape:
		v, ok = b.stores.Shapes.Get(id)
	case element.KindText:
		v, ok = b.stores.Texts.Get(id)
	}

	if !ok {
		return nil, false, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, false, fmt.Errorf("encode %s %s: %w", kind, id, err)
	}

	return data, true, nil
}

// pull replaces the store of kind with the replicated contents. Ids with
// held-back local changes keep their local state, unless a peer deleted them
// meanwhile: the delete wins and the held change is dropped.
func (b *Bridge) pull(kind element.Kind) {
	b.mu.Lock()

	held := make(map[string]struct{}, len(b.pending[kind]))
	for id := range b.pending[kind] {
		held[id] = struct{}{}
	}

	b.mu.Unlock()

	m := b.doc.Map(MapName(kind))

	var dropped []string

	switch kind {
	case element.KindStroke:
		dropped = pullInto(b, m, b.stores.Strokes, held)
	case element.KindShape:
		dropped = pullInto(b, m, b.stores.Shapes, held)
	case element.KindText:
		dropped = pullInto(b, m, b.stores.Texts, held)
	}

	if len(dropped) == 0 {
		return
	}

	b.mu.Lock()
	for _, id := range dropped {
		delete(b.pending[kind], id)
	}
	b.mu.Unlock()

	b.logger.Debug("bridge: held changes lost to remote delete", "map", m.Name(), "count", len(dropped))
}

// pullInto loads m into s and returns the held ids that m has since deleted.
func pullInto[T element.Record[T]](b *Bridge, m *crdt.Map, s *store.Store[T], held map[string]struct{}) []string {
	remote, bad := crdt.Decode[T](m)
	if bad > 0 {
		b.logger.Warn("bridge: skipped undecodable entries", "map", m.Name(), "count", bad)
	}

	out := make([]T, 0, len(remote)+len(held))
	seen := make(map[string]struct{}, len(remote))

	for _, e := range remote {
		id := e.ElementID()
		seen[id] = struct{}{}

		if _, ok := held[id]; ok {
			if local, present := s.Get(id); present {
				out = append(out, local)
			}

			continue
		}

		out = append(out, e)
	}

	var dropped []string

	for _, local := range s.List() {
		id := local.ElementID()

		if _, ok := held[id]; !ok {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		if m.Deleted(id) {
			dropped = append(dropped, id)

			continue
		}

		out = append(out, local)
	}

	s.SetAll(out, true)

	return dropped
}

func newPending() map[element.Kind]map[string]struct{} {
	return map[element.Kind]map[string]struct{}{
		element.KindStroke: {},
		element.KindShape:  {},
		element.KindText:   {},
	}
}
