// Package crdt implements the replicated document: a set of named maps whose
// entries are last-writer-wins registers ordered by Lamport timestamp and
// node id. Deletes leave tombstones so they replicate like writes.
package crdt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/serroba/online-canvas/internal/observer"
)

// Map names used by the canvas.
const (
	MapPaths  = "paths"
	MapShapes = "shapes"
	MapTexts  = "texts"
)

var (
	ErrEmptyKey     = errors.New("empty key")
	ErrEmptyMapName = errors.New("empty map name")
)

// Origin tags a transaction or applied update so observers can tell their
// own writes apart from remote ones.
type Origin string

// OriginRemote is the origin used for updates received from the network
// when the caller has nothing more specific.
const OriginRemote Origin = "remote"

// Entry is one register of one map.
type Entry struct {
	Map       string          `json:"map"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
	Timestamp uint64          `json:"timestamp"`
	Node      string          `json:"node"`
	Order     uint64          `json:"order"`
	Deleted   bool            `json:"deleted,omitempty"`
}

func (e Entry) newerThan(o Entry) bool {
	if e.Timestamp != o.Timestamp {
		return e.Timestamp > o.Timestamp
	}

	return e.Node > o.Node
}

// Update is a batch of entries. A transaction produces exactly one Update.
type Update struct {
	Entries []Entry `json:"entries"`
}

// IsEmpty reports whether the update carries no entries.
func (u Update) IsEmpty() bool {
	return len(u.Entries) == 0
}

// UpdateEvent is delivered to document observers.
type UpdateEvent struct {
	Update Update
	Origin Origin
}

// MapEvent is delivered to map observers once per transaction or applied
// update that changed the map.
type MapEvent struct {
	Map    string
	Keys   []string
	Origin Origin
}

// Doc is a replicated document. It is safe for concurrent use; observers
// run after the document lock is released.
type Doc struct {
	node string

	mu     sync.RWMutex
	clock  uint64
	maps   map[string]map[string]Entry
	closed bool

	omu       sync.Mutex
	updates   *observer.List[UpdateEvent]
	observers map[string]*observer.List[MapEvent]
}

// NewDoc creates an empty document for the given node id. Node ids break
// timestamp ties and must be unique per replica.
func NewDoc(node string) *Doc {
	return &Doc{
		node:      node,
		maps:      make(map[string]map[string]Entry),
		updates:   &observer.List[UpdateEvent]{},
		observers: make(map[string]*observer.List[MapEvent]),
	}
}

// Node returns the replica id.
func (d *Doc) Node() string {
	return d.node
}

// Map returns a handle on the named map. Handles are cheap; maps exist
// implicitly.
func (d *Doc) Map(name string) *Map {
	return &Map{doc: d, name: name}
}

// OnUpdate registers fn for every local transaction and every applied remote
// update that changed state.
func (d *Doc) OnUpdate(fn func(UpdateEvent)) func() {
	d.omu.Lock()
	l := d.updates
	d.omu.Unlock()

	return l.Add(fn)
}

// Transact runs fn and commits every write it staged as one update. Nothing
// is committed when fn returns an error.
func (d *Doc) Transact(origin Origin, fn func(*Txn) error) error {
	tx := &Txn{doc: d, staged: make(map[stagedKey]int)}

	if err := fn(tx); err != nil {
		return err
	}

	if len(tx.writes) == 0 {
		return nil
	}

	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()

		return nil
	}

	applied := make([]Entry, 0, len(tx.writes))

	for _, w := range tx.writes {
		cur, exists := d.lookup(w.Map, w.Key)

		if exists && cur.Deleted == w.Deleted && bytes.Equal(cur.Value, w.Value) {
			continue
		}

		if !exists && w.Deleted {
			continue
		}

		d.clock++

		e := w
		e.Timestamp = d.clock
		e.Node = d.node
		e.Order = d.clock

		if exists {
			e.Order = cur.Order
		}

		d.store(e)
		applied = append(applied, e)
	}

	d.mu.Unlock()

	d.emit(Update{Entries: applied}, origin)

	return nil
}

// ApplyUpdate merges a remote update. Entries older than the local state
// are ignored. Observers see only the entries that changed state.
func (d *Doc) ApplyUpdate(u Update, origin Origin) error {
	for _, e := range u.Entries {
		if e.Map == "" {
			return ErrEmptyMapName
		}

		if e.Key == "" {
			return fmt.Errorf("map %q: %w", e.Map, ErrEmptyKey)
		}
	}

	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()

		return nil
	}

	var applied []Entry

	for _, e := range u.Entries {
		d.clock = max(d.clock, e.Timestamp)

		cur, exists := d.lookup(e.Map, e.Key)
		if exists && !e.newerThan(cur) {
			continue
		}

		d.store(e)
		applied = append(applied, e)
	}

	d.mu.Unlock()

	d.emit(Update{Entries: applied}, origin)

	return nil
}

// State returns every entry, tombstones included, as one update that brings
// an empty replica up to date.
func (d *Doc) State() Update {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var entries []Entry

	for _, m := range d.maps {
		for _, e := range m {
			entries = append(entries, e)
		}
	}

	slices.SortFunc(entries, compareEntries)

	return Update{Entries: entries}
}

// IsEmpty reports whether no map holds a live entry.
func (d *Doc) IsEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, m := range d.maps {
		for _, e := range m {
			if !e.Deleted {
				return false
			}
		}
	}

	return true
}

// Destroy detaches every observer and makes later writes no-ops.
func (d *Doc) Destroy() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.omu.Lock()
	d.observers = make(map[string]*observer.List[MapEvent])
	d.updates = &observer.List[UpdateEvent]{}
	d.omu.Unlock()
}

func (d *Doc) lookup(mapName, key string) (Entry, bool) {
	m, ok := d.maps[mapName]
	if !ok {
		return Entry{}, false
	}

	e, ok := m[key]

	return e, ok
}

func (d *Doc) store(e Entry) {
	m, ok := d.maps[e.Map]
	if !ok {
		m = make(map[string]Entry)
		d.maps[e.Map] = m
	}

	m[e.Key] = e
}

func (d *Doc) mapObservers(name string) *observer.List[MapEvent] {
	d.omu.Lock()
	defer d.omu.Unlock()

	l, ok := d.observers[name]
	if !ok {
		l = &observer.List[MapEvent]{}
		d.observers[name] = l
	}

	return l
}

func (d *Doc) emit(u Update, origin Origin) {
	if u.IsEmpty() {
		return
	}

	keys := make(map[string][]string)
	names := make([]string, 0)

	for _, e := range u.Entries {
		if _, seen := keys[e.Map]; !seen {
			names = append(names, e.Map)
		}

		keys[e.Map] = append(keys[e.Map], e.Key)
	}

	for _, name := range names {
		d.mapObservers(name).Notify(MapEvent{Map: name, Keys: keys[name], Origin: origin})
	}

	d.omu.Lock()
	updates := d.updates
	d.omu.Unlock()

	updates.Notify(UpdateEvent{Update: u, Origin: origin})
}

func compareEntries(a, b Entry) int {
	if a.Map != b.Map {
		if a.Map < b.Map {
			return -1
		}

		return 1
	}

	return compareOrder(a, b)
}

func compareOrder(a, b Entry) int {
	switch {
	case a.Order != b.Order:
		if a.Order < b.Order {
			return -1
		}

		return 1
	case a.Node != b.Node:
		if a.Node < b.Node {
			return -1
		}

		return 1
	case a.Key < b.Key:
		return -1
	case a.Key > b.Key:
		return 1
	default:
		return 0
	}
}
