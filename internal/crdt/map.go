package crdt

import (
	"encoding/json"
	"fmt"
	"slices"
)

type stagedKey struct {
	mapName string
	key     string
}

// Txn stages writes for Doc.Transact. Reads see staged writes first.
type Txn struct {
	doc    *Doc
	writes []Entry
	staged map[stagedKey]int
}

// Set stages value under key in the named map. value is JSON-encoded unless
// it already is a json.RawMessage.
func (t *Txn) Set(mapName, key string, value any) error {
	if mapName == "" {
		return ErrEmptyMapName
	}

	if key == "" {
		return fmt.Errorf("map %q: %w", mapName, ErrEmptyKey)
	}

	raw, ok := value.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", mapName, key, err)
		}

		raw = data
	}

	t.put(Entry{Map: mapName, Key: key, Value: raw})

	return nil
}

// Delete stages removal of key from the named map.
func (t *Txn) Delete(mapName, key string) {
	if mapName == "" || key == "" {
		return
	}

	t.put(Entry{Map: mapName, Key: key, Deleted: true})
}

// Get returns the value of key as seen by the transaction.
func (t *Txn) Get(mapName, key string) (json.RawMessage, bool) {
	if i, ok := t.staged[stagedKey{mapName, key}]; ok {
		w := t.writes[i]
		if w.Deleted {
			return nil, false
		}

		return w.Value, true
	}

	return t.doc.Map(mapName).Get(key)
}

func (t *Txn) put(e Entry) {
	k := stagedKey{e.Map, e.Key}

	if i, ok := t.staged[k]; ok {
		t.writes[i] = e

		return
	}

	t.staged[k] = len(t.writes)
	t.writes = append(t.writes, e)
}

// Map is a handle on one named map of a Doc.
type Map struct {
	doc  *Doc
	name string
}

// Name returns the map name.
func (m *Map) Name() string {
	return m.name
}

// Get returns the live value stored under key.
func (m *Map) Get(key string) (json.RawMessage, bool) {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()

	e, ok := m.doc.lookup(m.name, key)
	if !ok || e.Deleted {
		return nil, false
	}

	return e.Value, true
}

// Has reports whether key holds a live value.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)

	return ok
}

// Deleted reports whether key holds a tombstone.
func (m *Map) Deleted(key string) bool {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()

	e, ok := m.doc.lookup(m.name, key)

	return ok && e.Deleted
}

// Set writes one value in its own transaction.
func (m *Map) Set(origin Origin, key string, value any) error {
	return m.doc.Transact(origin, func(tx *Txn) error {
		return tx.Set(m.name, key, value)
	})
}

// Delete removes one key in its own transaction.
func (m *Map) Delete(origin Origin, key string) {
	_ = m.doc.Transact(origin, func(tx *Txn) error {
		tx.Delete(m.name, key)

		return nil
	})
}

// Entries returns the live entries in insertion order. Concurrent inserts
// are ordered by node id.
func (m *Map) Entries() []Entry {
	m.doc.mu.RLock()

	var out []Entry

	for _, e := range m.doc.maps[m.name] {
		if !e.Deleted {
			out = append(out, e)
		}
	}

	m.doc.mu.RUnlock()

	slices.SortFunc(out, compareOrder)

	return out
}

// Len returns the number of live entries.
func (m *Map) Len() int {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()

	n := 0

	for _, e := range m.doc.maps[m.name] {
		if !e.Deleted {
			n++
		}
	}

	return n
}

// Observe registers fn for changes to this map.
func (m *Map) Observe(fn func(MapEvent)) func() {
	return m.doc.mapObservers(m.name).Add(fn)
}

// Decode unmarshals every live value into T, in entry order. Values that do
// not decode are skipped and reported through the returned error count.
func Decode[T any](m *Map) ([]T, int) {
	entries := m.Entries()
	out := make([]T, 0, len(entries))
	bad := 0

	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			bad++

			continue
		}

		out = append(out, v)
	}

	return out, bad
}
