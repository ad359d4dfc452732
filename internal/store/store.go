// Package store holds the authoritative local collections of committed elements.
package store

import (
	"reflect"
	"sync"

	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/observer"
)

// Change describes one mutation of a store.
type Change struct {
	Kind element.Kind
	// Upserted and Removed list the ids the mutation touched. A SetAll reports
	// every id it added or changed as upserted and every id it dropped as removed.
	Upserted []string
	Removed  []string
	// SkipEcho marks changes applied from replicated state; they must not be
	// written back to the replicated document.
	SkipEcho bool
}

// Listener is notified after a store mutates.
type Listener func(Change)

// Store is an ordered, id-keyed collection of one element kind.
// It is safe for concurrent use. Listeners run after the lock is released.
type Store[T element.Record[T]] struct {
	kind element.Kind

	mu       sync.RWMutex
	order    []string
	elements map[string]T

	listeners observer.List[Change]
}

// New creates an empty store for kind.
func New[T element.Record[T]](kind element.Kind) *Store[T] {
	return &Store[T]{
		kind:     kind,
		elements: make(map[string]T),
	}
}

// Kind returns the element kind held by the store.
func (s *Store[T]) Kind() element.Kind {
	return s.kind
}

// List returns every element in insertion order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.elements[id])
	}

	return out
}

// Get returns the element with id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.elements[id]

	return e, ok
}

// Has reports whether id is present.
func (s *Store[T]) Has(id string) bool {
	_, ok := s.Get(id)

	return ok
}

// Len returns the number of elements.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Upsert inserts or replaces one element.
func (s *Store[T]) Upsert(e T) {
	s.UpsertMany([]T{e})
}

// UpsertMany inserts or replaces elements as one change.
// Bounding boxes are recomputed before storing.
func (s *Store[T]) UpsertMany(elems []T) {
	if len(elems) == 0 {
		return
	}

	s.mu.Lock()

	ids := make([]string, 0, len(elems))

	for _, e := range elems {
		e = e.Normalized()
		id := e.ElementID()

		if _, exists := s.elements[id]; !exists {
			s.order = append(s.order, id)
		}

		s.elements[id] = e
		ids = append(ids, id)
	}

	s.mu.Unlock()

	s.notify(Change{Kind: s.kind, Upserted: ids})
}

// RemoveMany deletes the given ids. Unknown ids are ignored.
// It returns the elements that were actually removed.
func (s *Store[T]) RemoveMany(ids []string) []T {
	s.mu.Lock()

	var removed []T

	drop := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if e, ok := s.elements[id]; ok {
			removed = append(removed, e)
			drop[id] = struct{}{}

			delete(s.elements, id)
		}
	}

	if len(drop) > 0 {
		s.order = filterOrder(s.order, drop)
	}

	s.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}

	removedIDs := make([]string, 0, len(removed))
	for _, e := range removed {
		removedIDs = append(removedIDs, e.ElementID())
	}

	s.notify(Change{Kind: s.kind, Removed: removedIDs})

	return removed
}

// SetAll replaces the whole collection with elems, keeping their order.
// skipEcho is set when elems come from replicated state.
func (s *Store[T]) SetAll(elems []T, skipEcho bool) {
	s.mu.Lock()

	next := make(map[string]T, len(elems))
	order := make([]string, 0, len(elems))

	var upserted []string

	for _, e := range elems {
		e = e.Normalized()
		id := e.ElementID()

		if _, dup := next[id]; !dup {
			order = append(order, id)
		}

		next[id] = e

		if prev, ok := s.elements[id]; !ok || !sameRecord(prev, e) {
			upserted = append(upserted, id)
		}
	}

	var removed []string

	for _, id := range s.order {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}

	s.elements = next
	s.order = order

	s.mu.Unlock()

	if len(upserted) == 0 && len(removed) == 0 {
		return
	}

	s.notify(Change{Kind: s.kind, Upserted: upserted, Removed: removed, SkipEcho: skipEcho})
}

// Subscribe registers l and returns a function that removes it.
func (s *Store[T]) Subscribe(l Listener) func() {
	return s.listeners.Add(l)
}

func (s *Store[T]) notify(c Change) {
	s.listeners.Notify(c)
}

func filterOrder(order []string, drop map[string]struct{}) []string {
	kept := order[:0:0]

	for _, id := range order {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}

	return kept
}

func sameRecord[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
