// Package selection tracks which committed elements are selected and runs
// click and drag-rectangle selection against the element stores.
package selection

import (
	"slices"

	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/store"
)

// Phase is the gesture the selection is currently part of.
type Phase int

const (
	Idle Phase = iota
	Single
	DragSelect
	Moving
	Resizing
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Single:
		return "single"
	case DragSelect:
		return "drag-select"
	case Moving:
		return "move"
	case Resizing:
		return "resize"
	default:
		return "unknown"
	}
}

// Rect is the drag-select rectangle between the press and current pointer.
type Rect struct {
	Start geom.Point
	End   geom.Point
}

// Box returns the normalized box spanned by the rectangle.
func (r Rect) Box() geom.BoundingBox {
	return geom.BoxOf(r.Start, r.End)
}

// Hit identifies one element.
type Hit struct {
	Kind element.Kind
	ID   string
}

// Model is the selection of one session. It is not safe for concurrent use;
// the owning session serializes access.
type Model struct {
	stores *store.Stores
	ids    map[element.Kind]map[string]struct{}
	phase  Phase
	rect   *Rect
}

// New creates an empty selection over stores.
func New(stores *store.Stores) *Model {
	m := &Model{stores: stores}
	m.reset()

	return m
}

// Phase returns the current phase.
func (m *Model) Phase() Phase {
	return m.phase
}

// SetPhase records that a move or resize gesture started or ended.
func (m *Model) SetPhase(p Phase) {
	m.phase = p
}

// Rect returns the active drag rectangle.
func (m *Model) Rect() (Rect, bool) {
	if m.rect == nil {
		return Rect{}, false
	}

	return *m.rect, true
}

// HitTest returns the element a click at p selects. Kinds are tested as
// strokes, shapes, texts and a later kind overrides an earlier one; within a
// kind the topmost element wins.
func (m *Model) HitTest(p geom.Point) (Hit, bool) {
	var (
		hit Hit
		ok  bool
	)

	if id, found := topmost(m.stores.Strokes, p); found {
		hit, ok = Hit{Kind: element.KindStroke, ID: id}, true
	}

	if id, found := topmost(m.stores.Shapes, p); found {
		hit, ok = Hit{Kind: element.KindShape, ID: id}, true
	}

	if id, found := topmost(m.stores.Texts, p); found {
		hit, ok = Hit{Kind: element.KindText, ID: id}, true
	}

	return hit, ok
}

// SelectAt replaces the selection with the element hit at p, or clears it on
// a miss.
func (m *Model) SelectAt(p geom.Point) (Hit, bool) {
	m.reset()

	hit, ok := m.HitTest(p)
	if ok {
		m.ids[hit.Kind][hit.ID] = struct{}{}
	}

	m.phase = Single

	return hit, ok
}

// BeginDrag starts a drag-select at p. A drag that begins on an element
// selects it first.
func (m *Model) BeginDrag(p geom.Point) {
	m.SelectAt(p)

	m.phase = DragSelect
	m.rect = &Rect{Start: p, End: p}
}

// UpdateDrag grows the rectangle to p and adds every element whose box
// intersects it. Already selected ids stay selected.
func (m *Model) UpdateDrag(p geom.Point) {
	if m.rect == nil {
		return
	}

	m.rect.End = p
	box := m.rect.Box()

	addIntersecting(m.ids[element.KindStroke], m.stores.Strokes, box)
	addIntersecting(m.ids[element.KindShape], m.stores.Shapes, box)
	addIntersecting(m.ids[element.KindText], m.stores.Texts, box)
}

// EndDrag freezes the selection and clears the rectangle.
func (m *Model) EndDrag() {
	m.rect = nil
	m.phase = Idle
}

// Clear drops every selected id and ends any gesture.
func (m *Model) Clear() {
	m.reset()
}

// Replace selects exactly the elements of set.
func (m *Model) Replace(set element.Set) {
	m.reset()

	for _, kind := range element.Kinds {
		for _, id := range set.IDs(kind) {
			m.ids[kind][id] = struct{}{}
		}
	}
}

// Has reports whether id of kind is selected.
func (m *Model) Has(kind element.Kind, id string) bool {
	_, ok := m.ids[kind][id]

	return ok
}

// IsEmpty reports whether nothing is selected.
func (m *Model) IsEmpty() bool {
	return m.Len() == 0
}

// Len returns the number of selected ids.
func (m *Model) Len() int {
	n := 0
	for _, ids := range m.ids {
		n += len(ids)
	}

	return n
}

// IDs returns the selected ids per kind, sorted.
func (m *Model) IDs() map[element.Kind][]string {
	out := make(map[element.Kind][]string, len(m.ids))

	for kind, ids := range m.ids {
		if len(ids) == 0 {
			continue
		}

		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}

		slices.Sort(list)
		out[kind] = list
	}

	return out
}

// Prune drops ids that are no longer present in the stores.
func (m *Model) Prune() {
	for kind, ids := range m.ids {
		for id := range ids {
			if !m.stores.Has(kind, id) {
				delete(ids, id)
			}
		}
	}
}

// Selected returns the current records of the selected elements in store
// order. Stale ids are pruned.
func (m *Model) Selected() element.Set {
	m.Prune()

	return m.stores.Pick(m.IDs())
}

// CombinedBox returns the union of the selected elements' boxes.
func (m *Model) CombinedBox() (geom.BoundingBox, bool) {
	return m.Selected().Bounds()
}

func (m *Model) reset() {
	m.ids = map[element.Kind]map[string]struct{}{
		element.KindStroke: {},
		element.KindShape:  {},
		element.KindText:   {},
	}
	m.rect = nil
	m.phase = Idle
}

func topmost[T element.Record[T]](s *store.Store[T], p geom.Point) (string, bool) {
	list := s.List()

	for i := len(list) - 1; i >= 0; i-- {
		if list[i].HitTest(p) {
			return list[i].ElementID(), true
		}
	}

	return "", false
}

func addIntersecting[T element.Record[T]](ids map[string]struct{}, s *store.Store[T], box geom.BoundingBox) {
	for _, e := range s.List() {
		if geom.Intersects(e.Bounds(), box) {
			ids[e.ElementID()] = struct{}{}
		}
	}
}
