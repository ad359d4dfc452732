package store

import (
	"github.com/serroba/online-canvas/internal/element"
)

// Stores bundles the three element stores of one canvas.
type Stores struct {
	Strokes *Store[element.Stroke]
	Shapes  *Store[element.Shape]
	Texts   *Store[element.TextBox]
}

// NewStores creates three empty stores.
func NewStores() *Stores {
	return &Stores{
		Strokes: New[element.Stroke](element.KindStroke),
		Shapes:  New[element.Shape](element.KindShape),
		Texts:   New[element.TextBox](element.KindText),
	}
}

// All returns every committed element.
func (s *Stores) All() element.Set {
	return element.Set{
		Strokes: s.Strokes.List(),
		Shapes:  s.Shapes.List(),
		Texts:   s.Texts.List(),
	}
}

// Pick returns the present elements whose ids are listed per kind, in store
// order. Missing ids are skipped.
func (s *Stores) Pick(ids map[element.Kind][]string) element.Set {
	return element.Set{
		Strokes: pick(s.Strokes, ids[element.KindStroke]),
		Shapes:  pick(s.Shapes, ids[element.KindShape]),
		Texts:   pick(s.Texts, ids[element.KindText]),
	}
}

// Upsert writes every element of set, one change per kind.
func (s *Stores) Upsert(set element.Set) {
	s.Strokes.UpsertMany(set.Strokes)
	s.Shapes.UpsertMany(set.Shapes)
	s.Texts.UpsertMany(set.Texts)
}

// Replace overwrites only the elements of set that are still present.
// Elements removed in the meantime stay removed.
func (s *Stores) Replace(set element.Set) {
	s.Strokes.UpsertMany(present(s.Strokes, set.Strokes))
	s.Shapes.UpsertMany(present(s.Shapes, set.Shapes))
	s.Texts.UpsertMany(present(s.Texts, set.Texts))
}

// Remove deletes the ids of set and returns what was actually removed.
func (s *Stores) Remove(set element.Set) element.Set {
	return element.Set{
		Strokes: s.Strokes.RemoveMany(set.IDs(element.KindStroke)),
		Shapes:  s.Shapes.RemoveMany(set.IDs(element.KindShape)),
		Texts:   s.Texts.RemoveMany(set.IDs(element.KindText)),
	}
}

// Has reports whether id of kind is present.
func (s *Stores) Has(kind element.Kind, id string) bool {
	switch kind {
	case element.KindStroke:
		return s.Strokes.Has(id)
	case element.KindShape:
		return s.Shapes.Has(id)
	case element.KindText:
		return s.Texts.Has(id)
	default:
		return false
	}
}

// Subscribe registers l on all three stores.
func (s *Stores) Subscribe(l Listener) func() {
	unsubs := []func(){
		s.Strokes.Subscribe(l),
		s.Shapes.Subscribe(l),
		s.Texts.Subscribe(l),
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func pick[T element.Record[T]](s *Store[T], ids []string) []T {
	if len(ids) == 0 {
		return nil
	}

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []T

	for _, e := range s.List() {
		if _, ok := want[e.ElementID()]; ok {
			out = append(out, e)
		}
	}

	return out
}

func present[T element.Record[T]](s *Store[T], elems []T) []T {
	var out []T

	for _, e := range elems {
		if s.Has(e.ElementID()) {
			out = append(out, e)
		}
	}

	return out
}
