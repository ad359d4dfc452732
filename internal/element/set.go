package element

import "github.com/serroba/online-canvas/internal/geom"

// Set groups elements of every kind, e.g. a selection or one side of an undo entry.
type Set struct {
	Strokes []Stroke  `json:"strokes,omitempty"`
	Shapes  []Shape   `json:"shapes,omitempty"`
	Texts   []TextBox `json:"texts,omitempty"`
}

// IsEmpty reports whether s holds no elements.
func (s Set) IsEmpty() bool {
	return s.Len() == 0
}

// Len returns the number of elements in s.
func (s Set) Len() int {
	return len(s.Strokes) + len(s.Shapes) + len(s.Texts)
}

// IDs returns the ids in s for one kind.
func (s Set) IDs(kind Kind) []string {
	var ids []string

	switch kind {
	case KindStroke:
		for _, e := range s.Strokes {
			ids = append(ids, e.ID)
		}
	case KindShape:
		for _, e := range s.Shapes {
			ids = append(ids, e.ID)
		}
	case KindText:
		for _, e := range s.Texts {
			ids = append(ids, e.ID)
		}
	}

	return ids
}

// Has reports whether s contains id under kind.
func (s Set) Has(kind Kind, id string) bool {
	for _, got := range s.IDs(kind) {
		if got == id {
			return true
		}
	}

	return false
}

// Bounds returns the union of every element's box; ok is false for an empty set.
func (s Set) Bounds() (geom.BoundingBox, bool) {
	boxes := make([]geom.BoundingBox, 0, s.Len())

	for _, e := range s.Strokes {
		boxes = append(boxes, e.BoundingBox)
	}

	for _, e := range s.Shapes {
		boxes = append(boxes, e.BoundingBox)
	}

	for _, e := range s.Texts {
		boxes = append(boxes, e.BoundingBox)
	}

	return geom.Union(boxes...)
}

// Translate returns every element of s moved by (dx, dy).
func (s Set) Translate(dx, dy float64) Set {
	out := Set{
		Strokes: make([]Stroke, 0, len(s.Strokes)),
		Shapes:  make([]Shape, 0, len(s.Shapes)),
		Texts:   make([]TextBox, 0, len(s.Texts)),
	}

	for _, e := range s.Strokes {
		out.Strokes = append(out.Strokes, e.Translate(dx, dy))
	}

	for _, e := range s.Shapes {
		out.Shapes = append(out.Shapes, e.Translate(dx, dy))
	}

	for _, e := range s.Texts {
		out.Texts = append(out.Texts, e.Translate(dx, dy))
	}

	return out
}

// Merge returns the elements of s followed by those of o.
func (s Set) Merge(o Set) Set {
	return Set{
		Strokes: append(append([]Stroke(nil), s.Strokes...), o.Strokes...),
		Shapes:  append(append([]Shape(nil), s.Shapes...), o.Shapes...),
		Texts:   append(append([]TextBox(nil), s.Texts...), o.Texts...),
	}
}
