// Package history records completed gestures as invertible commands.
package history

import (
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
)

// DefaultDepth is the number of entries kept before the oldest is evicted.
const DefaultDepth = 100

// Kind names the gesture an entry records.
type Kind string

const (
	Draw   Kind = "draw"
	Erase  Kind = "erase"
	Pan    Kind = "pan"
	Shape  Kind = "shape"
	Resize Kind = "resize"
	Move   Kind = "move"
	Text   Kind = "text"
)

// Entry holds what is needed to invert and replay one gesture.
type Entry struct {
	Kind Kind
	// Before and After are the affected elements on each side of the gesture.
	// A draw or shape entry only has After, an erase only Before.
	Before element.Set
	After  element.Set
	// BeforeBox and AfterBox are the combined boxes of a resize.
	BeforeBox geom.BoundingBox
	AfterBox  geom.BoundingBox
	// PanDelta is the viewport offset applied by a pan.
	PanDelta geom.Point
}

// DrawEntry records a committed stroke.
func DrawEntry(s element.Stroke) Entry {
	return Entry{Kind: Draw, After: element.Set{Strokes: []element.Stroke{s}}}
}

// ShapeEntry records a committed shape.
func ShapeEntry(s element.Shape) Entry {
	return Entry{Kind: Shape, After: element.Set{Shapes: []element.Shape{s}}}
}

// EraseEntry records removed elements.
func EraseEntry(removed element.Set) Entry {
	return Entry{Kind: Erase, Before: removed}
}

// MoveEntry records a move of before to after.
func MoveEntry(before, after element.Set) Entry {
	return Entry{Kind: Move, Before: before, After: after}
}

// ResizeEntry records a resize between two combined boxes.
func ResizeEntry(before, after element.Set, beforeBox, afterBox geom.BoundingBox) Entry {
	return Entry{Kind: Resize, Before: before, After: after, BeforeBox: beforeBox, AfterBox: afterBox}
}

// TextEntry records a text edit. before is nil for a newly created box.
func TextEntry(before *element.TextBox, after element.TextBox) Entry {
	e := Entry{Kind: Text, After: element.Set{Texts: []element.TextBox{after}}}
	if before != nil {
		e.Before = element.Set{Texts: []element.TextBox{*before}}
	}

	return e
}

// PanEntry records a viewport pan by delta.
func PanEntry(delta geom.Point) Entry {
	return Entry{Kind: Pan, PanDelta: delta}
}

// Target is what entries are replayed against.
type Target interface {
	// Insert adds or replaces elements.
	Insert(set element.Set)
	// Remove deletes elements by id; unknown ids are ignored.
	Remove(set element.Set)
	// Replace overwrites elements that are still present and skips the rest.
	Replace(set element.Set)
	// PanBy shifts the viewport.
	PanBy(delta geom.Point)
}

func (e Entry) undo(t Target) {
	switch e.Kind {
	case Draw, Shape:
		t.Remove(e.After)
	case Erase:
		t.Insert(e.Before)
	case Move, Resize:
		t.Replace(e.Before)
	case Text:
		if e.Before.IsEmpty() {
			t.Remove(e.After)
		} else {
			t.Insert(e.Before)
		}
	case Pan:
		t.PanBy(geom.Point{X: -e.PanDelta.X, Y: -e.PanDelta.Y})
	}
}

func (e Entry) redo(t Target) {
	switch e.Kind {
	case Draw, Shape, Text:
		t.Insert(e.After)
	case Erase:
		t.Remove(e.Before)
	case Move, Resize:
		t.Replace(e.After)
	case Pan:
		t.PanBy(e.PanDelta)
	}
}

// Stack is a bounded undo/redo log. It is not safe for concurrent use.
type Stack struct {
	depth int
	past  []Entry
	redo  []Entry
}

// New returns a stack holding at most depth entries; depth <= 0 uses
// DefaultDepth.
func New(depth int) *Stack {
	if depth <= 0 {
		depth = DefaultDepth
	}

	return &Stack{depth: depth}
}

// Push records a completed gesture and discards everything undone before it.
func (s *Stack) Push(e Entry) {
	s.past = append(s.past, e)
	s.redo = nil

	if over := len(s.past) - s.depth; over > 0 {
		s.past = append(s.past[:0:0], s.past[over:]...)
	}
}

// Undo reverts the latest entry against t.
func (s *Stack) Undo(t Target) (Entry, bool) {
	if len(s.past) == 0 {
		return Entry{}, false
	}

	e := s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]

	e.undo(t)
	s.redo = append(s.redo, e)

	return e, true
}

// Redo replays the latest undone entry against t.
func (s *Stack) Redo(t Target) (Entry, bool) {
	if len(s.redo) == 0 {
		return Entry{}, false
	}

	e := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]

	e.redo(t)
	s.past = append(s.past, e)

	return e, true
}

// CanUndo reports whether an entry can be undone.
func (s *Stack) CanUndo() bool {
	return len(s.past) > 0
}

// CanRedo reports whether an undone entry can be replayed.
func (s *Stack) CanRedo() bool {
	return len(s.redo) > 0
}

// Len returns the undo and redo depths.
func (s *Stack) Len() (int, int) {
	return len(s.past), len(s.redo)
}

// Clear drops both stacks.
func (s *Stack) Clear() {
	s.past = nil
	s.redo = nil
}
