package canvas

import (
	"github.com/serroba/online-canvas/internal/bridge"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/history"
	"github.com/serroba/online-canvas/internal/selection"
)

// target replays history entries against the session's stores and viewport.
type target struct {
	s *Session
}

func (t target) Insert(set element.Set)  { t.s.stores.Upsert(set) }
func (t target) Remove(set element.Set)  { t.s.stores.Remove(set) }
func (t target) Replace(set element.Set) { t.s.stores.Replace(set) }
func (t target) PanBy(d geom.Point)      { t.s.pan = t.s.pan.Add(d) }

// Undo reverts the latest gesture. Its changes reach peers as one update.
func (s *Session) Undo() bool {
	return s.replay(func(h *history.Stack, t history.Target) bool {
		_, ok := h.Undo(t)

		return ok
	})
}

// Redo replays the latest undone gesture.
func (s *Session) Redo() bool {
	return s.replay(func(h *history.Stack, t history.Target) bool {
		_, ok := h.Redo(t)

		return ok
	})
}

func (s *Session) replay(fn func(*history.Stack, history.Target) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return false
	}

	s.finishGestureLocked()
	s.commitTextLocked()

	var ok bool

	s.br.Batch(func() {
		ok = fn(s.hist, target{s: s})
	})

	s.sel.Prune()

	return ok
}

// CanUndo reports whether there is a gesture to undo.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hist != nil && s.hist.CanUndo()
}

// CanRedo reports whether there is an undone gesture to redo.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hist != nil && s.hist.CanRedo()
}

// DeleteSelection removes every selected element as one erase.
func (s *Session) DeleteSelection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return false
	}

	s.finishGestureLocked()

	var removed element.Set

	s.br.Batch(func() {
		removed = s.stores.Remove(s.sel.Selected())
	})

	s.sel.Clear()

	if removed.IsEmpty() {
		return false
	}

	s.hist.Push(history.EraseEntry(removed))

	return true
}

// ClearSelection deselects everything.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sel != nil && s.active == nil {
		s.sel.Clear()
	}
}

// Selection returns the selected ids per kind.
func (s *Session) Selection() map[element.Kind][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sel == nil {
		return nil
	}

	s.sel.Prune()

	return s.sel.IDs()
}

// Pan returns the viewport offset.
func (s *Session) Pan() geom.Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pan
}

// Scene is everything a renderer needs for one frame.
type Scene struct {
	Tool Tool
	Pan  geom.Point
	// Elements are the committed elements, minus a text box being edited.
	Elements element.Set
	// Local is this peer's in-progress element.
	Local element.Set
	// Remote is what other peers are drawing, with their cursors.
	Remote       bridge.Overlay
	Selected     map[element.Kind][]string
	SelectionBox *geom.BoundingBox
	DragRect     *selection.Rect
	Phase        selection.Phase
}

// Scene returns a snapshot for rendering.
func (s *Session) Scene() Scene {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := Scene{Tool: s.tool, Pan: s.pan}
	if s.doc == nil {
		return sc
	}

	sc.Elements = s.stores.All()
	sc.Remote = s.br.Overlay()
	sc.Phase = s.sel.Phase()
	sc.Selected = s.sel.IDs()

	if s.active != nil {
		sc.Local = s.active.transient()
	}

	if s.editing != nil {
		sc.Local = sc.Local.Merge(element.Set{Texts: []element.TextBox{s.editing.current}})

		if s.editing.before != nil {
			sc.Elements.Texts = without(sc.Elements.Texts, s.editing.before.ID)
		}
	}

	if box, ok := s.sel.CombinedBox(); ok {
		sc.SelectionBox = &box
	}

	if r, ok := s.sel.Rect(); ok {
		sc.DragRect = &r
	}

	return sc
}

func without(texts []element.TextBox, id string) []element.TextBox {
	out := texts[:0:0]

	for _, t := range texts {
		if t.ID != id {
			out = append(out, t)
		}
	}

	return out
}
