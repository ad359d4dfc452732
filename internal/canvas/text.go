package canvas

import (
	"unicode/utf8"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/history"
)

// textEdit is a text box being typed into. before is nil for a new box.
type textEdit struct {
	before  *element.TextBox
	current element.TextBox
}

// beginTextLocked commits any open edit and starts editing the text box at p,
// or a new one there.
func (s *Session) beginTextLocked(p geom.Point) {
	s.commitTextLocked()

	edit := &textEdit{current: element.NewTextBox(p, s.color, s.fontSize)}

	texts := s.stores.Texts.List()
	for i := len(texts) - 1; i >= 0; i-- {
		if texts[i].HitTest(p) {
			before := texts[i]
			edit = &textEdit{before: &before, current: before}

			break
		}
	}

	s.editing = edit
	s.publishTextLocked()
}

// TypeText appends input to the text being edited. "\n" starts a new line.
func (s *Session) TypeText(input string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing == nil || input == "" {
		return
	}

	s.editing.current = s.editing.current.WithContent(s.editing.current.Content + input)
	s.publishTextLocked()
}

// Backspace deletes the last character of the text being edited.
func (s *Session) Backspace() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editing == nil || s.editing.current.Content == "" {
		return
	}

	content := s.editing.current.Content
	_, size := utf8.DecodeLastRuneInString(content)
	s.editing.current = s.editing.current.WithContent(content[:len(content)-size])
	s.publishTextLocked()
}

// KeyEscape commits the text being edited. It never discards input.
func (s *Session) KeyEscape() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitTextLocked()
}

// Editing reports whether a text box is being edited.
func (s *Session) Editing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.editing != nil
}

func (s *Session) publishTextLocked() {
	current := s.editing.current
	s.publishLocked(func(st awareness.State) awareness.State {
		st.CurrentText = &current

		return st
	})
}

// commitTextLocked writes the edited text box. Clearing an existing box
// deletes it; an empty new box is dropped, and so is an edit of a box that
// is gone.
func (s *Session) commitTextLocked() {
	if s.editing == nil {
		return
	}

	edit := s.editing
	s.editing = nil

	s.publishLocked(func(st awareness.State) awareness.State {
		st.CurrentText = nil

		return st
	})

	switch {
	case edit.current.Content == "" && edit.before == nil:
	case edit.current.Content == "":
		removed := s.stores.Remove(element.Set{Texts: []element.TextBox{*edit.before}})
		if !removed.IsEmpty() {
			s.hist.Push(history.EraseEntry(removed))
		}
	case edit.before != nil && edit.before.Content == edit.current.Content:
	case edit.before != nil && !s.stores.Texts.Has(edit.before.ID):
		// Deleted by a peer while being edited.
	default:
		s.stores.Texts.Upsert(edit.current)
		s.hist.Push(history.TextEntry(edit.before, edit.current))
	}
}
