package canvas

import (
	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/history"
	"github.com/serroba/online-canvas/internal/selection"
	"github.com/serroba/online-canvas/internal/transform"
)

// Tool is the active input tool.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolPen       Tool = "pen"
	ToolRectangle Tool = "rectangle"
	ToolDiamond   Tool = "diamond"
	ToolCircle    Tool = "circle"
	ToolText      Tool = "text"
	ToolEraser    Tool = "eraser"
	ToolPan       Tool = "pan"
)

// Valid reports whether t is a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolSelect, ToolPen, ToolRectangle, ToolDiamond, ToolCircle, ToolText, ToolEraser, ToolPan:
		return true
	default:
		return false
	}
}

func (t Tool) shapeType() (element.ShapeType, bool) {
	switch t {
	case ToolRectangle:
		return element.Rectangle, true
	case ToolDiamond:
		return element.Diamond, true
	case ToolCircle:
		return element.Circle, true
	default:
		return "", false
	}
}

// pointer is one input sample in screen and canvas coordinates.
type pointer struct {
	screen geom.Point
	canvas geom.Point
}

// gesture is the state of one press-drag-release interaction. It lives only
// between PointerDown and PointerUp.
type gesture interface {
	move(s *Session, at pointer)
	end(s *Session)
	// transient is the in-progress element the gesture shows locally.
	transient() element.Set
}

type drawGesture struct {
	stroke element.Stroke
}

func (g *drawGesture) move(s *Session, at pointer) {
	if n := len(g.stroke.Points); n == 0 || g.stroke.Points[n-1] != at.canvas {
		g.stroke = g.stroke.Append(at.canvas)
	}

	s.publishLocked(func(st awareness.State) awareness.State {
		path := g.stroke
		st.CurrentPath = &path

		return st
	})
}

func (g *drawGesture) end(s *Session) {
	s.stores.Strokes.Upsert(g.stroke)
	s.hist.Push(history.DrawEntry(g.stroke))
	s.publishLocked(func(st awareness.State) awareness.State {
		st.CurrentPath = nil

		return st
	})
}

func (g *drawGesture) transient() element.Set {
	return element.Set{Strokes: []element.Stroke{g.stroke}}
}

type shapeGesture struct {
	shape element.Shape
}

func (g *shapeGesture) move(s *Session, at pointer) {
	g.shape.EndPoint = at.canvas
	g.shape = g.shape.Normalized()
	s.publishLocked(func(st awareness.State) awareness.State {
		sh := g.shape
		st.CurrentShape = &sh

		return st
	})
}

func (g *shapeGesture) end(s *Session) {
	// A click without a drag leaves nothing to commit.
	if g.shape.StartPoint != g.shape.EndPoint {
		s.stores.Shapes.Upsert(g.shape)
		s.hist.Push(history.ShapeEntry(g.shape))
	}

	s.publishLocked(func(st awareness.State) awareness.State {
		st.CurrentShape = nil

		return st
	})
}

func (g *shapeGesture) transient() element.Set {
	return element.Set{Shapes: []element.Shape{g.shape}}
}

type eraseGesture struct {
	removed element.Set
}

func (g *eraseGesture) move(s *Session, at pointer) {
	hit, ok := s.sel.HitTest(at.canvas)
	if !ok {
		return
	}

	victim := s.stores.Pick(map[element.Kind][]string{hit.Kind: {hit.ID}})
	g.removed = g.removed.Merge(s.stores.Remove(victim))
}

func (g *eraseGesture) end(s *Session) {
	if !g.removed.IsEmpty() {
		s.hist.Push(history.EraseEntry(g.removed))
	}
}

func (g *eraseGesture) transient() element.Set {
	return element.Set{}
}

type panGesture struct {
	last  geom.Point
	total geom.Point
}

func (g *panGesture) move(s *Session, at pointer) {
	d := at.screen.Sub(g.last)
	g.last = at.screen
	g.total = g.total.Add(d)
	s.pan = s.pan.Add(d)
}

func (g *panGesture) end(s *Session) {
	if g.total != (geom.Point{}) {
		s.hist.Push(history.PanEntry(g.total))
	}
}

func (g *panGesture) transient() element.Set {
	return element.Set{}
}

type moveGesture struct {
	mv   *transform.Move
	last geom.Point
}

func (g *moveGesture) move(s *Session, at pointer) {
	d := at.canvas.Sub(g.last)
	g.last = at.canvas
	s.stores.Replace(g.mv.Step(d.X, d.Y))
}

func (g *moveGesture) end(s *Session) {
	s.br.Resume()
	s.sel.SetPhase(selection.Idle)

	if g.mv.Moved() {
		s.hist.Push(history.MoveEntry(g.mv.Initial(), g.mv.Current()))
	}
}

func (g *moveGesture) transient() element.Set {
	return element.Set{}
}

type resizeGesture struct {
	rz *transform.Resize
}

func (g *resizeGesture) move(s *Session, at pointer) {
	s.stores.Replace(g.rz.Step(at.canvas))
}

func (g *resizeGesture) end(s *Session) {
	s.br.Resume()
	s.sel.SetPhase(selection.Idle)

	if g.rz.Resized() {
		s.hist.Push(history.ResizeEntry(g.rz.Initial(), g.rz.Current(), g.rz.InitialBox(), g.rz.CurrentBox()))
	}
}

func (g *resizeGesture) transient() element.Set {
	return element.Set{}
}

type selectGesture struct{}

func (selectGesture) move(s *Session, at pointer) {
	s.sel.UpdateDrag(at.canvas)
}

func (selectGesture) end(s *Session) {
	s.sel.EndDrag()
}

func (selectGesture) transient() element.Set {
	return element.Set{}
}

// beginSelectLocked picks the select-tool gesture for a press at p: a resize
// handle first, then the body of the selection, then drag-select.
func (s *Session) beginSelectLocked(p geom.Point) gesture {
	if box, ok := s.sel.CombinedBox(); ok {
		if h := geom.HandleAt(box, p, geom.HandleRadius); h != geom.HandleNone {
			if rz, ok := transform.BeginResize(s.sel.Selected(), h, p); ok {
				s.br.Suspend()
				s.sel.SetPhase(selection.Resizing)

				return &resizeGesture{rz: rz}
			}
		}

		if geom.Contains(box, p) {
			s.br.Suspend()
			s.sel.SetPhase(selection.Moving)

			return &moveGesture{mv: transform.BeginMove(s.sel.Selected()), last: p}
		}
	}

	s.sel.BeginDrag(p)

	return selectGesture{}
}

// PointerDown starts a gesture for the active tool at a screen position.
func (s *Session) PointerDown(screen geom.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return
	}

	s.finishGestureLocked()

	at := s.pointerLocked(screen)
	s.last = at.canvas

	switch s.tool {
	case ToolSelect:
		s.active = s.beginSelectLocked(at.canvas)
	case ToolPen:
		g := &drawGesture{stroke: element.NewStroke(at.canvas, s.color, s.width)}
		s.active = g
		g.move(s, at)
	case ToolRectangle, ToolDiamond, ToolCircle:
		t, _ := s.tool.shapeType()
		g := &shapeGesture{shape: element.NewShape(t, at.canvas, s.color, s.width)}
		s.active = g
		g.move(s, at)
	case ToolEraser:
		g := &eraseGesture{}
		s.active = g
		g.move(s, at)
	case ToolPan:
		s.active = &panGesture{last: screen}
	case ToolText:
		s.beginTextLocked(at.canvas)
	}
}

// PointerMove continues the active gesture and publishes the cursor.
func (s *Session) PointerMove(screen geom.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return
	}

	at := s.pointerLocked(screen)
	s.last = at.canvas

	s.publishLocked(func(st awareness.State) awareness.State {
		c := at.canvas
		st.Cursor = &c

		return st
	})

	if s.active != nil {
		s.active.move(s, at)
	}
}

// PointerUp ends the active gesture.
func (s *Session) PointerUp(screen geom.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil || s.active == nil {
		return
	}

	at := s.pointerLocked(screen)
	if at.canvas != s.last {
		s.active.move(s, at)
	}

	s.finishGestureLocked()
}

// SetTool switches tools. Any gesture in progress ends with its current
// state and text being edited is committed.
func (s *Session) SetTool(t Tool) bool {
	if !t.Valid() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != nil {
		s.finishGestureLocked()
		s.commitTextLocked()

		if t != ToolSelect {
			s.sel.Clear()
		}
	}

	s.tool = t

	return true
}

// Tool returns the active tool.
func (s *Session) Tool() Tool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tool
}

// SetStyle sets the color and stroke width of new elements.
func (s *Session) SetStyle(color string, width float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if color != "" {
		s.color = color
	}

	if width > 0 {
		s.width = width
	}
}

// SetFontSize sets the font size of new text boxes.
func (s *Session) SetFontSize(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size >= element.MinFontSize {
		s.fontSize = size
	}
}

func (s *Session) finishGestureLocked() {
	if s.active == nil {
		return
	}

	g := s.active
	s.active = nil
	g.end(s)
}

func (s *Session) pointerLocked(screen geom.Point) pointer {
	return pointer{screen: screen, canvas: screen.Sub(s.pan)}
}

func (s *Session) publishLocked(fn func(awareness.State) awareness.State) {
	s.aw.SetLocalState(fn)
}
