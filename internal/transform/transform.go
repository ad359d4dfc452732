// Package transform implements the move and resize gestures applied to a
// selection. Each gesture keeps the elements as they were when it started and
// derives every step from that snapshot, so repeated steps never accumulate
// rounding error.
package transform

import (
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
)

// MinSize is the smallest width or height a resize may produce.
const MinSize = 10.0

// Move translates a selection by the running sum of pointer deltas.
type Move struct {
	initial element.Set
	dx, dy  float64
}

// BeginMove starts a move of initial.
func BeginMove(initial element.Set) *Move {
	return &Move{initial: initial}
}

// Step adds one pointer delta and returns the translated elements.
func (m *Move) Step(dx, dy float64) element.Set {
	m.dx += dx
	m.dy += dy

	return m.Current()
}

// Current returns the elements at the accumulated displacement.
func (m *Move) Current() element.Set {
	return m.initial.Translate(m.dx, m.dy)
}

// Initial returns the elements as they were when the gesture began.
func (m *Move) Initial() element.Set {
	return m.initial
}

// Delta returns the total displacement so far.
func (m *Move) Delta() (float64, float64) {
	return m.dx, m.dy
}

// Moved reports whether the gesture displaced anything.
func (m *Move) Moved() bool {
	return m.dx != 0 || m.dy != 0
}

// Resize scales a selection by dragging one handle of its combined box.
type Resize struct {
	initial element.Set
	handle  geom.Handle
	box0    geom.BoundingBox
	pad0    float64
	offset  geom.Point
	minSize float64
	current geom.BoundingBox
}

// BeginResize starts a resize of initial grabbed at handle h by a press at
// click. ok is false when there is nothing to resize or h is not a handle.
func BeginResize(initial element.Set, h geom.Handle, click geom.Point) (*Resize, bool) {
	if h == geom.HandleNone {
		return nil, false
	}

	box, ok := initial.Bounds()
	if !ok {
		return nil, false
	}

	return &Resize{
		initial: initial,
		handle:  h,
		box0:    box,
		pad0:    geom.HandlePadding(box),
		offset:  click.Sub(geom.HandlePosition(box, h)),
		minSize: MinSize,
		current: box,
	}, true
}

// Handle returns the grabbed handle.
func (r *Resize) Handle() geom.Handle {
	return r.handle
}

// Initial returns the elements as they were when the gesture began.
func (r *Resize) Initial() element.Set {
	return r.initial
}

// InitialBox returns the combined box at gesture start.
func (r *Resize) InitialBox() geom.BoundingBox {
	return r.box0
}

// CurrentBox returns the combined box after the latest step.
func (r *Resize) CurrentBox() geom.BoundingBox {
	return r.current
}

// Resized reports whether the combined box differs from the initial one.
func (r *Resize) Resized() bool {
	return r.current != r.box0
}

// Box returns the combined box for a pointer at p. The grab offset keeps the
// handle under the pointer; the edges opposite the handle stay fixed.
func (r *Resize) Box(p geom.Point) geom.BoundingBox {
	hp := p.Sub(r.offset)
	dx, dy := r.handle.Direction()

	minX, minY, maxX, maxY := r.box0.MinX(), r.box0.MinY(), r.box0.MaxX(), r.box0.MaxY()

	switch dx {
	case -1:
		minX = hp.X + r.pad0
	case 1:
		maxX = hp.X - r.pad0
	}

	switch dy {
	case -1:
		minY = hp.Y + r.pad0
	case 1:
		maxY = hp.Y - r.pad0
	}

	minX, maxX = clampSpan(minX, maxX, r.minSize)
	minY, maxY = clampSpan(minY, maxY, r.minSize)

	return geom.NewBox(minX, minY, maxX, maxY)
}

// Step resizes for a pointer at p and returns the transformed elements.
func (r *Resize) Step(p geom.Point) element.Set {
	r.current = r.Box(p)

	return Apply(r.initial, r.box0, r.current, r.handle)
}

// Current returns the elements at the latest step.
func (r *Resize) Current() element.Set {
	return Apply(r.initial, r.box0, r.current, r.handle)
}

// clampSpan recenters a span narrower than size (or inverted) to exactly size.
func clampSpan(lo, hi, size float64) (float64, float64) {
	if hi-lo >= size {
		return lo, hi
	}

	mid := (lo + hi) / 2

	return mid - size/2, mid + size/2
}
