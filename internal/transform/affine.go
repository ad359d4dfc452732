package transform

import (
	"math"

	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
)

// scaling maps points of box from onto box to: each element's center moves
// with the combined center and its geometry scales about its own center by
// the per-axis ratio.
type scaling struct {
	oldC, newC geom.Point
	rx, ry     float64
}

func newScaling(from, to geom.BoundingBox) scaling {
	return scaling{
		oldC: from.Center(),
		newC: to.Center(),
		rx:   ratio(to.Width(), from.Width()),
		ry:   ratio(to.Height(), from.Height()),
	}
}

func ratio(next, prev float64) float64 {
	if prev == 0 {
		return 1
	}

	return next / prev
}

// point maps p given the center c of the element it belongs to.
func (s scaling) point(p, c geom.Point) geom.Point {
	nc := geom.Point{
		X: s.newC.X + (c.X-s.oldC.X)*s.rx,
		Y: s.newC.Y + (c.Y-s.oldC.Y)*s.ry,
	}

	return geom.Point{
		X: nc.X + (p.X-c.X)*s.rx,
		Y: nc.Y + (p.Y-c.Y)*s.ry,
	}
}

// Apply maps every element of set from the combined box from onto to. Text
// font sizes scale by the height ratio for the top and bottom handles and by
// the width ratio otherwise.
func Apply(set element.Set, from, to geom.BoundingBox, h geom.Handle) element.Set {
	s := newScaling(from, to)

	fontRatio := s.rx
	if h.IsVertical() {
		fontRatio = s.ry
	}

	out := element.Set{
		Strokes: make([]element.Stroke, 0, len(set.Strokes)),
		Shapes:  make([]element.Shape, 0, len(set.Shapes)),
		Texts:   make([]element.TextBox, 0, len(set.Texts)),
	}

	for _, e := range set.Strokes {
		c := e.BoundingBox.Center()
		pts := make([]geom.Point, len(e.Points))

		for i, p := range e.Points {
			pts[i] = s.point(p, c)
		}

		e.Points = pts
		out.Strokes = append(out.Strokes, e.Normalized())
	}

	for _, e := range set.Shapes {
		c := e.BoundingBox.Center()
		e.StartPoint = s.point(e.StartPoint, c)
		e.EndPoint = s.point(e.EndPoint, c)
		out.Shapes = append(out.Shapes, e.Normalized())
	}

	for _, e := range set.Texts {
		c := e.BoundingBox.Center()
		e.Position = s.point(e.Position, c)
		e.FontSize = math.Max(element.MinFontSize, e.FontSize*fontRatio)
		out.Texts = append(out.Texts, e.Normalized())
	}

	return out
}
