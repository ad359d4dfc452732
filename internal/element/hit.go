package element

import (
	"math"

	"github.com/serroba/online-canvas/internal/geom"
)

const (
	// StrokeHitRadius is how close to a stroke's polyline a click must land.
	StrokeHitRadius = 6.0
	// ShapeHitTolerance is added to half the outline width when testing shapes.
	ShapeHitTolerance = 4.0

	ellipseSegments = 64
)

// HitTest reports whether p lies within StrokeHitRadius of the polyline.
func (s Stroke) HitTest(p geom.Point) bool {
	return geom.DistanceToPolyline(p, s.Points) <= StrokeHitRadius
}

// HitTest reports whether p lies on the shape's outline. The interior is not a hit.
func (s Shape) HitTest(p geom.Point) bool {
	radius := ShapeHitTolerance + s.Width/2

	return geom.DistanceToPolyline(p, s.Outline()) <= radius
}

// HitTest reports whether p lies inside the text's bounding box.
func (t TextBox) HitTest(p geom.Point) bool {
	return geom.Contains(t.BoundingBox, p)
}

// Outline returns the closed polyline traced by the shape.
func (s Shape) Outline() []geom.Point {
	b := geom.BoxOf(s.StartPoint, s.EndPoint)
	c := b.Center()

	switch s.Type {
	case Diamond:
		top := geom.Point{X: c.X, Y: b.MinY()}

		return []geom.Point{
			top,
			{X: b.MaxX(), Y: c.Y},
			{X: c.X, Y: b.MaxY()},
			{X: b.MinX(), Y: c.Y},
			top,
		}
	case Circle:
		rx, ry := b.Width()/2, b.Height()/2
		points := make([]geom.Point, 0, ellipseSegments+1)

		for i := 0; i <= ellipseSegments; i++ {
			a := 2 * math.Pi * float64(i) / ellipseSegments
			points = append(points, geom.Point{X: c.X + rx*math.Cos(a), Y: c.Y + ry*math.Sin(a)})
		}

		return points
	default:
		return b.Corners()
	}
}
