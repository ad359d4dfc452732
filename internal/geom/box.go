package geom

import "math"

// Point is a position in canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the vector from q to p.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// BoundingBox is an axis-aligned rectangle stored as its four corners.
// Only the min and max corners are independent; the other two are derived.
type BoundingBox struct {
	TopLeft     Point `json:"topLeft"`
	TopRight    Point `json:"topRight"`
	BottomLeft  Point `json:"bottomLeft"`
	BottomRight Point `json:"bottomRight"`
}

// NewBox builds a box from its extents. Swapped extents are normalized.
func NewBox(minX, minY, maxX, maxY float64) BoundingBox {
	if minX > maxX {
		minX, maxX = maxX, minX
	}

	if minY > maxY {
		minY, maxY = maxY, minY
	}

	return BoundingBox{
		TopLeft:     Point{X: minX, Y: minY},
		TopRight:    Point{X: maxX, Y: minY},
		BottomLeft:  Point{X: minX, Y: maxY},
		BottomRight: Point{X: maxX, Y: maxY},
	}
}

// BoxOf returns the minimal box covering the given points.
// A single point yields a zero-area box; no points yields the zero box.
func BoxOf(points ...Point) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}

	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY

	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	return NewBox(minX, minY, maxX, maxY)
}

// Union returns the minimal box covering all boxes.
// ok is false when boxes is empty; callers must check it.
func Union(boxes ...BoundingBox) (BoundingBox, bool) {
	if len(boxes) == 0 {
		return BoundingBox{}, false
	}

	minX, minY := boxes[0].MinX(), boxes[0].MinY()
	maxX, maxY := boxes[0].MaxX(), boxes[0].MaxY()

	for _, b := range boxes[1:] {
		minX = math.Min(minX, b.MinX())
		minY = math.Min(minY, b.MinY())
		maxX = math.Max(maxX, b.MaxX())
		maxY = math.Max(maxY, b.MaxY())
	}

	return NewBox(minX, minY, maxX, maxY), true
}

// Intersects reports whether a and b overlap. Touching edges count.
func Intersects(a, b BoundingBox) bool {
	return a.MinX() <= b.MaxX() && b.MinX() <= a.MaxX() &&
		a.MinY() <= b.MaxY() && b.MinY() <= a.MaxY()
}

// Contains reports whether p lies inside b, inclusive on all edges.
func Contains(b BoundingBox, p Point) bool {
	return p.X >= b.MinX() && p.X <= b.MaxX() &&
		p.Y >= b.MinY() && p.Y <= b.MaxY()
}

// MinX returns the left edge.
func (b BoundingBox) MinX() float64 { return b.TopLeft.X }

// MinY returns the top edge.
func (b BoundingBox) MinY() float64 { return b.TopLeft.Y }

// MaxX returns the right edge.
func (b BoundingBox) MaxX() float64 { return b.BottomRight.X }

// MaxY returns the bottom edge.
func (b BoundingBox) MaxY() float64 { return b.BottomRight.Y }

// Width returns the horizontal extent.
func (b BoundingBox) Width() float64 {
	return b.MaxX() - b.MinX()
}

// Height returns the vertical extent.
func (b BoundingBox) Height() float64 {
	return b.MaxY() - b.MinY()
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{X: (b.MinX() + b.MaxX()) / 2, Y: (b.MinY() + b.MaxY()) / 2}
}

// Translate returns b moved by (dx, dy).
func (b BoundingBox) Translate(dx, dy float64) BoundingBox {
	return NewBox(b.MinX()+dx, b.MinY()+dy, b.MaxX()+dx, b.MaxY()+dy)
}

// Corners returns the outline of b in clockwise order from the top left.
func (b BoundingBox) Corners() []Point {
	return []Point{b.TopLeft, b.TopRight, b.BottomRight, b.BottomLeft, b.TopLeft}
}

// DistanceToSegment returns the distance from p to the nearest point of segment ab.
func DistanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y

	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return p.Dist(a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	t = math.Max(0, math.Min(1, t))

	return p.Dist(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// DistanceToPolyline returns the distance from p to the nearest segment of points.
// A single point polyline degenerates to point distance; an empty one is infinitely far.
func DistanceToPolyline(p Point, points []Point) float64 {
	switch len(points) {
	case 0:
		return math.Inf(1)
	case 1:
		return p.Dist(points[0])
	}

	best := math.Inf(1)

	for i := 1; i < len(points); i++ {
		best = math.Min(best, DistanceToSegment(p, points[i-1], points[i]))
	}

	return best
}
