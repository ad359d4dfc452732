package geom

import "math"

// Handle identifies one of the eight resize grips around a box.
type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
)

const (
	// HandlePaddingRatio places handles outside the box by this fraction of its larger side.
	HandlePaddingRatio = 0.05
	// HandleRadius is the pixel distance within which a handle is hit.
	HandleRadius = 8.0
)

// Handles lists every grip in hit-test order.
var Handles = []Handle{
	HandleTopLeft, HandleTop, HandleTopRight, HandleRight,
	HandleBottomRight, HandleBottom, HandleBottomLeft, HandleLeft,
}

// String returns the handle name.
func (h Handle) String() string {
	switch h {
	case HandleTopLeft:
		return "top-left"
	case HandleTop:
		return "top"
	case HandleTopRight:
		return "top-right"
	case HandleRight:
		return "right"
	case HandleBottomRight:
		return "bottom-right"
	case HandleBottom:
		return "bottom"
	case HandleBottomLeft:
		return "bottom-left"
	case HandleLeft:
		return "left"
	default:
		return "none"
	}
}

// IsCorner reports whether h moves two edges.
func (h Handle) IsCorner() bool {
	return h == HandleTopLeft || h == HandleTopRight || h == HandleBottomLeft || h == HandleBottomRight
}

// IsVertical reports whether h only moves the top or bottom edge.
func (h Handle) IsVertical() bool {
	return h == HandleTop || h == HandleBottom
}

// Direction returns the outward unit direction of h on each axis (-1, 0 or 1).
func (h Handle) Direction() (int, int) {
	switch h {
	case HandleTopLeft:
		return -1, -1
	case HandleTop:
		return 0, -1
	case HandleTopRight:
		return 1, -1
	case HandleRight:
		return 1, 0
	case HandleBottomRight:
		return 1, 1
	case HandleBottom:
		return 0, 1
	case HandleBottomLeft:
		return -1, 1
	case HandleLeft:
		return -1, 0
	default:
		return 0, 0
	}
}

// HandlePadding is the gap between b and its handles.
func HandlePadding(b BoundingBox) float64 {
	return math.Max(b.Width(), b.Height()) * HandlePaddingRatio
}

// HandlePosition returns where h sits for box b.
func HandlePosition(b BoundingBox, h Handle) Point {
	pad := HandlePadding(b)
	c := b.Center()
	dx, dy := h.Direction()

	p := c

	switch dx {
	case -1:
		p.X = b.MinX() - pad
	case 1:
		p.X = b.MaxX() + pad
	}

	switch dy {
	case -1:
		p.Y = b.MinY() - pad
	case 1:
		p.Y = b.MaxY() + pad
	}

	return p
}

// HandleAt returns the handle of b nearest to p within radius, or HandleNone.
// On small boxes several handles overlap; the nearest wins, corners on ties.
func HandleAt(b BoundingBox, p Point, radius float64) Handle {
	best, bestDist := HandleNone, math.Inf(1)

	for _, h := range Handles {
		d := HandlePosition(b, h).Dist(p)
		if d > radius {
			continue
		}

		if d < bestDist || (d == bestDist && h.IsCorner()) {
			best, bestDist = h, d
		}
	}

	return best
}
