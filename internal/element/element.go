// Package element defines the committed canvas records shared between peers:
// freehand strokes, geometric shapes and text boxes.
//
// Every record carries a bounding box that is derived from its geometry.
// Constructors and Normalized recompute it; nothing else writes it.
package element

import (
	"github.com/google/uuid"
	"github.com/serroba/online-canvas/internal/geom"
)

// Kind names one of the three element collections.
type Kind string

const (
	KindStroke Kind = "stroke"
	KindShape  Kind = "shape"
	KindText   Kind = "text"
)

// Kinds lists the collections in hit-test priority order.
var Kinds = []Kind{KindStroke, KindShape, KindText}

// ShapeType is the outline drawn between a shape's two corner points.
type ShapeType string

const (
	Rectangle ShapeType = "rectangle"
	Diamond   ShapeType = "diamond"
	Circle    ShapeType = "circle"
)

// Valid reports whether t is a known shape type.
func (t ShapeType) Valid() bool {
	return t == Rectangle || t == Diamond || t == Circle
}

// Element is the behavior shared by strokes, shapes and text boxes.
type Element interface {
	ElementID() string
	ElementKind() Kind
	Bounds() geom.BoundingBox
	HitTest(p geom.Point) bool
}

// Record is an Element that can rebuild its bounding box from its geometry.
type Record[T any] interface {
	Element
	Normalized() T
}

// NewID returns a globally unique element id.
func NewID() string {
	return uuid.NewString()
}

// Stroke is a freehand polyline.
type Stroke struct {
	ID          string           `json:"id"`
	Points      []geom.Point     `json:"points"`
	Color       string           `json:"color"`
	Width       float64          `json:"width"`
	BoundingBox geom.BoundingBox `json:"boundingBox"`
}

// NewStroke starts a stroke at p.
func NewStroke(p geom.Point, color string, width float64) Stroke {
	return Stroke{
		ID:     NewID(),
		Points: []geom.Point{p},
		Color:  color,
		Width:  width,
	}.Normalized()
}

// ElementID returns the stroke's id.
func (s Stroke) ElementID() string { return s.ID }

// ElementKind returns KindStroke.
func (s Stroke) ElementKind() Kind { return KindStroke }

// Bounds returns the stored bounding box.
func (s Stroke) Bounds() geom.BoundingBox { return s.BoundingBox }

// Normalized returns a copy with its own point slice and a fresh bounding box.
func (s Stroke) Normalized() Stroke {
	points := make([]geom.Point, len(s.Points))
	copy(points, s.Points)

	s.Points = points
	s.BoundingBox = geom.BoxOf(points...)

	return s
}

// Append returns s extended by p.
func (s Stroke) Append(p geom.Point) Stroke {
	s.Points = append(s.Points[:len(s.Points):len(s.Points)], p)

	return s.Normalized()
}

// Translate returns s moved by (dx, dy).
func (s Stroke) Translate(dx, dy float64) Stroke {
	points := make([]geom.Point, len(s.Points))
	for i, p := range s.Points {
		points[i] = geom.Point{X: p.X + dx, Y: p.Y + dy}
	}

	s.Points = points

	return s.Normalized()
}

// Shape is a rectangle, diamond or circle inscribed between two corners.
type Shape struct {
	ID          string           `json:"id"`
	Type        ShapeType        `json:"type"`
	StartPoint  geom.Point       `json:"startPoint"`
	EndPoint    geom.Point       `json:"endPoint"`
	Color       string           `json:"color"`
	Width       float64          `json:"width"`
	BoundingBox geom.BoundingBox `json:"boundingBox"`
}

// NewShape starts a zero-size shape at p.
func NewShape(t ShapeType, p geom.Point, color string, width float64) Shape {
	return Shape{
		ID:         NewID(),
		Type:       t,
		StartPoint: p,
		EndPoint:   p,
		Color:      color,
		Width:      width,
	}.Normalized()
}

// ElementID returns the shape's id.
func (s Shape) ElementID() string { return s.ID }

// ElementKind returns KindShape.
func (s Shape) ElementKind() Kind { return KindShape }

// Bounds returns the stored bounding box.
func (s Shape) Bounds() geom.BoundingBox { return s.BoundingBox }

// Normalized returns a copy with a fresh bounding box.
func (s Shape) Normalized() Shape {
	s.BoundingBox = geom.BoxOf(s.StartPoint, s.EndPoint)

	return s
}

// Translate returns s moved by (dx, dy).
func (s Shape) Translate(dx, dy float64) Shape {
	s.StartPoint = geom.Point{X: s.StartPoint.X + dx, Y: s.StartPoint.Y + dy}
	s.EndPoint = geom.Point{X: s.EndPoint.X + dx, Y: s.EndPoint.Y + dy}

	return s.Normalized()
}

// TextBox is positioned text whose box comes from measured glyph metrics.
type TextBox struct {
	ID          string           `json:"id"`
	Position    geom.Point       `json:"position"`
	Content     string           `json:"content"`
	Color       string           `json:"color"`
	FontSize    float64          `json:"fontSize"`
	BoundingBox geom.BoundingBox `json:"boundingBox"`
}

// NewTextBox starts an empty text box with its origin at p.
func NewTextBox(p geom.Point, color string, fontSize float64) TextBox {
	return TextBox{
		ID:       NewID(),
		Position: p,
		Color:    color,
		FontSize: fontSize,
	}.Normalized()
}

// ElementID returns the text box's id.
func (t TextBox) ElementID() string { return t.ID }

// ElementKind returns KindText.
func (t TextBox) ElementKind() Kind { return KindText }

// Bounds returns the stored bounding box.
func (t TextBox) Bounds() geom.BoundingBox { return t.BoundingBox }

// Normalized returns a copy with a box measured from content and font size.
func (t TextBox) Normalized() TextBox {
	if t.FontSize < MinFontSize {
		t.FontSize = MinFontSize
	}

	w, h := Measure(t.Content, t.FontSize)
	t.BoundingBox = geom.NewBox(t.Position.X, t.Position.Y, t.Position.X+w, t.Position.Y+h)

	return t
}

// Translate returns t moved by (dx, dy).
func (t TextBox) Translate(dx, dy float64) TextBox {
	t.Position = geom.Point{X: t.Position.X + dx, Y: t.Position.Y + dy}

	return t.Normalized()
}

// WithContent returns t holding content.
func (t TextBox) WithContent(content string) TextBox {
	t.Content = content

	return t.Normalized()
}
