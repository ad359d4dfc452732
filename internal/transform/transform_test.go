package transform_test

import (
	"testing"

	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

// geometry has no text, so its combined box maps exactly under any ratio.
func geometry() element.Set {
	s := sample()
	s.Texts = nil

	return s
}

func sample() element.Set {
	s := element.NewStroke(geom.Point{X: 0, Y: 0}, "black", 2).Append(geom.Point{X: 10, Y: 10})
	sh := element.Shape{ID: "sh", Type: element.Circle, StartPoint: geom.Point{X: 20, Y: 20}, EndPoint: geom.Point{X: 40, Y: 30}}.Normalized()
	tb := element.NewTextBox(geom.Point{X: 5, Y: 40}, "black", 13).WithContent("hi")

	return element.Set{Strokes: []element.Stroke{s}, Shapes: []element.Shape{sh}, Texts: []element.TextBox{tb}}
}

func assertBox(t *testing.T, want, got geom.BoundingBox) {
	t.Helper()

	assert.InDelta(t, want.MinX(), got.MinX(), 1e-6)
	assert.InDelta(t, want.MinY(), got.MinY(), 1e-6)
	assert.InDelta(t, want.MaxX(), got.MaxX(), 1e-6)
	assert.InDelta(t, want.MaxY(), got.MaxY(), 1e-6)
}

func TestMove_NetDisplacementIsSumOfDeltas(t *testing.T) {
	t.Parallel()

	initial := sample()
	m := transform.BeginMove(initial)

	deltas := [][2]float64{{0.1, 0.2}, {3.3, -1.7}, {-0.7, 0.05}, {12, 9.99}, {0.3, 0.3}}

	var sumX, sumY float64

	var got element.Set
	for _, d := range deltas {
		got = m.Step(d[0], d[1])
		sumX += d[0]
		sumY += d[1]
	}

	require.True(t, m.Moved())

	for i, s := range got.Strokes {
		for j, p := range s.Points {
			assert.InDelta(t, initial.Strokes[i].Points[j].X+sumX, p.X, eps)
			assert.InDelta(t, initial.Strokes[i].Points[j].Y+sumY, p.Y, eps)
		}
	}

	assertBox(t, initial.Shapes[0].BoundingBox.Translate(sumX, sumY), got.Shapes[0].BoundingBox)
	assert.InDelta(t, initial.Texts[0].Position.X+sumX, got.Texts[0].Position.X, eps)
	assert.Equal(t, initial.Texts[0].FontSize, got.Texts[0].FontSize, "move never scales")
}

func TestResize_ScenarioBottomRight(t *testing.T) {
	t.Parallel()

	s1 := element.NewStroke(geom.Point{X: 0, Y: 0}, "black", 2).Append(geom.Point{X: 10, Y: 10})
	set := element.Set{Strokes: []element.Stroke{s1}}

	handle := geom.HandlePosition(s1.BoundingBox, geom.HandleBottomRight)

	r, ok := transform.BeginResize(set, geom.HandleBottomRight, handle)
	require.True(t, ok)

	got := r.Step(handle.Add(geom.Point{X: 5, Y: 5}))

	box := got.Strokes[0].BoundingBox
	assert.Equal(t, geom.Point{X: 0, Y: 0}, box.TopLeft)
	assertBox(t, geom.NewBox(0, 0, 15, 15), box)
	assert.True(t, r.Resized())
}

func TestResize_GrabOffsetKeepsHandleUnderPointer(t *testing.T) {
	t.Parallel()

	set := element.Set{Shapes: []element.Shape{{ID: "r", Type: element.Rectangle, EndPoint: geom.Point{X: 100, Y: 100}}}}
	set.Shapes[0] = set.Shapes[0].Normalized()

	handle := geom.HandlePosition(set.Shapes[0].BoundingBox, geom.HandleRight)
	click := handle.Add(geom.Point{X: 3, Y: 2})

	r, ok := transform.BeginResize(set, geom.HandleRight, click)
	require.True(t, ok)

	// Pressing without moving changes nothing.
	assertBox(t, r.InitialBox(), r.Box(click))

	assertBox(t, geom.NewBox(0, 0, 120, 100), r.Box(click.Add(geom.Point{X: 20, Y: 50})))
}

func TestResize_CornerKeepsOppositeCorner(t *testing.T) {
	t.Parallel()

	cases := []struct {
		handle   geom.Handle
		opposite func(geom.BoundingBox) geom.Point
	}{
		{geom.HandleTopLeft, func(b geom.BoundingBox) geom.Point { return b.BottomRight }},
		{geom.HandleTopRight, func(b geom.BoundingBox) geom.Point { return b.BottomLeft }},
		{geom.HandleBottomLeft, func(b geom.BoundingBox) geom.Point { return b.TopRight }},
		{geom.HandleBottomRight, func(b geom.BoundingBox) geom.Point { return b.TopLeft }},
	}

	for _, tc := range cases {
		t.Run(tc.handle.String(), func(t *testing.T) {
			t.Parallel()

			set := geometry()
			r, ok := transform.BeginResize(set, tc.handle, geom.HandlePosition(mustBounds(t, set), tc.handle))
			require.True(t, ok)

			dx, dy := tc.handle.Direction()
			got := r.Step(geom.HandlePosition(r.InitialBox(), tc.handle).Add(geom.Point{X: 17 * float64(dx), Y: 9 * float64(dy)}))

			want := tc.opposite(r.InitialBox())
			gotBox := mustBounds(t, got)
			gotCorner := tc.opposite(gotBox)

			assert.InDelta(t, want.X, gotCorner.X, 1e-6)
			assert.InDelta(t, want.Y, gotCorner.Y, 1e-6)
		})
	}
}

func TestResize_EdgeHandleMovesOneEdge(t *testing.T) {
	t.Parallel()

	set := sample()
	box0 := mustBounds(t, set)

	r, ok := transform.BeginResize(set, geom.HandleTop, geom.HandlePosition(box0, geom.HandleTop))
	require.True(t, ok)

	got := r.Box(geom.HandlePosition(box0, geom.HandleTop).Add(geom.Point{X: 40, Y: -10}))

	assert.InDelta(t, box0.MinY()-10, got.MinY(), eps)
	assert.InDelta(t, box0.MaxY(), got.MaxY(), eps)
	assert.InDelta(t, box0.MinX(), got.MinX(), eps)
	assert.InDelta(t, box0.MaxX(), got.MaxX(), eps)
}

func TestResize_ClampRecentersAtMinimum(t *testing.T) {
	t.Parallel()

	set := element.Set{Shapes: []element.Shape{{ID: "r", Type: element.Rectangle, EndPoint: geom.Point{X: 100, Y: 100}}}}
	set.Shapes[0] = set.Shapes[0].Normalized()

	handle := geom.HandlePosition(set.Shapes[0].BoundingBox, geom.HandleBottomRight)

	r, ok := transform.BeginResize(set, geom.HandleBottomRight, handle)
	require.True(t, ok)

	// Dragging past the opposite corner would invert the box.
	box := r.Box(handle.Add(geom.Point{X: -150, Y: -96}))

	assert.InDelta(t, transform.MinSize, box.Width(), eps)
	assert.InDelta(t, transform.MinSize, box.Height(), eps)
	// Computed x span was [0, -50]: midpoint -25.
	assert.InDelta(t, -30, box.MinX(), eps)
	// Computed y span was [0, 4]: midpoint 2.
	assert.InDelta(t, -3, box.MinY(), eps)
}

func TestApply_ComposesRatios(t *testing.T) {
	t.Parallel()

	set := sample()
	b0 := mustBounds(t, set)

	scale := func(b geom.BoundingBox, k float64) geom.BoundingBox {
		return geom.NewBox(b.MinX(), b.MinY(), b.MinX()+b.Width()*k, b.MinY()+b.Height()*k)
	}

	k1, k2 := 1.5, 0.8
	b1 := scale(b0, k1)
	b2 := scale(b1, k2)

	twice := transform.Apply(transform.Apply(set, b0, b1, geom.HandleBottomRight), b1, b2, geom.HandleBottomRight)
	once := transform.Apply(set, b0, scale(b0, k1*k2), geom.HandleBottomRight)

	assertBox(t, mustBounds(t, once), mustBounds(t, twice))
	assertBox(t, b2, mustBounds(t, twice))
}

func TestApply_FontScaling(t *testing.T) {
	t.Parallel()

	tb := element.NewTextBox(geom.Point{X: 0, Y: 0}, "black", 20).WithContent("abc")
	set := element.Set{Texts: []element.TextBox{tb}}
	from := tb.BoundingBox

	wider := geom.NewBox(0, 0, from.Width()*2, from.Height()*3)

	side := transform.Apply(set, from, wider, geom.HandleRight)
	assert.InDelta(t, 40, side.Texts[0].FontSize, eps)

	vertical := transform.Apply(set, from, wider, geom.HandleBottom)
	assert.InDelta(t, 60, vertical.Texts[0].FontSize, eps)

	tiny := transform.Apply(set, from, geom.NewBox(0, 0, from.Width()/100, from.Height()), geom.HandleRight)
	assert.InDelta(t, element.MinFontSize, tiny.Texts[0].FontSize, eps)
}

func TestApply_TextKeepsAspectUnderCornerDrag(t *testing.T) {
	t.Parallel()

	tb := element.NewTextBox(geom.Point{X: 0, Y: 0}, "black", 13).WithContent("abc")
	set := element.Set{Texts: []element.TextBox{tb}}
	from := tb.BoundingBox
	w, h := from.Width(), from.Height()

	// Twice as wide, three times as tall: the font follows the width.
	got := transform.Apply(set, from, geom.NewBox(0, 0, 2*w, 3*h), geom.HandleBottomRight)
	require.Len(t, got.Texts, 1)
	assert.InDelta(t, 26, got.Texts[0].FontSize, eps)
	assertBox(t, geom.NewBox(0, 0, 2*w, 2*h), got.Texts[0].BoundingBox)

	// The box anchors at its mapped top-left, so dragging the top-left
	// handle leaves the bottom edge short of where it started.
	got = transform.Apply(set, from, geom.NewBox(-w, -2*h, w, h), geom.HandleTopLeft)
	assertBox(t, geom.NewBox(-w, -2*h, w, 0), got.Texts[0].BoundingBox)
}

func TestApply_DegenerateAxisKeepsRatioOne(t *testing.T) {
	t.Parallel()

	flat := element.NewStroke(geom.Point{X: 0, Y: 5}, "black", 1).Append(geom.Point{X: 10, Y: 5})
	set := element.Set{Strokes: []element.Stroke{flat}}

	got := transform.Apply(set, flat.BoundingBox, geom.NewBox(0, 0, 20, 10), geom.HandleBottomRight)

	assert.InDelta(t, 20, got.Strokes[0].BoundingBox.Width(), eps)
	assert.Zero(t, got.Strokes[0].BoundingBox.Height())
}

func TestBeginResize_RejectsEmpty(t *testing.T) {
	t.Parallel()

	_, ok := transform.BeginResize(element.Set{}, geom.HandleTop, geom.Point{})
	assert.False(t, ok)

	_, ok = transform.BeginResize(sample(), geom.HandleNone, geom.Point{})
	assert.False(t, ok)
}

func mustBounds(t *testing.T, s element.Set) geom.BoundingBox {
	t.Helper()

	b, ok := s.Bounds()
	require.True(t, ok)

	return b
}
