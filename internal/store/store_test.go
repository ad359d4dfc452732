package store_test

import (
	"testing"

	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stroke(id string, pts ...geom.Point) element.Stroke {
	return element.Stroke{ID: id, Points: pts, Color: "black", Width: 2}
}

func TestStore_UpsertRecomputesBox(t *testing.T) {
	t.Parallel()

	s := store.New[element.Stroke](element.KindStroke)

	// BoundingBox deliberately left stale.
	s.Upsert(stroke("a", geom.Point{X: 0, Y: 0}, geom.Point{X: 4, Y: 8}))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, geom.NewBox(0, 0, 4, 8), got.BoundingBox)
}

func TestStore_KeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	s := store.New[element.Stroke](element.KindStroke)
	s.Upsert(stroke("b", geom.Point{}))
	s.Upsert(stroke("a", geom.Point{}))
	s.Upsert(stroke("b", geom.Point{X: 1, Y: 1}))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, geom.Point{X: 1, Y: 1}, list[0].Points[0])
}

func TestStore_RemoveMany(t *testing.T) {
	t.Parallel()

	s := store.New[element.Stroke](element.KindStroke)
	s.UpsertMany([]element.Stroke{stroke("a", geom.Point{}), stroke("b", geom.Point{}), stroke("c", geom.Point{})})

	var changes []store.Change

	unsubscribe := s.Subscribe(func(c store.Change) { changes = append(changes, c) })
	defer unsubscribe()

	removed := s.RemoveMany([]string{"b", "missing"})

	require.Len(t, removed, 1)
	assert.Equal(t, "b", removed[0].ID)
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Has("b"))

	require.Len(t, changes, 1)
	assert.Equal(t, []string{"b"}, changes[0].Removed)

	assert.Nil(t, s.RemoveMany([]string{"missing"}), "stale ids are a silent no-op")
	assert.Len(t, changes, 1)
}

func TestStore_SetAllReportsDiff(t *testing.T) {
	t.Parallel()

	s := store.New[element.Stroke](element.KindStroke)
	s.UpsertMany([]element.Stroke{stroke("a", geom.Point{}), stroke("b", geom.Point{})})

	var got store.Change

	s.Subscribe(func(c store.Change) { got = c })

	s.SetAll([]element.Stroke{stroke("a", geom.Point{}), stroke("c", geom.Point{X: 2, Y: 2})}, true)

	assert.True(t, got.SkipEcho)
	assert.Equal(t, []string{"c"}, got.Upserted)
	assert.Equal(t, []string{"b"}, got.Removed)
	assert.Equal(t, element.KindStroke, got.Kind)

	ids := []string{}
	for _, e := range s.List() {
		ids = append(ids, e.ID)
	}

	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestStore_SetAllUnchangedIsSilent(t *testing.T) {
	t.Parallel()

	s := store.New[element.Shape](element.KindShape)
	s.Upsert(element.Shape{ID: "x", Type: element.Circle})

	calls := 0
	s.Subscribe(func(store.Change) { calls++ })

	s.SetAll(s.List(), true)

	assert.Zero(t, calls)
}

func TestStore_Unsubscribe(t *testing.T) {
	t.Parallel()

	s := store.New[element.TextBox](element.KindText)

	calls := 0
	unsubscribe := s.Subscribe(func(store.Change) { calls++ })

	s.Upsert(element.TextBox{ID: "t", FontSize: 12})
	unsubscribe()
	s.Upsert(element.TextBox{ID: "u", FontSize: 12})

	assert.Equal(t, 1, calls)
}
