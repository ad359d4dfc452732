package bridge_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/bridge"
	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type peer struct {
	doc    *crdt.Doc
	aw     *awareness.Awareness
	stores *store.Stores
	bridge *bridge.Bridge
}

func newPeer(t *testing.T, id string) *peer {
	t.Helper()

	p := &peer{
		doc:    crdt.NewDoc(id),
		aw:     awareness.New(id),
		stores: store.NewStores(),
	}

	b, err := bridge.New(bridge.Config{
		Doc:       p.doc,
		Awareness: p.aw,
		Stores:    p.stores,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	require.NoError(t, b.Start())
	t.Cleanup(b.Close)

	p.bridge = b

	return p
}

// connect relays local document updates between peers, as the relay server does.
func connect(peers ...*peer) {
	for _, from := range peers {
		for _, to := range peers {
			if from == to {
				continue
			}

			from.doc.OnUpdate(func(e crdt.UpdateEvent) {
				if e.Origin == crdt.OriginRemote {
					return
				}

				_ = to.doc.ApplyUpdate(e.Update, crdt.OriginRemote)
			})
		}
	}
}

func stroke(id string, x float64) element.Stroke {
	s := element.NewStroke(geom.Point{X: x, Y: 0}, "black", 2).Append(geom.Point{X: x + 10, Y: 10})
	s.ID = id

	return s
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := bridge.New(bridge.Config{Stores: store.NewStores()})
	require.ErrorIs(t, err, bridge.ErrMissingDoc)

	_, err = bridge.New(bridge.Config{Doc: crdt.NewDoc("a")})
	require.ErrorIs(t, err, bridge.ErrMissingStores)
}

func TestStart_Twice(t *testing.T) {
	t.Parallel()

	p := newPeer(t, "a")
	require.ErrorIs(t, p.bridge.Start(), bridge.ErrAlreadyStarted)
}

func TestOutbound_WritesKeyedEntries(t *testing.T) {
	t.Parallel()

	p := newPeer(t, "a")

	var updates []crdt.Update

	p.doc.OnUpdate(func(e crdt.UpdateEvent) { updates = append(updates, e.Update) })

	p.stores.Strokes.Upsert(stroke("s1", 0))
	p.stores.Strokes.Upsert(stroke("s2", 50))

	require.Len(t, updates, 2)
	require.Len(t, updates[1].Entries, 1, "only the touched id is written")
	assert.Equal(t, "s2", updates[1].Entries[0].Key)
	assert.Equal(t, 2, p.doc.Map(crdt.MapPaths).Len())

	p.stores.Strokes.RemoveMany([]string{"s1"})

	assert.False(t, p.doc.Map(crdt.MapPaths).Has("s1"))
	assert.True(t, p.doc.Map(crdt.MapPaths).Has("s2"))
}

func TestInbound_DoesNotEcho(t *testing.T) {
	t.Parallel()

	a := newPeer(t, "a")
	b := newPeer(t, "b")

	var local int

	b.doc.OnUpdate(func(e crdt.UpdateEvent) {
		if e.Origin != crdt.OriginRemote {
			local++
		}
	})

	connect(a, b)

	a.stores.Shapes.Upsert(element.Shape{ID: "r", Type: element.Rectangle, EndPoint: geom.Point{X: 20, Y: 20}})

	got, ok := b.stores.Shapes.Get("r")
	require.True(t, ok)
	assert.Equal(t, geom.NewBox(0, 0, 20, 20), got.BoundingBox)
	assert.Zero(t, local, "applying remote state must not write back")
}

func TestBatch_IsOneUpdate(t *testing.T) {
	t.Parallel()

	p := newPeer(t, "a")

	var updates []crdt.Update

	p.doc.OnUpdate(func(e crdt.UpdateEvent) { updates = append(updates, e.Update) })

	p.bridge.Batch(func() {
		p.stores.Strokes.UpsertMany([]element.Stroke{stroke("s1", 0), stroke("s2", 20)})
		p.stores.Shapes.Upsert(element.Shape{ID: "r", Type: element.Circle, EndPoint: geom.Point{X: 5, Y: 5}})
		p.stores.Texts.Upsert(element.NewTextBox(geom.Point{}, "black", 13).WithContent("x"))

		assert.True(t, p.bridge.Suspended())
		assert.True(t, p.doc.IsEmpty(), "nothing is written mid-gesture")
	})

	require.Len(t, updates, 1)
	assert.Len(t, updates[0].Entries, 4)
	assert.False(t, p.bridge.Suspended())
}

func TestSuspend_KeepsLocalGestureAgainstRemoteChanges(t *testing.T) {
	t.Parallel()

	a := newPeer(t, "a")
	b := newPeer(t, "b")
	connect(a, b)

	a.stores.Strokes.UpsertMany([]element.Stroke{stroke("mine", 0), stroke("theirs", 100)})
	require.Equal(t, 2, b.stores.Strokes.Len())

	a.bridge.Suspend()
	a.stores.Strokes.Upsert(stroke("mine", 0).Translate(5, 5))

	// b edits both elements while a is mid-gesture.
	b.stores.Strokes.UpsertMany([]element.Stroke{stroke("mine", 0).Translate(-50, 0), stroke("theirs", 100).Translate(0, 30)})

	mine, _ := a.stores.Strokes.Get("mine")
	assert.InDelta(t, 5, mine.BoundingBox.MinX(), 1e-9, "held element keeps the local gesture state")

	theirs, _ := a.stores.Strokes.Get("theirs")
	assert.InDelta(t, 30, theirs.BoundingBox.MinY(), 1e-9, "other elements follow the remote")

	a.bridge.Resume()

	// The gesture commits after the remote edit, so it wins everywhere.
	for _, p := range []*peer{a, b} {
		got, ok := p.stores.Strokes.Get("mine")
		require.True(t, ok)
		assert.InDelta(t, 5, got.BoundingBox.MinX(), 1e-9)
	}
}

func TestSuspend_RemoteDeleteWinsOverHeldChange(t *testing.T) {
	t.Parallel()

	a := newPeer(t, "a")
	b := newPeer(t, "b")
	connect(a, b)

	a.stores.Strokes.Upsert(stroke("s1", 0))

	a.bridge.Suspend()
	a.stores.Strokes.Upsert(stroke("s1", 0).Translate(5, 5))

	b.stores.Strokes.RemoveMany([]string{"s1"})
	assert.False(t, a.stores.Strokes.Has("s1"), "a remote delete removes the held element")

	// The rest of the gesture only touches what is still present.
	a.stores.Replace(element.Set{Strokes: []element.Stroke{stroke("s1", 0).Translate(9, 9)}})
	a.bridge.Resume()

	for _, p := range []*peer{a, b} {
		assert.False(t, p.stores.Strokes.Has("s1"))
		assert.False(t, p.doc.Map(crdt.MapPaths).Has("s1"))
		assert.True(t, p.doc.Map(crdt.MapPaths).Deleted("s1"))
	}
}

func TestStart_LoadsExistingDocument(t *testing.T) {
	t.Parallel()

	seed := newPeer(t, "seed")
	seed.stores.Strokes.Upsert(stroke("s1", 0))

	doc := crdt.NewDoc("late")
	require.NoError(t, doc.ApplyUpdate(seed.doc.State(), crdt.OriginRemote))

	stores := store.NewStores()
	b, err := bridge.New(bridge.Config{Doc: doc, Stores: stores})
	require.NoError(t, err)
	require.NoError(t, b.Start())

	defer b.Close()

	assert.True(t, stores.Strokes.Has("s1"))
}

func TestRoundTrip_StoreToDocumentAndBack(t *testing.T) {
	t.Parallel()

	a := newPeer(t, "a")
	a.stores.Strokes.UpsertMany([]element.Stroke{stroke("s1", 0), stroke("s2", 30)})
	a.stores.Texts.Upsert(element.NewTextBox(geom.Point{X: 1, Y: 2}, "red", 18).WithContent("two\nlines"))

	doc := crdt.NewDoc("reload")
	require.NoError(t, doc.ApplyUpdate(a.doc.State(), crdt.OriginRemote))

	stores := store.NewStores()
	b, err := bridge.New(bridge.Config{Doc: doc, Stores: stores})
	require.NoError(t, err)
	require.NoError(t, b.Start())

	defer b.Close()

	assert.ElementsMatch(t, a.stores.Strokes.List(), stores.Strokes.List())
	assert.ElementsMatch(t, a.stores.Texts.List(), stores.Texts.List())
}

func TestOverlay_ExcludesSelf(t *testing.T) {
	t.Parallel()

	p := newPeer(t, "me")

	var seen []bridge.Overlay

	p.bridge.OnOverlay(func(o bridge.Overlay) { seen = append(seen, o) })

	p.aw.SetLocalState(func(s awareness.State) awareness.State {
		s.Cursor = &geom.Point{X: 1, Y: 1}

		return s
	})

	path := stroke("transient", 0)
	p.aw.ApplyUpdate(awareness.Update{Peers: []awareness.PeerUpdate{{
		ClientID: "other",
		Clock:    1,
		State:    &awareness.State{Cursor: &geom.Point{X: 7, Y: 8}, CurrentPath: &path},
	}}})

	o := p.bridge.Overlay()
	require.Len(t, o.Strokes, 1)
	assert.Equal(t, "transient", o.Strokes[0].ID)
	assert.Equal(t, []bridge.Cursor{{ClientID: "other", Position: geom.Point{X: 7, Y: 8}}}, o.Cursors)
	assert.NotEmpty(t, seen)

	assert.False(t, p.stores.Strokes.Has("transient"), "transient elements are never committed")
	assert.True(t, p.doc.IsEmpty())

	p.aw.RemovePeer("other")
	assert.True(t, p.bridge.Overlay().IsEmpty())
}
