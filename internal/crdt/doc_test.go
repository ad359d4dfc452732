package crdt_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

func TestTransact_EmitsOneUpdate(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")

	var (
		updates []crdt.UpdateEvent
		events  []crdt.MapEvent
	)

	doc.OnUpdate(func(e crdt.UpdateEvent) { updates = append(updates, e) })
	doc.Map(crdt.MapShapes).Observe(func(e crdt.MapEvent) { events = append(events, e) })

	err := doc.Transact("local", func(tx *crdt.Txn) error {
		require.NoError(t, tx.Set(crdt.MapShapes, "s1", item{ID: "s1"}))
		require.NoError(t, tx.Set(crdt.MapShapes, "s2", item{ID: "s2"}))
		require.NoError(t, tx.Set(crdt.MapPaths, "p1", item{ID: "p1"}))

		return nil
	})
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Len(t, updates[0].Update.Entries, 3)
	assert.Equal(t, crdt.Origin("local"), updates[0].Origin)

	require.Len(t, events, 1)
	assert.Equal(t, []string{"s1", "s2"}, events[0].Keys)
}

func TestTransact_ErrorCommitsNothing(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")
	boom := errors.New("boom")

	err := doc.Transact("local", func(tx *crdt.Txn) error {
		require.NoError(t, tx.Set(crdt.MapShapes, "s1", item{ID: "s1"}))

		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.True(t, doc.IsEmpty())
}

func TestTransact_UnchangedValueIsSilent(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")
	shapes := doc.Map(crdt.MapShapes)
	require.NoError(t, shapes.Set("local", "s1", item{ID: "s1"}))

	calls := 0
	doc.OnUpdate(func(crdt.UpdateEvent) { calls++ })

	require.NoError(t, shapes.Set("local", "s1", item{ID: "s1"}))
	shapes.Delete("local", "missing")

	assert.Zero(t, calls)
}

func TestTxn_ReadsOwnWrites(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")

	_ = doc.Transact("local", func(tx *crdt.Txn) error {
		_ = tx.Set(crdt.MapTexts, "t", item{ID: "t"})

		_, ok := tx.Get(crdt.MapTexts, "t")
		assert.True(t, ok)

		tx.Delete(crdt.MapTexts, "t")

		_, ok = tx.Get(crdt.MapTexts, "t")
		assert.False(t, ok)

		return nil
	})
}

func TestSet_RejectsEmptyKey(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")

	err := doc.Map(crdt.MapPaths).Set("local", "", item{})
	require.ErrorIs(t, err, crdt.ErrEmptyKey)
}

func TestApplyUpdate_Converges(t *testing.T) {
	t.Parallel()

	a := crdt.NewDoc("a")
	b := crdt.NewDoc("b")

	link := func(from, to *crdt.Doc) {
		from.OnUpdate(func(e crdt.UpdateEvent) {
			if e.Origin == crdt.OriginRemote {
				return
			}

			require.NoError(t, to.ApplyUpdate(e.Update, crdt.OriginRemote))
		})
	}

	require.NoError(t, a.Map(crdt.MapShapes).Set("local", "s1", item{ID: "s1", Color: "red"}))

	// b never saw a's first write; a full state sync catches it up.
	require.NoError(t, b.ApplyUpdate(a.State(), crdt.OriginRemote))

	link(a, b)
	link(b, a)

	require.NoError(t, b.Map(crdt.MapShapes).Set("local", "s1", item{ID: "s1", Color: "blue"}))
	require.NoError(t, a.Map(crdt.MapShapes).Set("local", "s2", item{ID: "s2"}))

	assert.Equal(t, a.State(), b.State())

	raw, ok := a.Map(crdt.MapShapes).Get("s1")
	require.True(t, ok)

	var got item
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "blue", got.Color)
}

func TestApplyUpdate_ConcurrentWritesToDifferentKeys(t *testing.T) {
	t.Parallel()

	a := crdt.NewDoc("a")
	b := crdt.NewDoc("b")

	require.NoError(t, a.Map(crdt.MapPaths).Set("local", "p-a", item{ID: "p-a"}))
	require.NoError(t, b.Map(crdt.MapPaths).Set("local", "p-b", item{ID: "p-b"}))

	stateA, stateB := a.State(), b.State()
	require.NoError(t, a.ApplyUpdate(stateB, crdt.OriginRemote))
	require.NoError(t, b.ApplyUpdate(stateA, crdt.OriginRemote))

	assert.Equal(t, 2, a.Map(crdt.MapPaths).Len())
	assert.Equal(t, keys(a.Map(crdt.MapPaths)), keys(b.Map(crdt.MapPaths)))
}

func TestApplyUpdate_SameTimestampNodeIDWins(t *testing.T) {
	t.Parallel()

	a := crdt.NewDoc("a")
	b := crdt.NewDoc("b")

	require.NoError(t, a.Map(crdt.MapShapes).Set("local", "s", item{Color: "from-a"}))
	require.NoError(t, b.Map(crdt.MapShapes).Set("local", "s", item{Color: "from-b"}))

	stateA, stateB := a.State(), b.State()
	require.NoError(t, a.ApplyUpdate(stateB, crdt.OriginRemote))
	require.NoError(t, b.ApplyUpdate(stateA, crdt.OriginRemote))

	for _, doc := range []*crdt.Doc{a, b} {
		items, bad := crdt.Decode[item](doc.Map(crdt.MapShapes))
		require.Zero(t, bad)
		require.Len(t, items, 1)
		assert.Equal(t, "from-b", items[0].Color)
	}
}

func TestApplyUpdate_DeleteReplicates(t *testing.T) {
	t.Parallel()

	a := crdt.NewDoc("a")
	b := crdt.NewDoc("b")

	require.NoError(t, a.Map(crdt.MapTexts).Set("local", "t", item{ID: "t"}))
	require.NoError(t, b.ApplyUpdate(a.State(), crdt.OriginRemote))
	a.Map(crdt.MapTexts).Delete("local", "t")

	var events []crdt.MapEvent
	b.Map(crdt.MapTexts).Observe(func(e crdt.MapEvent) { events = append(events, e) })

	require.NoError(t, b.ApplyUpdate(a.State(), crdt.OriginRemote))

	assert.True(t, b.IsEmpty())
	require.Len(t, events, 1)
	assert.Equal(t, crdt.OriginRemote, events[0].Origin)

	// A replayed stale update is ignored.
	require.NoError(t, b.ApplyUpdate(a.State(), crdt.OriginRemote))
	assert.Len(t, events, 1)
}

func TestApplyUpdate_RejectsMalformedEntries(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")

	err := doc.ApplyUpdate(crdt.Update{Entries: []crdt.Entry{{Map: crdt.MapPaths}}}, crdt.OriginRemote)
	require.ErrorIs(t, err, crdt.ErrEmptyKey)

	err = doc.ApplyUpdate(crdt.Update{Entries: []crdt.Entry{{Key: "k"}}}, crdt.OriginRemote)
	require.ErrorIs(t, err, crdt.ErrEmptyMapName)
}

func TestMap_EntriesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")
	m := doc.Map(crdt.MapPaths)

	for _, k := range []string{"z", "a", "m"} {
		require.NoError(t, m.Set("local", k, item{ID: k}))
	}

	// Rewriting and re-inserting after delete keep the first position.
	require.NoError(t, m.Set("local", "z", item{ID: "z", Color: "red"}))
	m.Delete("local", "a")
	require.NoError(t, m.Set("local", "a", item{ID: "a"}))

	assert.Equal(t, []string{"z", "a", "m"}, keys(m))
}

func TestDestroy_DetachesObservers(t *testing.T) {
	t.Parallel()

	doc := crdt.NewDoc("a")

	calls := 0
	doc.OnUpdate(func(crdt.UpdateEvent) { calls++ })

	doc.Destroy()

	require.NoError(t, doc.Map(crdt.MapPaths).Set("local", "p", item{}))
	assert.Zero(t, calls)
	assert.True(t, doc.IsEmpty())
}

func keys(m *crdt.Map) []string {
	var out []string
	for _, e := range m.Entries() {
		out = append(out, e.Key)
	}

	return out
}
