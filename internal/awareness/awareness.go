// Package awareness carries per-peer ephemeral state: cursor position and the
// element a peer is currently drawing. It is never persisted.
package awareness

import (
	"cmp"
	"slices"
	"sync"

	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/observer"
)

// State is what one peer publishes about itself.
type State struct {
	Cursor       *geom.Point      `json:"cursor,omitempty"`
	CurrentPath  *element.Stroke  `json:"currentPath,omitempty"`
	CurrentShape *element.Shape   `json:"currentShape,omitempty"`
	CurrentText  *element.TextBox `json:"currentText,omitempty"`
}

// PeerState is a peer's state paired with its id.
type PeerState struct {
	ClientID string
	State    State
}

// PeerUpdate is the wire form of one peer's state. Removed peers carry no state.
type PeerUpdate struct {
	ClientID string `json:"clientId"`
	Clock    uint64 `json:"clock"`
	State    *State `json:"state,omitempty"`
	Removed  bool   `json:"removed,omitempty"`
}

// Update is a batch of peer updates.
type Update struct {
	Peers []PeerUpdate `json:"peers"`
}

// IsEmpty reports whether the update carries no peers.
func (u Update) IsEmpty() bool {
	return len(u.Peers) == 0
}

// Change lists the peers whose state changed.
type Change struct {
	Added   []string
	Updated []string
	Removed []string
	Local   bool
}

type peer struct {
	clock   uint64
	state   State
	removed bool
}

// Awareness holds the local peer's state and the latest known state of
// every remote peer. A peer's update replaces the previous one only when its
// clock is higher.
type Awareness struct {
	clientID string

	mu     sync.RWMutex
	peers  map[string]peer
	closed bool

	changes observer.List[Change]
	updates observer.List[Update]
}

// New creates an awareness channel for the local client.
func New(clientID string) *Awareness {
	return &Awareness{
		clientID: clientID,
		peers:    map[string]peer{clientID: {}},
	}
}

// ClientID returns the local peer id.
func (a *Awareness) ClientID() string {
	return a.clientID
}

// LocalState returns the local peer's current state.
func (a *Awareness) LocalState() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.peers[a.clientID].state
}

// SetLocalState replaces the local state with fn applied to it and
// publishes the result.
func (a *Awareness) SetLocalState(fn func(State) State) {
	a.mu.Lock()

	if a.closed {
		a.mu.Unlock()

		return
	}

	p := a.peers[a.clientID]
	p.clock++
	p.state = fn(p.state)
	a.peers[a.clientID] = p

	st := p.state
	u := Update{Peers: []PeerUpdate{{ClientID: a.clientID, Clock: p.clock, State: &st}}}

	a.mu.Unlock()

	a.changes.Notify(Change{Updated: []string{a.clientID}, Local: true})
	a.updates.Notify(u)
}

// LocalUpdate returns the update that announces the current local state.
func (a *Awareness) LocalUpdate() Update {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p := a.peers[a.clientID]
	st := p.state

	return Update{Peers: []PeerUpdate{{ClientID: a.clientID, Clock: p.clock, State: &st}}}
}

// Renew returns the local state under a fresh clock, for announcing it on a
// new connection. A relay removes a departed peer one tick past the last
// clock it saw, so the clock skips two ticks to stay ahead of that removal.
// Local update listeners are not notified.
func (a *Awareness) Renew() Update {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := a.peers[a.clientID]
	p.clock += 2
	a.peers[a.clientID] = p

	st := p.state

	return Update{Peers: []PeerUpdate{{ClientID: a.clientID, Clock: p.clock, State: &st}}}
}

// ApplyUpdate merges remote peer states. Updates about the local peer and
// updates with a clock not above the known one are ignored.
func (a *Awareness) ApplyUpdate(u Update) {
	a.mu.Lock()

	if a.closed {
		a.mu.Unlock()

		return
	}

	var c Change

	for _, pu := range u.Peers {
		if pu.ClientID == "" || pu.ClientID == a.clientID {
			continue
		}

		cur, known := a.peers[pu.ClientID]
		if known && pu.Clock <= cur.clock {
			continue
		}

		next := peer{clock: pu.Clock, removed: pu.Removed || pu.State == nil}
		if !next.removed {
			next.state = *pu.State
		}

		a.peers[pu.ClientID] = next

		switch {
		case next.removed && known && !cur.removed:
			c.Removed = append(c.Removed, pu.ClientID)
		case next.removed:
		case !known || cur.removed:
			c.Added = append(c.Added, pu.ClientID)
		default:
			c.Updated = append(c.Updated, pu.ClientID)
		}
	}

	a.mu.Unlock()

	if len(c.Added)+len(c.Updated)+len(c.Removed) > 0 {
		a.changes.Notify(c)
	}
}

// RemovePeer forgets a remote peer, typically after its connection closed.
// It returns the update that announces the removal to other peers.
func (a *Awareness) RemovePeer(clientID string) (Update, bool) {
	if clientID == a.clientID {
		return Update{}, false
	}

	a.mu.Lock()

	cur, ok := a.peers[clientID]
	if !ok || cur.removed || a.closed {
		a.mu.Unlock()

		return Update{}, false
	}

	cur.clock++
	cur.removed = true
	cur.state = State{}
	a.peers[clientID] = cur

	a.mu.Unlock()

	a.changes.Notify(Change{Removed: []string{clientID}})

	return Update{Peers: []PeerUpdate{{ClientID: clientID, Clock: cur.clock, Removed: true}}}, true
}

// Snapshot returns the latest known update of every remote peer, removed
// peers included, so a newcomer can catch up.
func (a *Awareness) Snapshot() Update {
	a.mu.RLock()

	var u Update

	for id, p := range a.peers {
		if id == a.clientID {
			continue
		}

		pu := PeerUpdate{ClientID: id, Clock: p.clock, Removed: p.removed}
		if !p.removed {
			st := p.state
			pu.State = &st
		}

		u.Peers = append(u.Peers, pu)
	}

	a.mu.RUnlock()

	slices.SortFunc(u.Peers, func(x, y PeerUpdate) int {
		return cmp.Compare(x.ClientID, y.ClientID)
	})

	return u
}

// States returns every live peer state, local included, ordered by id.
func (a *Awareness) States() []PeerState {
	a.mu.RLock()

	out := make([]PeerState, 0, len(a.peers))

	for id, p := range a.peers {
		if !p.removed {
			out = append(out, PeerState{ClientID: id, State: p.state})
		}
	}

	a.mu.RUnlock()

	slices.SortFunc(out, func(x, y PeerState) int {
		return cmp.Compare(x.ClientID, y.ClientID)
	})

	return out
}

// OnChange registers fn for local and remote state changes.
func (a *Awareness) OnChange(fn func(Change)) func() {
	return a.changes.Add(fn)
}

// OnLocalUpdate registers fn for updates that should be sent to other peers.
func (a *Awareness) OnLocalUpdate(fn func(Update)) func() {
	return a.updates.Add(fn)
}

// Destroy clears remote peers and makes the channel inert.
func (a *Awareness) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	a.peers = map[string]peer{a.clientID: a.peers[a.clientID]}
}
