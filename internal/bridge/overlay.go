package bridge

import (
	"sync"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/observer"
)

// Cursor is a remote peer's pointer position.
type Cursor struct {
	ClientID string     `json:"clientId"`
	Position geom.Point `json:"position"`
}

// Overlay is what remote peers are drawing right now. It is rendered on top of
// the committed elements and never stored.
type Overlay struct {
	Strokes []element.Stroke  `json:"strokes,omitempty"`
	Shapes  []element.Shape   `json:"shapes,omitempty"`
	Texts   []element.TextBox `json:"texts,omitempty"`
	Cursors []Cursor          `json:"cursors,omitempty"`
}

// IsEmpty reports whether no peer contributes anything.
func (o Overlay) IsEmpty() bool {
	return len(o.Strokes)+len(o.Shapes)+len(o.Texts)+len(o.Cursors) == 0
}

type overlayState struct {
	mu      sync.RWMutex
	current Overlay
	subs    observer.List[Overlay]
}

func newOverlayState() *overlayState {
	return &overlayState{}
}

// Overlay returns the latest merged overlay.
func (b *Bridge) Overlay() Overlay {
	b.overlay.mu.RLock()
	defer b.overlay.mu.RUnlock()

	return b.overlay.current
}

// OnOverlay registers fn for overlay changes.
func (b *Bridge) OnOverlay(fn func(Overlay)) func() {
	return b.overlay.subs.Add(fn)
}

func (b *Bridge) refreshOverlay() {
	o := MergeOverlay(b.aw.ClientID(), b.aw.States())

	b.overlay.mu.Lock()
	b.overlay.current = o
	b.overlay.mu.Unlock()

	b.overlay.subs.Notify(o)
}

// MergeOverlay unions the transient elements and cursors of every peer
// except self.
func MergeOverlay(self string, peers []awareness.PeerState) Overlay {
	var o Overlay

	for _, p := range peers {
		if p.ClientID == self {
			continue
		}

		st := p.State

		if st.CurrentPath != nil {
			o.Strokes = append(o.Strokes, *st.CurrentPath)
		}

		if st.CurrentShape != nil {
			o.Shapes = append(o.Shapes, *st.CurrentShape)
		}

		if st.CurrentText != nil {
			o.Texts = append(o.Texts, *st.CurrentText)
		}

		if st.Cursor != nil {
			o.Cursors = append(o.Cursors, Cursor{ClientID: p.ClientID, Position: *st.Cursor})
		}
	}

	return o
}
