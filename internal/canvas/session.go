// Package canvas is the per-user session: it owns the element stores,
// selection, history, replicated document, awareness channel and their
// connection, and turns pointer and keyboard input into gestures.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/bridge"
	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/serroba/online-canvas/internal/element"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/history"
	"github.com/serroba/online-canvas/internal/selection"
	"github.com/serroba/online-canvas/internal/store"
)

var ErrEmptyCanvas = errors.New("empty canvas id")

const seedOrigin crdt.Origin = "seed"

// Link is a live connection that replicates one document and awareness
// channel with other peers.
type Link interface {
	// OnSynced registers fn for completion of the initial state exchange.
	// fn runs outside any dispatched call.
	OnSynced(fn func()) func()
	Close() error
}

// Dispatch runs fn serialized with all other session mutations.
type Dispatch func(fn func())

// ConnectFunc opens a Link for canvasID. Inbound changes must be applied
// through dispatch.
type ConnectFunc func(ctx context.Context, canvasID string, doc *crdt.Doc, aw *awareness.Awareness, dispatch Dispatch) (Link, error)

// SeedLoader fetches the last known contents of a canvas.
type SeedLoader interface {
	Load(ctx context.Context, canvasID string) (element.Set, error)
}

// Config configures a Session. Zero values use the defaults.
type Config struct {
	// ClientID identifies this peer; a random id is used when empty.
	ClientID     string
	Logger       *slog.Logger
	HistoryDepth int
	Color        string
	Width        float64
	FontSize     float64
	// Connect attaches the document to peers. Nil keeps the session local.
	Connect ConnectFunc
	// Seed is consulted once, when the document is empty after first sync.
	Seed SeedLoader
}

// Session is the explicitly constructed owner of all canvas state. It is
// safe for concurrent use; every mutation is serialized.
type Session struct {
	clientID string
	logger   *slog.Logger
	cfg      Config

	mu       sync.Mutex
	canvasID string
	stores   *store.Stores
	sel      *selection.Model
	hist     *history.Stack
	doc      *crdt.Doc
	aw       *awareness.Awareness
	br       *bridge.Bridge
	link     Link
	unsubs   []func()
	cancel   context.CancelFunc
	seeded   bool
	seeds    *sync.WaitGroup

	tool     Tool
	color    string
	width    float64
	fontSize float64
	pan      geom.Point
	last     geom.Point
	active   gesture
	editing  *textEdit
}

// New creates a session with no canvas open.
func New(cfg Config) *Session {
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Color == "" {
		cfg.Color = "#000000"
	}

	if cfg.Width <= 0 {
		cfg.Width = 2
	}

	if cfg.FontSize <= 0 {
		cfg.FontSize = 16
	}

	return &Session{
		clientID: cfg.ClientID,
		logger:   cfg.Logger,
		cfg:      cfg,
		tool:     ToolPen,
		color:    cfg.Color,
		width:    cfg.Width,
		fontSize: cfg.FontSize,
	}
}

// ClientID returns this peer's id.
func (s *Session) ClientID() string {
	return s.clientID
}

// CanvasID returns the open canvas, or "".
func (s *Session) CanvasID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.canvasID
}

// Open switches the session to canvasID. The previous document, awareness
// channel and connection are destroyed first; history and selection start
// empty.
func (s *Session) Open(ctx context.Context, canvasID string) error {
	if canvasID == "" {
		return ErrEmptyCanvas
	}

	s.mu.Lock()
	old := s.detachLocked()

	doc := crdt.NewDoc(s.clientID)
	aw := awareness.New(s.clientID)
	stores := store.NewStores()

	br, err := bridge.New(bridge.Config{Doc: doc, Awareness: aw, Stores: stores, Logger: s.logger})
	if err != nil {
		s.mu.Unlock()
		_ = old.wait()

		return fmt.Errorf("open canvas %s: %w", canvasID, err)
	}

	if err := br.Start(); err != nil {
		s.mu.Unlock()
		_ = old.wait()

		return fmt.Errorf("open canvas %s: %w", canvasID, err)
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.canvasID = canvasID
	s.doc, s.aw, s.stores, s.br = doc, aw, stores, br
	s.sel = selection.New(stores)
	s.hist = history.New(s.cfg.HistoryDepth)
	s.cancel = cancel
	s.seeded = false
	s.seeds = &sync.WaitGroup{}
	s.unsubs = []func(){stores.Subscribe(func(store.Change) { s.sel.Prune() })}
	s.mu.Unlock()

	_ = old.wait()

	s.logger.Info("canvas opened", "canvas", canvasID, "client", s.clientID)

	if s.cfg.Connect == nil {
		return nil
	}

	link, err := s.cfg.Connect(ctx, canvasID, doc, aw, s.dispatch)
	if err != nil {
		return fmt.Errorf("connect canvas %s: %w", canvasID, err)
	}

	s.mu.Lock()

	if s.doc != doc {
		// Another Open won the race.
		s.mu.Unlock()

		return link.Close()
	}

	s.link = link
	s.mu.Unlock()

	// A link that already synced may call back right away.
	unsubscribe := link.OnSynced(func() { s.onSynced(sessCtx, doc) })

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc != doc {
		unsubscribe()

		return nil
	}

	s.unsubs = append(s.unsubs, unsubscribe)

	return nil
}

// Close ends any gesture and destroys the document, awareness channel and
// connection.
func (s *Session) Close() error {
	s.mu.Lock()
	old := s.detachLocked()
	s.mu.Unlock()

	return old.wait()
}

type detached struct {
	link  Link
	seeds *sync.WaitGroup
}

func (d detached) wait() error {
	var err error

	if d.link != nil {
		err = d.link.Close()
	}

	if d.seeds != nil {
		d.seeds.Wait()
	}

	return err
}

// detachLocked tears down the open canvas. The link close and seed wait
// happen outside the lock.
func (s *Session) detachLocked() detached {
	if s.doc == nil {
		return detached{}
	}

	s.finishGestureLocked()
	s.commitTextLocked()

	for _, u := range s.unsubs {
		u()
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.br.Close()
	s.doc.Destroy()
	s.aw.Destroy()

	d := detached{link: s.link, seeds: s.seeds}

	s.canvasID = ""
	s.doc, s.aw, s.br, s.link = nil, nil, nil, nil
	s.unsubs, s.cancel = nil, nil
	s.active = nil
	s.pan = geom.Point{}

	return d
}

func (s *Session) dispatch(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn()
}

// onSynced runs once per connection after the first state exchange. An empty
// document is seeded from the loader in the background.
func (s *Session) onSynced(ctx context.Context, doc *crdt.Doc) {
	s.mu.Lock()

	if s.doc != doc || s.seeded || s.cfg.Seed == nil {
		s.mu.Unlock()

		return
	}

	s.seeded = true

	if !doc.IsEmpty() {
		s.mu.Unlock()

		return
	}

	canvasID := s.canvasID
	wg := s.seeds
	wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer wg.Done()

		set, err := s.cfg.Seed.Load(ctx, canvasID)
		if err != nil {
			s.logger.Debug("seed load skipped", "canvas", canvasID, "error", err)

			return
		}

		s.dispatch(func() {
			if s.doc != doc {
				return
			}

			if err := insertSet(doc, set); err != nil {
				s.logger.Debug("seed insert failed", "canvas", canvasID, "error", err)
			}
		})
	}()
}

// insertSet writes set into the replicated maps in one transaction.
func insertSet(doc *crdt.Doc, set element.Set) error {
	return doc.Transact(seedOrigin, func(tx *crdt.Txn) error {
		for _, e := range set.Strokes {
			if err := tx.Set(crdt.MapPaths, e.ID, e.Normalized()); err != nil {
				return err
			}
		}

		for _, e := range set.Shapes {
			if err := tx.Set(crdt.MapShapes, e.ID, e.Normalized()); err != nil {
				return err
			}
		}

		for _, e := range set.Texts {
			if err := tx.Set(crdt.MapTexts, e.ID, e.Normalized()); err != nil {
				return err
			}
		}

		return nil
	})
}

// Document returns the open replicated document.
func (s *Session) Document() *crdt.Doc {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.doc
}

// Awareness returns the open awareness channel.
func (s *Session) Awareness() *awareness.Awareness {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.aw
}

// Elements returns every committed element.
func (s *Session) Elements() element.Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stores == nil {
		return element.Set{}
	}

	return s.stores.All()
}
