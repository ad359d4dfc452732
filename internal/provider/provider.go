// Package provider connects a replicated document and awareness channel to
// the relay server over a websocket.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/serroba/online-canvas/internal/awareness"
	"github.com/serroba/online-canvas/internal/canvas"
	"github.com/serroba/online-canvas/internal/crdt"
	"github.com/serroba/online-canvas/internal/observer"
	"github.com/serroba/online-canvas/internal/ws"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrMissingURL       = errors.New("provider requires a server url")
)

// Status is the connection state reported to observers.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	// StatusFailed is terminal: reconnection attempts are exhausted.
	StatusFailed Status = "failed"
)

const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = time.Second
)

// Config configures a Provider. Zero values use the defaults.
type Config struct {
	// URL is the relay's websocket endpoint, e.g. ws://host:8080/ws.
	URL         string
	Dialer      *websocket.Dialer
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return c
}

// Provider replicates one document and awareness channel with the relay.
// Inbound changes are applied through the dispatch function it was given.
type Provider struct {
	cfg      Config
	logger   *slog.Logger
	canvasID string
	doc      *crdt.Doc
	aw       *awareness.Awareness
	dispatch canvas.Dispatch

	mu      sync.Mutex
	status  Status
	synced  bool
	client  *ws.Client
	pending []ws.Message
	closed  bool

	wake     chan struct{}
	flushed  chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	unsubs   []func()
	statuses observer.List[Status]
	syncs    observer.List[struct{}]
}

// Connector returns a canvas.ConnectFunc that opens providers with cfg.
func Connector(cfg Config) canvas.ConnectFunc {
	return func(
		ctx context.Context, canvasID string, doc *crdt.Doc, aw *awareness.Awareness, dispatch canvas.Dispatch,
	) (canvas.Link, error) {
		return Connect(ctx, cfg, canvasID, doc, aw, dispatch)
	}
}

// Connect dials the relay for canvasID, retrying with a fixed delay. When
// every attempt fails the status becomes StatusFailed and ErrConnectionFailed
// is returned.
func Connect(
	ctx context.Context, cfg Config, canvasID string, doc *crdt.Doc, aw *awareness.Awareness, dispatch canvas.Dispatch,
) (*Provider, error) {
	cfg = cfg.withDefaults()

	if cfg.URL == "" {
		return nil, ErrMissingURL
	}

	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	p := &Provider{
		cfg:      cfg,
		logger:   cfg.Logger.With("canvas", canvasID),
		canvasID: canvasID,
		doc:      doc,
		aw:       aw,
		dispatch: dispatch,
		status:   StatusDisconnected,
		wake:     make(chan struct{}, 1),
		flushed:  make(chan struct{}),
		cancel:   cancel,
	}

	p.unsubs = append(p.unsubs,
		doc.OnUpdate(func(e crdt.UpdateEvent) {
			if e.Origin == crdt.OriginRemote {
				return
			}

			p.enqueue(ws.Message{
				Type:    ws.MessageTypeUpdate,
				Payload: ws.UpdatePayload{CanvasID: canvasID, Update: e.Update},
			})
		}),
		aw.OnLocalUpdate(func(u awareness.Update) {
			p.enqueue(ws.Message{
				Type:    ws.MessageTypeAwareness,
				Payload: ws.AwarenessPayload{CanvasID: canvasID, Update: u},
			})
		}),
	)

	// The first dial honors the caller's context.
	client, err := p.dial(ctx)
	if err != nil {
		cancel()
		p.unsubscribe()
		p.setStatus(StatusFailed)

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p.wg.Add(1)

	go p.writeLoop(runCtx)
	go p.run(runCtx, client)

	return p, nil
}

// Status returns the current connection status.
func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

// OnStatus registers fn for status transitions.
func (p *Provider) OnStatus(fn func(Status)) func() {
	return p.statuses.Add(fn)
}

// OnSynced registers fn for completion of a state exchange. fn runs right
// away when the provider is already synced.
func (p *Provider) OnSynced(fn func()) func() {
	unsubscribe := p.syncs.Add(func(struct{}) { fn() })

	p.mu.Lock()
	synced := p.synced
	p.mu.Unlock()

	if synced {
		fn()
	}

	return unsubscribe
}

// Synced reports whether the current connection has received full state.
func (p *Provider) Synced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.synced
}

// Close sends what is still queued, disconnects and stops all background
// work. The document and awareness channel are left to their owner.
func (p *Provider) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()

		return nil
	}

	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.unsubscribe()
	<-p.flushed

	p.mu.Lock()
	client := p.client
	p.client = nil
	p.mu.Unlock()

	var err error
	if client != nil {
		err = client.Close()
	}

	p.wg.Wait()
	p.setStatus(StatusDisconnected)

	return err
}

func (p *Provider) unsubscribe() {
	for _, u := range p.unsubs {
		u()
	}

	p.unsubs = nil
}

// dial opens a connection with bounded retries and queues the handshake.
func (p *Provider) dial(ctx context.Context) (*ws.Client, error) {
	p.setStatus(StatusConnecting)

	endpoint, err := p.endpoint()
	if err != nil {
		return nil, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.cfg.RetryDelay), uint64(p.cfg.MaxAttempts-1)),
		ctx,
	)

	var conn *websocket.Conn

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++

		c, resp, err := p.cfg.Dialer.DialContext(ctx, endpoint, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		if err != nil {
			p.logger.Debug("dial failed", "attempt", attempt, "error", err)

			return err
		}

		conn = c

		return nil
	}, policy)
	if err != nil {
		return nil, err
	}

	client := ws.NewClient(uuid.NewString(), p.doc.Node(), conn)

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		_ = client.Close()

		return nil, context.Canceled
	}

	p.client = client
	p.synced = false
	// Full state goes out on every connection, so nothing queued while
	// disconnected needs to survive.
	p.pending = p.handshake()
	p.mu.Unlock()

	p.signal()
	p.setStatus(StatusConnected)
	p.logger.Info("connected", "attempts", attempt)

	return client, nil
}

func (p *Provider) endpoint() (string, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	q := u.Query()
	q.Set("canvasId", p.canvasID)
	q.Set("clientId", p.doc.Node())
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (p *Provider) handshake() []ws.Message {
	msgs := []ws.Message{{Type: ws.MessageTypeSync, Payload: ws.SyncPayload{CanvasID: p.canvasID}}}

	if state := p.doc.State(); !state.IsEmpty() {
		msgs = append(msgs, ws.Message{
			Type:    ws.MessageTypeUpdate,
			Payload: ws.UpdatePayload{CanvasID: p.canvasID, Update: state},
		})
	}

	return append(msgs, ws.Message{
		Type:    ws.MessageTypeAwareness,
		Payload: ws.AwarenessPayload{CanvasID: p.canvasID, Update: p.aw.Renew()},
	})
}

// run reads from client until the connection drops, then reconnects. A
// failed reconnection is terminal.
func (p *Provider) run(ctx context.Context, client *ws.Client) {
	defer p.wg.Done()

	for {
		err := p.readLoop(client)

		if ctx.Err() != nil {
			return
		}

		p.logger.Warn("connection lost", "error", err)

		p.mu.Lock()
		if p.client == client {
			p.client = nil
		}
		p.synced = false
		p.mu.Unlock()

		_ = client.Close()
		p.setStatus(StatusDisconnected)

		client, err = p.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			p.logger.Error("reconnect failed", "error", err)
			p.setStatus(StatusFailed)

			return
		}
	}
}

func (p *Provider) readLoop(client *ws.Client) error {
	for {
		msg, err := client.Receive()
		if errors.Is(err, ws.ErrUnknownMessage) {
			p.logger.Debug("ignoring message", "error", err)

			continue
		}

		if err != nil {
			return err
		}

		p.handle(msg)
	}
}

func (p *Provider) handle(msg ws.Message) {
	switch payload := msg.Payload.(type) {
	case ws.StatePayload:
		p.dispatch(func() {
			p.applyUpdate(payload.Update)
			p.aw.ApplyUpdate(payload.Awareness)
		})
		p.markSynced()
	case ws.UpdatePayload:
		p.dispatch(func() { p.applyUpdate(payload.Update) })
	case ws.AwarenessPayload:
		p.dispatch(func() { p.aw.ApplyUpdate(payload.Update) })
	case ws.ErrorPayload:
		p.logger.Warn("server error", "code", payload.Code, "message", payload.Message)
	}
}

func (p *Provider) applyUpdate(u crdt.Update) {
	if err := p.doc.ApplyUpdate(u, crdt.OriginRemote); err != nil {
		p.logger.Warn("dropping remote update", "error", err)
	}
}

func (p *Provider) markSynced() {
	p.mu.Lock()

	if p.synced {
		p.mu.Unlock()

		return
	}

	p.synced = true
	p.mu.Unlock()

	p.syncs.Notify(struct{}{})
}

// enqueue never blocks; it may be called with the session lock held.
func (p *Provider) enqueue(msg ws.Message) {
	p.mu.Lock()

	if p.closed || p.client == nil {
		p.mu.Unlock()

		return
	}

	p.pending = append(p.pending, msg)
	p.mu.Unlock()

	p.signal()
}

func (p *Provider) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// writeLoop sends queued messages in order. It drains the queue once more
// when ctx ends.
func (p *Provider) writeLoop(ctx context.Context) {
	defer close(p.flushed)

	for {
		select {
		case <-ctx.Done():
			p.flush()

			return
		case <-p.wake:
			p.flush()
		}
	}
}

func (p *Provider) flush() {
	p.mu.Lock()
	msgs := p.pending
	p.pending = nil
	client := p.client
	p.mu.Unlock()

	if client == nil {
		return
	}

	for _, msg := range msgs {
		if err := client.Send(msg); err != nil {
			// The read loop notices the broken connection.
			p.logger.Debug("send failed", "type", msg.Type, "error", err)

			return
		}
	}
}

func (p *Provider) setStatus(s Status) {
	p.mu.Lock()

	if p.status == s || p.status == StatusFailed {
		p.mu.Unlock()

		return
	}

	p.status = s
	p.mu.Unlock()

	p.logger.Debug("status changed", "status", s)
	p.statuses.Notify(s)
}
