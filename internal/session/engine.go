// Package session runs the shared-presentation protocol. One goroutine owns
// the deck and role manager; everything else hands work to it through Do.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ClassPresenter/internal/config"
	"ClassPresenter/internal/logger"
	"ClassPresenter/internal/protocol"
	"ClassPresenter/internal/role"
	"ClassPresenter/internal/state"
	"ClassPresenter/internal/transfer"
	"ClassPresenter/internal/tube"
)

var ErrStopped = errors.New("session: engine stopped")

type Options struct {
	Log    *logger.Logger
	Config config.Config
	Deck   *state.Deck
	Roles  *role.Manager

	// TransferAddr and AdvertiseHost place the bundle server. Empty values
	// mean an ephemeral port on every interface and the outgoing LAN address.
	TransferAddr  string
	AdvertiseHost string
}

type Engine struct {
	log   *logger.Logger
	cfg   config.Config
	deck  *state.Deck
	roles *role.Manager

	transferAddr  string
	advertiseHost string

	clock *protocol.Clock
	seqs  *protocol.SeqFilter

	work    chan func()
	stopped chan struct{}

	// Owned by the loop goroutine.
	ctx       context.Context
	tube      tube.Transport
	msgs      <-chan tube.Message
	lost      bool
	ready     bool
	closed    bool
	server    *transfer.Server
	download  *transfer.Downloader
	onReady   []func()
	onLost    []func()
}

func New(opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	if opts.Roles == nil {
		opts.Roles = role.New(opts.Log)
	}
	if opts.TransferAddr == "" {
		opts.TransferAddr = ":0"
	}
	e := &Engine{
		log:           opts.Log.With("component", "session"),
		cfg:           opts.Config,
		deck:          opts.Deck,
		roles:         opts.Roles,
		transferAddr:  opts.TransferAddr,
		advertiseHost: opts.AdvertiseHost,
		clock:         protocol.NewClock(),
		seqs:          protocol.NewSeqFilter(),
		work:          make(chan func()),
		stopped:       make(chan struct{}),
		ctx:           context.Background(),
		ready:         true,
	}
	e.deck.SetPermissions(e.roles)
	e.roles.SetAnnouncer(e)
	e.roles.OnLockChanged(e.lockChanged)
	e.wireDeck(e.deck.Events())
	return e
}

func (e *Engine) Deck() *state.Deck    { return e.deck }
func (e *Engine) Roles() *role.Manager { return e.roles }

// OnDeckReady fires on the loop once a joined student has loaded the bundle.
func (e *Engine) OnDeckReady(fn func()) { e.onReady = append(e.onReady, fn) }

// OnChannelLost fires on the loop when the session channel is lost.
func (e *Engine) OnChannelLost(fn func()) { e.onLost = append(e.onLost, fn) }

// Run processes work and inbound messages until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer close(e.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.work:
			fn()
		case msg, ok := <-e.msgs:
			if !ok {
				e.channelLost()
				continue
			}
			e.handle(msg)
		}
	}
}

// Do runs fn on the engine goroutine and waits for it. Calling Do from the
// engine goroutine deadlocks.
func (e *Engine) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case e.work <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
}

// post queues fn without waiting.
func (e *Engine) post(fn func()) {
	select {
	case e.work <- fn:
	case <-e.stopped:
	}
}

// Share makes this process the instructor on t: the deck is bundled, student
// navigation locked and the bundle served.
func (e *Engine) Share(ctx context.Context, t tube.Transport) error {
	var err error
	if derr := e.Do(ctx, func() { err = e.share(ctx, t) }); derr != nil {
		return derr
	}
	return err
}

func (e *Engine) share(ctx context.Context, t tube.Transport) error {
	if err := e.roles.OnShared(); err != nil {
		return err
	}
	e.attach(t)
	if err := e.deck.WriteBundle(e.cfg.BundlePath()); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := e.roles.Lock(); err != nil {
		return err
	}
	e.server = transfer.NewServer(e.log, t, e.cfg.BundlePath())
	e.server.SetRefresh(e.refreshBundle)
	if err := e.server.Start(ctx, e.transferAddr, e.advertiseHost); err != nil {
		return fmt.Errorf("serve bundle: %w", err)
	}
	e.log.Info("session shared", "participant", t.LocalID(), "slides", e.deck.SlideCount())
	return nil
}

// refreshBundle repacks the bundle on the engine goroutine. It runs on the
// transfer server's request goroutines.
func (e *Engine) refreshBundle(ctx context.Context) error {
	var err error
	if derr := e.Do(ctx, func() { err = e.deck.WriteBundle(e.cfg.BundlePath()) }); derr != nil {
		return derr
	}
	return err
}

// Join makes this process a student on t and starts fetching the bundle.
func (e *Engine) Join(ctx context.Context, t tube.Transport) error {
	var err error
	if derr := e.Do(ctx, func() { err = e.join(t) }); derr != nil {
		return derr
	}
	return err
}

func (e *Engine) join(t tube.Transport) error {
	if err := e.roles.OnJoined(); err != nil {
		return err
	}
	e.attach(t)
	e.ready = false
	e.deck.SetAuthor(e.cfg.Nick)
	e.download = transfer.NewDownloader(e.log, t, e.cfg.BundlePath(), e.cfg.RetryDelay, func(path string) {
		e.post(func() { e.deckDownloaded(path) })
	})
	ctx := e.ctx
	go func() {
		if err := e.download.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Warn("bundle download stopped", "error", err)
		}
	}()
	e.log.Info("session joined", "participant", t.LocalID(), "initiator", t.Initiator())
	return nil
}

func (e *Engine) attach(t tube.Transport) {
	e.tube = t
	e.msgs = t.Messages()
	e.lost = false
}

func (e *Engine) deckDownloaded(path string) {
	e.deck.Load(path)
	e.ready = true
	for _, fn := range e.onReady {
		fn()
	}
	e.send(protocol.TopicDeckDownloadComplete, protocol.DeckDownloadComplete{})
}

// TransferState reports the student's bundle download progress. Call it on
// the engine goroutine.
func (e *Engine) TransferState() transfer.State {
	if e.download == nil {
		return transfer.Idle
	}
	return e.download.State()
}

// Active reports whether shared operations still reach the session.
func (e *Engine) Active() bool { return e.tube != nil && !e.lost }

func (e *Engine) channelLost() {
	e.log.Error("session channel lost; continuing offline")
	e.lost = true
	e.msgs = nil
	for _, fn := range e.onLost {
		fn()
	}
}

// Quit unlocks students, saves the deck and its metadata, and leaves the
// session. It must run on the engine goroutine, or after Run has returned;
// use QuitAndWait elsewhere. Later calls do nothing.
func (e *Engine) Quit() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var errs []error
	if e.roles.Role() == role.Instructor && e.roles.Locked() {
		if err := e.roles.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.deck.Save(); err != nil {
		errs = append(errs, fmt.Errorf("save deck: %w", err))
	}
	if err := state.WriteMetadata(e.cfg.MetadataPath(), e.deck.Metadata()); err != nil {
		errs = append(errs, fmt.Errorf("save metadata: %w", err))
	}
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := e.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if e.tube != nil {
		if err := e.tube.Close(); err != nil && !errors.Is(err, tube.ErrClosed) {
			errs = append(errs, err)
		}
		e.lost = true
		e.msgs = nil
	}
	e.log.Info("session closed")
	return errors.Join(errs...)
}

// QuitAndWait runs Quit on the engine goroutine.
func (e *Engine) QuitAndWait(ctx context.Context) error {
	var err error
	if derr := e.Do(ctx, func() { err = e.Quit() }); derr != nil {
		return derr
	}
	return err
}

func (e *Engine) send(topic protocol.Topic, body any) {
	if !e.Active() {
		return
	}
	payload, err := protocol.Encode(e.clock, body)
	if err != nil {
		e.log.Error("encode failed", "topic", topic, "error", err)
		return
	}
	if err := e.tube.Send(e.ctx, string(topic), payload); err != nil {
		e.log.Warn("send failed", "topic", topic, "error", err)
	}
}

func (e *Engine) sendTo(to tube.ParticipantID, topic protocol.Topic, body any) {
	if !e.Active() {
		return
	}
	payload, err := protocol.Encode(e.clock, body)
	if err != nil {
		e.log.Error("encode failed", "topic", topic, "error", err)
		return
	}
	if err := e.tube.SendTo(e.ctx, to, string(topic), payload); err != nil {
		e.log.Warn("send failed", "topic", topic, "to", to, "error", err)
	}
}
