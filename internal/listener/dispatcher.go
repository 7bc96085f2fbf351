package listener

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/memohai/tglistener/internal/dialog"
	"github.com/memohai/tglistener/internal/forward"
	"github.com/memohai/tglistener/internal/media"
	"github.com/memohai/tglistener/internal/platform"
)

const (
	defaultQueueSize = 256
	defaultWorkers   = 4
)

// Resolver maps a short-message recipient id to a user entity.
type Resolver interface {
	Resolve(ctx context.Context, lister dialog.Lister, participantID platform.ID) (*platform.Entity, error)
}

// MediaExtractor turns a message attachment into an uploaded asset, or nil.
type MediaExtractor interface {
	Extract(ctx context.Context, src media.Source, msg platform.Message) *media.Uploaded
}

// Emitter forwards envelopes without blocking.
type Emitter interface {
	Emit(env forward.Envelope)
}

// Pipeline holds the collaborators shared by every session's dispatcher. A
// pipeline without an Emitter discards updates.
type Pipeline struct {
	Resolver Resolver
	Media    MediaExtractor
	Emitter  Emitter
}

type eventKind int

const (
	eventIgnored eventKind = iota
	eventShort
	eventFull
)

// classify keeps outgoing messages only.
func classify(upd platform.Update) eventKind {
	switch u := upd.(type) {
	case *platform.ShortMessage:
		if u != nil && u.Out {
			return eventShort
		}
	case *platform.NewMessage:
		if u != nil && u.Message.Out {
			return eventFull
		}
	}
	return eventIgnored
}

// Dispatcher runs one session's update pipeline on a bounded worker pool.
type Dispatcher struct {
	apiID    int64
	pipeline Pipeline
	workers  int
	queue    chan platform.Update
	quit     chan struct{}
	logger   *slog.Logger

	mu       sync.Mutex
	client   platform.Client
	started  bool
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher for apiID. Updates submitted before
// Start are queued.
func NewDispatcher(log *slog.Logger, apiID int64, pipeline Pipeline, queueSize, workers int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		apiID:    apiID,
		pipeline: pipeline,
		workers:  workers,
		queue:    make(chan platform.Update, queueSize),
		quit:     make(chan struct{}),
		logger:   log.With(slog.String("component", "dispatcher"), slog.Int64("api_id", apiID)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit queues upd for processing. Ignored updates are dropped at once.
// Submit blocks while the queue is full and returns early once the
// dispatcher stops or ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, upd platform.Update) {
	if classify(upd) == eventIgnored {
		return
	}
	select {
	case <-d.quit:
		return
	default:
	}
	select {
	case d.queue <- upd:
	case <-d.quit:
	case <-ctx.Done():
		d.logger.Warn("update dropped", slog.Any("error", ctx.Err()))
	}
}

// Start binds the live client and launches the workers.
func (d *Dispatcher) Start(client platform.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.client = client
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

// Stop refuses new updates and waits for queued ones to drain. When ctx ends
// first, in-flight pipelines are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.quit) })
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case upd := <-d.queue:
			d.process(upd)
		case <-d.quit:
			for {
				select {
				case upd := <-d.queue:
					d.process(upd)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) process(upd platform.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("update pipeline panic", slog.Any("panic", r))
		}
	}()
	ctx := d.ctx
	if ctx.Err() != nil || d.pipeline.Emitter == nil {
		return
	}
	switch u := upd.(type) {
	case *platform.ShortMessage:
		d.handleShort(ctx, u)
	case *platform.NewMessage:
		d.handleFull(ctx, u)
	}
}

func (d *Dispatcher) handleShort(ctx context.Context, u *platform.ShortMessage) {
	log := d.logger.With(slog.Int("message_id", u.ID), slog.String("user_id", u.UserID.String()))
	if d.pipeline.Resolver == nil {
		log.Warn("no recipient resolver configured")
		return
	}
	to, err := d.pipeline.Resolver.Resolve(ctx, d.client, u.UserID)
	if err != nil || to == nil {
		log.Warn("recipient not resolved", slog.Any("error", err))
		return
	}
	d.pipeline.Emitter.Emit(forward.Envelope{
		APIID:  d.apiID,
		From:   d.client.Self(),
		To:     *to,
		Text:   u.Text,
		SentAt: u.Date,
	})
}

func (d *Dispatcher) handleFull(ctx context.Context, u *platform.NewMessage) {
	msg := u.Message
	log := d.logger.With(slog.Int("message_id", msg.ID), slog.String("peer_id", msg.Peer.ID.String()))
	to, err := d.client.ResolvePeer(ctx, msg.Peer)
	if err != nil {
		log.Warn("peer not resolved", slog.Any("error", fmt.Errorf("%s %s: %w", msg.Peer.Kind, msg.Peer.ID, err)))
		return
	}
	var asset *media.Uploaded
	if msg.Media != nil && d.pipeline.Media != nil {
		asset = d.pipeline.Media.Extract(ctx, d.client, msg)
	}
	d.pipeline.Emitter.Emit(forward.Envelope{
		APIID:  d.apiID,
		From:   d.client.Self(),
		To:     to,
		Text:   msg.Text,
		Media:  asset,
		SentAt: msg.Date,
	})
}
