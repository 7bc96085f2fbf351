package forward

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/memohai/tglistener/internal/broker"
	"github.com/memohai/tglistener/internal/media"
	"github.com/memohai/tglistener/internal/platform"
)

const (
	// Topic is the event pattern the sender service consumes.
	Topic = "tg.send"
	// MessageTypeGroup addresses the configured group chat.
	MessageTypeGroup = "GROUP"

	DefaultPublishTimeout = 10 * time.Second
	DefaultMaxInFlight    = 256
	messageIDPrefix       = "tg-listener-"
)

// Config targets the group chat the sender service posts into.
type Config struct {
	BotToken string
	ChatID   int64
	Timeout  time.Duration
	// MaxInFlight caps concurrent publishes. Emit waits up to Timeout for a
	// slot and then drops the message.
	MaxInFlight int64
}

// Envelope is one observed outgoing message ready to forward.
type Envelope struct {
	APIID  int64
	From   platform.Entity
	To     platform.Entity
	Text   string
	Media  *media.Uploaded
	SentAt time.Time
}

// Payload is the sender service's send request.
type Payload struct {
	BotToken    string            `json:"botToken"`
	ChatID      int64             `json:"chatId"`
	Type        string            `json:"type"`
	ContentType media.ContentType `json:"contentType"`
	FileURL     string            `json:"fileUrl,omitempty"`
	Text        string            `json:"text"`
}

type eventData struct {
	Payload Payload           `json:"payload"`
	Headers map[string]string `json:"headers"`
}

// Forwarder publishes envelopes without blocking the caller.
type Forwarder struct {
	publisher broker.Publisher
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
	inFlight  *semaphore.Weighted
	wg        sync.WaitGroup
}

// NewForwarder creates a forwarder over publisher.
func NewForwarder(log *slog.Logger, publisher broker.Publisher, cfg Config) *Forwarder {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPublishTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	return &Forwarder{
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		inFlight:  semaphore.NewWeighted(cfg.MaxInFlight),
		logger:    log.With(slog.String("component", "forwarder")),
	}
}

// Emit publishes env in the background. Failures are logged and not retried.
// Emit blocks only while MaxInFlight publishes are pending.
func (f *Forwarder) Emit(env Envelope) {
	msg := f.build(env)
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.Timeout)
	if err := f.inFlight.Acquire(ctx, 1); err != nil {
		cancel()
		f.logger.Warn("forward dropped: too many pending publishes",
			slog.Int64("api_id", env.APIID),
			slog.String("message_id", msg.ID),
		)
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.inFlight.Release(1)
		defer cancel()
		if err := f.publisher.Publish(ctx, msg); err != nil {
			f.logger.Error("forward publish failed",
				slog.Int64("api_id", env.APIID),
				slog.String("message_id", msg.ID),
				slog.Any("error", err),
			)
			return
		}
		f.logger.Debug("message forwarded", slog.Int64("api_id", env.APIID), slog.String("message_id", msg.ID))
	}()
}

// Wait blocks until in-flight publishes finish or ctx is done.
func (f *Forwarder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Forwarder) build(env Envelope) broker.Message {
	id := fmt.Sprintf("%s%d-%d", messageIDPrefix, env.APIID, f.now().UnixMilli())
	headers := map[string]string{
		"x-original-routing-key": Topic,
		"message-id":             id,
	}
	payload := Payload{
		BotToken:    f.cfg.BotToken,
		ChatID:      f.cfg.ChatID,
		Type:        MessageTypeGroup,
		ContentType: media.ContentTypeText,
		Text:        FormatText(env),
	}
	if env.Media != nil {
		payload.ContentType = env.Media.ContentType
		payload.FileURL = env.Media.FileURL
	}
	return broker.Message{
		Pattern: Topic,
		Data:    eventData{Payload: payload, Headers: headers},
		Headers: headers,
		ID:      id,
	}
}
