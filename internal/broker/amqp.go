package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultQueue                = "tg_sender_queue"
	DefaultMessageTTL           = time.Minute
	DefaultDeadLetterExchange   = "dlx_exchange"
	DefaultDeadLetterRoutingKey = "dlx_routing_key"
	DefaultDialTimeout          = 10 * time.Second
)

// AMQPConfig describes the target queue.
type AMQPConfig struct {
	URL                  string
	Queue                string
	MessageTTL           time.Duration
	DeadLetterExchange   string
	DeadLetterRoutingKey string
}

func (c AMQPConfig) withDefaults() AMQPConfig {
	if strings.TrimSpace(c.Queue) == "" {
		c.Queue = DefaultQueue
	}
	if c.MessageTTL <= 0 {
		c.MessageTTL = DefaultMessageTTL
	}
	if c.DeadLetterExchange == "" {
		c.DeadLetterExchange = DefaultDeadLetterExchange
	}
	if c.DeadLetterRoutingKey == "" {
		c.DeadLetterRoutingKey = DefaultDeadLetterRoutingKey
	}
	return c
}

func (c AMQPConfig) queueArgs() amqp.Table {
	return amqp.Table{
		"x-message-ttl":             c.MessageTTL.Milliseconds(),
		"x-dead-letter-exchange":    c.DeadLetterExchange,
		"x-dead-letter-routing-key": c.DeadLetterRoutingKey,
	}
}

type dialFunc func(ctx context.Context, url string) (*amqp.Connection, error)

// dialContext dials with a socket timeout taken from the ctx deadline.
func dialContext(ctx context.Context, url string) (*amqp.Connection, error) {
	timeout := DefaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(timeout)})
}

// AMQPPublisher publishes to a durable RabbitMQ queue through the default
// exchange. The connection is opened on first use and reopened after it drops.
type AMQPPublisher struct {
	cfg    AMQPConfig
	dial   dialFunc
	logger *slog.Logger

	// mu is a one-slot semaphore so waiting for the connection honours ctx.
	mu     *semaphore.Weighted
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewAMQPPublisher creates a publisher; it does not connect yet.
func NewAMQPPublisher(log *slog.Logger, cfg AMQPConfig) *AMQPPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &AMQPPublisher{
		cfg:    cfg.withDefaults(),
		dial:   dialContext,
		mu:     semaphore.NewWeighted(1),
		logger: log.With(slog.String("component", "amqp_publisher")),
	}
}

// Publish encodes msg and sends it to the configured queue.
func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	pub, err := encode(msg)
	if err != nil {
		return err
	}
	if err := p.mu.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.mu.Release(1)

	ch, err := p.channelLocked(ctx)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, pub); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", msg.Pattern, err)
	}
	return nil
}

// Ping opens the connection if needed and reports whether it is usable.
func (p *AMQPPublisher) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.mu.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.mu.Release(1)
	_, err := p.channelLocked(ctx)
	return err
}

// Close closes the channel and connection. Later publishes fail with ErrClosed.
func (p *AMQPPublisher) Close() error {
	return p.CloseContext(context.Background())
}

// CloseContext is Close that gives up waiting for an in-flight publish when
// ctx is done.
func (p *AMQPPublisher) CloseContext(ctx context.Context) error {
	if err := p.mu.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.mu.Release(1)
	p.closed = true
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	p.ch, p.conn = nil, nil
	return err
}

func (p *AMQPPublisher) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	conn, err := p.dialLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, p.cfg.queueArgs()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", p.cfg.Queue, err)
	}
	p.conn, p.ch = conn, ch
	p.logger.Info("broker connected", slog.String("queue", p.cfg.Queue))
	return ch, nil
}

// dialLocked returns as soon as ctx is done; a connection that arrives late
// is closed.
func (p *AMQPPublisher) dialLocked(ctx context.Context) (*amqp.Connection, error) {
	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := p.dial(ctx, p.cfg.URL)
		done <- result{conn: conn, err: err}
	}()
	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (p *AMQPPublisher) resetLocked() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// envelope is the body shape pattern-based consumers decode.
type envelope struct {
	Pattern string `json:"pattern"`
	Data    any    `json:"data"`
}

func encode(msg Message) (amqp.Publishing, error) {
	if strings.TrimSpace(msg.Pattern) == "" {
		return amqp.Publishing{}, fmt.Errorf("message pattern is required")
	}
	body, err := json.Marshal(envelope{Pattern: msg.Pattern, Data: msg.Data})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode %s: %w", msg.Pattern, err)
	}
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	}, nil
}
