package broker

import (
	"context"
	"errors"
)

// ErrClosed indicates a publish on a closed publisher.
var ErrClosed = errors.New("broker publisher closed")

// Message is one event for a pattern-routed consumer.
type Message struct {
	// Pattern is the consumer-side event pattern, e.g. "tg.send".
	Pattern string
	Data    any
	// Headers are sent as transport headers.
	Headers map[string]string
	ID      string
}

// Publisher delivers messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
