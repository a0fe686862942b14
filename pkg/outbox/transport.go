package outbox

import (
	"context"
	"errors"
)

// ErrRejected wraps broker errors that will fail the same way on every retry.
var ErrRejected = errors.New("message rejected by broker")

// Message is the broker-neutral form of a published outbox row.
type Message struct {
	ID         string
	Key        string
	Data       []byte
	Attributes map[string]string
}

// EventType returns the routing attribute set by the publisher.
func (m Message) EventType() string {
	if m.Attributes == nil {
		return ""
	}
	return m.Attributes["event_type"]
}

// Publisher sends one message and blocks until the broker accepted it.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Close() error
}

// Handler returns false to ask the broker for redelivery.
type Handler func(ctx context.Context, msg Message) bool

// Subscriber drives a Handler until ctx is canceled.
type Subscriber interface {
	Receive(ctx context.Context, handle Handler) error
}
