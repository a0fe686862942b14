package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Publisher adapts Pub/Sub topics to outbox.Publisher. Topic handles are
// cached and stopped on Close.
type Publisher struct {
	client *Client
	mu     sync.Mutex
	topics map[string]*pubsub.Publisher
}

func (p *Publisher) topic(name string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handle, ok := p.topics[name]; ok {
		return handle, nil
	}
	if p.client == nil || p.client.gcp == nil {
		return nil, errNotInitialized
	}
	full := qualify(p.client.project, "topics", name)
	if full == "" {
		return nil, fmt.Errorf("topic %q not configured", name)
	}
	handle := p.client.gcp.Publisher(full)
	// ordered delivery per aggregate, matching the kafka message key
	handle.EnableMessageOrdering = true
	p.topics[name] = handle
	return handle, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, msg outbox.Message) error {
	handle, err := p.topic(topic)
	if err != nil {
		return err
	}
	result := handle.Publish(ctx, &pubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	if _, err := result.Get(ctx); err != nil {
		if msg.Key != "" {
			// a failed ordered publish pauses the key until resumed
			handle.ResumePublish(msg.Key)
		}
		if status.Code(err) == codes.InvalidArgument {
			return fmt.Errorf("%w: %v", outbox.ErrRejected, err)
		}
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, handle := range p.topics {
		handle.Stop()
		delete(p.topics, name)
	}
	return nil
}

// Subscriber adapts a Pub/Sub subscription to outbox.Subscriber.
type Subscriber struct {
	sub *pubsub.Subscriber
}

func (s *Subscriber) Receive(ctx context.Context, handle outbox.Handler) error {
	if s == nil || s.sub == nil {
		return errors.New("pubsub subscriber not configured")
	}
	return s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		ok := handle(ctx, outbox.Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
		})
		if !ok {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
