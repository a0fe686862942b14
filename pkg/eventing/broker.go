package eventing

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/kafka"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

// Broker bundles the publisher and subscribers of whichever transport
// STOREFRONT_EVENTING_BROKER selects.
type Broker struct {
	Name        string
	DomainTopic string

	ping          func(context.Context) error
	close         func() error
	publisher     func() outbox.Publisher
	notifications func() outbox.Subscriber
	analytics     func() outbox.Subscriber
}

// Connect dials the configured broker.
func Connect(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Broker, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Eventing.UsesKafka() {
		client, err := kafka.NewClient(ctx, cfg.Kafka, logg)
		if err != nil {
			return nil, err
		}
		return &Broker{
			Name:          config.BrokerKafka,
			DomainTopic:   cfg.Kafka.DomainTopic,
			ping:          client.Ping,
			close:         func() error { return nil },
			publisher:     func() outbox.Publisher { return client.Publisher() },
			notifications: func() outbox.Subscriber { return client.NotificationSubscriber() },
			analytics:     func() outbox.Subscriber { return client.AnalyticsSubscriber() },
		}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, err
	}
	return &Broker{
		Name:          config.BrokerPubSub,
		DomainTopic:   cfg.PubSub.DomainTopic,
		ping:          client.Ping,
		close:         client.Close,
		publisher:     func() outbox.Publisher { return client.Publisher() },
		notifications: func() outbox.Subscriber { return subscriberOrNil(client.NotificationSubscriber()) },
		analytics:     func() outbox.Subscriber { return subscriberOrNil(client.AnalyticsSubscriber()) },
	}, nil
}

func (b *Broker) Ping(ctx context.Context) error {
	if b == nil || b.ping == nil {
		return errors.New("broker not initialized")
	}
	return b.ping(ctx)
}

func (b *Broker) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

func (b *Broker) Publisher() outbox.Publisher {
	return b.publisher()
}

func (b *Broker) NotificationSubscriber() outbox.Subscriber {
	return b.notifications()
}

func (b *Broker) AnalyticsSubscriber() outbox.Subscriber {
	return b.analytics()
}

// subscriberOrNil keeps a nil *pubsub.Subscriber from becoming a non-nil interface.
func subscriberOrNil(sub *pubsub.Subscriber) outbox.Subscriber {
	if sub == nil {
		return nil
	}
	return sub
}
