// Package registry maps outbox event types to their topic and payload type,
// and decodes stored rows before they are published.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var (
	// ErrUnroutable marks events with no route or no destination topic.
	ErrUnroutable = errors.New("event is not routable")
	// ErrMalformed marks rows whose envelope or payload cannot be decoded.
	ErrMalformed = errors.New("event is malformed")
)

// Route ties an event type to its aggregate and destination topic.
type Route struct {
	EventType enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
	decode    func(json.RawMessage) (any, error)
}

// Resolved is a row that passed validation and is ready to publish.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type Registry struct {
	routes map[enums.OutboxEventType]Route
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) Route {
	return Route{
		EventType: eventType,
		Aggregate: aggregate,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// New routes every storefront event to domainTopic.
func New(domainTopic string) (*Registry, error) {
	topic := strings.TrimSpace(domainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}
	r := &Registry{routes: map[enums.OutboxEventType]Route{}}
	for _, rt := range []Route{
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder),
		route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
		route[payloads.UserRegisteredEvent](enums.EventUserRegistered, enums.AggregateUser),
		route[payloads.UserPasswordChangedEvent](enums.EventUserPasswordChanged, enums.AggregateUser),
		route[payloads.PasswordResetRequestedEvent](enums.EventUserPasswordReset, enums.AggregateUser),
		route[payloads.NewsletterSubscribedEvent](enums.EventNewsletterSubscribed, enums.AggregateNewsletter),
	} {
		rt.Topic = topic
		r.routes[rt.EventType] = rt
	}
	return r, nil
}

// Resolve checks a row against its route and decodes the typed payload.
// Every error wraps ErrUnroutable or ErrMalformed; neither is retryable.
func (r *Registry) Resolve(event models.OutboxEvent) (*Resolved, error) {
	rt, ok := r.routes[event.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: no route for %s", ErrUnroutable, event.EventType)
	}
	if rt.Topic == "" {
		return nil, fmt.Errorf("%w: no topic for %s", ErrUnroutable, event.EventType)
	}
	if rt.Aggregate != event.AggregateType {
		return nil, fmt.Errorf("%w: %s belongs to %s, row says %s", ErrMalformed, event.EventType, rt.Aggregate, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing aggregate id", ErrMalformed)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("%w: %s has no data", ErrMalformed, event.EventType)
	}
	payload, err := rt.decode(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrMalformed, event.EventType, err)
	}
	return &Resolved{Route: rt, Envelope: envelope, Payload: payload}, nil
}

// Routes lists the registered event types; used by startup logging.
func (r *Registry) Routes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.routes))
	for eventType := range r.routes {
		out = append(out, eventType)
	}
	return out
}
