package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const emailNotificationConsumer = "email-notifications"

type idempotencyGuard interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer turns domain events into transactional emails.
type Consumer struct {
	subscription outbox.Subscriber
	idempotency  idempotencyGuard
	sender       mailer.Sender
	logg         *logger.Logger
}

// NewConsumer builds the email notification consumer.
func NewConsumer(subscription outbox.Subscriber, guard idempotencyGuard, sender mailer.Sender, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		idempotency:  guard,
		sender:       sender,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, c.Handle)
}

// Handle processes one message and reports whether it should be acked.
// Undecodable messages and failed sends are acked; only an unavailable
// idempotency store asks for redelivery.
func (c *Consumer) Handle(ctx context.Context, msg outbox.Message) bool {
	eventType := enums.OutboxEventType(msg.EventType())
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !handles(eventType) {
		c.logg.Debug(logCtx, "skipping event without email")
		return true
	}

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	email, err := render(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return true
	}
	if email.ToEmail == "" {
		c.logg.Warn(logCtx, "event has no recipient")
		return true
	}

	skipped, err := c.idempotency.Once(ctx, emailNotificationConsumer, eventID, func(ctx context.Context) error {
		if sendErr := c.sender.Send(ctx, email); sendErr != nil {
			c.logg.Error(logCtx, "email send failed", sendErr)
			return nil
		}
		c.logg.Info(logCtx, "email sent")
		return nil
	})
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if skipped {
		c.logg.Info(logCtx, "event already processed")
	}
	return true
}

func handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderCreated,
		enums.EventOrderStatusChanged,
		enums.EventUserRegistered,
		enums.EventUserPasswordChanged,
		enums.EventUserPasswordReset,
		enums.EventNewsletterSubscribed:
		return true
	}
	return false
}

func render(eventType enums.OutboxEventType, data json.RawMessage) (mailer.Message, error) {
	switch eventType {
	case enums.EventOrderCreated:
		var evt payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return mailer.Message{}, err
		}
		return orderCreatedEmail(evt), nil
	case enums.EventOrderStatusChanged:
		var evt payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return mailer.Message{}, err
		}
		return orderStatusEmail(evt), nil
	case enums.EventUserRegistered:
		var evt payloads.UserRegisteredEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return mailer.Message{}, err
		}
		return welcomeEmail(evt), nil
	case enums.EventUserPasswordChanged:
		var evt payloads.UserPasswordChangedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return mailer.Message{}, err
		}
		return passwordChangedEmail(evt), nil
	case enums.EventUserPasswordReset:
		var evt payloads.PasswordResetRequestedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return mailer.Message{}, err
		}
		return passwordResetEmail(evt), nil
	case enums.EventNewsletterSubscribed:
		var evt payloads.NewsletterSubscribedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return mailer.Message{}, err
		}
		return newsletterEmail(evt), nil
	}
	return mailer.Message{}, fmt.Errorf("unsupported event type %s", eventType)
}
