package analytics

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const analyticsConsumerName = "analytics"

type salesWriter interface {
	WriteSales(ctx context.Context, rows []SalesRow) error
}

type onceGuard interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer records paid orders as sales rows.
type Consumer struct {
	subscription outbox.Subscriber
	writer       salesWriter
	manager      onceGuard
	logg         *logger.Logger
}

func NewConsumer(subscription outbox.Subscriber, writer salesWriter, manager onceGuard, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if writer == nil {
		return nil, errors.New("sales writer is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{subscription: subscription, writer: writer, manager: manager, logg: logg}, nil
}

// Run starts consuming analytics messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, c.Handle)
}

// Handle acks everything except failed writes and idempotency outages.
func (c *Consumer) Handle(ctx context.Context, msg outbox.Message) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": msg.EventType(),
	})
	if enums.OutboxEventType(msg.EventType()) != enums.EventOrderStatusChanged {
		return true
	}

	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Warn(logCtx, "invalid analytics envelope")
		return true
	}
	var evt payloads.OrderStatusChangedEvent
	if err := json.Unmarshal(envelope.Data, &evt); err != nil {
		c.logg.Warn(logCtx, "invalid order status payload")
		return true
	}
	if !isSale(evt) {
		return true
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id": eventID.String(),
		"order_id": evt.OrderID.String(),
	})

	skipped, err := c.manager.Once(logCtx, analyticsConsumerName, eventID, func(ctx context.Context) error {
		return c.writer.WriteSales(ctx, SalesRows(eventID, evt))
	})
	switch {
	case err != nil:
		c.logg.Error(logCtx, "analytics.sales_insert_failed", err)
		return false
	case skipped:
		c.logg.Info(logCtx, "analytics.duplicate_event")
	default:
		c.logg.Info(logCtx, "analytics.sales_recorded")
	}
	return true
}

// isSale is true when payment moved the order into processing.
func isSale(evt payloads.OrderStatusChangedEvent) bool {
	return evt.Status == enums.OrderStatusProcessing && evt.Paid && evt.PreviousStatus == enums.OrderStatusPending
}
