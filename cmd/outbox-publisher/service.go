package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	idleCeiling    = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Broker        pinger
	Publisher     outbox.Publisher
	Repository    outboxRepository
	Registry      resolver
	DLQRepository dlqRepository
	Metrics       *metrics.OutboxMetrics
}

// Service relays committed outbox rows to the broker. Each batch is claimed
// and settled inside one transaction so two publishers never send the same row.
type Service struct {
	logg      *logger.Logger
	db        dbClient
	broker    pinger
	publisher outbox.Publisher
	repo      outboxRepository
	registry  resolver
	dlq       dlqRepository
	metrics   *metrics.OutboxMetrics

	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	required := map[string]bool{
		"config":          params.Config != nil,
		"logger":          params.Logger != nil,
		"database client": params.DB != nil,
		"broker":          params.Broker != nil,
		"publisher":       params.Publisher != nil,
		"repository":      params.Repository != nil,
		"registry":        params.Registry != nil,
		"dlq repository":  params.DLQRepository != nil,
	}
	for name, ok := range required {
		if !ok {
			return nil, fmt.Errorf("%s is required", name)
		}
	}
	cfg := params.Config.Outbox
	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		broker:      params.Broker,
		publisher:   params.Publisher,
		repo:        params.Repository,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		metrics:     params.Metrics,
		batchSize:   orDefault(cfg.BatchSize, 50),
		maxAttempts: orDefault(cfg.MaxAttempts, 10),
		poll:        time.Duration(orDefault(cfg.PollIntervalMS, 500)) * time.Millisecond,
		now:         time.Now,
	}, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx ends. A full batch is followed immediately by the
// next; an empty or failed one waits, failures with doubling delay.
func (s *Service) Run(ctx context.Context) error {
	for name, dep := range map[string]pinger{"database": s.db, "broker": s.broker} {
		if err := dep.Ping(ctx); err != nil {
			return fmt.Errorf("%s unreachable: %w", name, err)
		}
	}

	wait := s.poll
	for {
		busy, err := s.processBatch(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, idleCeiling)
		case busy:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}
		if err := pause(ctx, wait+rand.N(jitterWindow)); err != nil {
			return err
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// processBatch reports whether any rows were claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events) > 0
		for _, event := range events {
			if err := s.settle(ctx, tx, event, s.relay(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// delivery is what happened to one row on its way to the broker.
type delivery struct {
	topic   string
	eventID string
	err     error
	// dead is set when retrying cannot help.
	dead   bool
	reason enums.OutboxDLQErrorReason
}

func (s *Service) relay(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return delivery{err: err, dead: true, reason: deadReason(err)}
	}
	d := delivery{topic: resolved.Route.Topic, eventID: resolved.Envelope.EventID}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	d.err = s.publisher.Publish(publishCtx, d.topic, outbox.Message{
		ID:   d.eventID,
		Key:  event.AggregateID.String(),
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       d.eventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	switch {
	case d.err == nil:
	case errors.Is(d.err, outbox.ErrRejected):
		d.dead, d.reason = true, enums.OutboxDLQReasonNonRetryable
	case event.AttemptCount+1 >= s.maxAttempts:
		d.err = fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, d.err)
		d.dead, d.reason = true, enums.OutboxDLQReasonMaxAttempts
	}
	return d
}

func deadReason(err error) enums.OutboxDLQErrorReason {
	if errors.Is(err, registry.ErrUnroutable) {
		return enums.OutboxDLQReasonUnroutable
	}
	return enums.OutboxDLQReasonNonRetryable
}

// settle records the delivery on the row. Only bookkeeping errors abort
// the batch; a failed publish is just noted for the next pass.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, d delivery) error {
	eventType := string(event.EventType)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    eventType,
		"aggregate_id":  event.AggregateID.String(),
		"topic":         d.topic,
		"attempt_count": event.AttemptCount,
	})

	switch {
	case d.err == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Debug(logCtx, "outbox.published")

	case d.dead:
		message := d.err.Error()
		entry := models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   d.reason,
			ErrorMessage:  &message,
			AttemptCount:  event.AttemptCount,
			FailedAt:      s.now().UTC(),
		}
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("dead letter %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		s.metrics.IncDeadLettered(eventType)
		s.logg.Error(s.logg.WithField(logCtx, "reason", d.reason), "outbox.dead_lettered", d.err)

	default:
		if err := s.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
		s.metrics.IncFailed(eventType)
		s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox.publish_retry")
	}
	return nil
}
