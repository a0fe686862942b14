package squarewebhook

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	eventPaymentCreated = "payment.created"
	eventPaymentUpdated = "payment.updated"
)

type transactionConfirmer interface {
	ConfirmTransaction(ctx context.Context, transactionID string) (*payments.Confirmation, error)
}

// Event is the subset of a Square notification the storefront reads.
type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *Payment `json:"payment"`
}

type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

// ID falls back to the object id for events without an event_id.
func (e *Event) ID() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Data.ID)
}

type Service struct {
	payments transactionConfirmer
}

func NewService(confirmer transactionConfirmer) (*Service, error) {
	if confirmer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	return &Service{payments: confirmer}, nil
}

// HandleEvent settles the order referenced by a payment notification. The
// notification body is never trusted for the outcome; ConfirmTransaction asks
// the gateway. Unrelated event types return nil, nil.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (*payments.Confirmation, error) {
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	switch strings.ToLower(strings.TrimSpace(event.Type)) {
	case eventPaymentCreated, eventPaymentUpdated:
	default:
		return nil, nil
	}

	payment := event.Data.Object.Payment
	if payment == nil || strings.TrimSpace(payment.ReferenceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference missing")
	}
	return s.payments.ConfirmTransaction(ctx, strings.TrimSpace(payment.ReferenceID))
}
