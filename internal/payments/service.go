package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type ordersService interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	FindForOwner(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*models.Order, error)
	ApplyPaymentOutcome(ctx context.Context, transactionID string, outcome enums.PaymentOutcome) (*orders.PaymentResult, error)
}

// Confirmation is the order state after asking the gateway about a payment.
type Confirmation struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	TransactionID string               `json:"transaction_id"`
	Outcome       enums.PaymentOutcome `json:"outcome"`
	Status        enums.OrderStatus    `json:"status"`
	Paid          bool                 `json:"paid"`
}

// ReturnStatus drives the storefront's redirect after the payment page.
type ReturnStatus struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	Paid        bool              `json:"paid"`
}

// Service verifies payments with the gateway and settles orders.
type Service interface {
	ConfirmTransaction(ctx context.Context, transactionID string) (*Confirmation, error)
	PaymentReturn(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*ReturnStatus, error)
}

type service struct {
	gateway Gateway
	orders  ordersService
	logg    *logger.Logger
}

func NewService(gateway Gateway, orders ordersService, logg *logger.Logger) (Service, error) {
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	return &service{gateway: gateway, orders: orders, logg: logg}, nil
}

// ConfirmTransaction never trusts the caller's claim about the payment: the
// outcome always comes from a follow-up gateway lookup.
func (s *service) ConfirmTransaction(ctx context.Context, transactionID string) (*Confirmation, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	order, err := s.orders.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	confirmation := &Confirmation{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		TransactionID: transactionID,
		Outcome:       enums.PaymentOutcomePending,
		Status:        order.Status,
		Paid:          order.Paid,
	}
	if order.Status != enums.OrderStatusPending {
		if order.Paid {
			confirmation.Outcome = enums.PaymentOutcomeAccepted
		}
		return confirmation, nil
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		return confirmation, nil
	}

	status, err := s.gateway.GetTransaction(ctx, *order.GatewayPaymentID)
	if err != nil {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"transaction_id": transactionID, "order_id": order.ID.String()})
			s.logg.Error(logCtx, "payment lookup failed", err)
		}
		return nil, err
	}
	if status.TransactionID != "" && status.TransactionID != transactionID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "gateway payment does not match transaction")
	}

	result, err := s.orders.ApplyPaymentOutcome(ctx, transactionID, status.Outcome)
	if err != nil {
		return nil, err
	}
	confirmation.Outcome = status.Outcome
	confirmation.Status = result.Status
	confirmation.Paid = result.Paid
	return confirmation, nil
}

// PaymentReturn reports whether the owner's order is paid, confirming with the
// gateway first when the order is still pending.
func (s *service) PaymentReturn(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*ReturnStatus, error) {
	order, err := s.orders.FindForOwner(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	status := &ReturnStatus{OrderID: order.ID, OrderNumber: order.OrderNumber, Status: order.Status, Paid: order.Paid}
	if order.Status != enums.OrderStatusPending {
		return status, nil
	}

	confirmation, err := s.ConfirmTransaction(ctx, order.TransactionID)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "payment return confirmation failed")
		}
		return status, nil
	}
	status.Status = confirmation.Status
	status.Paid = confirmation.Paid
	return status, nil
}
