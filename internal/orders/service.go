package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// DefaultPageSize is the order history page size.
const DefaultPageSize = 10

// Service defines order reads for owners plus the status state machine.
type Service interface {
	History(ctx context.Context, owner cart.Owner, filter HistoryFilter) (*HistoryPage, error)
	Detail(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*OrderDetail, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderSummary, error)
	ApplyPaymentOutcome(ctx context.Context, transactionID string, outcome enums.PaymentOutcome) (*PaymentResult, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	FindForOwner(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*models.Order, error)
	PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error)
}

// ServiceParams wires the orders service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxEmitter
	Logger   *logger.Logger
	TaxRate  decimal.Decimal
	PageSize int
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxEmitter
	logg     *logger.Logger
	taxRate  decimal.Decimal
	pageSize int
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		taxRate:  params.TaxRate,
		pageSize: pageSize,
		now:      now,
	}, nil
}

func (s *service) History(ctx context.Context, owner cart.Owner, filter HistoryFilter) (*HistoryPage, error) {
	owner, err := owner.Normalize()
	if err != nil {
		return nil, err
	}
	listFilter := ListFilter{}
	if filter.Status != nil {
		if !filter.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
		}
		listFilter.Status = filter.Status
	}
	if filter.Window != nil {
		if !filter.Window.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order window")
		}
		since := filter.Window.Since(s.now().UTC())
		listFilter.Since = &since
	}

	params := pagination.Params{Page: filter.Page, PageSize: s.pageSize}.Normalize(s.pageSize)
	rows, total, err := s.repo.List(ctx, owner, listFilter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	summaries := make([]OrderSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, newSummary(row))
	}
	page := pagination.NewPage(summaries, params, total)
	return &page, nil
}

// Detail returns the order only when it belongs to owner.
func (s *service) Detail(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.FindForOwner(ctx, owner, orderID)
	if err != nil {
		return nil, err
	}
	return newDetail(order, s.taxRate), nil
}

func (s *service) FindForOwner(ctx context.Context, owner cart.Owner, orderID uuid.UUID) (*models.Order, error) {
	owner, err := owner.Normalize()
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindForOwner(ctx, orderID, owner)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	return order, nil
}

func (s *service) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	order, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	return order, nil
}

// UpdateStatus applies an admin status change. Setting the current status is
// a no-op and emits nothing.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderSummary, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var summary OrderSummary
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		previous := current.Status
		if previous == input.Status {
			order, err := repo.FindByID(ctx, current.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			summary = newSummary(*order)
			return nil
		}
		if !previous.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move from "+previous.String()+" to "+input.Status.String())
		}
		if err := repo.UpdateStatus(ctx, current.ID, input.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order, err := repo.FindByID(ctx, current.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		summary = newSummary(*order)
		return s.emitStatusChanged(ctx, tx, order, previous, actorFor(input))
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ApplyPaymentOutcome settles a pending order from the gateway's verdict.
// Orders that already left pending are returned unchanged.
func (s *service) ApplyPaymentOutcome(ctx context.Context, transactionID string, outcome enums.PaymentOutcome) (*PaymentResult, error) {
	if !outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment outcome")
	}
	order, err := s.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	result := &PaymentResult{OrderID: order.ID, OrderNumber: order.OrderNumber, Status: order.Status, Paid: order.Paid}
	if !outcome.IsFinal() || order.Status != enums.OrderStatusPending {
		return result, nil
	}

	target, paid := enums.OrderStatusCanceled, false
	if outcome == enums.PaymentOutcomeAccepted {
		target, paid = enums.OrderStatusProcessing, true
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		changed, err := repo.SettlePending(ctx, transactionID, target, paid)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle order payment")
		}
		if !changed {
			return nil
		}
		updated, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		result.Status, result.Paid, result.Changed = updated.Status, updated.Paid, true
		return s.emitStatusChanged(ctx, tx, updated, enums.OrderStatusPending, nil)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil && result.Changed {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       order.ID.String(),
			"transaction_id": transactionID,
			"outcome":        outcome,
			"status":         result.Status,
		})
		s.logg.Info(logCtx, "order payment settled")
	}
	return result, nil
}

// PendingPayments lists unpaid orders with a gateway reference older than olderThan.
func (s *service) PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.repo.FindPendingPayments(ctx, s.now().UTC().Add(-olderThan), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payments")
	}
	return rows, nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, previous enums.OrderStatus, actor *outbox.ActorRef) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			Email:          order.Email,
			FirstName:      order.FirstName,
			PreviousStatus: previous,
			Status:         order.Status,
			Paid:           order.Paid,
			TotalPaid:      order.TotalPaid.StringFixed(2),
			Items:          OrderLines(order.Items),
			ChangedAt:      s.now().UTC(),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}
	return nil
}

func actorFor(input UpdateStatusInput) *outbox.ActorRef {
	if input.ActorUserID == uuid.Nil {
		return nil
	}
	id := input.ActorUserID
	return &outbox.ActorRef{UserID: &id, Role: input.ActorRole}
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
