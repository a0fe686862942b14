package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultPendingPaymentMinAge = 30 * time.Minute
	defaultReconcileBatchSize   = 100
)

type pendingPaymentReader interface {
	PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error)
}

type transactionConfirmer interface {
	ConfirmTransaction(ctx context.Context, transactionID string) (*payments.Confirmation, error)
}

type PaymentReconcileJobParams struct {
	Logger    *logger.Logger
	Orders    pendingPaymentReader
	Payments  transactionConfirmer
	MinAge    time.Duration
	BatchSize int
}

// NewPaymentReconcileJob re-queries the gateway for orders whose payment
// callback never arrived.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultPendingPaymentMinAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &paymentReconcileJob{
		logg:     params.Logger,
		orders:   params.Orders,
		payments: params.Payments,
		minAge:   minAge,
		batch:    batch,
	}, nil
}

type paymentReconcileJob struct {
	logg     *logger.Logger
	orders   pendingPaymentReader
	payments transactionConfirmer
	minAge   time.Duration
	batch    int
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

// Run confirms every stale pending order and returns the combined failures.
func (j *paymentReconcileJob) Run(ctx context.Context) error {
	pending, err := j.orders.PendingPayments(ctx, j.minAge, j.batch)
	if err != nil {
		return fmt.Errorf("load pending payments: %w", err)
	}

	var (
		errs      error
		settled   int
		unsettled int
	)
	for _, order := range pending {
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		confirmation, err := j.payments.ConfirmTransaction(orderCtx, order.TransactionID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if confirmation.Outcome.IsFinal() {
			settled++
			continue
		}
		unsettled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(pending),
		"settled":    settled,
		"pending":    unsettled,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "payment reconcile complete")
	return errs
}
