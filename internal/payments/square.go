package payments

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

type squarePayments interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// SquareGateway implements Gateway on top of the Square Payments API.
type SquareGateway struct {
	client squarePayments
}

// NewSquareGateway adapts a *square.Client.
func NewSquareGateway(client squarePayments) (*SquareGateway, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square client required")
	}
	return &SquareGateway{client: client}, nil
}

func (g *SquareGateway) InitializeTransaction(ctx context.Context, req InitRequest) (*InitResult, error) {
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}

	payment, err := g.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    square.ToMinorUnits(req.Amount),
		Currency:       req.Currency,
		SourceID:       req.SourceID,
		IdempotencyKey: square.IdempotencyKeyFor(req.TransactionID),
		Note:           req.Description,
		ReferenceID:    req.TransactionID,
		BuyerEmail:     req.Customer.Email,
		BuyerPhone:     req.Customer.Phone,
		GivenName:      req.Customer.FirstName,
		FamilyName:     req.Customer.LastName,
	})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodePayment, "square returned no payment")
	}

	status := deref(payment.GetStatus())
	return &InitResult{
		PaymentID:   deref(payment.GetID()),
		Outcome:     OutcomeForSquareStatus(status),
		RawStatus:   status,
		RedirectURL: req.ReturnURL,
	}, nil
}

func (g *SquareGateway) GetTransaction(ctx context.Context, paymentID string) (*TransactionStatus, error) {
	payment, err := g.client.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	status := deref(payment.GetStatus())
	return &TransactionStatus{
		TransactionID: deref(payment.GetReferenceID()),
		PaymentID:     deref(payment.GetID()),
		Outcome:       OutcomeForSquareStatus(status),
		RawStatus:     status,
	}, nil
}

// OutcomeForSquareStatus maps Square payment statuses onto the storefront outcome.
func OutcomeForSquareStatus(status string) enums.PaymentOutcome {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case square.PaymentStatusCompleted, square.PaymentStatusApproved:
		return enums.PaymentOutcomeAccepted
	case square.PaymentStatusFailed, square.PaymentStatusCanceled:
		return enums.PaymentOutcomeRejected
	default:
		return enums.PaymentOutcomePending
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
