package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Customer is the payer contact sent to the gateway.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// InitRequest opens a payment for an order's transaction id.
type InitRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Description   string
	Customer      Customer
	SourceID      string
	ReturnURL     string
	NotifyURL     string
}

// InitResult is what the storefront needs to continue the payment.
type InitResult struct {
	PaymentID   string
	Outcome     enums.PaymentOutcome
	RawStatus   string
	RedirectURL string
}

// TransactionStatus is the gateway's authoritative view of a payment.
type TransactionStatus struct {
	TransactionID string
	PaymentID     string
	Outcome       enums.PaymentOutcome
	RawStatus     string
}

// Gateway is the outbound payment provider.
type Gateway interface {
	InitializeTransaction(ctx context.Context, req InitRequest) (*InitResult, error)
	// GetTransaction looks a payment up by the provider id recorded at init.
	GetTransaction(ctx context.Context, paymentID string) (*TransactionStatus, error)
}
