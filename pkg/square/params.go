package square

import (
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
)

// Payment statuses reported by Square.
const (
	PaymentStatusApproved  = "APPROVED"
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusCanceled  = "CANCELED"
	PaymentStatusFailed    = "FAILED"
)

// PaymentCreateParams encapsulates the inputs for a Square payment.
type PaymentCreateParams struct {
	AmountCents    int64
	Currency       string
	LocationID     string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
	BuyerEmail     string
	BuyerPhone     string
	GivenName      string
	FamilyName     string
}

func (p PaymentCreateParams) toSquareRequest() *sq.CreatePaymentRequest {
	req := &sq.CreatePaymentRequest{
		IdempotencyKey:    p.IdempotencyKey,
		SourceID:          p.SourceID,
		LocationID:        ptrString(p.LocationID),
		AmountMoney:       moneyPtr(p.AmountCents, p.Currency),
		ReferenceID:       ptrString(p.ReferenceID),
		Note:              ptrString(p.Note),
		BuyerEmailAddress: ptrString(p.BuyerEmail),
		BuyerPhoneNumber:  ptrString(p.BuyerPhone),
	}
	if given, family := strings.TrimSpace(p.GivenName), strings.TrimSpace(p.FamilyName); given != "" || family != "" {
		req.BillingAddress = &sq.Address{
			FirstName: ptrString(given),
			LastName:  ptrString(family),
		}
	}
	return req
}

// ToMinorUnits converts a two-decimal amount into cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// IdempotencyKeyFor keeps Square's 45 character limit.
func IdempotencyKeyFor(reference string) string {
	key := "sf-" + strings.TrimSpace(reference)
	if len(key) > 45 {
		key = key[:45]
	}
	return key
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount <= 0 {
		return nil
	}
	return &sq.Money{
		Amount:   &amount,
		Currency: currencyPtr(currency),
	}
}
