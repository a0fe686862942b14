package enums

import "fmt"

// PaymentOutcome is the gateway verdict on a transaction, normalized across providers.
type PaymentOutcome string

const (
	PaymentOutcomeAccepted PaymentOutcome = "accepted"
	PaymentOutcomeRejected PaymentOutcome = "rejected"
	PaymentOutcomePending  PaymentOutcome = "pending"
)

var validPaymentOutcomes = []PaymentOutcome{
	PaymentOutcomeAccepted,
	PaymentOutcomeRejected,
	PaymentOutcomePending,
}

func (o PaymentOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known PaymentOutcome.
func (o PaymentOutcome) IsValid() bool {
	for _, candidate := range validPaymentOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsFinal is true once the gateway has decided either way.
func (o PaymentOutcome) IsFinal() bool {
	return o == PaymentOutcomeAccepted || o == PaymentOutcomeRejected
}

// ParsePaymentOutcome converts raw input into a PaymentOutcome.
func ParsePaymentOutcome(value string) (PaymentOutcome, error) {
	for _, candidate := range validPaymentOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment outcome %q", value)
}
