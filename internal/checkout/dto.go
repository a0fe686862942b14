package checkout

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Contact is the shipping and billing contact captured at checkout.
type Contact struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    string
	PostalCode string
	City       string
}

// Input carries the contact and the tokenized payment source.
type Input struct {
	Contact  Contact
	SourceID string
}

// Result is returned to the storefront once the gateway accepted the request.
type Result struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	TransactionID string               `json:"transaction_id"`
	PaymentStatus enums.PaymentOutcome `json:"payment_status"`
	RedirectURL   string               `json:"redirect_url,omitempty"`
}

func (c Contact) normalized() Contact {
	return Contact{
		FirstName:  strings.TrimSpace(c.FirstName),
		LastName:   strings.TrimSpace(c.LastName),
		Email:      strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:      strings.TrimSpace(c.Phone),
		Address:    strings.TrimSpace(c.Address),
		PostalCode: strings.TrimSpace(c.PostalCode),
		City:       strings.TrimSpace(c.City),
	}
}

func (in Input) validate() (Input, error) {
	contact := in.Contact.normalized()
	missing := []string{}
	for _, field := range []struct{ name, value string }{
		{"first_name", contact.FirstName},
		{"last_name", contact.LastName},
		{"email", contact.Email},
		{"address", contact.Address},
		{"postal_code", contact.PostalCode},
		{"city", contact.City},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "contact details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	sourceID := strings.TrimSpace(in.SourceID)
	if sourceID == "" {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "payment source required")
	}
	return Input{Contact: contact, SourceID: sourceID}, nil
}

func (c Contact) customer() payments.Customer {
	return payments.Customer{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone}
}
