package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderLine is the item snapshot carried on order events.
type OrderLine struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	ProductName string     `json:"product_name"`
	UnitPrice   string     `json:"unit_price"`
	Quantity    int        `json:"quantity"`
}

// OrderCreatedEvent is emitted once the checkout transaction commits.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID   `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	TransactionID string      `json:"transaction_id"`
	UserID        *uuid.UUID  `json:"user_id,omitempty"`
	Email         string      `json:"email"`
	FirstName     string      `json:"first_name"`
	LastName      string      `json:"last_name"`
	TotalPaid     string      `json:"total_paid"`
	Currency      string      `json:"currency"`
	Items         []OrderLine `json:"items"`
}

// OrderStatusChangedEvent is emitted only when the stored status differs
// from the new one.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	Email          string            `json:"email"`
	FirstName      string            `json:"first_name"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	Paid           bool              `json:"paid"`
	TotalPaid      string            `json:"total_paid"`
	Items          []OrderLine       `json:"items,omitempty"`
	ChangedAt      time.Time         `json:"changed_at"`
}

type UserRegisteredEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

type UserPasswordChangedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ChangedAt time.Time `json:"changed_at"`
}

// PasswordResetRequestedEvent carries the one-time link; the token in
// ResetURL is the only copy outside redis.
type PasswordResetRequestedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type NewsletterSubscribedEvent struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	Email        string    `json:"email"`
}
