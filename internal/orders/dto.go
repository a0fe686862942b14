package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// HistoryFilter carries the raw order history query.
type HistoryFilter struct {
	Status *enums.OrderStatus
	Window *enums.OrderWindow
	Page   int
}

// OrderSummary is one row of the order history.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	Paid        bool              `json:"paid"`
	TotalPaid   decimal.Decimal   `json:"total_paid"`
	ItemCount   int               `json:"item_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

// HistoryPage is the paginated order history.
type HistoryPage = pagination.Page[OrderSummary]

type Contact struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
}

type ItemDTO struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderDetail is the owner-facing view of a single order.
type OrderDetail struct {
	ID            uuid.UUID         `json:"id"`
	OrderNumber   string            `json:"order_number"`
	Status        enums.OrderStatus `json:"status"`
	Paid          bool              `json:"paid"`
	TransactionID string            `json:"transaction_id"`
	PromoCode     *string           `json:"promo_code,omitempty"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Discount      decimal.Decimal   `json:"discount"`
	Tax           decimal.Decimal   `json:"tax"`
	TotalPaid     decimal.Decimal   `json:"total_paid"`
	Contact       Contact           `json:"contact"`
	Items         []ItemDTO         `json:"items"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// UpdateStatusInput is the admin status change request.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	Status      enums.OrderStatus
	ActorUserID uuid.UUID
	ActorRole   string
}

// PaymentResult reports the order state after a payment outcome was applied.
type PaymentResult struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	Paid        bool              `json:"paid"`
	Changed     bool              `json:"-"`
}

func newSummary(order models.Order) OrderSummary {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderSummary{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Paid:        order.Paid,
		TotalPaid:   order.TotalPaid,
		ItemCount:   count,
		CreatedAt:   order.CreatedAt,
	}
}

func newDetail(order *models.Order, taxRate decimal.Decimal) *OrderDetail {
	subtotal := order.Subtotal().Round(2)
	discount := subtotal.Sub(order.TotalPaid)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	detail := &OrderDetail{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		Paid:          order.Paid,
		TransactionID: order.TransactionID,
		Subtotal:      subtotal,
		Discount:      discount,
		Tax:           subtotal.Mul(taxRate).Round(2),
		TotalPaid:     order.TotalPaid,
		Contact: Contact{
			FirstName:  order.FirstName,
			LastName:   order.LastName,
			Email:      order.Email,
			Phone:      order.Phone,
			Address:    order.Address,
			PostalCode: order.PostalCode,
			City:       order.City,
		},
		Items:     make([]ItemDTO, 0, len(order.Items)),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if order.PromoCode != nil {
		code := order.PromoCode.Code
		detail.PromoCode = &code
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, ItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal(),
		})
	}
	return detail
}

// OrderLines snapshots the items for event payloads.
func OrderLines(items []models.OrderItem) []payloads.OrderLine {
	lines := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, payloads.OrderLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.Price.StringFixed(2),
			Quantity:    item.Quantity,
		})
	}
	return lines
}
