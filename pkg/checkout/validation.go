package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// StockValidationInput describes a requested line against the product's current stock.
type StockValidationInput struct {
	ProductID   uuid.UUID
	ProductName string
	Stock       int
	Quantity    int
}

// StockViolationDetail exposes the data returned to callers when a validation fails.
type StockViolationDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	Available    int       `json:"available"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateStock ensures every requested quantity fits the stock on hand.
// The message names the first offending product so the storefront can show it as-is.
func ValidateStock(items []StockValidationInput) error {
	var violations []StockViolationDetail
	for _, item := range items {
		if item.Quantity <= item.Stock {
			continue
		}
		violations = append(violations, StockViolationDetail{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Available:    item.Stock,
			RequestedQty: item.Quantity,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return OutOfStock(violations[0].ProductName).WithDetails(map[string]any{
		"violations": violations,
	})
}

// OutOfStock builds the error returned when a product cannot cover a purchase.
func OutOfStock(productName string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("not enough stock for %s", productName))
}
