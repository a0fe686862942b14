package reservation

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Reasons reported when a line cannot be reserved.
const (
	ReasonInsufficientStock = "insufficient stock"
)

// StockReservationRequest asks for Qty units of a product.
type StockReservationRequest struct {
	ProductID   uuid.UUID
	ProductName string
	Qty         int
}

// StockReservationResult reports whether the decrement applied.
type StockReservationResult struct {
	ProductID   uuid.UUID
	ProductName string
	Qty         int
	Reserved    bool
	Reason      string
}

// ReserveStock decrements stock for each request inside tx. The update only
// applies while enough stock remains, so two checkouts racing for the last
// unit cannot both succeed.
func ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockReservationRequest) ([]StockReservationResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	results := make([]StockReservationResult, 0, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}

		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock >= ?", req.ProductID, req.Qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", req.Qty))
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
		}

		result := StockReservationResult{ProductID: req.ProductID, ProductName: req.ProductName, Qty: req.Qty, Reserved: res.RowsAffected == 1}
		if !result.Reserved {
			result.Reason = ReasonInsufficientStock
		}
		results = append(results, result)
	}
	return results, nil
}

// FirstRejected returns the first result that could not be reserved.
func FirstRejected(results []StockReservationResult) (StockReservationResult, bool) {
	for _, res := range results {
		if !res.Reserved {
			return res, true
		}
	}
	return StockReservationResult{}, false
}
