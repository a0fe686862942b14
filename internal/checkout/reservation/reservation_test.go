package reservation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int) models.Product {
	t.Helper()
	product := models.Product{Name: name, Slug: name + "-" + uuid.NewString()[:6], CurrentPrice: decimal.NewFromInt(10), Stock: stock}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func TestReserveStock(t *testing.T) {
	db := dbtest.Open(t, "reservation")
	ctx := context.Background()
	productA := seedProduct(t, db, "lamp", 5)
	productB := seedProduct(t, db, "chair", 1)

	requests := []StockReservationRequest{
		{ProductID: productA.ID, ProductName: "lamp", Qty: 3},
		{ProductID: productA.ID, ProductName: "lamp", Qty: 4},
		{ProductID: productB.ID, ProductName: "chair", Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := ReserveStock(ctx, tx, requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved || results[0].Reason != "" {
			t.Fatalf("expected first reservation to succeed")
		}
		if results[1].Reserved || results[1].Reason != ReasonInsufficientStock {
			t.Fatalf("expected second reservation to fail with reason")
		}
		if !results[2].Reserved {
			t.Fatalf("expected third reservation to succeed")
		}
		rejected, ok := FirstRejected(results)
		if !ok || rejected.Qty != 4 {
			t.Fatalf("expected the second request to be reported, got %+v", rejected)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var gotA, gotB models.Product
	if err := db.First(&gotA, "id = ?", productA.ID).Error; err != nil {
		t.Fatalf("load product a: %v", err)
	}
	if err := db.First(&gotB, "id = ?", productB.ID).Error; err != nil {
		t.Fatalf("load product b: %v", err)
	}
	if gotA.Stock != 2 {
		t.Fatalf("unexpected stock for a: %d", gotA.Stock)
	}
	if gotB.Stock != 0 {
		t.Fatalf("unexpected stock for b: %d", gotB.Stock)
	}
}

func TestReserveStockInvalidQty(t *testing.T) {
	db := dbtest.Open(t, "reservation_invalid")
	product := seedProduct(t, db, "desk", 3)

	_, err := ReserveStock(context.Background(), db, []StockReservationRequest{{ProductID: product.ID, Qty: 0}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
