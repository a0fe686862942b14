package checkout

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestValidateStock_NoViolations(t *testing.T) {
	items := []StockValidationInput{
		{ProductID: uuid.New(), ProductName: "Exact", Stock: 2, Quantity: 2},
		{ProductID: uuid.New(), ProductName: "Plenty", Stock: 10, Quantity: 1},
	}
	if err := ValidateStock(items); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStock_ReportsFirstProduct(t *testing.T) {
	short := uuid.New()
	items := []StockValidationInput{
		{ProductID: uuid.New(), ProductName: "Fine", Stock: 5, Quantity: 1},
		{ProductID: short, ProductName: "Blue Lamp", Stock: 1, Quantity: 3},
		{ProductID: uuid.New(), ProductName: "Gone", Stock: 0, Quantity: 1},
	}

	err := ValidateStock(items)
	if err == nil {
		t.Fatal("expected stock violation")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected insufficient stock code, got %v", err)
	}
	if !strings.Contains(typed.Error(), "Blue Lamp") {
		t.Fatalf("expected product name in message, got %q", typed.Error())
	}

	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	violations, ok := details["violations"].([]StockViolationDetail)
	if !ok || len(violations) != 2 {
		t.Fatalf("expected two violations, got %#v", details["violations"])
	}
	if violations[0].ProductID != short || violations[0].Available != 1 {
		t.Fatalf("unexpected first violation %+v", violations[0])
	}
}
