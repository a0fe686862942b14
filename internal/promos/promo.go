package promos

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// IsValidAt reports whether the promo can be applied at now (window bounds inclusive).
func IsValidAt(promo *models.PromoCode, now time.Time) bool {
	if promo == nil || !promo.Active {
		return false
	}
	return !now.Before(promo.ValidFrom) && !now.After(promo.ValidTo)
}

// DiscountFor computes subtotal × pct / 100 rounded to cents.
func DiscountFor(promo *models.PromoCode, subtotal decimal.Decimal) decimal.Decimal {
	if promo == nil || promo.DiscountPercentage <= 0 {
		return decimal.Zero
	}
	return subtotal.Mul(decimal.NewFromInt(int64(promo.DiscountPercentage))).Div(hundred).Round(2)
}

// Totals is the read-time breakdown shared by the cart view and checkout.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	// Applied is false when a promo is attached but not valid at evaluation time.
	Applied bool
}

// Compute applies the promo to subtotal when it is valid at now.
func Compute(subtotal decimal.Decimal, promo *models.PromoCode, now time.Time) Totals {
	subtotal = subtotal.Round(2)
	totals := Totals{Subtotal: subtotal, Discount: decimal.Zero, Total: subtotal}
	if !IsValidAt(promo, now) {
		return totals
	}
	totals.Discount = DiscountFor(promo, subtotal)
	totals.Total = subtotal.Sub(totals.Discount).Round(2)
	totals.Applied = true
	return totals
}
