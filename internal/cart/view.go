package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/promos"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// BuildView prices a loaded cart at now. Lines use the product's current price.
func BuildView(cart *models.Cart, now time.Time) *View {
	view := &View{ID: cart.ID, Items: make([]LineDTO, 0, len(cart.Items))}
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		if item.Product == nil {
			continue
		}
		lineTotal := item.Product.CurrentPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		view.ItemCount += item.Quantity
		view.Items = append(view.Items, LineDTO{
			ID:        item.ID,
			Product:   productRef(item.Product),
			Quantity:  item.Quantity,
			UnitPrice: item.Product.CurrentPrice,
			LineTotal: lineTotal.Round(2),
		})
	}

	totals := promos.Compute(subtotal, cart.PromoCode, now)
	view.Subtotal = totals.Subtotal
	view.Discount = totals.Discount
	view.Total = totals.Total
	if cart.PromoCode != nil {
		view.PromoCode = &AppliedPromo{
			Code:               cart.PromoCode.Code,
			DiscountPercentage: cart.PromoCode.DiscountPercentage,
			Applied:            totals.Applied,
		}
	}
	return view
}

func productRef(p *models.Product) ProductRef {
	ref := ProductRef{ID: p.ID, Name: p.Name, Slug: p.Slug, Stock: p.Stock, Status: p.Status}
	if len(p.Images) > 0 {
		ref.ImageURL = p.Images[0].URL
	}
	return ref
}

func trimCode(code string) string {
	return strings.TrimSpace(code)
}
