package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ProductRef is the slice of product data a cart line needs to render.
type ProductRef struct {
	ID       uuid.UUID           `json:"id"`
	Name     string              `json:"name"`
	Slug     string              `json:"slug"`
	Stock    int                 `json:"stock"`
	Status   enums.ProductStatus `json:"status"`
	ImageURL string              `json:"image_url,omitempty"`
}

type LineDTO struct {
	ID        uuid.UUID       `json:"id"`
	Product   ProductRef      `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// AppliedPromo describes the promo attached to a cart. Applied is false when
// it is attached but not currently valid.
type AppliedPromo struct {
	Code               string `json:"code"`
	DiscountPercentage int    `json:"discount_percentage"`
	Applied            bool   `json:"applied"`
}

// View is the computed cart. Totals are derived on every read.
type View struct {
	ID        uuid.UUID       `json:"id"`
	Items     []LineDTO       `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	PromoCode *AppliedPromo   `json:"promo_code,omitempty"`
	ItemCount int             `json:"item_count"`
}

// Count is the navbar badge payload.
type Count struct {
	Lines    int `json:"lines"`
	Quantity int `json:"quantity"`
}
