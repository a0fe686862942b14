package enums

import "fmt"

// ProductStatus is the merchandising badge state shown on catalog cards.
type ProductStatus string

const (
	ProductStatusNew         ProductStatus = "new"
	ProductStatusOnSale      ProductStatus = "on_sale"
	ProductStatusFlashSale   ProductStatus = "flash_sale"
	ProductStatusBestSeller  ProductStatus = "best_seller"
	ProductStatusLimited     ProductStatus = "limited"
	ProductStatusBackInStock ProductStatus = "back_in_stock"
	ProductStatusPreorder    ProductStatus = "preorder"
	ProductStatusSoldOut     ProductStatus = "sold_out"
)

var validProductStatuses = []ProductStatus{
	ProductStatusNew,
	ProductStatusOnSale,
	ProductStatusFlashSale,
	ProductStatusBestSeller,
	ProductStatusLimited,
	ProductStatusBackInStock,
	ProductStatusPreorder,
	ProductStatusSoldOut,
}

// String implements fmt.Stringer.
func (s ProductStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ProductStatus.
func (s ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}
