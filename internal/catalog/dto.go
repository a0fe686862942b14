package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ListFilter drives the storefront product listing.
type ListFilter struct {
	Query        string
	CategorySlug string
	Page         pagination.Params
	// Viewer decides is_liked; the zero Owner sees nothing liked.
	Viewer cart.Owner
}

// CategoryRef is the compact category embedded in product payloads.
type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ProductSummary is one card in the product grid.
type ProductSummary struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	Subname       string              `json:"subname,omitempty"`
	Slug          string              `json:"slug"`
	CurrentPrice  decimal.Decimal     `json:"current_price"`
	OriginalPrice *decimal.Decimal    `json:"original_price,omitempty"`
	Badge         string              `json:"badge,omitempty"`
	Status        enums.ProductStatus `json:"status"`
	Stock         int                 `json:"stock"`
	Available     bool                `json:"available"`
	ImageURL      string              `json:"image_url,omitempty"`
	Category      *CategoryRef        `json:"category,omitempty"`
	IsLiked       bool                `json:"is_liked"`
	CreatedAt     time.Time           `json:"created_at"`
}

type ImageDTO struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type FeatureDTO struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductDetail is the product page payload.
type ProductDetail struct {
	ProductSummary
	Description string       `json:"description,omitempty"`
	Images      []ImageDTO   `json:"images"`
	Features    []FeatureDTO `json:"features"`
	LikesCount  int64        `json:"likes_count"`
}

// CategoryNode is one branch of the category forest.
type CategoryNode struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Children []CategoryNode `json:"children"`
}

// CreateProductInput is the admin payload for a new product.
type CreateProductInput struct {
	Name          string
	Subname       string
	CategoryID    *uuid.UUID
	CurrentPrice  decimal.Decimal
	OriginalPrice *decimal.Decimal
	Badge         string
	Stock         int
	Status        enums.ProductStatus
	Description   string
	Images        []ImageDTO
	Features      []FeatureDTO
}

// CreateCategoryInput is the admin payload for a new category.
type CreateCategoryInput struct {
	Name     string
	ParentID *uuid.UUID
}

func newProductSummary(p models.Product) ProductSummary {
	summary := ProductSummary{
		ID:           p.ID,
		Name:         p.Name,
		Subname:      p.Subname,
		Slug:         p.Slug,
		CurrentPrice: p.CurrentPrice,
		Badge:        p.Badge,
		Status:       p.Status,
		Stock:        p.Stock,
		Available:    p.Stock > 0,
		CreatedAt:    p.CreatedAt,
	}
	if p.OriginalPrice.Valid {
		price := p.OriginalPrice.Decimal
		summary.OriginalPrice = &price
	}
	if len(p.Images) > 0 {
		summary.ImageURL = p.Images[0].URL
	}
	if p.Category != nil {
		summary.Category = &CategoryRef{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	return summary
}

func newProductDetail(p models.Product, likes int64) ProductDetail {
	detail := ProductDetail{
		ProductSummary: newProductSummary(p),
		Description:    p.Description,
		Images:         make([]ImageDTO, 0, len(p.Images)),
		Features:       make([]FeatureDTO, 0, len(p.Features)),
		LikesCount:     likes,
	}
	for _, img := range p.Images {
		detail.Images = append(detail.Images, ImageDTO{URL: img.URL, Caption: img.Caption})
	}
	for _, f := range p.Features {
		detail.Features = append(detail.Features, FeatureDTO{Name: f.Name, Value: f.Value})
	}
	return detail
}

// buildCategoryTree nests categories under their parents; orphans become roots.
func buildCategoryTree(rows []models.Category) []CategoryNode {
	children := map[uuid.UUID][]models.Category{}
	known := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		known[row.ID] = struct{}{}
	}
	var roots []models.Category
	for _, row := range rows {
		if row.ParentID == nil {
			roots = append(roots, row)
			continue
		}
		if _, ok := known[*row.ParentID]; !ok {
			roots = append(roots, row)
			continue
		}
		children[*row.ParentID] = append(children[*row.ParentID], row)
	}

	var build func(models.Category) CategoryNode
	build = func(c models.Category) CategoryNode {
		node := CategoryNode{ID: c.ID, Name: c.Name, Slug: c.Slug, Children: []CategoryNode{}}
		for _, child := range children[c.ID] {
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	out := make([]CategoryNode, 0, len(roots))
	for _, root := range roots {
		out = append(out, build(root))
	}
	return out
}
