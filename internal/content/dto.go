package content

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const (
	homeBanners     = 3
	homeBestSellers = 4
	homeBlogPosts   = 4
	homeLegalLinks  = 6
)

// Home is every block the storefront layout renders around its pages.
type Home struct {
	Banners      []BannerDTO     `json:"banners"`
	BestSellers  []BestSellerDTO `json:"best_sellers"`
	Toast        *ToastDTO       `json:"toast,omitempty"`
	BlogPosts    []BlogPostDTO   `json:"blog_posts"`
	CallToAction *CallToAction   `json:"call_to_action,omitempty"`
	Promotions   []PromotionDTO  `json:"promotions"`
	LegalPages   []LegalLink     `json:"legal_pages"`
}

type BannerDTO struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

type BestSellerDTO struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	CurrentPrice  decimal.Decimal  `json:"current_price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	ImageURL      string           `json:"image_url,omitempty"`
}

type ToastDTO struct {
	Name     string    `json:"name"`
	ImageURL string    `json:"image_url,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

type BlogPostDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Signature   string    `json:"signature,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
}

type CallToAction struct {
	Title    string          `json:"title"`
	Discount string          `json:"discount,omitempty"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

// PromotionDTO is a deal whose window contains the time it was read.
type PromotionDTO struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	ImageURL      string           `json:"image_url,omitempty"`
	CurrentPrice  decimal.Decimal  `json:"current_price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	AlreadySold   int              `json:"already_sold"`
	Available     int              `json:"available"`
	StartAt       time.Time        `json:"start_at"`
	EndAt         time.Time        `json:"end_at"`
}

// LegalLink is the footer entry for a legal page.
type LegalLink struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type LegalPageDTO struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

func nullablePrice(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	price := d.Decimal
	return &price
}

func newHome(r homeRows) *Home {
	home := &Home{
		Banners:     make([]BannerDTO, 0, len(r.banners)),
		BestSellers: make([]BestSellerDTO, 0, len(r.bestSellers)),
		BlogPosts:   make([]BlogPostDTO, 0, len(r.blogPosts)),
		Promotions:  newPromotions(r.promotions),
		LegalPages:  newLegalLinks(r.legal),
	}
	for _, b := range r.banners {
		home.Banners = append(home.Banners, BannerDTO{ID: b.ID, Title: b.Title, Description: b.Description, ImageURL: b.ImageURL, Price: b.Price})
	}
	for _, b := range r.bestSellers {
		home.BestSellers = append(home.BestSellers, BestSellerDTO{
			ID:            b.ID,
			Name:          b.Name,
			CurrentPrice:  b.CurrentPrice,
			OriginalPrice: nullablePrice(b.OriginalPrice),
			ImageURL:      b.ImageURL,
		})
	}
	for _, b := range r.blogPosts {
		home.BlogPosts = append(home.BlogPosts, BlogPostDTO{ID: b.ID, Name: b.Name, Description: b.Description, Signature: b.Signature, ImageURL: b.ImageURL})
	}
	if r.toast != nil {
		home.Toast = &ToastDTO{Name: r.toast.Name, ImageURL: r.toast.ImageURL, AddedAt: r.toast.CreatedAt}
	}
	if r.cta != nil {
		home.CallToAction = &CallToAction{Title: r.cta.Title, Discount: r.cta.Discount, Price: r.cta.Price, ImageURL: r.cta.ImageURL}
	}
	return home
}

func newPromotions(rows []models.Promotion) []PromotionDTO {
	out := make([]PromotionDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, PromotionDTO{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			ImageURL:      p.ImageURL,
			CurrentPrice:  p.CurrentPrice,
			OriginalPrice: nullablePrice(p.OriginalPrice),
			AlreadySold:   p.AlreadySold,
			Available:     p.Available,
			StartAt:       p.StartAt,
			EndAt:         p.EndAt,
		})
	}
	return out
}

func newLegalLinks(rows []models.LegalPage) []LegalLink {
	out := make([]LegalLink, 0, len(rows))
	for _, p := range rows {
		out = append(out, LegalLink{Slug: p.Slug, Title: p.Title})
	}
	return out
}
