package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Storefront content blocks are edited by staff and served read-only.

type Banner struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title       string          `gorm:"column:title;not null"`
	Description string          `gorm:"column:description;not null;default:''"`
	ImageURL    string          `gorm:"column:image_url;not null;default:''"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Position    int             `gorm:"column:position;not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (b *Banner) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

type BestSeller struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name          string              `gorm:"column:name;not null"`
	CurrentPrice  decimal.Decimal     `gorm:"column:current_price;type:numeric(12,2);not null;default:0"`
	OriginalPrice decimal.NullDecimal `gorm:"column:original_price;type:numeric(12,2)"`
	ImageURL      string              `gorm:"column:image_url;not null;default:''"`
	Position      int                 `gorm:"column:position;not null;default:0"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (b *BestSeller) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// Toast is the "recently sold" popup; only the newest row is shown.
type Toast struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	ImageURL  string    `gorm:"column:image_url;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (t *Toast) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

type BlogPost struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	Signature   string    `gorm:"column:signature;not null;default:''"`
	ImageURL    string    `gorm:"column:image_url;not null;default:''"`
	Position    int       `gorm:"column:position;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (BlogPost) TableName() string { return "blog_posts" }

func (b *BlogPost) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// CallToAction is the single promotional strip; the first row wins.
type CallToAction struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Title     string          `gorm:"column:title;not null"`
	Discount  string          `gorm:"column:discount;not null;default:''"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	ImageURL  string          `gorm:"column:image_url;not null;default:''"`
	Position  int             `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (CallToAction) TableName() string { return "calls_to_action" }

func (c *CallToAction) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Promotion is a time-boxed deal shown while StartAt <= now <= EndAt. It is
// display content and unrelated to PromoCode discounts.
type Promotion struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name          string              `gorm:"column:name;not null"`
	Description   string              `gorm:"column:description;not null;default:''"`
	ImageURL      string              `gorm:"column:image_url;not null;default:''"`
	CurrentPrice  decimal.Decimal     `gorm:"column:current_price;type:numeric(12,2);not null;default:0"`
	OriginalPrice decimal.NullDecimal `gorm:"column:original_price;type:numeric(12,2)"`
	AlreadySold   int                 `gorm:"column:already_sold;not null;default:0"`
	Available     int                 `gorm:"column:available;not null;default:0"`
	StartAt       time.Time           `gorm:"column:start_at;not null;index:idx_promotions_window"`
	EndAt         time.Time           `gorm:"column:end_at;not null;index:idx_promotions_window"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// LegalPage is addressed by slug from footer links (e.g. "terms", "faq").
type LegalPage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	Title     string    `gorm:"column:title;not null"`
	Body      string    `gorm:"column:body;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *LegalPage) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
