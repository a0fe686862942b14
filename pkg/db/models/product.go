package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is a catalog listing. Stock is only ever decremented through a
// conditional update at checkout.
type Product struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID    *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	Name          string              `gorm:"column:name;not null"`
	Subname       string              `gorm:"column:subname;not null;default:''"`
	Slug          string              `gorm:"column:slug;not null;uniqueIndex"`
	CurrentPrice  decimal.Decimal     `gorm:"column:current_price;type:numeric(12,2);not null"`
	OriginalPrice decimal.NullDecimal `gorm:"column:original_price;type:numeric(12,2)"`
	Badge         string              `gorm:"column:badge;not null;default:''"`
	Stock         int                 `gorm:"column:stock;not null;default:0"`
	Status        enums.ProductStatus `gorm:"column:status;type:text;not null;default:'new'"`
	Description   string              `gorm:"column:description;not null;default:''"`
	Category      *Category           `gorm:"foreignKey:CategoryID"`
	Images        []ProductImage      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Features      []ProductFeature    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = enums.ProductStatusNew
	}
	return nil
}

type ProductImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	URL       string    `gorm:"column:url;not null"`
	Caption   string    `gorm:"column:caption;not null;default:''"`
	Position  int       `gorm:"column:position;not null;default:0"`
}

func (i *ProductImage) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

type ProductFeature struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Value     string    `gorm:"column:value;not null"`
}

func (f *ProductFeature) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
