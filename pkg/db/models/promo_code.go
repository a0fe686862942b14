package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PromoCode is a time-bounded percentage discount. Code is stored upper-case.
type PromoCode struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Code               string    `gorm:"column:code;not null;uniqueIndex"`
	DiscountPercentage int       `gorm:"column:discount_percentage;not null"`
	ValidFrom          time.Time `gorm:"column:valid_from;not null"`
	ValidTo            time.Time `gorm:"column:valid_to;not null"`
	Active             bool      `gorm:"column:active;not null;default:true"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *PromoCode) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
