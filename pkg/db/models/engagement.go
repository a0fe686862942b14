package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductLike is keyed by user for members and by session token for guests.
type ProductLike struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	UserID       *uuid.UUID `gorm:"column:user_id;type:uuid"`
	SessionToken *string    `gorm:"column:session_token"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (l *ProductLike) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

type NewsletterSubscriber struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (s *NewsletterSubscriber) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_reviews_product_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_reviews_product_user"`
	User      *User     `gorm:"foreignKey:UserID"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   string    `gorm:"column:comment;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
