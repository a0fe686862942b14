package likes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository encapsulates product like persistence.
type Repository struct {
	repo.Base
}

// NewRepository constructs a likes repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{Base: repo.NewBase(tx)}
}

// ProductExists reports whether the product row is present.
func (r *Repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error
	return count > 0, err
}

// Find returns the owner's like on a product or gorm.ErrRecordNotFound.
func (r *Repository) Find(ctx context.Context, owner cart.Owner, productID uuid.UUID) (*models.ProductLike, error) {
	var like models.ProductLike
	err := ownerScope(r.DB(ctx), owner).
		Where("product_id = ?", productID).
		First(&like).Error
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// Add inserts a like.
func (r *Repository) Add(ctx context.Context, owner cart.Owner, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	like := &models.ProductLike{
		ProductID:    productID,
		UserID:       owner.UserID,
		SessionToken: owner.SessionPtr(),
	}
	return r.DB(ctx).Create(like).Error
}

// Remove deletes the like by id.
func (r *Repository) Remove(ctx context.Context, likeID uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", likeID).Delete(&models.ProductLike{}).Error
}

// Count returns how many owners like the product.
func (r *Repository) Count(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.ProductLike{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

func ownerScope(db *gorm.DB, owner cart.Owner) *gorm.DB {
	if owner.IsGuest() {
		return db.Where("session_token = ? AND user_id IS NULL", owner.SessionToken)
	}
	return db.Where("user_id = ?", *owner.UserID)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
