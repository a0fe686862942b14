package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	LoadWithItems(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	MoveItem(ctx context.Context, itemID, cartID uuid.UUID) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	SetPromo(ctx context.Context, cartID uuid.UUID, promoID *uuid.UUID) error
	Delete(ctx context.Context, cartID uuid.UUID) error
	AssignToUser(ctx context.Context, cartID, userID uuid.UUID) error
	Count(ctx context.Context, cartID uuid.UUID) (Count, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
