package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CatalogRepository defines the persistence surface required by the catalog service.
type CatalogRepository interface {
	ListProducts(ctx context.Context, filter ListFilter) ([]models.Product, int64, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CountLikes(ctx context.Context, productID uuid.UUID) (int64, error)
	LikedProductIDs(ctx context.Context, owner cart.Owner, productIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ProductSlugExists(ctx context.Context, slug string) (bool, error)
	CategorySlugExists(ctx context.Context, slug string) (bool, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var _ CatalogRepository = (*Repository)(nil)
