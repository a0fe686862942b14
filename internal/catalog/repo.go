package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads and writes catalog rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListProducts returns one page of products, newest first, and the total match count.
func (r *Repository) ListProducts(ctx context.Context, filter ListFilter) ([]models.Product, int64, error) {
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.Product{})
		if q := strings.TrimSpace(filter.Query); q != "" {
			query = query.Where("LOWER(products.name) LIKE ?", "%"+strings.ToLower(q)+"%")
		}
		if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
			query = query.Where("products.category_id IN (?)",
				r.db.Model(&models.Category{}).Select("id").Where("slug = ?", slug))
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := scoped().
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("products.created_at DESC").
		Order("products.id DESC").
		Limit(filter.Page.PageSize).
		Offset(filter.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// FindProductBySlug loads a product with images, features and category.
func (r *Repository) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Features").
		Where("slug = ?", slug).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductByID loads the bare product row.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CountLikes returns how many likes the product has.
func (r *Repository) CountLikes(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductLike{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

// LikedProductIDs reports which of productIDs the owner has liked. An owner
// with neither a user nor a session has liked nothing.
func (r *Repository) LikedProductIDs(ctx context.Context, owner cart.Owner, productIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	liked := make(map[uuid.UUID]bool, len(productIDs))
	owner, err := owner.Normalize()
	if err != nil || len(productIDs) == 0 {
		return liked, nil
	}
	query := r.db.WithContext(ctx).Model(&models.ProductLike{}).Where("product_id IN ?", productIDs)
	if owner.IsGuest() {
		query = query.Where("session_token = ? AND user_id IS NULL", owner.SessionToken)
	} else {
		query = query.Where("user_id = ?", *owner.UserID)
	}
	var ids []uuid.UUID
	if err := query.Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// ListCategories returns every category ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) ProductSlugExists(ctx context.Context, slug string) (bool, error) {
	return r.exists(ctx, &models.Product{}, slug)
}

func (r *Repository) CategorySlugExists(ctx context.Context, slug string) (bool, error) {
	return r.exists(ctx, &models.Category{}, slug)
}

func (r *Repository) exists(ctx context.Context, model any, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateProduct inserts the product together with its images and features.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}
