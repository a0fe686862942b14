package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads for the storefront and writes for admins.
type Service interface {
	ListProducts(ctx context.Context, filter ListFilter) (pagination.Page[ProductSummary], error)
	GetProduct(ctx context.Context, slug string, viewer cart.Owner) (*ProductDetail, error)
	ListCategories(ctx context.Context) ([]CategoryNode, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDetail, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryNode, error)
}

type repoBinder interface {
	WithTx(tx *gorm.DB) *Repository
}

type service struct {
	repo     CatalogRepository
	tx       txRunner
	pageSize int
}

// NewService builds the catalog service. pageSize is the default grid size.
func NewService(repo CatalogRepository, tx txRunner, pageSize int) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	return &service{repo: repo, tx: tx, pageSize: pageSize}, nil
}

func (s *service) ListProducts(ctx context.Context, filter ListFilter) (pagination.Page[ProductSummary], error) {
	filter.Page = filter.Page.Normalize(s.pageSize)
	rows, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return pagination.Page[ProductSummary]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	liked, err := s.repo.LikedProductIDs(ctx, filter.Viewer, ids)
	if err != nil {
		return pagination.Page[ProductSummary]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load likes")
	}
	items := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		summary := newProductSummary(row)
		summary.IsLiked = liked[row.ID]
		items = append(items, summary)
	}
	return pagination.NewPage(items, filter.Page, total), nil
}

func (s *service) GetProduct(ctx context.Context, slug string, viewer cart.Owner) (*ProductDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug is required")
	}
	product, err := s.repo.FindProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	likes, err := s.repo.CountLikes(ctx, product.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count likes")
	}
	liked, err := s.repo.LikedProductIDs(ctx, viewer, []uuid.UUID{product.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load likes")
	}
	detail := newProductDetail(*product, likes)
	detail.IsLiked = liked[product.ID]
	return &detail, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryNode, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return buildCategoryTree(rows), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDetail, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	var created *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.bind(tx)
		if input.CategoryID != nil {
			if _, err := repo.FindCategoryByID(ctx, *input.CategoryID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "category not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
			}
		}

		slug, err := uniqueSlug(ctx, input.Name, repo.ProductSlugExists)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product name")
		}

		product := &models.Product{
			ID:           uuid.New(),
			CategoryID:   input.CategoryID,
			Name:         strings.TrimSpace(input.Name),
			Subname:      strings.TrimSpace(input.Subname),
			Slug:         slug,
			CurrentPrice: input.CurrentPrice.Round(2),
			Badge:        strings.TrimSpace(input.Badge),
			Stock:        input.Stock,
			Status:       input.Status,
			Description:  input.Description,
		}
		if product.Status == "" {
			product.Status = enums.ProductStatusNew
		}
		if input.OriginalPrice != nil {
			product.OriginalPrice = decimal.NewNullDecimal(input.OriginalPrice.Round(2))
		}
		for i, img := range input.Images {
			product.Images = append(product.Images, models.ProductImage{URL: img.URL, Caption: img.Caption, Position: i})
		}
		for _, f := range input.Features {
			product.Features = append(product.Features, models.ProductFeature{Name: f.Name, Value: f.Value})
		}

		created, err = repo.CreateProduct(ctx, product)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail := newProductDetail(*created, 0)
	return &detail, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryNode, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	var created *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.bind(tx)
		if input.ParentID != nil {
			if _, err := repo.FindCategoryByID(ctx, *input.ParentID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "parent category not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent category")
			}
		}
		slug, err := uniqueSlug(ctx, name, repo.CategorySlugExists)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category name")
		}
		created, err = repo.CreateCategory(ctx, &models.Category{Name: name, Slug: slug, ParentID: input.ParentID})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert category")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CategoryNode{ID: created.ID, Name: created.Name, Slug: created.Slug, Children: []CategoryNode{}}, nil
}

// bind returns a tx-scoped repository when the concrete repository supports it.
func (s *service) bind(tx *gorm.DB) CatalogRepository {
	if binder, ok := s.repo.(repoBinder); ok {
		return binder.WithTx(tx)
	}
	return s.repo
}

func validateProductInput(input CreateProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.CurrentPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "current_price must be non-negative")
	}
	if input.OriginalPrice != nil && input.OriginalPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "original_price must be non-negative")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}
	if input.Status != "" && !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
	}
	return nil
}
