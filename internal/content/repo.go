package content

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository reads storefront content blocks.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

type homeRows struct {
	banners     []models.Banner
	bestSellers []models.BestSeller
	blogPosts   []models.BlogPost
	toast       *models.Toast
	cta         *models.CallToAction
	promotions  []models.Promotion
	legal       []models.LegalPage
}

func (r *Repository) loadHome(ctx context.Context, now time.Time) (homeRows, error) {
	var rows homeRows
	db := r.DB(ctx)
	if err := db.Order("position ASC, created_at ASC").Limit(homeBanners).Find(&rows.banners).Error; err != nil {
		return rows, err
	}
	if err := db.Order("position ASC, created_at ASC").Limit(homeBestSellers).Find(&rows.bestSellers).Error; err != nil {
		return rows, err
	}
	if err := db.Order("position ASC, created_at ASC").Limit(homeBlogPosts).Find(&rows.blogPosts).Error; err != nil {
		return rows, err
	}
	if err := db.Order("title ASC").Limit(homeLegalLinks).Find(&rows.legal).Error; err != nil {
		return rows, err
	}
	promotions, err := r.ActivePromotions(ctx, now)
	if err != nil {
		return rows, err
	}
	rows.promotions = promotions

	var toast models.Toast
	switch err := db.Order("created_at DESC").First(&toast).Error; {
	case err == nil:
		rows.toast = &toast
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return rows, err
	}
	var cta models.CallToAction
	switch err := db.Order("position ASC, created_at ASC").First(&cta).Error; {
	case err == nil:
		rows.cta = &cta
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return rows, err
	}
	return rows, nil
}

// ActivePromotions returns promotions with start_at <= now <= end_at, ending soonest first.
func (r *Repository) ActivePromotions(ctx context.Context, now time.Time) ([]models.Promotion, error) {
	var rows []models.Promotion
	err := r.DB(ctx).
		Where("start_at <= ? AND end_at >= ?", now, now).
		Order("end_at ASC").
		Find(&rows).Error
	return rows, err
}

// LegalPages lists every legal page by title.
func (r *Repository) LegalPages(ctx context.Context) ([]models.LegalPage, error) {
	var rows []models.LegalPage
	err := r.DB(ctx).Order("title ASC").Find(&rows).Error
	return rows, err
}

// FindLegalPage returns gorm.ErrRecordNotFound for unknown slugs.
func (r *Repository) FindLegalPage(ctx context.Context, slug string) (*models.LegalPage, error) {
	var page models.LegalPage
	if err := r.DB(ctx).Where("slug = ?", slug).First(&page).Error; err != nil {
		return nil, err
	}
	return &page, nil
}
