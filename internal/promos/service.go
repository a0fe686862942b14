package promos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	MsgPromoNotFound = "promo code not found"
	MsgPromoInvalid  = "promo code is invalid or expired"
)

type promoRepository interface {
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
}

// CreateInput is the admin payload for a new promo code.
type CreateInput struct {
	Code               string
	DiscountPercentage int
	ValidFrom          time.Time
	ValidTo            time.Time
	Active             bool
}

// PromoDTO is the public projection of a promo code.
type PromoDTO struct {
	ID                 uuid.UUID `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discount_percentage"`
	ValidFrom          time.Time `json:"valid_from"`
	ValidTo            time.Time `json:"valid_to"`
	Active             bool      `json:"active"`
}

func NewPromoDTO(p *models.PromoCode) *PromoDTO {
	if p == nil {
		return nil
	}
	return &PromoDTO{
		ID:                 p.ID,
		Code:               p.Code,
		DiscountPercentage: p.DiscountPercentage,
		ValidFrom:          p.ValidFrom,
		ValidTo:            p.ValidTo,
		Active:             p.Active,
	}
}

// Service resolves and manages promo codes.
type Service interface {
	// Resolve returns the promo usable at now, or PROMO_INVALID with a storefront message.
	Resolve(ctx context.Context, code string, now time.Time) (*models.PromoCode, error)
	Create(ctx context.Context, input CreateInput) (*PromoDTO, error)
}

type service struct {
	repo promoRepository
}

func NewService(repo promoRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "promo repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Resolve(ctx context.Context, code string, now time.Time) (*models.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, MsgPromoNotFound)
	}
	promo, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, MsgPromoNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	if !IsValidAt(promo, now) {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, MsgPromoInvalid)
	}
	return promo, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*PromoDTO, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if input.DiscountPercentage < 1 || input.DiscountPercentage > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount_percentage must be between 1 and 100")
	}
	if input.ValidTo.Before(input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_to must not be before valid_from")
	}

	created, err := s.repo.Create(ctx, &models.PromoCode{
		Code:               code,
		DiscountPercentage: input.DiscountPercentage,
		ValidFrom:          input.ValidFrom.UTC(),
		ValidTo:            input.ValidTo.UTC(),
		Active:             input.Active,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "promo code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert promo code")
	}
	return NewPromoDTO(created), nil
}
