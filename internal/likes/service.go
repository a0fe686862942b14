package likes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ToggleResult is returned to the storefront after a like toggle.
type ToggleResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// Service flips product likes for users and guest sessions.
type Service interface {
	Toggle(ctx context.Context, owner cart.Owner, productID uuid.UUID) (*ToggleResult, error)
}

type service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "likes repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Toggle removes an existing like or adds a new one, then reports the fresh count.
func (s *service) Toggle(ctx context.Context, owner cart.Owner, productID uuid.UUID) (*ToggleResult, error) {
	owner, err := owner.Normalize()
	if err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	var result ToggleResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.ProductExists(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		existing, err := repo.Find(ctx, owner, productID)
		switch {
		case err == nil:
			if err := repo.Remove(ctx, existing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove like")
			}
		case isNotFound(err):
			if err := repo.Add(ctx, owner, productID); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "like already recorded")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add like")
			}
			result.Liked = true
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load like")
		}

		count, err := repo.Count(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count likes")
		}
		result.LikesCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
