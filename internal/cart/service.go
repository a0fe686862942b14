package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	MsgOutOfStock      = "product is out of stock"
	MsgMaxStockReached = "maximum available stock reached"
)

type promoResolver interface {
	Resolve(ctx context.Context, code string, now time.Time) (*models.PromoCode, error)
}

// Service exposes cart operations for guests and signed-in users.
type Service interface {
	Resolve(ctx context.Context, owner Owner) (*models.Cart, error)
	View(ctx context.Context, owner Owner) (*View, error)
	Count(ctx context.Context, owner Owner) (Count, error)
	Add(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error)
	Decrement(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*View, error)
	Empty(ctx context.Context, owner Owner) (*View, error)
	ApplyPromo(ctx context.Context, owner Owner, code string) (*View, error)
	MergeGuestIntoUser(ctx context.Context, sessionToken string, userID uuid.UUID) error
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repo   CartRepository
	Tx     txRunner
	Promos promoResolver
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   CartRepository
	tx     txRunner
	promos promoResolver
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Promos == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "promo resolver required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		promos: params.Promos,
		logg:   params.Logger,
		now:    now,
	}, nil
}

// Resolve returns the owner's cart, creating it on first use.
func (s *service) Resolve(ctx context.Context, owner Owner) (*models.Cart, error) {
	owner, err := owner.Normalize()
	if err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := s.repo.Create(ctx, &models.Cart{UserID: owner.UserID, SessionToken: owner.SessionPtr()})
	if err == nil {
		return created, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	// lost a concurrent create; the winner's row is what we want
	cart, err = s.repo.FindByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) View(ctx context.Context, owner Owner) (*View, error) {
	cart, err := s.Resolve(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

func (s *service) Count(ctx context.Context, owner Owner) (Count, error) {
	owner, err := owner.Normalize()
	if err != nil {
		return Count{}, err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Count{}, nil
		}
		return Count{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	count, err := s.repo.Count(ctx, cart.ID)
	if err != nil {
		return Count{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart items")
	}
	return count, nil
}

// Add puts one unit of the product in the cart, capped at the product's stock.
func (s *service) Add(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error) {
	return s.mutate(ctx, owner, func(repo CartRepository, cart *models.Cart) error {
		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if product.Stock <= 0 {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, MsgOutOfStock)
		}

		item, err := repo.FindItemByProduct(ctx, cart.ID, productID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := repo.CreateItem(ctx, &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: 1}); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart changed concurrently, please retry")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart item")
			}
			return nil
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if item.Quantity >= product.Stock {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, MsgMaxStockReached)
		}
		if err := repo.UpdateItemQuantity(ctx, item.ID, item.Quantity+1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
}

// Decrement removes one unit; the line disappears when it reaches zero.
func (s *service) Decrement(ctx context.Context, owner Owner, productID uuid.UUID) (*View, error) {
	return s.mutate(ctx, owner, func(repo CartRepository, cart *models.Cart) error {
		item, err := repo.FindItemByProduct(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if item.Quantity <= 1 {
			if err := repo.DeleteItem(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
			}
			return nil
		}
		if err := repo.UpdateItemQuantity(ctx, item.ID, item.Quantity-1); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*View, error) {
	return s.mutate(ctx, owner, func(repo CartRepository, cart *models.Cart) error {
		item, err := repo.FindItemByID(ctx, cart.ID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return nil
	})
}

func (s *service) Empty(ctx context.Context, owner Owner) (*View, error) {
	return s.mutate(ctx, owner, func(repo CartRepository, cart *models.Cart) error {
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "empty cart")
		}
		return nil
	})
}

// ApplyPromo attaches a valid promo; a blank code clears the current one.
func (s *service) ApplyPromo(ctx context.Context, owner Owner, code string) (*View, error) {
	var promoID *uuid.UUID
	if trimmed := trimCode(code); trimmed != "" {
		promo, err := s.promos.Resolve(ctx, trimmed, s.now())
		if err != nil {
			return nil, err
		}
		promoID = &promo.ID
	}
	return s.mutate(ctx, owner, func(repo CartRepository, cart *models.Cart) error {
		if err := repo.SetPromo(ctx, cart.ID, promoID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart promo")
		}
		return nil
	})
}

// MergeGuestIntoUser folds the guest cart into the user's cart after login.
// Shared products sum their quantities; the guest promo carries over only
// when the user cart has none. A missing guest cart is a no-op.
func (s *service) MergeGuestIntoUser(ctx context.Context, sessionToken string, userID uuid.UUID) error {
	guestOwner, err := ForSession(sessionToken).Normalize()
	if err != nil {
		return nil
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	merged := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		guest, err := repo.FindByOwner(ctx, guestOwner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
		}

		userCart, err := repo.FindByOwner(ctx, ForUser(userID))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := repo.AssignToUser(ctx, guest.ID, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign guest cart")
			}
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart")
		}

		full, err := repo.LoadWithItems(ctx, guest.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest items")
		}
		for _, item := range full.Items {
			existing, err := repo.FindItemByProduct(ctx, userCart.ID, item.ProductID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := repo.MoveItem(ctx, item.ID, userCart.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move cart item")
				}
			case err != nil:
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user cart item")
			default:
				if err := repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
				}
				if err := repo.DeleteItem(ctx, item.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guest item")
				}
			}
			merged++
		}

		if userCart.PromoCodeID == nil && guest.PromoCodeID != nil {
			if err := repo.SetPromo(ctx, userCart.ID, guest.PromoCodeID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carry promo")
			}
		}
		if err := repo.Delete(ctx, guest.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guest cart")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logg != nil && merged > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "merged_items": merged})
		s.logg.Info(logCtx, "guest cart merged")
	}
	return nil
}

func (s *service) mutate(ctx context.Context, owner Owner, fn func(repo CartRepository, cart *models.Cart) error) (*View, error) {
	cart, err := s.Resolve(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx), cart)
	}); err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

func (s *service) view(ctx context.Context, cartID uuid.UUID) (*View, error) {
	cart, err := s.repo.LoadWithItems(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return BuildView(cart, s.now()), nil
}
