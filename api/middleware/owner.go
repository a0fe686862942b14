package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/cart"
)

// CartOwner resolves who the storefront request acts for. A signed-in user
// wins over the guest session token.
func CartOwner(ctx context.Context) (cart.Owner, error) {
	if userID := UserUUIDFromContext(ctx); userID != nil {
		return cart.ForUser(*userID), nil
	}
	return cart.ForSession(CartSessionFromContext(ctx)).Normalize()
}
