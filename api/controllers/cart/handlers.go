package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

type promoRequest struct {
	Code string `json:"code" validate:"omitempty,promocode,max=50"`
}

// ownerHandler resolves the cart owner before delegating.
func ownerHandler(svc cartsvc.Service, logg *logger.Logger, fn func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := middleware.CartOwner(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fn(w, r, owner)
	}
}

// CartFetch returns the priced cart view, creating an empty cart on first use.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownerHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner) {
		view, err := svc.View(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func CartCount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownerHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner) {
		count, err := svc.Count(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, count)
	})
}

func CartEmpty(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownerHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner) {
		view, err := svc.Empty(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownerHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner) {
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(body.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Add(r.Context(), owner, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func CartDecrementItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownerHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner) {
		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Decrement(r.Context(), owner, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownerHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner) {
		itemID, err := validators.ParseUUIDParam(chi.URLParam(r, "itemID"), "item_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), owner, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

// CartApplyPromo attaches a promo code; an empty code clears it.
func CartApplyPromo(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return ownerHandler(svc, logg, func(w http.ResponseWriter, r *http.Request, owner cartsvc.Owner) {
		var body promoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.ApplyPromo(r.Context(), owner, body.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}
