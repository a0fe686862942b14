package cart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCart struct {
	cartsvc.Service
	added     uuid.UUID
	decrement uuid.UUID
	promo     string
	err       error
}

func (s *stubCart) Add(_ context.Context, _ cartsvc.Owner, productID uuid.UUID) (*cartsvc.View, error) {
	s.added = productID
	if s.err != nil {
		return nil, s.err
	}
	return &cartsvc.View{ItemCount: 1}, nil
}

func (s *stubCart) Decrement(_ context.Context, _ cartsvc.Owner, productID uuid.UUID) (*cartsvc.View, error) {
	s.decrement = productID
	return &cartsvc.View{}, nil
}

func (s *stubCart) ApplyPromo(_ context.Context, _ cartsvc.Owner, code string) (*cartsvc.View, error) {
	s.promo = code
	if s.err != nil {
		return nil, s.err
	}
	return &cartsvc.View{}, nil
}

func request(method, target, body string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middleware.WithCartSession(ctx, "guest"))
}

func TestCartAddItem(t *testing.T) {
	svc := &stubCart{}
	productID := uuid.New()
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, request(http.MethodPost, "/api/v1/cart/items", `{"product_id":"`+productID.String()+`"}`, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productID, svc.added)
}

func TestCartAddItemOutOfStock(t *testing.T) {
	svc := &stubCart{err: pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock")}
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(rec, request(http.MethodPost, "/api/v1/cart/items", `{"product_id":"`+uuid.NewString()+`"}`, nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "product is out of stock")
}

func TestCartAddItemRejectsBadID(t *testing.T) {
	rec := httptest.NewRecorder()
	CartAddItem(&stubCart{}, nil).ServeHTTP(rec, request(http.MethodPost, "/api/v1/cart/items", `{"product_id":"nope"}`, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartDecrementUsesPathParam(t *testing.T) {
	svc := &stubCart{}
	productID := uuid.New()
	rec := httptest.NewRecorder()
	CartDecrementItem(svc, nil).ServeHTTP(rec, request(http.MethodPost, "/", "", map[string]string{"productID": productID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productID, svc.decrement)
}

func TestCartApplyPromoInvalid(t *testing.T) {
	svc := &stubCart{err: pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code not found")}
	rec := httptest.NewRecorder()
	CartApplyPromo(svc, nil).ServeHTTP(rec, request(http.MethodPost, "/api/v1/cart/promo", `{"code":"NOPE"}`, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "promo code not found")
	assert.Equal(t, "NOPE", svc.promo)
}

func TestCartNilService(t *testing.T) {
	rec := httptest.NewRecorder()
	CartFetch(nil, nil).ServeHTTP(rec, request(http.MethodGet, "/api/v1/cart", "", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
