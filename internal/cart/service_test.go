package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/promos"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestCartService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, "cart")
	promoSvc, err := promos.NewService(promos.NewRepository(conn))
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     db.FromConn(conn),
		Promos: promoSvc,
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, conn
}

func mustProduct(t *testing.T, conn *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Slug: uniqueSlugFor(name), CurrentPrice: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func mustPromo(t *testing.T, conn *gorm.DB, code string, pct int, from, to time.Time) *models.PromoCode {
	t.Helper()
	p := &models.PromoCode{Code: code, DiscountPercentage: pct, ValidFrom: from, ValidTo: to, Active: true}
	require.NoError(t, conn.Create(p).Error)
	return p
}

func uniqueSlugFor(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

func TestOwnerNormalize(t *testing.T) {
	userID := uuid.New()
	owner, err := Owner{UserID: &userID, SessionToken: "guest"}.Normalize()
	require.NoError(t, err)
	assert.False(t, owner.IsGuest())
	assert.Nil(t, owner.SessionPtr())

	_, err = Owner{}.Normalize()
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestResolveIsLazyAndStable(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, ForSession("tok-1"))
	require.NoError(t, err)
	second, err := svc.Resolve(ctx, ForSession("tok-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, conn.Model(&models.Cart{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddCapsAtStock(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	owner := ForSession("tok-add")
	lamp := mustProduct(t, conn, "lamp", "10.00", 2)

	view, err := svc.Add(ctx, owner, lamp.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)

	view, err = svc.Add(ctx, owner, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, "20.00", view.Total.StringFixed(2))

	_, err = svc.Add(ctx, owner, lamp.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))
	assert.Equal(t, MsgMaxStockReached, pkgerrors.As(err).Message())

	view, err = svc.View(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestAddOutOfStockLeavesCartUnchanged(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	owner := ForSession("tok-oos")
	gone := mustProduct(t, conn, "gone", "5.00", 0)

	_, err := svc.Add(ctx, owner, gone.ID)
	require.Error(t, err)
	assert.Equal(t, MsgOutOfStock, pkgerrors.As(err).Message())

	view, err := svc.View(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.Add(ctx, owner, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDecrementDeletesAtOne(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	owner := ForSession("tok-dec")
	mug := mustProduct(t, conn, "mug", "4.50", 5)

	_, err := svc.Add(ctx, owner, mug.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, owner, mug.ID)
	require.NoError(t, err)

	view, err := svc.Decrement(ctx, owner, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Items[0].Quantity)

	view, err = svc.Decrement(ctx, owner, mug.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = svc.Decrement(ctx, owner, mug.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveItemAndEmpty(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	owner := ForSession("tok-rm")
	a := mustProduct(t, conn, "a", "1.00", 5)
	b := mustProduct(t, conn, "b", "2.00", 5)

	_, err := svc.Add(ctx, owner, a.ID)
	require.NoError(t, err)
	view, err := svc.Add(ctx, owner, b.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	_, err = svc.RemoveItem(ctx, ForSession("someone-else"), view.Items[0].ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	view, err = svc.RemoveItem(ctx, owner, view.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)

	view, err = svc.Empty(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Total.IsZero())
}

func TestApplyPromoAndTotals(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	owner := ForSession("tok-promo")
	p := mustProduct(t, conn, "chair", "33.33", 5)
	mustPromo(t, conn, "SAVE15", 15, fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))
	mustPromo(t, conn, "OLD", 50, fixedNow.Add(-48*time.Hour), fixedNow.Add(-24*time.Hour))

	_, err := svc.Add(ctx, owner, p.ID)
	require.NoError(t, err)

	view, err := svc.ApplyPromo(ctx, owner, "save15")
	require.NoError(t, err)
	require.NotNil(t, view.PromoCode)
	assert.True(t, view.PromoCode.Applied)
	assert.Equal(t, "33.33", view.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", view.Discount.StringFixed(2))
	assert.Equal(t, "28.33", view.Total.StringFixed(2))

	_, err = svc.ApplyPromo(ctx, owner, "OLD")
	require.Error(t, err)
	assert.Equal(t, promos.MsgPromoInvalid, pkgerrors.As(err).Message())

	_, err = svc.ApplyPromo(ctx, owner, "missing")
	assert.Equal(t, promos.MsgPromoNotFound, pkgerrors.As(err).Message())

	view, err = svc.ApplyPromo(ctx, owner, "   ")
	require.NoError(t, err)
	assert.Nil(t, view.PromoCode)
	assert.Equal(t, "33.33", view.Total.StringFixed(2))
}

func TestCount(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	owner := ForSession("tok-count")

	count, err := svc.Count(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, Count{}, count)

	a := mustProduct(t, conn, "a", "1.00", 5)
	b := mustProduct(t, conn, "b", "1.00", 5)
	for _, id := range []uuid.UUID{a.ID, a.ID, b.ID} {
		_, err := svc.Add(ctx, owner, id)
		require.NoError(t, err)
	}

	count, err = svc.Count(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, Count{Lines: 2, Quantity: 3}, count)
}

func TestMergeGuestIntoUser(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	user := &models.User{Username: "merge", Email: "merge@example.com", PasswordHash: "x"}
	require.NoError(t, conn.Create(user).Error)

	shared := mustProduct(t, conn, "shared", "10.00", 10)
	guestOnly := mustProduct(t, conn, "guest-only", "3.00", 10)
	promo := mustPromo(t, conn, "WELCOME", 10, fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))

	guest := ForSession("tok-merge")
	userOwner := ForUser(user.ID)

	_, err := svc.Add(ctx, userOwner, shared.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, guest, shared.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, guest, shared.ID)
	require.NoError(t, err)
	_, err = svc.Add(ctx, guest, guestOnly.ID)
	require.NoError(t, err)
	_, err = svc.ApplyPromo(ctx, guest, promo.Code)
	require.NoError(t, err)

	require.NoError(t, svc.MergeGuestIntoUser(ctx, "tok-merge", user.ID))

	view, err := svc.View(ctx, userOwner)
	require.NoError(t, err)
	quantities := map[uuid.UUID]int{}
	for _, line := range view.Items {
		quantities[line.Product.ID] = line.Quantity
	}
	assert.Equal(t, 3, quantities[shared.ID])
	assert.Equal(t, 1, quantities[guestOnly.ID])
	require.NotNil(t, view.PromoCode)
	assert.Equal(t, "WELCOME", view.PromoCode.Code)

	var guestCarts int64
	require.NoError(t, conn.Model(&models.Cart{}).Where("session_token = ?", "tok-merge").Count(&guestCarts).Error)
	assert.Zero(t, guestCarts)

	// second merge has nothing to do
	require.NoError(t, svc.MergeGuestIntoUser(ctx, "tok-merge", user.ID))
}

func TestMergeGuestWithoutUserCartReassigns(t *testing.T) {
	svc, conn := newTestCartService(t)
	ctx := context.Background()
	user := &models.User{Username: "fresh", Email: "fresh@example.com", PasswordHash: "x"}
	require.NoError(t, conn.Create(user).Error)
	p := mustProduct(t, conn, "p", "2.00", 3)

	guestCart, err := svc.Resolve(ctx, ForSession("tok-fresh"))
	require.NoError(t, err)
	_, err = svc.Add(ctx, ForSession("tok-fresh"), p.ID)
	require.NoError(t, err)

	require.NoError(t, svc.MergeGuestIntoUser(ctx, "tok-fresh", user.ID))

	userCart, err := svc.Resolve(ctx, ForUser(user.ID))
	require.NoError(t, err)
	assert.Equal(t, guestCart.ID, userCart.ID)
	assert.Nil(t, userCart.SessionToken)
}
