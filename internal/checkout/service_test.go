package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 6, 2, 15, 4, 5, 0, time.UTC)

type stubGateway struct {
	mu       sync.Mutex
	requests []payments.InitRequest
	result   *payments.InitResult
	err      error
}

func (s *stubGateway) InitializeTransaction(_ context.Context, req payments.InitRequest) (*payments.InitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &payments.InitResult{PaymentID: "sq_" + req.TransactionID, Outcome: enums.PaymentOutcomePending, RedirectURL: req.ReturnURL}, nil
}

func (s *stubGateway) GetTransaction(context.Context, string) (*payments.TransactionStatus, error) {
	return nil, errors.New("not used")
}

type fixture struct {
	svc     Service
	conn    *gorm.DB
	gateway *stubGateway
}

type failingEmitter struct{}

func (failingEmitter) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox insert failed")
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithOutbox(t, nil)
}

func newFixtureWithOutbox(t *testing.T, emitter outboxEmitter) fixture {
	t.Helper()
	conn := dbtest.Open(t, "checkout")
	if emitter == nil {
		emitter = outbox.NewService(outbox.NewRepository(conn), nil)
	}
	gateway := &stubGateway{}
	svc, err := NewService(ServiceParams{
		Tx:       db.FromConn(conn),
		Carts:    cart.NewRepository(conn),
		Orders:   orders.NewRepository(conn),
		Gateway:  gateway,
		Outbox:   emitter,
		URLs:     config.StorefrontConfig{PublicBaseURL: "https://shop.example"},
		Currency: "USD",
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, gateway: gateway}
}

func (f fixture) product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Slug: name + "-" + uuid.NewString()[:6], CurrentPrice: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, f.conn.Create(p).Error)
	return p
}

func (f fixture) cartWith(t *testing.T, session string, promo *models.PromoCode, lines map[*models.Product]int) *models.Cart {
	t.Helper()
	c := &models.Cart{SessionToken: &session}
	if promo != nil {
		c.PromoCodeID = &promo.ID
	}
	require.NoError(t, f.conn.Create(c).Error)
	for product, qty := range lines {
		require.NoError(t, f.conn.Create(&models.CartItem{CartID: c.ID, ProductID: product.ID, Quantity: qty}).Error)
	}
	return c
}

func (f fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", id).Error)
	return p.Stock
}

func (f fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func validInput() Input {
	return Input{
		Contact: Contact{
			FirstName:  "Grace",
			LastName:   "Hopper",
			Email:      " Grace@Example.com ",
			Address:    "1 Navy Way",
			PostalCode: "22202",
			City:       "Arlington",
		},
		SourceID: "cnon:card-nonce-ok",
	}
}

func TestCheckoutCartPlacesOrder(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "lamp", "20.00", 5)
	desk := f.product(t, "desk", "100.00", 1)
	promo := &models.PromoCode{Code: "SAVE10", DiscountPercentage: 10, ValidFrom: fixedNow.Add(-time.Hour), ValidTo: fixedNow.Add(time.Hour), Active: true}
	require.NoError(t, f.conn.Create(promo).Error)
	f.cartWith(t, "guest-1", promo, map[*models.Product]int{lamp: 2, desk: 1})

	res, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("guest-1"), validInput())
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentOutcomePending, res.PaymentStatus)
	assert.Equal(t, "ORDER-"+res.OrderNumber+"-"+"1780412645", res.TransactionID)
	assert.Equal(t, "https://shop.example/api/v1/orders/"+res.OrderID.String()+"/payment-return", res.RedirectURL)

	var order models.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.True(t, order.TotalPaid.Equal(decimal.RequireFromString("126.00")))
	assert.Equal(t, &promo.ID, order.PromoCodeID)
	assert.Equal(t, "grace@example.com", order.Email)
	require.NotNil(t, order.GatewayPaymentID)
	assert.Equal(t, "sq_"+res.TransactionID, *order.GatewayPaymentID)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, enums.OrderStatusPending, order.Status)

	assert.Equal(t, 3, f.stock(t, lamp.ID))
	assert.Equal(t, 0, f.stock(t, desk.ID))
	assert.Equal(t, int64(0), f.count(t, &models.Cart{}))
	assert.Equal(t, int64(0), f.count(t, &models.CartItem{}))

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCreated, events[0].EventType)

	require.Len(t, f.gateway.requests, 1)
	assert.True(t, f.gateway.requests[0].Amount.Equal(decimal.RequireFromString("126.00")))
	assert.Equal(t, "https://shop.example/api/v1/webhooks/payments", f.gateway.requests[0].NotifyURL)
}

func TestCheckoutCartIgnoresExpiredPromo(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "lamp", "20.00", 5)
	promo := &models.PromoCode{Code: "OLD", DiscountPercentage: 50, ValidFrom: fixedNow.AddDate(0, -2, 0), ValidTo: fixedNow.AddDate(0, -1, 0), Active: true}
	require.NoError(t, f.conn.Create(promo).Error)
	f.cartWith(t, "guest-1", promo, map[*models.Product]int{lamp: 1})

	res, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("guest-1"), validInput())
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", res.OrderID).Error)
	assert.True(t, order.TotalPaid.Equal(decimal.RequireFromString("20.00")))
	assert.Nil(t, order.PromoCodeID)
}

func TestCheckoutCartEmpty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("nobody"), validInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, MsgCartEmpty, pkgerrors.As(err).Message())

	f.cartWith(t, "empty", nil, nil)
	_, err = f.svc.CheckoutCart(context.Background(), cart.ForSession("empty"), validInput())
	assert.Equal(t, MsgCartEmpty, pkgerrors.As(err).Message())
	assert.Empty(t, f.gateway.requests)
}

func TestCheckoutCartInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "lamp", "20.00", 5)
	desk := f.product(t, "desk", "100.00", 1)
	f.cartWith(t, "guest-1", nil, map[*models.Product]int{lamp: 1, desk: 2})

	_, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("guest-1"), validInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))
	assert.Contains(t, pkgerrors.As(err).Message(), "desk")

	assert.Equal(t, 5, f.stock(t, lamp.ID))
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
	assert.Equal(t, int64(2), f.count(t, &models.CartItem{}))
	assert.Empty(t, f.gateway.requests)
}

func TestCheckoutCartGatewayFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "lamp", "20.00", 5)
	f.cartWith(t, "guest-1", nil, map[*models.Product]int{lamp: 2})
	f.gateway.err = pkgerrors.New(pkgerrors.CodeDependency, "square unavailable")

	_, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("guest-1"), validInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePayment))
	assert.Equal(t, MsgPaymentFailed, pkgerrors.As(err).Message())

	assert.Equal(t, 5, f.stock(t, lamp.ID))
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
	assert.Equal(t, int64(1), f.count(t, &models.Cart{}))
	assert.Equal(t, int64(0), f.count(t, &models.OutboxEvent{}))
}

func TestCheckoutCartRejectedPaymentRollsBack(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "lamp", "20.00", 5)
	f.cartWith(t, "guest-1", nil, map[*models.Product]int{lamp: 1})
	f.gateway.result = &payments.InitResult{PaymentID: "sq_1", Outcome: enums.PaymentOutcomeRejected}

	_, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("guest-1"), validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePayment))
	assert.Equal(t, 5, f.stock(t, lamp.ID))
}

func TestCheckoutValidatesContact(t *testing.T) {
	f := newFixture(t)
	input := validInput()
	input.Contact.City = " "
	_, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("guest-1"), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]any{"missing": []string{"city"}}, pkgerrors.As(err).Details())

	input = validInput()
	input.SourceID = ""
	_, err = f.svc.BuyNow(context.Background(), cart.ForSession("guest-1"), uuid.New(), input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBuyNowLeavesCartAlone(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "lamp", "20.00", 1)
	desk := f.product(t, "desk", "80.00", 3)
	userID := uuid.New()
	owner := cart.ForUser(userID)
	userCart := &models.Cart{UserID: &userID}
	require.NoError(t, f.conn.Create(userCart).Error)
	require.NoError(t, f.conn.Create(&models.CartItem{CartID: userCart.ID, ProductID: desk.ID, Quantity: 2}).Error)

	res, err := f.svc.BuyNow(context.Background(), owner, lamp.ID, validInput())
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.True(t, order.TotalPaid.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, &userID, order.UserID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].Quantity)
	assert.Equal(t, 0, f.stock(t, lamp.ID))
	assert.Equal(t, int64(1), f.count(t, &models.CartItem{}))

	_, err = f.svc.BuyNow(context.Background(), owner, lamp.ID, validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))

	_, err = f.svc.BuyNow(context.Background(), owner, uuid.New(), validInput())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTransactionIDFor(t *testing.T) {
	assert.Equal(t, "ORDER-ABCD1234-1780412645", TransactionIDFor("ABCD1234", fixedNow))
}

func TestCheckoutFailureBeforeChargeSkipsGateway(t *testing.T) {
	f := newFixtureWithOutbox(t, failingEmitter{})
	lamp := f.product(t, "lamp", "20.00", 5)
	f.cartWith(t, "guest-1", nil, map[*models.Product]int{lamp: 2})

	_, err := f.svc.CheckoutCart(context.Background(), cart.ForSession("guest-1"), validInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePayment))

	assert.Empty(t, f.gateway.requests)
	assert.Equal(t, 5, f.stock(t, lamp.ID))
	assert.Equal(t, int64(0), f.count(t, &models.Order{}))
	assert.Equal(t, int64(1), f.count(t, &models.Cart{}))
}

func TestOrderNumbersAreSerial(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "lamp", "20.00", 5)

	first, err := f.svc.BuyNow(context.Background(), cart.ForSession("guest-1"), lamp.ID, validInput())
	require.NoError(t, err)
	second, err := f.svc.BuyNow(context.Background(), cart.ForSession("guest-2"), lamp.ID, validInput())
	require.NoError(t, err)

	assert.Equal(t, "1001", first.OrderNumber)
	assert.Equal(t, "1002", second.OrderNumber)
	assert.Equal(t, "ORDER-1002-1780412645", second.TransactionID)
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	f := newFixture(t)
	sqlDB, err := f.conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	lamp := f.product(t, "lamp", "20.00", 1)
	const buyers = 4
	for i := range buyers {
		f.cartWith(t, fmt.Sprintf("guest-%d", i), nil, map[*models.Product]int{lamp: 1})
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := range buyers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CheckoutCart(context.Background(), cart.ForSession(fmt.Sprintf("guest-%d", i)), validInput())
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 0, f.stock(t, lamp.ID))
	assert.Equal(t, int64(1), f.count(t, &models.Order{}))
	assert.Len(t, f.gateway.requests, 1)
}
