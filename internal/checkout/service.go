package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/reservation"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/promos"
	pkgcheckout "github.com/angelmondragon/storefront-backend/pkg/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const (
	MsgCartEmpty     = "cart is empty"
	MsgPaymentFailed = "payment could not be initiated, please retry"

	flowCart   = "cart"
	flowBuyNow = "buy_now"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockReservationRequest) ([]reservation.StockReservationResult, error)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockReservationRequest) ([]reservation.StockReservationResult, error) {
	return reservation.ReserveStock(ctx, tx, requests)
}

// URLBuilder produces the gateway return and notification targets.
type URLBuilder interface {
	ReturnURL(orderID string) string
	NotifyURL() string
}

// Service places orders from a cart or a single product.
type Service interface {
	CheckoutCart(ctx context.Context, owner cart.Owner, input Input) (*Result, error)
	BuyNow(ctx context.Context, owner cart.Owner, productID uuid.UUID, input Input) (*Result, error)
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Tx          txRunner
	Carts       cart.CartRepository
	Orders      orders.Repository
	Gateway     payments.Gateway
	Outbox      outboxEmitter
	Reservation reservationRunner
	URLs        URLBuilder
	Metrics     *metrics.CheckoutMetrics
	Logger      *logger.Logger
	Currency    string
	Now         func() time.Time
}

type service struct {
	tx          txRunner
	carts       cart.CartRepository
	orders      orders.Repository
	gateway     payments.Gateway
	outbox      outboxEmitter
	reservation reservationRunner
	urls        URLBuilder
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	currency    string
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.URLs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "url builder required")
	}
	res := params.Reservation
	if res == nil {
		res = reservationEngine{}
	}
	currency := params.Currency
	if currency == "" {
		currency = "USD"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:          params.Tx,
		carts:       params.Carts,
		orders:      params.Orders,
		gateway:     params.Gateway,
		outbox:      params.Outbox,
		reservation: res,
		urls:        params.URLs,
		metrics:     params.Metrics,
		logg:        params.Logger,
		currency:    currency,
		now:         now,
	}, nil
}

// draft is an order about to be placed along with the cart it consumes.
type draft struct {
	order      *models.Order
	lines      []reservation.StockReservationRequest
	cartToDrop *uuid.UUID
}

// CheckoutCart turns the owner's cart into an order and initiates payment.
// Stock, order, cart removal and the order.created event commit together or
// not at all.
func (s *service) CheckoutCart(ctx context.Context, owner cart.Owner, input Input) (*Result, error) {
	owner, input, err := s.prepare(owner, input)
	if err != nil {
		return nil, err
	}

	return s.place(ctx, flowCart, owner, input, func(tx *gorm.DB, now time.Time) (*draft, error) {
		repo := s.carts.WithTx(tx)
		record, err := repo.FindByOwner(ctx, owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, MsgCartEmpty)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		record, err = repo.LoadWithItems(ctx, record.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Items) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, MsgCartEmpty)
		}

		checks := make([]pkgcheckout.StockValidationInput, 0, len(record.Items))
		items := make([]models.OrderItem, 0, len(record.Items))
		lines := make([]reservation.StockReservationRequest, 0, len(record.Items))
		subtotal := decimal.Zero
		for _, item := range record.Items {
			if item.Product == nil {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			product := item.Product
			checks = append(checks, pkgcheckout.StockValidationInput{
				ProductID:   product.ID,
				ProductName: product.Name,
				Stock:       product.Stock,
				Quantity:    item.Quantity,
			})
			productID := product.ID
			items = append(items, models.OrderItem{
				ProductID:   &productID,
				ProductName: product.Name,
				Price:       product.CurrentPrice,
				Quantity:    item.Quantity,
			})
			lines = append(lines, reservation.StockReservationRequest{ProductID: product.ID, ProductName: product.Name, Qty: item.Quantity})
			subtotal = subtotal.Add(product.CurrentPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		if err := pkgcheckout.ValidateStock(checks); err != nil {
			return nil, err
		}

		totals := promos.Compute(subtotal, record.PromoCode, now)
		order := s.newOrder(owner, input.Contact, totals.Total, items)
		if totals.Applied {
			order.PromoCodeID = record.PromoCodeID
		}
		cartID := record.ID
		return &draft{order: order, lines: lines, cartToDrop: &cartID}, nil
	})
}

// BuyNow places a single-unit order for productID at its current price,
// leaving the owner's cart untouched.
func (s *service) BuyNow(ctx context.Context, owner cart.Owner, productID uuid.UUID, input Input) (*Result, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	owner, input, err := s.prepare(owner, input)
	if err != nil {
		return nil, err
	}

	return s.place(ctx, flowBuyNow, owner, input, func(tx *gorm.DB, _ time.Time) (*draft, error) {
		product, err := s.carts.WithTx(tx).FindProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if err := pkgcheckout.ValidateStock([]pkgcheckout.StockValidationInput{{
			ProductID:   product.ID,
			ProductName: product.Name,
			Stock:       product.Stock,
			Quantity:    1,
		}}); err != nil {
			return nil, err
		}
		id := product.ID
		items := []models.OrderItem{{ProductID: &id, ProductName: product.Name, Price: product.CurrentPrice, Quantity: 1}}
		order := s.newOrder(owner, input.Contact, product.CurrentPrice.Round(2), items)
		return &draft{
			order: order,
			lines: []reservation.StockReservationRequest{{ProductID: product.ID, ProductName: product.Name, Qty: 1}},
		}, nil
	})
}

func (s *service) prepare(owner cart.Owner, input Input) (cart.Owner, Input, error) {
	owner, err := owner.Normalize()
	if err != nil {
		return owner, input, err
	}
	input, err = input.validate()
	if err != nil {
		return owner, input, err
	}
	return owner, input, nil
}

func (s *service) place(ctx context.Context, flow string, owner cart.Owner, input Input, build func(tx *gorm.DB, now time.Time) (*draft, error)) (*Result, error) {
	now := s.now().UTC()
	var result *Result
	var placed *models.Order
	var charged *payments.InitResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		d, err := build(tx, now)
		if err != nil {
			return err
		}
		order := d.order
		ordersRepo := s.orders.WithTx(tx)

		number, err := ordersRepo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}
		order.OrderNumber = number
		order.TransactionID = TransactionIDFor(order.OrderNumber, now)

		reserved, err := s.reservation.Reserve(ctx, tx, d.lines)
		if err != nil {
			return err
		}
		if rejected, ok := reservation.FirstRejected(reserved); ok {
			return pkgcheckout.OutOfStock(rejected.ProductName)
		}

		if err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if d.cartToDrop != nil {
			if err := s.carts.WithTx(tx).Delete(ctx, *d.cartToDrop); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}
		if err := s.emitOrderCreated(ctx, tx, order); err != nil {
			return err
		}

		// The gateway charges the customer, so it runs once every other
		// write has succeeded.
		init, err := s.gateway.InitializeTransaction(ctx, payments.InitRequest{
			TransactionID: order.TransactionID,
			Amount:        order.TotalPaid,
			Currency:      s.currency,
			Description:   "Order " + order.OrderNumber,
			Customer:      input.Contact.customer(),
			SourceID:      input.SourceID,
			ReturnURL:     s.urls.ReturnURL(order.ID.String()),
			NotifyURL:     s.urls.NotifyURL(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePayment, err, MsgPaymentFailed)
		}
		if init.Outcome == enums.PaymentOutcomeRejected {
			return pkgerrors.New(pkgerrors.CodePayment, MsgPaymentFailed)
		}
		charged = init
		if init.PaymentID != "" {
			if err := ordersRepo.SetGatewayPaymentID(ctx, order.ID, init.PaymentID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment reference")
			}
			paymentID := init.PaymentID
			order.GatewayPaymentID = &paymentID
		}

		placed = order
		result = &Result{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			TransactionID: order.TransactionID,
			PaymentStatus: init.Outcome,
			RedirectURL:   init.RedirectURL,
		}
		return nil
	})
	if err != nil {
		if charged != nil && s.logg != nil {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"flow":               flow,
				"gateway_payment_id": charged.PaymentID,
			}), "checkout.charged_without_order", err)
		}
		return nil, s.fail(ctx, flow, owner, err)
	}

	s.metrics.Observe(flow, metrics.CheckoutPlaced)
	s.metrics.ObserveOrderValue(flow, placed.TotalPaid)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       placed.ID.String(),
			"transaction_id": placed.TransactionID,
			"flow":           flow,
			"total_paid":     placed.TotalPaid.StringFixed(2),
		})
		s.logg.Info(logCtx, "order placed")
	}
	return result, nil
}

// fail maps a rolled-back checkout to the caller-facing error. Stock and
// input problems pass through; anything else is a payment failure.
func (s *service) fail(ctx context.Context, flow string, owner cart.Owner, err error) error {
	outcome := metrics.CheckoutPaymentError
	var out error
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock):
		outcome, out = metrics.CheckoutOutOfStock, err
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		outcome = metrics.CheckoutFailed
		if typed := pkgerrors.As(err); typed != nil && typed.Message() == MsgCartEmpty {
			outcome = metrics.CheckoutEmptyCart
		}
		out = err
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		outcome, out = metrics.CheckoutFailed, err
	default:
		out = pkgerrors.Wrap(pkgerrors.CodePayment, err, MsgPaymentFailed)
	}
	s.metrics.Observe(flow, outcome)

	if s.logg != nil && outcome == metrics.CheckoutPaymentError {
		fields := map[string]any{"flow": flow, "guest": owner.IsGuest()}
		s.logg.Error(s.logg.WithFields(ctx, fields), "checkout failed", err)
	}
	return out
}

func (s *service) newOrder(owner cart.Owner, contact Contact, total decimal.Decimal, items []models.OrderItem) *models.Order {
	return &models.Order{
		ID:           uuid.New(),
		UserID:       owner.UserID,
		SessionToken: owner.SessionPtr(),
		FirstName:    contact.FirstName,
		LastName:     contact.LastName,
		Email:        contact.Email,
		Phone:        contact.Phone,
		Address:      contact.Address,
		PostalCode:   contact.PostalCode,
		City:         contact.City,
		Status:       enums.OrderStatusPending,
		TotalPaid:    total,
		Items:        items,
	}
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	var actor *outbox.ActorRef
	if order.UserID != nil {
		actor = &outbox.ActorRef{UserID: order.UserID, Role: string(enums.UserRoleCustomer)}
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			TransactionID: order.TransactionID,
			UserID:        order.UserID,
			Email:         order.Email,
			FirstName:     order.FirstName,
			LastName:      order.LastName,
			TotalPaid:     order.TotalPaid.StringFixed(2),
			Currency:      s.currency,
			Items:         orders.OrderLines(order.Items),
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
	}
	return nil
}

// TransactionIDFor builds the gateway reference for an order.
func TransactionIDFor(orderNumber string, now time.Time) string {
	return fmt.Sprintf("ORDER-%s-%d", orderNumber, now.Unix())
}
