package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestOrdersService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, "orders")
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      db.FromConn(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		TaxRate: decimal.RequireFromString("0.10"),
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return svc, conn
}

type orderSeed struct {
	userID    *uuid.UUID
	session   string
	status    enums.OrderStatus
	createdAt time.Time
	total     string
}

func seedOrder(t *testing.T, conn *gorm.DB, seed orderSeed) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        seed.userID,
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         "ada@example.com",
		Address:       "1 Analytical St",
		PostalCode:    "10001",
		City:          "London",
		Status:        seed.status,
		TotalPaid:     decimal.RequireFromString(seed.total),
		TransactionID: "ORDER-" + uuid.NewString()[:8],
		CreatedAt:     seed.createdAt,
		Items: []models.OrderItem{
			{ProductName: "Desk Lamp", Price: decimal.RequireFromString("20.00"), Quantity: 2},
			{ProductName: "Notebook", Price: decimal.RequireFromString("10.00"), Quantity: 1},
		},
	}
	if seed.session != "" {
		order.SessionToken = &seed.session
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPending
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = fixedNow.Add(-time.Hour)
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func outboxEvents(t *testing.T, conn *gorm.DB) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestHistoryScopesToOwnerAndFilters(t *testing.T) {
	svc, conn := newTestOrdersService(t)
	ctx := context.Background()
	userID := uuid.New()

	seedOrder(t, conn, orderSeed{userID: &userID, total: "50.00", createdAt: fixedNow.Add(-24 * time.Hour)})
	seedOrder(t, conn, orderSeed{userID: &userID, total: "50.00", status: enums.OrderStatusDelivered, createdAt: fixedNow.AddDate(0, 0, -45)})
	seedOrder(t, conn, orderSeed{userID: &userID, total: "50.00", createdAt: fixedNow.AddDate(0, 0, -200)})
	seedOrder(t, conn, orderSeed{session: "guest-1", total: "50.00"})

	page, err := svc.History(ctx, cart.ForUser(userID), HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))
	assert.Equal(t, 3, page.Items[0].ItemCount)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	month := enums.OrderWindowMonth
	page, err = svc.History(ctx, cart.ForUser(userID), HistoryFilter{Window: &month})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	delivered := enums.OrderStatusDelivered
	page, err = svc.History(ctx, cart.ForUser(userID), HistoryFilter{Status: &delivered})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, enums.OrderStatusDelivered, page.Items[0].Status)

	page, err = svc.History(ctx, cart.ForSession("guest-1"), HistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestHistoryPaginatesTenPerPage(t *testing.T) {
	svc, conn := newTestOrdersService(t)
	userID := uuid.New()
	for i := 0; i < 12; i++ {
		seedOrder(t, conn, orderSeed{userID: &userID, total: "50.00", createdAt: fixedNow.Add(-time.Duration(i+1) * time.Minute)})
	}

	page, err := svc.History(context.Background(), cart.ForUser(userID), HistoryFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.Page)
}

func TestDetailIsOwnerScopedWithTotals(t *testing.T) {
	svc, conn := newTestOrdersService(t)
	ctx := context.Background()
	userID := uuid.New()
	order := seedOrder(t, conn, orderSeed{userID: &userID, total: "45.00"})

	detail, err := svc.Detail(ctx, cart.ForUser(userID), order.ID)
	require.NoError(t, err)
	assert.True(t, detail.Subtotal.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, detail.Discount.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, detail.Tax.Equal(decimal.RequireFromString("5.00")))
	assert.Len(t, detail.Items, 2)
	assert.Equal(t, "Ada", detail.Contact.FirstName)

	_, err = svc.Detail(ctx, cart.ForUser(uuid.New()), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Detail(ctx, cart.ForSession("someone-else"), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateStatusEmitsOnlyOnChange(t *testing.T) {
	svc, conn := newTestOrdersService(t)
	ctx := context.Background()
	order := seedOrder(t, conn, orderSeed{session: "guest", status: enums.OrderStatusProcessing, total: "50.00"})
	admin := uuid.New()

	summary, err := svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusProcessing, ActorUserID: admin})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, summary.Status)
	assert.Empty(t, outboxEvents(t, conn))

	summary, err = svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusShipped, ActorUserID: admin, ActorRole: "admin"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, summary.Status)

	events := outboxEvents(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderStatusChanged, events[0].EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, "admin", envelope.Actor.Role)
	var payload payloads.OrderStatusChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, enums.OrderStatusProcessing, payload.PreviousStatus)
	assert.Equal(t, enums.OrderStatusShipped, payload.Status)
	assert.Len(t, payload.Items, 2)
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	svc, conn := newTestOrdersService(t)
	order := seedOrder(t, conn, orderSeed{session: "guest", status: enums.OrderStatusDelivered, total: "50.00"})

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Status: enums.OrderStatusPending})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: uuid.New(), Status: enums.OrderStatusShipped})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: order.ID, Status: "lost"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApplyPaymentOutcome(t *testing.T) {
	svc, conn := newTestOrdersService(t)
	ctx := context.Background()

	accepted := seedOrder(t, conn, orderSeed{session: "a", total: "50.00"})
	res, err := svc.ApplyPaymentOutcome(ctx, accepted.TransactionID, enums.PaymentOutcomeAccepted)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.Paid)
	assert.Equal(t, enums.OrderStatusProcessing, res.Status)

	// a second confirmation leaves the order alone
	res, err = svc.ApplyPaymentOutcome(ctx, accepted.TransactionID, enums.PaymentOutcomeRejected)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, enums.OrderStatusProcessing, res.Status)

	rejected := seedOrder(t, conn, orderSeed{session: "b", total: "50.00"})
	res, err = svc.ApplyPaymentOutcome(ctx, rejected.TransactionID, enums.PaymentOutcomeRejected)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, res.Status)
	assert.False(t, res.Paid)

	pending := seedOrder(t, conn, orderSeed{session: "c", total: "50.00"})
	res, err = svc.ApplyPaymentOutcome(ctx, pending.TransactionID, enums.PaymentOutcomePending)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, enums.OrderStatusPending, res.Status)

	assert.Len(t, outboxEvents(t, conn), 2)

	_, err = svc.ApplyPaymentOutcome(ctx, "ORDER-missing", enums.PaymentOutcomeAccepted)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPendingPaymentsNeedGatewayReference(t *testing.T) {
	svc, conn := newTestOrdersService(t)
	withRef := seedOrder(t, conn, orderSeed{session: "a", total: "50.00", createdAt: fixedNow.Add(-time.Hour)})
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", withRef.ID).Update("gateway_payment_id", "sq_1").Error)
	seedOrder(t, conn, orderSeed{session: "b", total: "50.00", createdAt: fixedNow.Add(-time.Hour)})
	recent := seedOrder(t, conn, orderSeed{session: "c", total: "50.00", createdAt: fixedNow.Add(-time.Minute)})
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", recent.ID).Update("gateway_payment_id", "sq_2").Error)

	rows, err := svc.PendingPayments(context.Background(), 15*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, withRef.ID, rows[0].ID)
}
