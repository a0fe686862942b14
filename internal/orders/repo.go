package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ListFilter narrows the order history. Since is the lower bound on created_at.
type ListFilter struct {
	Status *enums.OrderStatus
	Since  *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the orders repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// NextOrderNumber draws the next serial order number.
func (r *repository) NextOrderNumber(ctx context.Context) (string, error) {
	return models.AllocateOrderNumber(r.db.WithContext(ctx))
}

// Create inserts the order together with its items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate row-locks the order on postgres so a concurrent status
// change waits for the current transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.Order
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindForOwner(ctx context.Context, id uuid.UUID, owner cart.Owner) (*models.Order, error) {
	var order models.Order
	err := ownerScope(r.withDetail(ctx), owner).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetail(ctx).Where("transaction_id = ?", transactionID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns one page of the owner's orders, newest first, with items.
func (r *repository) List(ctx context.Context, owner cart.Owner, filter ListFilter, params pagination.Params) ([]models.Order, int64, error) {
	scoped := func() *gorm.DB {
		query := ownerScope(r.db.WithContext(ctx).Model(&models.Order{}), owner)
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.Since != nil {
			query = query.Where("created_at >= ?", *filter.Since)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := scoped().
		Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.PageSize).
		Offset(params.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

// SettlePending moves a pending order to status. It reports false when the
// order was no longer pending, which makes repeated confirmations no-ops.
func (r *repository) SettlePending(ctx context.Context, transactionID string, status enums.OrderStatus, paid bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("transaction_id = ? AND status = ?", transactionID, enums.OrderStatusPending).
		Updates(map[string]any{"status": status, "paid": paid, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetGatewayPaymentID(ctx context.Context, id uuid.UUID, paymentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("gateway_payment_id", paymentID).Error
}

// FindPendingPayments lists unpaid orders that reached the gateway before
// createdBefore, oldest first.
func (r *repository) FindPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND paid = ?", enums.OrderStatusPending, false).
		Where("gateway_payment_id IS NOT NULL AND gateway_payment_id <> ''").
		Where("created_at < ?", createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) withDetail(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_name ASC") }).
		Preload("PromoCode")
}

func ownerScope(query *gorm.DB, owner cart.Owner) *gorm.DB {
	if owner.IsGuest() {
		return query.Where("session_token = ? AND user_id IS NULL", owner.SessionToken)
	}
	return query.Where("user_id = ?", *owner.UserID)
}
