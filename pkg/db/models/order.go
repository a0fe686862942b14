package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the immutable checkout snapshot; only status, paid and the
// gateway reference change after creation.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID           *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	SessionToken     *string           `gorm:"column:session_token;index"`
	PromoCodeID      *uuid.UUID        `gorm:"column:promo_code_id;type:uuid"`
	PromoCode        *PromoCode        `gorm:"foreignKey:PromoCodeID"`
	FirstName        string            `gorm:"column:first_name;not null"`
	LastName         string            `gorm:"column:last_name;not null"`
	Email            string            `gorm:"column:email;not null"`
	Phone            string            `gorm:"column:phone;not null;default:''"`
	Address          string            `gorm:"column:address;not null"`
	PostalCode       string            `gorm:"column:postal_code;not null"`
	City             string            `gorm:"column:city;not null"`
	Status           enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalPaid        decimal.Decimal   `gorm:"column:total_paid;type:numeric(12,2);not null"`
	Paid             bool              `gorm:"column:paid;not null;default:false"`
	TransactionID    string            `gorm:"column:transaction_id;not null;uniqueIndex"`
	GatewayPaymentID *string           `gorm:"column:gateway_payment_id"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	if o.OrderNumber == "" {
		number, err := AllocateOrderNumber(tx)
		if err != nil {
			return err
		}
		o.OrderNumber = number
	}
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return nil
}

const (
	orderNumberSequence = "order_number_seq"
	orderNumberStart    = 1001
)

// OrderCounter backs order numbers on sqlite, which has no sequences.
// Postgres uses order_number_seq instead.
type OrderCounter struct {
	Name      string `gorm:"column:name;primaryKey"`
	LastValue int64  `gorm:"column:last_value;not null"`
}

// AllocateOrderNumber returns the next serial order number. On sqlite the
// counter row is bumped through db, so a rolled back transaction reuses the
// number; postgres sequence values are never reused.
func AllocateOrderNumber(db *gorm.DB) (string, error) {
	db = db.Session(&gorm.Session{NewDB: true})
	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		var next int64
		if err := db.Raw("SELECT nextval(?::regclass)", orderNumberSequence).Scan(&next).Error; err != nil {
			return "", err
		}
		return strconv.FormatInt(next, 10), nil
	}

	seed := OrderCounter{Name: orderNumberSequence, LastValue: orderNumberStart - 1}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", err
	}
	bump := db.Model(&OrderCounter{}).
		Where("name = ?", orderNumberSequence).
		UpdateColumn("last_value", gorm.Expr("last_value + 1"))
	if bump.Error != nil {
		return "", bump.Error
	}
	var counter OrderCounter
	if err := db.Where("name = ?", orderNumberSequence).Take(&counter).Error; err != nil {
		return "", err
	}
	return strconv.FormatInt(counter.LastValue, 10), nil
}

// Subtotal sums the price snapshots of the items.
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OrderItem captures the price at purchase time. ProductID is cleared if the
// product is later deleted.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ProductName string          `gorm:"column:product_name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
