package reviews

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type reviewFixture struct {
	svc     Service
	conn    *gorm.DB
	user    *models.User
	product *models.Product
}

func newReviewFixture(t *testing.T) reviewFixture {
	t.Helper()
	conn := dbtest.Open(t, "reviews")
	user := &models.User{Username: "ada", Email: "ada@example.com", PasswordHash: "x"}
	require.NoError(t, conn.Create(user).Error)
	product := &models.Product{Name: "Desk Lamp", Slug: "desk-lamp", CurrentPrice: decimal.RequireFromString("20.00"), Stock: 3}
	require.NoError(t, conn.Create(product).Error)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return reviewFixture{svc: svc, conn: conn, user: user, product: product}
}

func (f reviewFixture) seedOrder(t *testing.T, status enums.OrderStatus) {
	t.Helper()
	productID := f.product.ID
	order := &models.Order{
		UserID:        &f.user.ID,
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         f.user.Email,
		Address:       "1 Analytical St",
		PostalCode:    "10001",
		City:          "London",
		Status:        status,
		TotalPaid:     decimal.RequireFromString("20.00"),
		TransactionID: "ORDER-" + uuid.NewString()[:8],
		Items: []models.OrderItem{
			{ProductID: &productID, ProductName: f.product.Name, Price: f.product.CurrentPrice, Quantity: 1},
		},
	}
	require.NoError(t, f.conn.Create(order).Error)
}

func TestCreateRequiresDeliveredOrder(t *testing.T) {
	f := newReviewFixture(t)
	f.seedOrder(t, enums.OrderStatusShipped)

	_, err := f.svc.Create(context.Background(), CreateInput{UserID: f.user.ID, ProductID: f.product.ID, Rating: 5})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCreateAndList(t *testing.T) {
	f := newReviewFixture(t)
	f.seedOrder(t, enums.OrderStatusDelivered)

	created, err := f.svc.Create(context.Background(), CreateInput{UserID: f.user.ID, ProductID: f.product.ID, Rating: 4, Comment: " bright "})
	require.NoError(t, err)
	assert.Equal(t, "bright", created.Comment)

	list, err := f.svc.List(context.Background(), f.product.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ada", list[0].Username)
	assert.Equal(t, 4, list[0].Rating)
}

func TestCreateOncePerProduct(t *testing.T) {
	f := newReviewFixture(t)
	f.seedOrder(t, enums.OrderStatusDelivered)
	input := CreateInput{UserID: f.user.ID, ProductID: f.product.ID, Rating: 5}

	_, err := f.svc.Create(context.Background(), input)
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateRatingBounds(t *testing.T) {
	f := newReviewFixture(t)
	for _, rating := range []int{0, 6} {
		_, err := f.svc.Create(context.Background(), CreateInput{UserID: f.user.ID, ProductID: f.product.ID, Rating: rating})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}
}
