package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'placed',
  subtotal NUMERIC NOT NULL,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  tip NUMERIC NOT NULL DEFAULT 0,
  discount NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL,
  applied_coupon TEXT,
  coupon_consumed INTEGER NOT NULL DEFAULT 0,
  payment_id TEXT,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'card',
  delivery_address TEXT,
  delivery_distance_km NUMERIC NOT NULL DEFAULT 0,
  cancellation_reason TEXT,
  confirmed_at DATETIME,
  picked_up_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  selected_variant TEXT,
  customizations TEXT,
  total_price NUMERIC NOT NULL,
  created_at DATETIME
);`
	trackingEvents := `
CREATE TABLE IF NOT EXISTS order_tracking_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  notes TEXT,
  location TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec(trackingEvents).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, customerID uuid.UUID, created time.Time, paymentStatus enums.PaymentStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   fmt.Sprintf("HD-%s", uuid.NewString()[:13]),
		CustomerID:    customerID,
		StoreID:       uuid.New(),
		Status:        enums.OrderStatusPlaced,
		Subtotal:      decimal.NewFromInt(180),
		DeliveryFee:   decimal.NewFromInt(25),
		Total:         decimal.NewFromInt(205),
		PaymentStatus: paymentStatus,
		PaymentMethod: enums.PaymentMethodCard,
		DeliveryAddress: types.Address{
			Street:     "14 Kloof Street",
			City:       "Cape Town",
			PostalCode: "8001",
			Country:    "ZA",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, db.Create(order).Error)

	item := &models.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   uuid.New(),
		ProductName: "Peri-Peri Chicken Wrap",
		Quantity:    2,
		UnitPrice:   decimal.NewFromInt(90),
		TotalPrice:  decimal.NewFromInt(180),
		CreatedAt:   created,
	}
	require.NoError(t, db.Create(item).Error)
	return order
}

func TestRepositoryListByCustomer_pagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	customerID := uuid.New()
	now := time.Now().UTC()
	older := seedOrder(t, db, customerID, now.Add(-time.Hour), enums.PaymentStatusSucceeded)
	newer := seedOrder(t, db, customerID, now, enums.PaymentStatusPending)
	seedOrder(t, db, uuid.New(), now, enums.PaymentStatusPending)

	first, page, err := repo.ListByCustomer(context.Background(), customerID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, newer.ID, first[0].ID)
	require.True(t, page.HasMore)
	require.NotEmpty(t, page.NextCursor)

	second, page, err := repo.ListByCustomer(context.Background(), customerID, pagination.Params{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, older.ID, second[0].ID)
	assert.False(t, page.HasMore)
}

func TestRepositoryFindByID_preloadsItemsAndTracking(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), time.Now().UTC(), enums.PaymentStatusPending)
	require.NoError(t, repo.AppendTracking(context.Background(), &models.OrderTrackingEvent{
		ID:      uuid.New(),
		OrderID: order.ID,
		Status:  enums.OrderStatusPlaced,
	}))

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Peri-Peri Chicken Wrap", found.Items[0].ProductName)
	require.Len(t, found.TrackingHistory, 1)

	_, err = repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestRepositoryConfirmPaid_firstCallerWins(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), time.Now().UTC(), enums.PaymentStatusPending)

	won, err := repo.ConfirmPaid(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, won)

	again, err := repo.ConfirmPaid(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, again)

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, found.Status)
	assert.Equal(t, enums.PaymentStatusSucceeded, found.PaymentStatus)
	assert.NotNil(t, found.ConfirmedAt)
}

func TestRepositoryConfirmPaid_ignoresCancelledOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), time.Now().UTC(), enums.PaymentStatusPending)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", enums.OrderStatusCancelled).Error)

	won, err := repo.ConfirmPaid(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, won, "late success signal must not resurrect a cancelled order")

	found, err := repo.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, found.Status)
	assert.Equal(t, enums.PaymentStatusPending, found.PaymentStatus)
}

func TestRepositoryClaimCouponConsumption_skipsCancelledOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), time.Now().UTC(), enums.PaymentStatusPending)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", enums.OrderStatusCancelled).Error)

	claimed, err := repo.ClaimCouponConsumption(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRepositoryClaimCouponConsumption_singleClaim(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order := seedOrder(t, db, uuid.New(), time.Now().UTC(), enums.PaymentStatusPending)

	claimed, err := repo.ClaimCouponConsumption(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := repo.ClaimCouponConsumption(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, again)
}
