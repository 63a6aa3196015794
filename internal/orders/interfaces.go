package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// Repository defines persistence operations for orders, their items, and
// the tracking log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Page, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AppendTracking(ctx context.Context, event *models.OrderTrackingEvent) error
	FindTracking(ctx context.Context, orderID uuid.UUID) ([]models.OrderTrackingEvent, error)
	// ConfirmPaid flips the order into confirmed/succeeded only while the
	// payment has not yet been recorded as succeeded. False means another
	// channel won the race.
	ConfirmPaid(ctx context.Context, id uuid.UUID) (bool, error)
	// ClaimCouponConsumption flips coupon_consumed from false to true.
	// False means the coupon was already consumed for this order.
	ClaimCouponConsumption(ctx context.Context, id uuid.UUID) (bool, error)
	SetPaymentOutcome(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error
}

// StatusUpdateInput carries an explicit status transition request.
type StatusUpdateInput struct {
	OrderID  uuid.UUID
	Status   enums.OrderStatus
	Notes    *string
	Location *types.Location
}
