package coupons

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
)

// Repository defines persistence operations for coupons and their usage
// ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListActive(ctx context.Context) ([]models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	UsageExists(ctx context.Context, couponID, orderID uuid.UUID) (bool, error)
	// ConsumeBudget increments used_count only while the global limit
	// holds. A false return means the budget race was lost.
	ConsumeBudget(ctx context.Context, couponID uuid.UUID) (bool, error)
	CreateUsage(ctx context.Context, usage *models.CouponUsage) error
}

// ValidationResult reports whether a coupon can be applied and, when it
// cannot, the first failing rule in the documented order.
type ValidationResult struct {
	Valid  bool
	Reason string
	Coupon *models.Coupon
}

// ValidateInput carries the order context a coupon is checked against.
type ValidateInput struct {
	Code          string
	UserID        uuid.UUID
	Subtotal      decimal.Decimal
	StoreID       uuid.UUID
	StoreCategory *string
}

// ConsumeInput records one coupon consumption for one order.
type ConsumeInput struct {
	CouponID        uuid.UUID
	OrderID         uuid.UUID
	UserID          uuid.UUID
	OrderValue      decimal.Decimal
	DiscountApplied decimal.Decimal
}
