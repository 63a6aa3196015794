package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponUsage records one consumption of a coupon by an order. The unique
// (coupon_id, order_id) pair makes repeated consumption attempts for the
// same order no-ops.
type CouponUsage struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID       uuid.UUID       `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_order"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_coupon_usages_coupon_order"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
