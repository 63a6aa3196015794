package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppliedCoupon is the immutable coupon snapshot attached to a cart or order.
// Later coupon edits never alter it.
type AppliedCoupon struct {
	CouponID        uuid.UUID       `json:"coupon_id"`
	Code            string          `json:"code"`
	DiscountType    string          `json:"discount_type"`
	DiscountValue   decimal.Decimal `json:"discount_value"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
}
