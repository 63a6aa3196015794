package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
)

// Coupon is a promotional code. UsedCount only ever moves by conditional
// increment so concurrent consumers cannot push it past UsageLimit.
type Coupon struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                 string             `gorm:"column:code;not null;uniqueIndex"`
	Description          *string            `gorm:"column:description"`
	DiscountType         enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue        decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount       decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscountAmount    *decimal.Decimal   `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	UsageLimit           *int               `gorm:"column:usage_limit"`
	UsedCount            int                `gorm:"column:used_count;not null;default:0"`
	UserUsageLimit       *int               `gorm:"column:user_usage_limit"`
	ApplicableStores     pq.StringArray     `gorm:"column:applicable_stores;type:text[]"`
	ApplicableCategories pq.StringArray     `gorm:"column:applicable_categories;type:text[]"`
	ValidFrom            *time.Time         `gorm:"column:valid_from"`
	ValidUntil           *time.Time         `gorm:"column:valid_until"`
	// no DB-side default here: gorm would drop an explicit false on insert
	// and the default would silently reactivate the coupon
	IsActive             bool               `gorm:"column:is_active;not null"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
