package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// Cart is the per-user shopping cart. A user has at most one active cart;
// converted/abandoned carts are kept for retention cleanup.
type Cart struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID        *uuid.UUID           `gorm:"column:store_id;type:uuid"`
	Status         enums.CartStatus     `gorm:"column:status;type:text;not null;default:'active'"`
	Subtotal       decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	TotalItems     int                  `gorm:"column:total_items;not null;default:0"`
	TotalQuantity  int                  `gorm:"column:total_quantity;not null;default:0"`
	AppliedCoupon  *types.AppliedCoupon `gorm:"column:applied_coupon;type:jsonb;serializer:json"`
	LastActivityAt time.Time            `gorm:"column:last_activity_at;not null"`
	ConvertedAt    *time.Time           `gorm:"column:converted_at"`
	Items          []CartItem           `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
