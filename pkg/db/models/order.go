package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// Order is the financially-trusted record produced by checkout. Every price
// field is snapshotted at creation and never recomputed from live products.
// Orders are never deleted, only moved to a terminal status.
type Order struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string               `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID         uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	StoreID            uuid.UUID            `gorm:"column:store_id;type:uuid;not null;index"`
	Status             enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'placed'"`
	Subtotal           decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee        decimal.Decimal      `gorm:"column:delivery_fee;type:numeric(12,2);not null;default:0"`
	Tip                decimal.Decimal      `gorm:"column:tip;type:numeric(12,2);not null;default:0"`
	Discount           decimal.Decimal      `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Total              decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	AppliedCoupon      *types.AppliedCoupon `gorm:"column:applied_coupon;type:jsonb;serializer:json"`
	CouponConsumed     bool                 `gorm:"column:coupon_consumed;not null;default:false"`
	PaymentID          *uuid.UUID           `gorm:"column:payment_id;type:uuid"`
	PaymentStatus      enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod      enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null;default:'card'"`
	DeliveryAddress    types.Address        `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	DeliveryDistanceKM decimal.Decimal      `gorm:"column:delivery_distance_km;type:numeric(8,3);not null;default:0"`
	CancellationReason *string              `gorm:"column:cancellation_reason"`
	Items              []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	TrackingHistory    []OrderTrackingEvent `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt        *time.Time           `gorm:"column:confirmed_at"`
	PickedUpAt         *time.Time           `gorm:"column:picked_up_at"`
	DeliveredAt        *time.Time           `gorm:"column:delivered_at"`
	CancelledAt        *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
