package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// CartItem is a product snapshot inside a cart. Unit prices are server-derived
// and refreshed on every mutation; they are never taken from the client.
type CartItem struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID          uuid.UUID                 `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID       uuid.UUID                 `gorm:"column:product_id;type:uuid;not null"`
	StoreID         uuid.UUID                 `gorm:"column:store_id;type:uuid;not null"`
	ProductName     string                    `gorm:"column:product_name;not null"`
	Quantity        int                       `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal           `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountedPrice *decimal.Decimal          `gorm:"column:discounted_price;type:numeric(12,2)"`
	SelectedVariant *types.ItemVariant        `gorm:"column:selected_variant;type:jsonb;serializer:json"`
	Customizations  []types.ItemCustomization `gorm:"column:customizations;type:jsonb;serializer:json"`
	TotalPrice      decimal.Decimal           `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
