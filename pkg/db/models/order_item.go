package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// OrderItem is a frozen copy of a cart line at checkout time. Product name
// and unit price are denormalized so later catalog edits cannot change what
// the customer was charged.
type OrderItem struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID                 `gorm:"column:product_id;type:uuid;not null"`
	ProductName     string                    `gorm:"column:product_name;not null"`
	Quantity        int                       `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal           `gorm:"column:unit_price;type:numeric(12,2);not null"`
	SelectedVariant *types.ItemVariant        `gorm:"column:selected_variant;type:jsonb;serializer:json"`
	Customizations  []types.ItemCustomization `gorm:"column:customizations;type:jsonb;serializer:json"`
	TotalPrice      decimal.Decimal           `gorm:"column:total_price;type:numeric(12,2);not null"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
