package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

type Product struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID         uuid.UUID                 `gorm:"column:store_id;type:uuid;not null;index"`
	Name            string                    `gorm:"column:name;not null"`
	Description     *string                   `gorm:"column:description"`
	Category        *string                   `gorm:"column:category;index"`
	Price           decimal.Decimal           `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountedPrice *decimal.Decimal          `gorm:"column:discounted_price;type:numeric(12,2)"`
	Variants        []types.ItemVariant       `gorm:"column:variants;type:jsonb;serializer:json"`
	Customizations  []types.ItemCustomization `gorm:"column:customizations;type:jsonb;serializer:json"`
	InventoryQty    *int                      `gorm:"column:inventory_qty"`
	IsActive        bool                      `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice is the unit price applied in carts and orders.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountedPrice != nil && p.DiscountedPrice.LessThan(p.Price) {
		return *p.DiscountedPrice
	}
	return p.Price
}
