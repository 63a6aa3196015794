package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// DeliverySettings is the fee schedule used by pricing. At most one row is
// active; writing a new row deactivates the rest.
type DeliverySettings struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DistanceTiers         []types.DistanceTier `gorm:"column:distance_tiers;type:jsonb;serializer:json"`
	MaxDeliveryDistanceKM decimal.Decimal     `gorm:"column:max_delivery_distance_km;type:numeric(8,3);not null"`
	FreeDeliveryThreshold *decimal.Decimal    `gorm:"column:free_delivery_threshold;type:numeric(12,2)"`
	IsActive              bool                `gorm:"column:is_active;not null;default:true;index"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
