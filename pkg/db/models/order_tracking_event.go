package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// OrderTrackingEvent is an append-only record of a status transition.
type OrderTrackingEvent struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Notes     *string           `gorm:"column:notes"`
	Location  *types.Location   `gorm:"column:location;type:jsonb;serializer:json"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}
