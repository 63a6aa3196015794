package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

type Store struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Category  *string         `gorm:"column:category"`
	Location  types.Location  `gorm:"column:location;type:jsonb;serializer:json"`
	Address   *types.Address  `gorm:"column:address;type:jsonb;serializer:json"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
