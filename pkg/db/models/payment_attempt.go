package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
)

// PaymentAttempt logs one observation of the payment's state from a given
// channel (sync charge, client poll, webhook). Attempts are append-only and
// recorded even when the observation loses the settlement race.
type PaymentAttempt struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID uuid.UUID           `gorm:"column:payment_id;type:uuid;not null;index"`
	Channel   string              `gorm:"column:channel;not null"`
	Status    enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	Won       bool                `gorm:"column:won;not null;default:false"`
	Detail    *string             `gorm:"column:detail"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime;index"`
}
