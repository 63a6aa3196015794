package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentWebhookEvent stores every webhook delivery verbatim. EventID is
// unique so gateway redeliveries dedupe at insert time.
type PaymentWebhookEvent struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID *uuid.UUID `gorm:"column:payment_id;type:uuid;index"`
	EventID   string     `gorm:"column:event_id;not null;uniqueIndex"`
	EventType string     `gorm:"column:event_type;not null"`
	Payload   []byte     `gorm:"column:payload;type:jsonb"`
	Processed bool       `gorm:"column:processed;not null;default:false"`
	Error     *string    `gorm:"column:error"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
