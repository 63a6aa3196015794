package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRefund is one refund issued against a payment. GatewayRefundID is
// unique so refund webhooks replayed by the gateway do not double-credit.
type PaymentRefund struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID       uuid.UUID       `gorm:"column:payment_id;type:uuid;not null;index"`
	GatewayRefundID *string         `gorm:"column:gateway_refund_id;uniqueIndex"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason          *string         `gorm:"column:reason"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
