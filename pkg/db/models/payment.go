package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// Payment tracks a single checkout's money movement against the gateway.
// CheckoutID and GatewayPaymentID are indexed because webhook delivery and
// client polling both look payments up by gateway identifiers, not our own.
type Payment struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentNumber    string                `gorm:"column:payment_number;not null;uniqueIndex"`
	OrderID          uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	CustomerID       uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	Status           enums.PaymentStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Method           enums.PaymentMethod   `gorm:"column:method;type:text;not null;default:'card'"`
	Amount           decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountRefunded   decimal.Decimal       `gorm:"column:amount_refunded;type:numeric(12,2);not null;default:0"`
	Currency         enums.Currency        `gorm:"column:currency;type:text;not null;default:'ZAR'"`
	RefundStatus     enums.RefundStatus    `gorm:"column:refund_status;type:text;not null;default:'none'"`
	CheckoutID       *string               `gorm:"column:checkout_id;index"`
	CheckoutURL      *string               `gorm:"column:checkout_url"`
	GatewayPaymentID *string               `gorm:"column:gateway_payment_id;index"`
	GatewayOrderID   *string               `gorm:"column:gateway_order_id;index"`
	IdempotencyKey   *string               `gorm:"column:idempotency_key;uniqueIndex"`
	Card             *types.CardSummary    `gorm:"column:card;type:jsonb;serializer:json"`
	FailureReason    *string               `gorm:"column:failure_reason"`
	Attempts         []PaymentAttempt      `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	WebhookEvents    []PaymentWebhookEvent `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	Refunds          []PaymentRefund       `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
	SucceededAt      *time.Time            `gorm:"column:succeeded_at"`
	FailedAt         *time.Time            `gorm:"column:failed_at"`
	CancelledAt      *time.Time            `gorm:"column:cancelled_at"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
