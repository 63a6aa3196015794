package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// Repository defines persistence operations for payments, attempts,
// webhook events, and refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Page, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// TransitionStatus moves the payment to a new status only while its
	// current status is one of allowedFrom. False means another channel
	// already moved it.
	TransitionStatus(ctx context.Context, id uuid.UUID, to enums.PaymentStatus, allowedFrom []enums.PaymentStatus) (bool, error)
	AppendAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	// RecordWebhookEvent inserts the raw delivery. False means the event
	// id was seen before and this delivery is a duplicate.
	RecordWebhookEvent(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error)
	FindWebhookEvent(ctx context.Context, eventID string) (*models.PaymentWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, eventID string, processErr *string) error
	CreateRefund(ctx context.Context, refund *models.PaymentRefund) (bool, error)
	SumRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
}

// Signal is one observation of a payment's state from one of the three
// reconciliation channels.
type Signal struct {
	Channel          string
	Status           enums.PaymentStatus
	GatewayPaymentID string
	GatewayOrderID   string
	Card             *types.CardSummary
	FailureReason    *string
}

// Reconciliation channels.
const (
	ChannelCharge  = "charge"
	ChannelPoll    = "poll"
	ChannelWebhook = "webhook"
)

// CreateCheckoutInput opens a hosted gateway session for an order.
type CreateCheckoutInput struct {
	OrderID        uuid.UUID
	CustomerID     uuid.UUID
	IdempotencyKey string
}

// DirectChargeInput runs the synchronous card-token charge path.
type DirectChargeInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	SourceID   string
}

// RefundInput records one admin-issued refund against a payment.
type RefundInput struct {
	PaymentID       uuid.UUID
	GatewayRefundID *string
	Amount          decimal.Decimal
	Reason          *string
}
