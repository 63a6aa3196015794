package gateway

import (
	"strings"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// CheckoutSession is the hosted-payment session handed back to the client.
type CheckoutSession struct {
	CheckoutID     string
	GatewayOrderID string
	RedirectURL    string
	Status         enums.PaymentStatus
}

// CheckoutState is the gateway's current view of a checkout, already
// normalized into this system's payment vocabulary.
type CheckoutState struct {
	CheckoutID     string
	GatewayOrderID string
	Status         enums.PaymentStatus
	Card           *types.CardSummary
	FailureReason  *string
}

// ChargeResult is the outcome of a direct card charge or a payment lookup.
type ChargeResult struct {
	GatewayPaymentID string
	GatewayOrderID   string
	Status           enums.PaymentStatus
	Card             *types.CardSummary
	FailureReason    *string
}

// NormalizePaymentStatus maps the gateway's payment status spellings onto
// ours. Unrecognized values stay pending so a glitch never fails a payment.
func NormalizePaymentStatus(raw string) enums.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED":
		return enums.PaymentStatusSucceeded
	case "APPROVED", "PENDING":
		return enums.PaymentStatusProcessing
	case "CANCELED", "CANCELLED":
		return enums.PaymentStatusCancelled
	case "FAILED":
		return enums.PaymentStatusFailed
	default:
		return enums.PaymentStatusPending
	}
}

// NormalizeOrderState maps the gateway's checkout-order state onto our
// payment vocabulary.
func NormalizeOrderState(raw string) enums.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED":
		return enums.PaymentStatusSucceeded
	case "CANCELED", "CANCELLED":
		return enums.PaymentStatusCancelled
	default:
		return enums.PaymentStatusPending
	}
}
