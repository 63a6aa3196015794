package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/api/middleware"
	"github.com/hungerdash/hungerdash-backend/api/responses"
	"github.com/hungerdash/hungerdash-backend/api/validators"
	paymentsvc "github.com/hungerdash/hungerdash-backend/internal/payments"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

type paymentCheckoutRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// PaymentCheckout opens a hosted gateway session for an order. The
// Idempotency-Key header doubles as the payment's idempotency key so a
// replayed request returns the session already opened.
func PaymentCheckout(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.CreateCheckout(r.Context(), paymentsvc.CreateCheckoutInput{
			OrderID:        payload.OrderID,
			CustomerID:     userID,
			IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment))
	}
}

type paymentCreateRequest struct {
	OrderID  uuid.UUID `json:"order_id" validate:"required"`
	SourceID string    `json:"source_id" validate:"required"`
}

// PaymentCreate runs the synchronous card-token charge path.
func PaymentCreate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.DirectCharge(r.Context(), paymentsvc.DirectChargeInput{
			OrderID:    payload.OrderID,
			CustomerID: userID,
			SourceID:   payload.SourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment))
	}
}

func PaymentDetail(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), paymentID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

// PaymentConfirm is the client-poll reconciliation channel: it asks the
// gateway for the checkout's current state and returns the payment after
// reconciling whatever came back.
func PaymentConfirm(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Confirm(r.Context(), paymentID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

func ListPayments(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payments, page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]paymentResponse, 0, len(payments))
		for i := range payments {
			items = append(items, newPaymentResponse(&payments[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"payments": items,
			"page":     page,
		})
	}
}

type adminRefundRequest struct {
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	GatewayRefundID *string         `json:"gateway_refund_id,omitempty"`
	Reason          *string         `json:"reason,omitempty"`
}

// AdminRefundPayment books a refund against a succeeded payment.
func AdminRefundPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminRefundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.AddRefund(r.Context(), paymentsvc.RefundInput{
			PaymentID:       paymentID,
			GatewayRefundID: payload.GatewayRefundID,
			Amount:          payload.Amount,
			Reason:          payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(payment))
	}
}

type paymentResponse struct {
	ID             uuid.UUID          `json:"id"`
	PaymentNumber  string             `json:"payment_number"`
	OrderID        uuid.UUID          `json:"order_id"`
	Status         string             `json:"status"`
	Method         string             `json:"method"`
	Amount         decimal.Decimal    `json:"amount"`
	AmountRefunded decimal.Decimal    `json:"amount_refunded"`
	Currency       string             `json:"currency"`
	RefundStatus   string             `json:"refund_status"`
	CheckoutURL    *string            `json:"checkout_url,omitempty"`
	Card           *types.CardSummary `json:"card,omitempty"`
	FailureReason  *string            `json:"failure_reason,omitempty"`
	SucceededAt    *time.Time         `json:"succeeded_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func newPaymentResponse(payment *models.Payment) paymentResponse {
	if payment == nil {
		return paymentResponse{}
	}
	return paymentResponse{
		ID:             payment.ID,
		PaymentNumber:  payment.PaymentNumber,
		OrderID:        payment.OrderID,
		Status:         string(payment.Status),
		Method:         string(payment.Method),
		Amount:         payment.Amount,
		AmountRefunded: payment.AmountRefunded,
		Currency:       string(payment.Currency),
		RefundStatus:   string(payment.RefundStatus),
		CheckoutURL:    payment.CheckoutURL,
		Card:           payment.Card,
		FailureReason:  payment.FailureReason,
		SucceededAt:    payment.SucceededAt,
		CreatedAt:      payment.CreatedAt,
	}
}
