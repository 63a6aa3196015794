package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	paymentsvc "github.com/hungerdash/hungerdash-backend/internal/payments"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
)

type stubPaymentsService struct {
	payment *models.Payment
	err     error

	checkoutInputs []paymentsvc.CreateCheckoutInput
	chargeInputs   []paymentsvc.DirectChargeInput
	refundInputs   []paymentsvc.RefundInput
	confirmCalls   int
}

func (s *stubPaymentsService) CreateCheckout(ctx context.Context, input paymentsvc.CreateCheckoutInput) (*models.Payment, error) {
	s.checkoutInputs = append(s.checkoutInputs, input)
	return s.payment, s.err
}

func (s *stubPaymentsService) DirectCharge(ctx context.Context, input paymentsvc.DirectChargeInput) (*models.Payment, error) {
	s.chargeInputs = append(s.chargeInputs, input)
	return s.payment, s.err
}

func (s *stubPaymentsService) Confirm(ctx context.Context, paymentID, customerID uuid.UUID) (*models.Payment, error) {
	s.confirmCalls++
	return s.payment, s.err
}

func (s *stubPaymentsService) HandleWebhook(ctx context.Context, payload []byte) error {
	return s.err
}

func (s *stubPaymentsService) Get(ctx context.Context, paymentID, customerID uuid.UUID) (*models.Payment, error) {
	return s.payment, s.err
}

func (s *stubPaymentsService) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Page, error) {
	if s.payment == nil {
		return nil, &pagination.Page{}, s.err
	}
	return []models.Payment{*s.payment}, &pagination.Page{}, s.err
}

func (s *stubPaymentsService) FlagRefundPending(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error {
	return s.err
}

func (s *stubPaymentsService) AddRefund(ctx context.Context, input paymentsvc.RefundInput) (*models.Payment, error) {
	s.refundInputs = append(s.refundInputs, input)
	return s.payment, s.err
}

func testPayment() *models.Payment {
	url := "https://gateway.example/checkout/abc"
	return &models.Payment{
		ID:            uuid.New(),
		PaymentNumber: "PAY-20260101-ABCDEF1234",
		OrderID:       uuid.New(),
		Status:        enums.PaymentStatusPending,
		Method:        enums.PaymentMethodCard,
		Amount:        decimal.RequireFromString("230.00"),
		Currency:      enums.CurrencyZAR,
		CheckoutURL:   &url,
	}
}

func TestPaymentCheckoutForwardsIdempotencyKey(t *testing.T) {
	svc := &stubPaymentsService{payment: testPayment()}
	handler := PaymentCheckout(svc, nil)

	orderID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/v1/payments/checkout", `{"order_id":"`+orderID.String()+`"}`)
	req.Header.Set("Idempotency-Key", "key-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(svc.checkoutInputs) != 1 {
		t.Fatalf("expected one CreateCheckout call, got %d", len(svc.checkoutInputs))
	}
	if svc.checkoutInputs[0].OrderID != orderID || svc.checkoutInputs[0].IdempotencyKey != "key-123" {
		t.Fatalf("unexpected input: %+v", svc.checkoutInputs[0])
	}

	var envelope struct {
		Data paymentResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.CheckoutURL == nil {
		t.Fatal("expected checkout url in response")
	}
}

func TestPaymentCheckoutAlreadyPaid(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")}
	handler := PaymentCheckout(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/checkout", `{"order_id":"`+uuid.NewString()+`"}`))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestPaymentCreateRequiresSource(t *testing.T) {
	handler := PaymentCreate(&stubPaymentsService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/create", `{"order_id":"`+uuid.NewString()+`"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPaymentCreateChargesCard(t *testing.T) {
	svc := &stubPaymentsService{payment: testPayment()}
	handler := PaymentCreate(svc, nil)

	orderID := uuid.New()
	body := `{"order_id":"` + orderID.String() + `","source_id":"cnon:card-nonce"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/payments/create", body))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(svc.chargeInputs) != 1 || svc.chargeInputs[0].SourceID != "cnon:card-nonce" {
		t.Fatalf("unexpected charge inputs: %+v", svc.chargeInputs)
	}
}

func TestPaymentConfirmPollsGateway(t *testing.T) {
	svc := &stubPaymentsService{payment: testPayment()}
	handler := PaymentConfirm(svc, nil)

	paymentID := uuid.New()
	req := authedRequest(http.MethodGet, "/api/v1/payments/"+paymentID.String()+"/confirm", "")
	req = withURLParam(req, "paymentID", paymentID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.confirmCalls != 1 {
		t.Fatalf("expected one Confirm call, got %d", svc.confirmCalls)
	}
}

func TestAdminRefundPayment(t *testing.T) {
	svc := &stubPaymentsService{payment: testPayment()}
	handler := AdminRefundPayment(svc, nil)

	paymentID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/admin/v1/payments/"+paymentID.String()+"/refund", `{"amount":"100.00","reason":"cold food"}`)
	req = withURLParam(req, "paymentID", paymentID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(svc.refundInputs) != 1 {
		t.Fatalf("expected one AddRefund call, got %d", len(svc.refundInputs))
	}
	input := svc.refundInputs[0]
	if input.PaymentID != paymentID || !input.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("unexpected refund input: %+v", input)
	}
	if input.Reason == nil || *input.Reason != "cold food" {
		t.Fatalf("expected reason to pass through")
	}
}

func TestAdminRefundExceedsRemainder(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds remaining amount")}
	handler := AdminRefundPayment(svc, nil)

	paymentID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/admin/v1/payments/"+paymentID.String()+"/refund", `{"amount":"999.00"}`)
	req = withURLParam(req, "paymentID", paymentID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
