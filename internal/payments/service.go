package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/pkg/config"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/gateway"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
)

// GatewayClient is the slice of the gateway wrapper this service needs.
type GatewayClient interface {
	CreateCheckout(ctx context.Context, params gateway.CheckoutCreateParams) (*gateway.CheckoutSession, error)
	GetCheckout(ctx context.Context, gatewayOrderID string) (*gateway.CheckoutState, error)
	ChargeCard(ctx context.Context, params gateway.ChargeParams) (*gateway.ChargeResult, error)
	VerifyWebhookSignature(payload []byte, signatureHeader string) bool
}

// Service owns payment records and feeds every channel's observation into
// the reconciler.
type Service interface {
	CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*models.Payment, error)
	DirectCharge(ctx context.Context, input DirectChargeInput) (*models.Payment, error)
	// Confirm is the client-poll channel: it asks the gateway for the
	// checkout's current state and reconciles whatever comes back.
	Confirm(ctx context.Context, paymentID, customerID uuid.UUID) (*models.Payment, error)
	// HandleWebhook is the push channel. The raw payload must already be
	// signature-verified by the caller.
	HandleWebhook(ctx context.Context, payload []byte) error
	Get(ctx context.Context, paymentID, customerID uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Page, error)
	// FlagRefundPending marks a succeeded payment as awaiting an admin
	// refund, without moving any money.
	FlagRefundPending(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error
	// AddRefund books one refund and re-derives the payment's refund
	// status from the refunded total.
	AddRefund(ctx context.Context, input RefundInput) (*models.Payment, error)
}

type service struct {
	repo       Repository
	orders     orders.Repository
	gateway    GatewayClient
	reconciler *Reconciler
	checkout   config.CheckoutConfig
	gatewayCfg config.GatewayConfig
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds a payment service with the required dependencies.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	gw GatewayClient,
	reconciler *Reconciler,
	checkoutCfg config.CheckoutConfig,
	gatewayCfg config.GatewayConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		orders:     ordersRepo,
		gateway:    gw,
		reconciler: reconciler,
		checkout:   checkoutCfg,
		gatewayCfg: gatewayCfg,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// CreateCheckout opens a hosted gateway session for the order's payment.
// The idempotency key makes a retried request return the existing session
// instead of opening a second one.
func (s *service) CreateCheckout(ctx context.Context, input CreateCheckoutInput) (*models.Payment, error) {
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != input.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus == enums.PaymentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	payment, err := s.createPaymentRecord(ctx, order, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckout(ctx, gateway.CheckoutCreateParams{
		AmountMinorUnits: minorUnits(order.Total),
		Currency:         s.checkout.Currency,
		Description:      fmt.Sprintf("Order %s", order.OrderNumber),
		RedirectURL:      s.gatewayCfg.SuccessURL,
		ReferenceID:      payment.ID.String(),
		IdempotencyKey:   input.IdempotencyKey,
	})
	if err != nil {
		// the payment stays pending: a gateway timeout is "unknown",
		// not "failed", and the record can be reconciled later
		return nil, err
	}

	updates := map[string]any{
		"checkout_id":  session.CheckoutID,
		"checkout_url": session.RedirectURL,
	}
	if session.GatewayOrderID != "" {
		updates["gateway_order_id"] = session.GatewayOrderID
	}
	if err := s.repo.Update(ctx, payment.ID, updates); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, payment.ID)
}

// DirectCharge is the synchronous channel: the gateway's response is
// trusted immediately and reconciled in-line.
func (s *service) DirectCharge(ctx context.Context, input DirectChargeInput) (*models.Payment, error) {
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card source required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != input.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus == enums.PaymentStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	payment, err := s.createPaymentRecord(ctx, order, "")
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.ChargeCard(ctx, gateway.ChargeParams{
		AmountMinorUnits: minorUnits(order.Total),
		Currency:         s.checkout.Currency,
		SourceID:         input.SourceID,
		ReferenceID:      payment.ID.String(),
		Note:             fmt.Sprintf("Order %s", order.OrderNumber),
	})
	if err != nil {
		return nil, err
	}

	return s.reconciler.Apply(ctx, payment, Signal{
		Channel:          ChannelCharge,
		Status:           result.Status,
		GatewayPaymentID: result.GatewayPaymentID,
		GatewayOrderID:   result.GatewayOrderID,
		Card:             result.Card,
		FailureReason:    result.FailureReason,
	})
}

func (s *service) Confirm(ctx context.Context, paymentID, customerID uuid.UUID) (*models.Payment, error) {
	payment, err := s.Get(ctx, paymentID, customerID)
	if err != nil {
		return nil, err
	}
	if payment.Status.HasSucceeded() {
		// an earlier success may have stalled mid-side-effects; the poll
		// is a recovery channel, so finish them before answering
		if err := s.reconciler.EnsureSideEffects(ctx, payment); err != nil {
			return nil, err
		}
		return payment, nil
	}
	if payment.Status.IsTerminal() {
		return payment, nil
	}
	if payment.GatewayOrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no gateway session to confirm")
	}

	state, err := s.gateway.GetCheckout(ctx, *payment.GatewayOrderID)
	if err != nil {
		return nil, err
	}

	return s.reconciler.Apply(ctx, payment, Signal{
		Channel:        ChannelPoll,
		Status:         state.Status,
		GatewayOrderID: state.GatewayOrderID,
		Card:           state.Card,
		FailureReason:  state.FailureReason,
	})
}

// webhookEnvelope is the gateway's push payload shape.
type webhookEnvelope struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Object struct {
			Payment struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"payment"`
			Refund struct {
				ID          string `json:"id"`
				PaymentID   string `json:"payment_id"`
				Status      string `json:"status"`
				AmountMoney struct {
					Amount int64 `json:"amount"`
				} `json:"amount_money"`
			} `json:"refund"`
		} `json:"object"`
	} `json:"data"`
}

// HandleWebhook is the at-least-once push channel. Deliveries are matched
// to payments by gateway identifiers, never by our order id, because a
// payment can be retried under a new gateway session.
func (s *service) HandleWebhook(ctx context.Context, payload []byte) error {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook payload")
	}
	if strings.TrimSpace(envelope.EventID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event id missing")
	}

	payment, err := s.matchPayment(ctx, envelope)
	if err != nil {
		return err
	}

	event := &models.PaymentWebhookEvent{
		EventID:   envelope.EventID,
		EventType: envelope.Type,
		Payload:   payload,
	}
	if payment != nil {
		event.PaymentID = &payment.ID
	}
	fresh, err := s.repo.RecordWebhookEvent(ctx, event)
	if err != nil {
		return err
	}
	if !fresh {
		stored, findErr := s.repo.FindWebhookEvent(ctx, envelope.EventID)
		if findErr != nil {
			return findErr
		}
		if stored.Processed && stored.Error == nil {
			s.logg.Info(ctx, fmt.Sprintf("duplicate webhook event %s ignored", envelope.EventID))
			return nil
		}
		// the earlier delivery did not finish; this redelivery is the
		// recovery path, so run the processing again
	}
	if payment == nil {
		detail := "no payment matched gateway identifiers"
		return s.repo.MarkWebhookProcessed(ctx, envelope.EventID, &detail)
	}

	if err := s.processWebhook(ctx, payment, envelope); err != nil {
		msg := err.Error()
		_ = s.repo.MarkWebhookProcessed(ctx, envelope.EventID, &msg)
		return err
	}
	return s.repo.MarkWebhookProcessed(ctx, envelope.EventID, nil)
}

func (s *service) processWebhook(ctx context.Context, payment *models.Payment, envelope webhookEnvelope) error {
	switch {
	case strings.HasPrefix(envelope.Type, "refund."):
		status := gateway.NormalizePaymentStatus(envelope.Data.Object.Refund.Status)
		if status != enums.PaymentStatusSucceeded {
			return nil
		}
		refundID := envelope.Data.Object.Refund.ID
		_, err := s.AddRefund(ctx, RefundInput{
			PaymentID:       payment.ID,
			GatewayRefundID: &refundID,
			Amount:          decimal.NewFromInt(envelope.Data.Object.Refund.AmountMoney.Amount).Div(decimal.NewFromInt(100)).Round(2),
		})
		return err
	default:
		signal := Signal{
			Channel:          ChannelWebhook,
			Status:           gateway.NormalizePaymentStatus(envelope.Data.Object.Payment.Status),
			GatewayPaymentID: envelope.Data.Object.Payment.ID,
			GatewayOrderID:   envelope.Data.Object.Payment.OrderID,
		}
		_, err := s.reconciler.Apply(ctx, payment, signal)
		return err
	}
}

// matchPayment resolves the webhook's subject by gateway payment id first
// and checkout order id second.
func (s *service) matchPayment(ctx context.Context, envelope webhookEnvelope) (*models.Payment, error) {
	ids := []struct {
		value string
		find  func(context.Context, string) (*models.Payment, error)
	}{
		{envelope.Data.Object.Refund.PaymentID, s.repo.FindByGatewayPaymentID},
		{envelope.Data.Object.Payment.ID, s.repo.FindByGatewayPaymentID},
		{envelope.Data.Object.Payment.OrderID, s.repo.FindByGatewayOrderID},
	}
	for _, candidate := range ids {
		if strings.TrimSpace(candidate.value) == "" {
			continue
		}
		payment, err := candidate.find(ctx, candidate.value)
		if err == nil {
			return payment, nil
		}
		if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
			return nil, err
		}
	}
	return nil, nil
}

func (s *service) Get(ctx context.Context, paymentID, customerID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Page, error) {
	return s.repo.ListByCustomer(ctx, customerID, params)
}

func (s *service) FlagRefundPending(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error {
	return s.repo.WithTx(tx).Update(ctx, paymentID, map[string]any{
		"refund_status": enums.RefundStatusPending,
	})
}

func (s *service) AddRefund(ctx context.Context, input RefundInput) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Status.HasSucceeded() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only a succeeded payment can be refunded")
	}
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if payment.AmountRefunded.Add(input.Amount).GreaterThan(payment.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds the remaining refundable amount")
	}

	fresh, err := s.repo.CreateRefund(ctx, &models.PaymentRefund{
		PaymentID:       payment.ID,
		GatewayRefundID: input.GatewayRefundID,
		Amount:          input.Amount,
		Reason:          input.Reason,
	})
	if err != nil {
		return nil, err
	}
	if !fresh {
		// replayed refund webhook
		return payment, nil
	}

	refunded, err := s.repo.SumRefunds(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"amount_refunded": refunded}
	switch {
	case refunded.GreaterThanOrEqual(payment.Amount):
		updates["status"] = enums.PaymentStatusRefunded
		updates["refund_status"] = enums.RefundStatusFull
	case refunded.IsPositive():
		updates["status"] = enums.PaymentStatusPartiallyRefunded
		updates["refund_status"] = enums.RefundStatusPartial
	}
	if err := s.repo.Update(ctx, payment.ID, updates); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, payment.ID)
}

func (s *service) createPaymentRecord(ctx context.Context, order *models.Order, idempotencyKey string) (*models.Payment, error) {
	payment := &models.Payment{
		PaymentNumber: s.newPaymentNumber(),
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Status:        enums.PaymentStatusPending,
		Method:        order.PaymentMethod,
		Amount:        order.Total,
		Currency:      enums.Currency(s.checkout.Currency),
		RefundStatus:  enums.RefundStatusNone,
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		payment.IdempotencyKey = &key
	}
	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order.ID, map[string]any{"payment_id": created.ID}); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) newPaymentNumber() string {
	prefix := strings.TrimSpace(s.checkout.PaymentNumberPrefix)
	if prefix == "" {
		prefix = "PAY"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("%s-%s-%s", prefix, s.now().Format("20060102"), suffix)
}

// minorUnits converts a decimal amount into the gateway's integer minor
// units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
