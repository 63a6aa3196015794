package payments

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// memPaymentsRepo keeps one payment in memory with the same conditional
// transition semantics as the database repository.
type memPaymentsRepo struct {
	payment  *models.Payment
	attempts []models.PaymentAttempt
	events   map[string]*models.PaymentWebhookEvent
	refunds  []models.PaymentRefund
}

func newMemPaymentsRepo(payment *models.Payment) *memPaymentsRepo {
	return &memPaymentsRepo{payment: payment, events: map[string]*models.PaymentWebhookEvent{}}
}

func (m *memPaymentsRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memPaymentsRepo) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	m.payment = payment
	copied := *payment
	return &copied, nil
}

func (m *memPaymentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if m.payment == nil || m.payment.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	copied := *m.payment
	copied.Attempts = append([]models.PaymentAttempt(nil), m.attempts...)
	return &copied, nil
}

func (m *memPaymentsRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	if m.payment == nil || m.payment.OrderID != orderID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	copied := *m.payment
	return &copied, nil
}

func (m *memPaymentsRepo) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Payment, error) {
	if m.payment != nil && m.payment.CheckoutID != nil && *m.payment.CheckoutID == checkoutID {
		copied := *m.payment
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (m *memPaymentsRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	if m.payment != nil && m.payment.GatewayOrderID != nil && *m.payment.GatewayOrderID == gatewayOrderID {
		copied := *m.payment
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (m *memPaymentsRepo) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	if m.payment != nil && m.payment.GatewayPaymentID != nil && *m.payment.GatewayPaymentID == gatewayPaymentID {
		copied := *m.payment
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func (m *memPaymentsRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	if m.payment != nil && m.payment.IdempotencyKey != nil && *m.payment.IdempotencyKey == key {
		copied := *m.payment
		return &copied, nil
	}
	return nil, nil
}

func (m *memPaymentsRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Page, error) {
	if m.payment != nil && m.payment.CustomerID == customerID {
		return []models.Payment{*m.payment}, &pagination.Page{}, nil
	}
	return nil, &pagination.Page{}, nil
}

func (m *memPaymentsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	for key, value := range updates {
		switch key {
		case "status":
			m.payment.Status = value.(enums.PaymentStatus)
		case "gateway_payment_id":
			v := value.(string)
			m.payment.GatewayPaymentID = &v
		case "gateway_order_id":
			v := value.(string)
			m.payment.GatewayOrderID = &v
		case "card":
			m.payment.Card = value.(*types.CardSummary)
		case "failure_reason":
			m.payment.FailureReason = value.(*string)
		case "amount_refunded":
			m.payment.AmountRefunded = value.(decimal.Decimal)
		case "refund_status":
			m.payment.RefundStatus = value.(enums.RefundStatus)
		case "checkout_id":
			v := value.(string)
			m.payment.CheckoutID = &v
		case "checkout_url":
			v := value.(string)
			m.payment.CheckoutURL = &v
		}
	}
	return nil
}

func (m *memPaymentsRepo) TransitionStatus(ctx context.Context, id uuid.UUID, to enums.PaymentStatus, allowedFrom []enums.PaymentStatus) (bool, error) {
	for _, from := range allowedFrom {
		if m.payment.Status == from {
			m.payment.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memPaymentsRepo) AppendAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *memPaymentsRepo) RecordWebhookEvent(ctx context.Context, event *models.PaymentWebhookEvent) (bool, error) {
	if _, seen := m.events[event.EventID]; seen {
		return false, nil
	}
	m.events[event.EventID] = event
	return true, nil
}

func (m *memPaymentsRepo) FindWebhookEvent(ctx context.Context, eventID string) (*models.PaymentWebhookEvent, error) {
	event, ok := m.events[eventID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "webhook event not found")
	}
	copied := *event
	return &copied, nil
}

func (m *memPaymentsRepo) MarkWebhookProcessed(ctx context.Context, eventID string, processErr *string) error {
	if event, ok := m.events[eventID]; ok {
		event.Processed = processErr == nil
		event.Error = processErr
	}
	return nil
}

func (m *memPaymentsRepo) CreateRefund(ctx context.Context, refund *models.PaymentRefund) (bool, error) {
	if refund.GatewayRefundID != nil {
		for _, existing := range m.refunds {
			if existing.GatewayRefundID != nil && *existing.GatewayRefundID == *refund.GatewayRefundID {
				return false, nil
			}
		}
	}
	m.refunds = append(m.refunds, *refund)
	return true, nil
}

func (m *memPaymentsRepo) SumRefunds(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, refund := range m.refunds {
		total = total.Add(refund.Amount)
	}
	return total, nil
}

// memOrdersRepo mirrors the real repository's single-winner updates.
type memOrdersRepo struct {
	order    *models.Order
	tracking []models.OrderTrackingEvent
	findErr  error // returned once from FindByID, then cleared
}

func (m *memOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return m }

func (m *memOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	m.order = order
	return order, nil
}

func (m *memOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error { return nil }

func (m *memOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if m.findErr != nil {
		err := m.findErr
		m.findErr = nil
		return nil, err
	}
	if m.order == nil || m.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *m.order
	return &copied, nil
}

func (m *memOrdersRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Page, error) {
	return nil, &pagination.Page{}, nil
}

func (m *memOrdersRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if v, ok := updates["payment_id"]; ok {
		paymentID := v.(uuid.UUID)
		m.order.PaymentID = &paymentID
	}
	return nil
}

func (m *memOrdersRepo) AppendTracking(ctx context.Context, event *models.OrderTrackingEvent) error {
	m.tracking = append(m.tracking, *event)
	return nil
}

func (m *memOrdersRepo) FindTracking(ctx context.Context, orderID uuid.UUID) ([]models.OrderTrackingEvent, error) {
	return m.tracking, nil
}

func (m *memOrdersRepo) ConfirmPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.order.PaymentStatus == enums.PaymentStatusSucceeded {
		return false, nil
	}
	m.order.PaymentStatus = enums.PaymentStatusSucceeded
	m.order.Status = enums.OrderStatusConfirmed
	return true, nil
}

func (m *memOrdersRepo) ClaimCouponConsumption(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.order.CouponConsumed {
		return false, nil
	}
	m.order.CouponConsumed = true
	return true, nil
}

func (m *memOrdersRepo) SetPaymentOutcome(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	m.order.PaymentStatus = status
	return nil
}

type stubCouponConsumer struct {
	consumed []coupons.ConsumeInput
}

func (s *stubCouponConsumer) Validate(ctx context.Context, input coupons.ValidateInput) (*coupons.ValidationResult, error) {
	return &coupons.ValidationResult{Valid: true}, nil
}

func (s *stubCouponConsumer) Consume(ctx context.Context, tx *gorm.DB, input coupons.ConsumeInput) error {
	s.consumed = append(s.consumed, input)
	return nil
}

func (s *stubCouponConsumer) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	return coupon, nil
}

func (s *stubCouponConsumer) Update(ctx context.Context, id string, updates map[string]any) error {
	return nil
}

func (s *stubCouponConsumer) Deactivate(ctx context.Context, id string) error { return nil }

func (s *stubCouponConsumer) ListActive(ctx context.Context) ([]models.Coupon, error) {
	return nil, nil
}

func (s *stubCouponConsumer) List(ctx context.Context) ([]models.Coupon, error) { return nil, nil }

func (s *stubCouponConsumer) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

type countingCartClearer struct {
	cleared int
}

func (c *countingCartClearer) ClearActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	c.cleared++
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type reconcilerFixture struct {
	reconciler *Reconciler
	payments   *memPaymentsRepo
	orders     *memOrdersRepo
	coupons    *stubCouponConsumer
	cart       *countingCartClearer
	payment    *models.Payment
}

func newReconcilerFixture(t *testing.T, withCoupon bool) *reconcilerFixture {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "HD-20260830-TEST000001",
		CustomerID:    uuid.New(),
		StoreID:       uuid.New(),
		Status:        enums.OrderStatusPlaced,
		PaymentStatus: enums.PaymentStatusPending,
		Subtotal:      decimal.RequireFromString("200.00"),
		Total:         decimal.RequireFromString("230.00"),
	}
	if withCoupon {
		order.Discount = decimal.RequireFromString("50.00")
		order.AppliedCoupon = &types.AppliedCoupon{
			CouponID:        uuid.New(),
			Code:            "SAVE50",
			DiscountType:    "fixed",
			DiscountValue:   decimal.RequireFromString("50.00"),
			DiscountApplied: decimal.RequireFromString("50.00"),
		}
	}
	payment := &models.Payment{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     enums.PaymentStatusPending,
		Amount:     order.Total,
	}

	paymentsRepo := newMemPaymentsRepo(payment)
	ordersRepo := &memOrdersRepo{order: order}
	couponSvc := &stubCouponConsumer{}
	cart := &countingCartClearer{}

	reconciler, err := NewReconciler(paymentsRepo, ordersRepo, couponSvc, cart, passthroughTx{}, testLogger(), nil)
	require.NoError(t, err)

	return &reconcilerFixture{
		reconciler: reconciler,
		payments:   paymentsRepo,
		orders:     ordersRepo,
		coupons:    couponSvc,
		cart:       cart,
		payment:    payment,
	}
}

func successSignal(channel string) Signal {
	return Signal{
		Channel:          channel,
		Status:           enums.PaymentStatusSucceeded,
		GatewayPaymentID: "sq-pay-1",
		GatewayOrderID:   "sq-ord-1",
	}
}

func TestReconcilerFirstSuccessConfirmsOrder(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, false)

	out, err := fx.reconciler.Apply(context.Background(), fx.payment, successSignal(ChannelWebhook))
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusSucceeded, out.Status)
	require.NotNil(t, out.GatewayPaymentID)
	require.Equal(t, "sq-pay-1", *out.GatewayPaymentID)

	require.Equal(t, enums.OrderStatusConfirmed, fx.orders.order.Status)
	require.Equal(t, enums.PaymentStatusSucceeded, fx.orders.order.PaymentStatus)
	require.Len(t, fx.orders.tracking, 1)
	require.Equal(t, enums.OrderStatusConfirmed, fx.orders.tracking[0].Status)
	require.Equal(t, 1, fx.cart.cleared)
	require.NotNil(t, fx.orders.order.PaymentID)
	require.Equal(t, fx.payment.ID, *fx.orders.order.PaymentID)
}

// A webhook that lands after the poll channel already recorded success must
// not double any side effect: the order confirm, the coupon usage, and the
// cart clear all happen exactly once.
func TestReconcilerDuplicateSuccessIsNoOp(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, true)
	ctx := context.Background()

	first, err := fx.reconciler.Apply(ctx, fx.payment, successSignal(ChannelPoll))
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusSucceeded, first.Status)

	second, err := fx.reconciler.Apply(ctx, fx.payment, successSignal(ChannelWebhook))
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusSucceeded, second.Status)

	require.Len(t, fx.orders.tracking, 1)
	require.Len(t, fx.coupons.consumed, 1)
	require.Equal(t, 1, fx.cart.cleared)

	// the losing channel is still recorded in the attempt log
	require.Len(t, fx.payments.attempts, 2)
	require.True(t, fx.payments.attempts[0].Won)
	require.False(t, fx.payments.attempts[1].Won)
	require.Equal(t, ChannelPoll, fx.payments.attempts[0].Channel)
	require.Equal(t, ChannelWebhook, fx.payments.attempts[1].Channel)
}

func TestReconcilerSuccessSignalOrderPermutations(t *testing.T) {
	t.Parallel()

	permutations := [][]string{
		{ChannelCharge, ChannelWebhook, ChannelPoll},
		{ChannelWebhook, ChannelPoll, ChannelCharge},
		{ChannelPoll, ChannelCharge, ChannelWebhook},
	}
	for _, channels := range permutations {
		fx := newReconcilerFixture(t, true)
		ctx := context.Background()

		for _, channel := range channels {
			_, err := fx.reconciler.Apply(ctx, fx.payment, successSignal(channel))
			require.NoError(t, err)
		}

		require.Equal(t, enums.PaymentStatusSucceeded, fx.payments.payment.Status)
		require.Len(t, fx.orders.tracking, 1)
		require.Len(t, fx.coupons.consumed, 1)
		require.Equal(t, 1, fx.cart.cleared)
	}
}

func TestReconcilerConsumesCouponWithOrderSnapshot(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, true)

	_, err := fx.reconciler.Apply(context.Background(), fx.payment, successSignal(ChannelCharge))
	require.NoError(t, err)

	require.Len(t, fx.coupons.consumed, 1)
	consumed := fx.coupons.consumed[0]
	require.Equal(t, fx.orders.order.AppliedCoupon.CouponID, consumed.CouponID)
	require.Equal(t, fx.orders.order.ID, consumed.OrderID)
	require.Equal(t, fx.orders.order.CustomerID, consumed.UserID)
	require.True(t, consumed.OrderValue.Equal(decimal.RequireFromString("200.00")))
	require.True(t, consumed.DiscountApplied.Equal(decimal.RequireFromString("50.00")))
	require.True(t, fx.orders.order.CouponConsumed)
}

// Success after a terminal failure must not resurrect the payment.
func TestReconcilerSuccessAfterFailureStaysFailed(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, false)
	ctx := context.Background()

	reason := "card declined"
	_, err := fx.reconciler.Apply(ctx, fx.payment, Signal{
		Channel:       ChannelCharge,
		Status:        enums.PaymentStatusFailed,
		FailureReason: &reason,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, fx.payments.payment.Status)
	require.Equal(t, enums.PaymentStatusFailed, fx.orders.order.PaymentStatus)

	out, err := fx.reconciler.Apply(ctx, fx.payment, successSignal(ChannelWebhook))
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, out.Status)
	require.Equal(t, 0, fx.cart.cleared)
	require.Empty(t, fx.orders.tracking)
}

func TestReconcilerFailureRecordsReason(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, false)

	reason := "insufficient funds"
	out, err := fx.reconciler.Apply(context.Background(), fx.payment, Signal{
		Channel:       ChannelWebhook,
		Status:        enums.PaymentStatusCancelled,
		FailureReason: &reason,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCancelled, out.Status)
	require.NotNil(t, fx.payments.payment.FailureReason)
	require.Equal(t, reason, *fx.payments.payment.FailureReason)
	require.Equal(t, enums.PaymentStatusFailed, fx.orders.order.PaymentStatus)
}

func TestReconcilerProcessingOnlyMovesFromPending(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, false)
	ctx := context.Background()

	out, err := fx.reconciler.Apply(ctx, fx.payment, Signal{
		Channel: ChannelPoll,
		Status:  enums.PaymentStatusProcessing,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusProcessing, out.Status)

	// a second processing observation has nothing left to move
	out, err = fx.reconciler.Apply(ctx, fx.payment, Signal{
		Channel: ChannelWebhook,
		Status:  enums.PaymentStatusProcessing,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusProcessing, out.Status)
	require.False(t, fx.payments.attempts[1].Won)
}

// A success sequence interrupted after the status flip but before the side
// effects must complete on the next signal, whichever channel delivers it.
func TestReconcilerReplayedSuccessCompletesSideEffects(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, true)
	ctx := context.Background()

	// simulate a crash after the winning status transition: the payment
	// says succeeded but no side effect ran
	fx.payments.payment.Status = enums.PaymentStatusSucceeded

	_, err := fx.reconciler.Apply(ctx, fx.payment, successSignal(ChannelWebhook))
	require.NoError(t, err)

	require.Equal(t, enums.OrderStatusConfirmed, fx.orders.order.Status)
	require.Len(t, fx.coupons.consumed, 1)
	require.Equal(t, 1, fx.cart.cleared)
}

func TestReconcilerPendingSignalChangesNothing(t *testing.T) {
	t.Parallel()

	fx := newReconcilerFixture(t, false)

	out, err := fx.reconciler.Apply(context.Background(), fx.payment, Signal{
		Channel: ChannelPoll,
		Status:  enums.PaymentStatusPending,
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, out.Status)
	require.Equal(t, 0, fx.cart.cleared)
	require.Empty(t, fx.orders.tracking)
}
