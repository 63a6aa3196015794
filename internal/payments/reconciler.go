package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartClearer interface {
	ClearActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// successAllowedFrom are the states a payment may leave when a success
// signal arrives. Refund states and terminal failures stay put.
var successAllowedFrom = []enums.PaymentStatus{
	enums.PaymentStatusPending,
	enums.PaymentStatusProcessing,
	enums.PaymentStatusRequiresAction,
}

var failureAllowedFrom = successAllowedFrom

// Reconciler converges payment, order, coupon, and cart state across the
// three update channels. The same success signal may arrive from every
// channel, repeatedly and in any order; only the first transition applies
// state, and the side-effect sequence is safe to re-run because each step
// carries its own already-done guard.
type Reconciler struct {
	repo    Repository
	orders  orders.Repository
	coupons coupons.Service
	cart    cartClearer
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.ReconciliationMetrics
	now     func() time.Time
}

// NewReconciler builds the reconciliation coordinator.
func NewReconciler(
	repo Repository,
	ordersRepo orders.Repository,
	couponSvc coupons.Service,
	cart cartClearer,
	tx txRunner,
	logg *logger.Logger,
	recMetrics *metrics.ReconciliationMetrics,
) (*Reconciler, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if cart == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{
		repo:    repo,
		orders:  ordersRepo,
		coupons: couponSvc,
		cart:    cart,
		tx:      tx,
		logg:    logg,
		metrics: recMetrics,
		now:     time.Now,
	}, nil
}

// Apply feeds one channel's observation into the state machine and returns
// the reloaded payment. Duplicate and out-of-order signals are no-ops.
func (r *Reconciler) Apply(ctx context.Context, payment *models.Payment, signal Signal) (*models.Payment, error) {
	ctx = r.logg.WithPaymentID(ctx, payment.ID.String())
	ctx = r.logg.WithOrderID(ctx, payment.OrderID.String())

	var won bool
	var err error
	switch signal.Status {
	case enums.PaymentStatusSucceeded:
		won, err = r.applySuccess(ctx, payment, signal)
	case enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
		won, err = r.applyFailure(ctx, payment, signal)
	case enums.PaymentStatusProcessing, enums.PaymentStatusRequiresAction:
		won, err = r.repo.TransitionStatus(ctx, payment.ID, signal.Status,
			[]enums.PaymentStatus{enums.PaymentStatusPending})
	default:
		// pending observations carry no transition
		won = false
	}
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveSignal(signal.Channel, string(signal.Status), won)
	if attemptErr := r.repo.AppendAttempt(ctx, &models.PaymentAttempt{
		PaymentID: payment.ID,
		Channel:   signal.Channel,
		Status:    signal.Status,
		Won:       won,
		Detail:    signal.FailureReason,
	}); attemptErr != nil {
		r.logg.Error(ctx, "record payment attempt", attemptErr)
	}

	if won {
		r.logg.Info(ctx, fmt.Sprintf("payment moved to %s via %s", signal.Status, signal.Channel))
	}
	return r.repo.FindByID(ctx, payment.ID)
}

// applySuccess runs the first-success transition and the idempotent side
// effect sequence. The sequence runs even when the status race was already
// won by another channel: an earlier caller may have crashed between steps,
// and each step's own guard makes re-running safe. This is what makes a
// retried webhook delivery the recovery path.
func (r *Reconciler) applySuccess(ctx context.Context, payment *models.Payment, signal Signal) (bool, error) {
	won, err := r.repo.TransitionStatus(ctx, payment.ID, enums.PaymentStatusSucceeded, successAllowedFrom)
	if err != nil {
		return false, err
	}
	if won {
		now := r.now()
		updates := map[string]any{"succeeded_at": &now}
		if signal.GatewayPaymentID != "" {
			updates["gateway_payment_id"] = signal.GatewayPaymentID
		}
		if signal.GatewayOrderID != "" {
			updates["gateway_order_id"] = signal.GatewayOrderID
		}
		if signal.Card != nil {
			updates["card"] = signal.Card
		}
		if err := r.repo.Update(ctx, payment.ID, updates); err != nil {
			return won, err
		}
	}

	// A failed or cancelled payment never reaches the side effects: the
	// transition above only loses to another success (or a refund state),
	// both of which mean the effects belong to this payment.
	current, err := r.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return won, err
	}
	if !current.Status.HasSucceeded() {
		return won, nil
	}

	if err := r.ensureSuccessSideEffects(ctx, current); err != nil {
		return won, err
	}
	return won, nil
}

// EnsureSideEffects replays the success side-effect sequence for a payment
// that already succeeded. A caller that crashed or errored between steps
// leaves a prefix applied; each step's guard makes the replay converge.
func (r *Reconciler) EnsureSideEffects(ctx context.Context, payment *models.Payment) error {
	if payment == nil || !payment.Status.HasSucceeded() {
		return nil
	}
	return r.ensureSuccessSideEffects(ctx, payment)
}

// ensureSuccessSideEffects completes the order confirm, coupon consume, and
// cart clear. Every step is individually guarded, so any prefix of the
// sequence can be replayed without duplicating effects.
func (r *Reconciler) ensureSuccessSideEffects(ctx context.Context, payment *models.Payment) error {
	order, err := r.orders.FindByID(ctx, payment.OrderID)
	if err != nil {
		return err
	}

	return r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := r.orders.WithTx(tx)

		confirmed, err := ordersRepo.ConfirmPaid(ctx, order.ID)
		if err != nil {
			return err
		}
		if confirmed {
			r.metrics.IncSideEffect("order_confirmed")
			if err := ordersRepo.AppendTracking(ctx, &models.OrderTrackingEvent{
				OrderID: order.ID,
				Status:  enums.OrderStatusConfirmed,
			}); err != nil {
				return err
			}
			if order.PaymentID == nil {
				if err := ordersRepo.Update(ctx, order.ID, map[string]any{"payment_id": payment.ID}); err != nil {
					return err
				}
			}
		}

		if order.AppliedCoupon != nil {
			claimed, err := ordersRepo.ClaimCouponConsumption(ctx, order.ID)
			if err != nil {
				return err
			}
			if claimed {
				if err := r.coupons.Consume(ctx, tx, coupons.ConsumeInput{
					CouponID:        order.AppliedCoupon.CouponID,
					OrderID:         order.ID,
					UserID:          order.CustomerID,
					OrderValue:      order.Subtotal,
					DiscountApplied: order.Discount,
				}); err != nil {
					return err
				}
				r.metrics.IncSideEffect("coupon_consumed")
			}
		}

		if confirmed {
			if err := r.cart.ClearActive(ctx, tx, order.CustomerID); err != nil {
				return err
			}
			r.metrics.IncSideEffect("cart_cleared")
		}
		return nil
	})
}

// applyFailure moves the payment to failed or cancelled. Coupon and cart
// are never touched on failure.
func (r *Reconciler) applyFailure(ctx context.Context, payment *models.Payment, signal Signal) (bool, error) {
	won, err := r.repo.TransitionStatus(ctx, payment.ID, signal.Status, failureAllowedFrom)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	now := r.now()
	updates := map[string]any{}
	switch signal.Status {
	case enums.PaymentStatusFailed:
		updates["failed_at"] = &now
	case enums.PaymentStatusCancelled:
		updates["cancelled_at"] = &now
	}
	if signal.FailureReason != nil {
		updates["failure_reason"] = signal.FailureReason
	}
	if len(updates) > 0 {
		if err := r.repo.Update(ctx, payment.ID, updates); err != nil {
			return won, err
		}
	}

	if err := r.orders.SetPaymentOutcome(ctx, payment.OrderID, enums.PaymentStatusFailed); err != nil {
		return won, err
	}
	return won, nil
}
