package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// paymentFlagger marks a successful payment as awaiting a refund when its
// order is cancelled. Refund execution itself is an admin flow.
type paymentFlagger interface {
	FlagRefundPending(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID) error
}

// Service drives the order lifecycle after checkout has created the order.
type Service interface {
	Get(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Page, error)
	Track(ctx context.Context, orderID, customerID uuid.UUID) ([]models.OrderTrackingEvent, error)
	UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID, customerID uuid.UUID, reason string) (*models.Order, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	payments paymentFlagger
	now      func() time.Time
}

// NewService builds an order lifecycle service with the required dependencies.
func NewService(repo Repository, tx txRunner, payments paymentFlagger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment flagger required")
	}
	return &service{repo: repo, tx: tx, payments: payments, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Page, error) {
	return s.repo.ListByCustomer(ctx, customerID, params)
}

func (s *service) Track(ctx context.Context, orderID, customerID uuid.UUID) ([]models.OrderTrackingEvent, error) {
	if _, err := s.Get(ctx, orderID, customerID); err != nil {
		return nil, err
	}
	return s.repo.FindTracking(ctx, orderID)
}

// UpdateStatus applies one legal transition and appends the tracking entry
// inside the same transaction.
func (s *service) UpdateStatus(ctx context.Context, input StatusUpdateInput) (*models.Order, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is already %s", order.Status))
	}
	if !CanTransition(order.Status, input.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Status))
	}

	updates := map[string]any{"status": input.Status}
	now := s.now()
	switch input.Status {
	case enums.OrderStatusConfirmed:
		updates["confirmed_at"] = &now
	case enums.OrderStatusPickedUp:
		updates["picked_up_at"] = &now
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = &now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = &now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return err
		}
		return repo.AppendTracking(ctx, &models.OrderTrackingEvent{
			OrderID:  order.ID,
			Status:   input.Status,
			Notes:    input.Notes,
			Location: input.Location,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, order.ID)
}

// Cancel moves an early-stage order to cancelled. A succeeded payment is
// flagged refund-pending; the money moves only when an admin processes it.
func (s *service) Cancel(ctx context.Context, orderID, customerID uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID, customerID)
	if err != nil {
		return nil, err
	}
	if !cancellableStatuses[order.Status] {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("orders in status %s cannot be cancelled", order.Status))
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, order.ID, map[string]any{
			"status":              enums.OrderStatusCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        &now,
		}); err != nil {
			return err
		}
		if err := repo.AppendTracking(ctx, &models.OrderTrackingEvent{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancelled,
			Notes:   &reason,
		}); err != nil {
			return err
		}
		if order.PaymentStatus == enums.PaymentStatusSucceeded && order.PaymentID != nil {
			return s.payments.FlagRefundPending(ctx, tx, *order.PaymentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, order.ID)
}
