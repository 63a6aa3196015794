package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
)

// Service validates coupons against an order context and consumes usage
// budgets on payment success. Consumption is reached only through the
// payment reconciler's first-success branch.
type Service interface {
	Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error)
	// Consume books one usage for (coupon, order). Re-calling for the
	// same pair is a no-op; losing the budget race returns a validation
	// error, not an internal one.
	Consume(ctx context.Context, tx *gorm.DB, input ConsumeInput) error
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Deactivate(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a coupon service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Validate checks the coupon's rules in a fixed order; the first failing
// rule becomes the reason. A non-valid result is not an error: callers
// surface the reason to the customer.
func (s *service) Validate(ctx context.Context, input ValidateInput) (*ValidationResult, error) {
	coupon, err := s.repo.FindByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if !coupon.IsActive {
		return invalid(coupon, "coupon is no longer active"), nil
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return invalid(coupon, "coupon has expired"), nil
	}
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return invalid(coupon, "coupon is not yet valid"), nil
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return invalid(coupon, "coupon usage limit reached"), nil
	}
	if coupon.UserUsageLimit != nil {
		used, err := s.repo.CountUsageByUser(ctx, coupon.ID, input.UserID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*coupon.UserUsageLimit) {
			return invalid(coupon, "you have already used this coupon the maximum number of times"), nil
		}
	}
	if len(coupon.ApplicableStores) > 0 && !contains(coupon.ApplicableStores, input.StoreID.String()) {
		return invalid(coupon, "coupon is not valid for this store"), nil
	}
	if len(coupon.ApplicableCategories) > 0 {
		if input.StoreCategory == nil || !contains(coupon.ApplicableCategories, *input.StoreCategory) {
			return invalid(coupon, "coupon is not valid for this category"), nil
		}
	}
	if input.Subtotal.LessThan(coupon.MinOrderAmount) {
		return invalid(coupon, fmt.Sprintf("order must be at least %s to use this coupon", coupon.MinOrderAmount.StringFixed(2))), nil
	}

	return &ValidationResult{Valid: true, Coupon: coupon}, nil
}

func (s *service) Consume(ctx context.Context, tx *gorm.DB, input ConsumeInput) error {
	repo := s.repo.WithTx(tx)

	done, err := repo.UsageExists(ctx, input.CouponID, input.OrderID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	ok, err := repo.ConsumeBudget(ctx, input.CouponID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon usage limit reached")
	}

	usage := &models.CouponUsage{
		CouponID:       input.CouponID,
		OrderID:        input.OrderID,
		UserID:         input.UserID,
		DiscountAmount: input.DiscountApplied,
	}
	return repo.CreateUsage(ctx, usage)
}

func (s *service) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if coupon.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if !coupon.DiscountType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown discount type")
	}
	if coupon.DiscountType == enums.DiscountTypePercentage && coupon.MaxDiscountAmount == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage coupons require a max discount amount")
	}
	return s.repo.Create(ctx, coupon)
}

func (s *service) Update(ctx context.Context, id string, updates map[string]any) error {
	couponID, err := parseID(id)
	if err != nil {
		return err
	}
	// usage fields are owned by Consume; admin edits must not touch them
	delete(updates, "used_count")
	return s.repo.Update(ctx, couponID, updates)
}

func (s *service) Deactivate(ctx context.Context, id string) error {
	couponID, err := parseID(id)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, couponID, map[string]any{"is_active": false})
}

func (s *service) ListActive(ctx context.Context) ([]models.Coupon, error) {
	return s.repo.ListActive(ctx)
}

func (s *service) List(ctx context.Context) ([]models.Coupon, error) {
	return s.repo.List(ctx)
}

func (s *service) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return s.repo.FindByCode(ctx, code)
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon id")
	}
	return parsed, nil
}

func invalid(coupon *models.Coupon, reason string) *ValidationResult {
	return &ValidationResult{Valid: false, Reason: reason, Coupon: coupon}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
