package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
)

type stubCouponsRepo struct {
	coupon        *models.Coupon
	userUsage     int64
	usageExists   bool
	budgetOK      bool
	budgetCalls   int
	createdUsages []models.CouponUsage
}

func (s *stubCouponsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCouponsRepo) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	return coupon, nil
}

func (s *stubCouponsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if s.coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return s.coupon, nil
}

func (s *stubCouponsRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if s.coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return s.coupon, nil
}

func (s *stubCouponsRepo) ListActive(ctx context.Context) ([]models.Coupon, error) {
	return nil, nil
}

func (s *stubCouponsRepo) List(ctx context.Context) ([]models.Coupon, error) { return nil, nil }

func (s *stubCouponsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubCouponsRepo) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	return s.userUsage, nil
}

func (s *stubCouponsRepo) UsageExists(ctx context.Context, couponID, orderID uuid.UUID) (bool, error) {
	return s.usageExists, nil
}

func (s *stubCouponsRepo) ConsumeBudget(ctx context.Context, couponID uuid.UUID) (bool, error) {
	s.budgetCalls++
	return s.budgetOK, nil
}

func (s *stubCouponsRepo) CreateUsage(ctx context.Context, usage *models.CouponUsage) error {
	s.createdUsages = append(s.createdUsages, *usage)
	return nil
}

func intPtr(v int) *int { return &v }

func activeCoupon() *models.Coupon {
	return &models.Coupon{
		ID:             uuid.New(),
		Code:           "SAVE10",
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: decimal.NewFromInt(100),
		IsActive:       true,
	}
}

func newTestService(t *testing.T, repo Repository, now time.Time) *service {
	t.Helper()
	svc, err := NewService(repo)
	require.NoError(t, err)
	typed := svc.(*service)
	typed.now = func() time.Time { return now }
	return typed
}

func TestValidateHappyPath(t *testing.T) {
	t.Parallel()

	repo := &stubCouponsRepo{coupon: activeCoupon()}
	svc := newTestService(t, repo, time.Now())

	res, err := svc.Validate(context.Background(), ValidateInput{
		Code:     "SAVE10",
		UserID:   uuid.New(),
		Subtotal: decimal.NewFromInt(200),
		StoreID:  uuid.New(),
	})
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.NotNil(t, res.Coupon)
}

func TestValidateRuleOrdering(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	storeID := uuid.New()

	cases := []struct {
		name   string
		mutate func(c *models.Coupon, r *stubCouponsRepo)
		reason string
	}{
		{
			// inactive wins even when the coupon is also expired
			"inactive before expired",
			func(c *models.Coupon, r *stubCouponsRepo) {
				c.IsActive = false
				c.ValidUntil = &past
			},
			"coupon is no longer active",
		},
		{
			"expired before not-yet-valid",
			func(c *models.Coupon, r *stubCouponsRepo) {
				c.ValidUntil = &past
				c.ValidFrom = &future
			},
			"coupon has expired",
		},
		{
			"not yet valid",
			func(c *models.Coupon, r *stubCouponsRepo) { c.ValidFrom = &future },
			"coupon is not yet valid",
		},
		{
			"global limit before per-user limit",
			func(c *models.Coupon, r *stubCouponsRepo) {
				c.UsageLimit = intPtr(5)
				c.UsedCount = 5
				c.UserUsageLimit = intPtr(1)
				r.userUsage = 1
			},
			"coupon usage limit reached",
		},
		{
			"per-user limit",
			func(c *models.Coupon, r *stubCouponsRepo) {
				c.UserUsageLimit = intPtr(2)
				r.userUsage = 2
			},
			"you have already used this coupon the maximum number of times",
		},
		{
			"store applicability",
			func(c *models.Coupon, r *stubCouponsRepo) {
				c.ApplicableStores = []string{uuid.NewString()}
			},
			"coupon is not valid for this store",
		},
		{
			"minimum order value is checked last",
			func(c *models.Coupon, r *stubCouponsRepo) {
				c.MinOrderAmount = decimal.NewFromInt(500)
			},
			"order must be at least 500.00 to use this coupon",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			coupon := activeCoupon()
			repo := &stubCouponsRepo{coupon: coupon}
			tc.mutate(coupon, repo)
			svc := newTestService(t, repo, now)

			res, err := svc.Validate(context.Background(), ValidateInput{
				Code:     coupon.Code,
				UserID:   uuid.New(),
				Subtotal: decimal.NewFromInt(200),
				StoreID:  storeID,
			})
			require.NoError(t, err)
			require.False(t, res.Valid)
			require.Equal(t, tc.reason, res.Reason)
		})
	}
}

func TestValidateUnknownCode(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCouponsRepo{}, time.Now())
	_, err := svc.Validate(context.Background(), ValidateInput{Code: "NOPE"})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestConsumeIsIdempotentPerOrder(t *testing.T) {
	t.Parallel()

	repo := &stubCouponsRepo{coupon: activeCoupon(), usageExists: true, budgetOK: true}
	svc := newTestService(t, repo, time.Now())

	err := svc.Consume(context.Background(), nil, ConsumeInput{
		CouponID: repo.coupon.ID,
		OrderID:  uuid.New(),
		UserID:   uuid.New(),
	})
	require.NoError(t, err)
	require.Zero(t, repo.budgetCalls, "an already-consumed order must not touch the budget")
	require.Empty(t, repo.createdUsages)
}

func TestConsumeBooksUsageOnce(t *testing.T) {
	t.Parallel()

	repo := &stubCouponsRepo{coupon: activeCoupon(), budgetOK: true}
	svc := newTestService(t, repo, time.Now())

	input := ConsumeInput{
		CouponID:        repo.coupon.ID,
		OrderID:         uuid.New(),
		UserID:          uuid.New(),
		OrderValue:      decimal.NewFromInt(200),
		DiscountApplied: decimal.NewFromInt(20),
	}
	require.NoError(t, svc.Consume(context.Background(), nil, input))
	require.Equal(t, 1, repo.budgetCalls)
	require.Len(t, repo.createdUsages, 1)
	require.Equal(t, input.OrderID, repo.createdUsages[0].OrderID)
}

func TestConsumeSurfacesLostBudgetRaceAsValidation(t *testing.T) {
	t.Parallel()

	repo := &stubCouponsRepo{coupon: activeCoupon(), budgetOK: false}
	svc := newTestService(t, repo, time.Now())

	err := svc.Consume(context.Background(), nil, ConsumeInput{
		CouponID: repo.coupon.ID,
		OrderID:  uuid.New(),
		UserID:   uuid.New(),
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	require.Empty(t, repo.createdUsages)
}

func TestCreateRequiresMaxDiscountForPercentage(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCouponsRepo{}, time.Now())
	_, err := svc.Create(context.Background(), &models.Coupon{
		Code:          "HALFOFF",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(50),
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
