package controllers

import (
	"net/http"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/api/responses"
	"github.com/hungerdash/hungerdash-backend/api/validators"
	couponsvc "github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
)

type adminCouponCreateRequest struct {
	Code                 string           `json:"code" validate:"required"`
	Description          *string          `json:"description,omitempty"`
	DiscountType         string           `json:"discount_type" validate:"required"`
	DiscountValue        decimal.Decimal  `json:"discount_value" validate:"required"`
	MinOrderAmount       *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscountAmount    *decimal.Decimal `json:"max_discount_amount,omitempty"`
	UsageLimit           *int             `json:"usage_limit,omitempty"`
	UserUsageLimit       *int             `json:"user_usage_limit,omitempty"`
	ApplicableStores     []string         `json:"applicable_stores,omitempty"`
	ApplicableCategories []string         `json:"applicable_categories,omitempty"`
	ValidFrom            *time.Time       `json:"valid_from,omitempty"`
	ValidUntil           *time.Time       `json:"valid_until,omitempty"`
}

func AdminCreateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		var payload adminCouponCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discountType := enums.DiscountType(payload.DiscountType)
		if !discountType.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown discount type"))
			return
		}

		coupon := &models.Coupon{
			Code:                 payload.Code,
			Description:          payload.Description,
			DiscountType:         discountType,
			DiscountValue:        payload.DiscountValue,
			MaxDiscountAmount:    payload.MaxDiscountAmount,
			UsageLimit:           payload.UsageLimit,
			UserUsageLimit:       payload.UserUsageLimit,
			ApplicableStores:     pq.StringArray(payload.ApplicableStores),
			ApplicableCategories: pq.StringArray(payload.ApplicableCategories),
			ValidFrom:            payload.ValidFrom,
			ValidUntil:           payload.ValidUntil,
			IsActive:             true,
		}
		if payload.MinOrderAmount != nil {
			coupon.MinOrderAmount = *payload.MinOrderAmount
		}

		created, err := svc.Create(r.Context(), coupon)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCouponResponse(created))
	}
}

type adminCouponUpdateRequest struct {
	Description       *string          `json:"description,omitempty"`
	DiscountValue     *decimal.Decimal `json:"discount_value,omitempty"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	UsageLimit        *int             `json:"usage_limit,omitempty"`
	UserUsageLimit    *int             `json:"user_usage_limit,omitempty"`
	ValidFrom         *time.Time       `json:"valid_from,omitempty"`
	ValidUntil        *time.Time       `json:"valid_until,omitempty"`
	IsActive          *bool            `json:"is_active,omitempty"`
}

// AdminUpdateCoupon patches only the fields present in the request.
func AdminUpdateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}
		couponID, err := validators.ParseUUIDParam(r, "couponID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminCouponUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updates := map[string]any{}
		if payload.Description != nil {
			updates["description"] = *payload.Description
		}
		if payload.DiscountValue != nil {
			updates["discount_value"] = *payload.DiscountValue
		}
		if payload.MinOrderAmount != nil {
			updates["min_order_amount"] = *payload.MinOrderAmount
		}
		if payload.MaxDiscountAmount != nil {
			updates["max_discount_amount"] = *payload.MaxDiscountAmount
		}
		if payload.UsageLimit != nil {
			updates["usage_limit"] = *payload.UsageLimit
		}
		if payload.UserUsageLimit != nil {
			updates["user_usage_limit"] = *payload.UserUsageLimit
		}
		if payload.ValidFrom != nil {
			updates["valid_from"] = *payload.ValidFrom
		}
		if payload.ValidUntil != nil {
			updates["valid_until"] = *payload.ValidUntil
		}
		if payload.IsActive != nil {
			updates["is_active"] = *payload.IsActive
		}
		if len(updates) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no updatable fields in request"))
			return
		}

		if err := svc.Update(r.Context(), couponID.String(), updates); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

func AdminDeactivateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}
		couponID, err := validators.ParseUUIDParam(r, "couponID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), couponID.String()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// AdminListCoupons includes inactive and exhausted coupons.
func AdminListCoupons(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}
		coupons, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"coupons": newAdminCouponResponses(coupons)})
	}
}

type adminCouponResponse struct {
	couponResponse
	UsageLimit           *int     `json:"usage_limit,omitempty"`
	UsedCount            int      `json:"used_count"`
	UserUsageLimit       *int     `json:"user_usage_limit,omitempty"`
	ApplicableStores     []string `json:"applicable_stores,omitempty"`
	ApplicableCategories []string `json:"applicable_categories,omitempty"`
}

func newAdminCouponResponses(coupons []models.Coupon) []adminCouponResponse {
	out := make([]adminCouponResponse, 0, len(coupons))
	for i := range coupons {
		coupon := &coupons[i]
		out = append(out, adminCouponResponse{
			couponResponse:       newCouponResponse(coupon),
			UsageLimit:           coupon.UsageLimit,
			UsedCount:            coupon.UsedCount,
			UserUsageLimit:       coupon.UserUsageLimit,
			ApplicableStores:     []string(coupon.ApplicableStores),
			ApplicableCategories: []string(coupon.ApplicableCategories),
		})
	}
	return out
}
