package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/api/middleware"
	"github.com/hungerdash/hungerdash-backend/api/responses"
	"github.com/hungerdash/hungerdash-backend/api/validators"
	couponsvc "github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
)

// ListActiveCoupons returns the coupons currently open for use.
func ListActiveCoupons(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}
		coupons, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"coupons": newCouponResponses(coupons)})
	}
}

type validateCouponRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"required"`
	StoreID  uuid.UUID       `json:"store_id" validate:"required"`
}

// ValidateCoupon is the dry-run check a client uses before checkout. It
// never consumes budget; the answer can change by the time the order is
// actually paid.
func ValidateCoupon(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Validate(r.Context(), couponsvc.ValidateInput{
			Code:     payload.Code,
			UserID:   userID,
			Subtotal: payload.Subtotal,
			StoreID:  payload.StoreID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := map[string]any{"valid": result.Valid}
		if !result.Valid {
			resp["reason"] = result.Reason
		}
		if result.Coupon != nil {
			resp["coupon"] = newCouponResponse(result.Coupon)
		}
		responses.WriteSuccess(w, resp)
	}
}

type couponResponse struct {
	ID                uuid.UUID        `json:"id"`
	Code              string           `json:"code"`
	Description       *string          `json:"description,omitempty"`
	DiscountType      string           `json:"discount_type"`
	DiscountValue     decimal.Decimal  `json:"discount_value"`
	MinOrderAmount    decimal.Decimal  `json:"min_order_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty"`
	ValidFrom         *time.Time       `json:"valid_from,omitempty"`
	ValidUntil        *time.Time       `json:"valid_until,omitempty"`
	IsActive          bool             `json:"is_active"`
}

func newCouponResponse(coupon *models.Coupon) couponResponse {
	if coupon == nil {
		return couponResponse{}
	}
	return couponResponse{
		ID:                coupon.ID,
		Code:              coupon.Code,
		Description:       coupon.Description,
		DiscountType:      string(coupon.DiscountType),
		DiscountValue:     coupon.DiscountValue,
		MinOrderAmount:    coupon.MinOrderAmount,
		MaxDiscountAmount: coupon.MaxDiscountAmount,
		ValidFrom:         coupon.ValidFrom,
		ValidUntil:        coupon.ValidUntil,
		IsActive:          coupon.IsActive,
	}
}

func newCouponResponses(coupons []models.Coupon) []couponResponse {
	out := make([]couponResponse, 0, len(coupons))
	for i := range coupons {
		out = append(out, newCouponResponse(&coupons[i]))
	}
	return out
}
