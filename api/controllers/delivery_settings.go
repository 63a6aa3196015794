package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/api/responses"
	"github.com/hungerdash/hungerdash-backend/api/validators"
	deliverysvc "github.com/hungerdash/hungerdash-backend/internal/delivery"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// DeliverySettingsFetch returns the active delivery charge configuration.
func DeliverySettingsFetch(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		settings, err := svc.ActiveSettings(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDeliverySettingsResponse(settings))
	}
}

// DeliveryQuote previews the charge for a distance and subtotal. An
// out-of-range distance is a normal answer here, not an error: the
// client renders "we don't deliver there" from can_deliver.
func DeliveryQuote(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		distanceKM, err := validators.ParseQueryDecimal(r, "distance_km")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subtotal, err := validators.ParseQueryDecimal(r, "subtotal")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if distanceKM.IsNegative() || subtotal.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "distance and subtotal must not be negative"))
			return
		}

		quote, err := svc.QuoteCharge(r.Context(), distanceKM, subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"distance_km": quote.DistanceKM,
			"charge":      quote.Charge,
			"can_deliver": quote.CanDeliver,
		})
	}
}

type deliverySettingsRequest struct {
	DistanceTiers         []types.DistanceTier `json:"distance_tiers" validate:"required,min=1"`
	MaxDeliveryDistanceKM decimal.Decimal      `json:"max_delivery_distance_km" validate:"required"`
	FreeDeliveryThreshold *decimal.Decimal     `json:"free_delivery_threshold,omitempty"`
}

// AdminReplaceDeliverySettings activates a new configuration and
// deactivates the previous one in the same transaction.
func AdminReplaceDeliverySettings(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}

		var payload deliverySettingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settings, err := svc.ReplaceSettings(r.Context(), &models.DeliverySettings{
			DistanceTiers:         payload.DistanceTiers,
			MaxDeliveryDistanceKM: payload.MaxDeliveryDistanceKM,
			FreeDeliveryThreshold: payload.FreeDeliveryThreshold,
			IsActive:              true,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDeliverySettingsResponse(settings))
	}
}

type deliverySettingsResponse struct {
	DistanceTiers         []types.DistanceTier `json:"distance_tiers"`
	MaxDeliveryDistanceKM decimal.Decimal      `json:"max_delivery_distance_km"`
	FreeDeliveryThreshold *decimal.Decimal     `json:"free_delivery_threshold,omitempty"`
}

func newDeliverySettingsResponse(settings *models.DeliverySettings) deliverySettingsResponse {
	if settings == nil {
		return deliverySettingsResponse{}
	}
	return deliverySettingsResponse{
		DistanceTiers:         settings.DistanceTiers,
		MaxDeliveryDistanceKM: settings.MaxDeliveryDistanceKM,
		FreeDeliveryThreshold: settings.FreeDeliveryThreshold,
	}
}
