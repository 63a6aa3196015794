package controllers

import (
	"net/http"

	"github.com/hungerdash/hungerdash-backend/api/responses"
	"github.com/hungerdash/hungerdash-backend/api/validators"
	ordersvc "github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

type adminStatusUpdateRequest struct {
	Status   string          `json:"status" validate:"required"`
	Notes    *string         `json:"notes,omitempty"`
	Location *types.Location `json:"location,omitempty"`
}

// AdminUpdateOrderStatus drives the fulfillment lifecycle. Transitions
// outside the allowed graph are rejected by the service.
func AdminUpdateOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminStatusUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), ordersvc.StatusUpdateInput{
			OrderID:  orderID,
			Status:   status,
			Notes:    payload.Notes,
			Location: payload.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
