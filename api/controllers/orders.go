package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/api/middleware"
	"github.com/hungerdash/hungerdash-backend/api/responses"
	"github.com/hungerdash/hungerdash-backend/api/validators"
	checkoutsvc "github.com/hungerdash/hungerdash-backend/internal/checkout"
	ordersvc "github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

type placeOrderRequest struct {
	Items           []orderLineRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress types.Address      `json:"delivery_address" validate:"required"`
	CouponCode      *string            `json:"coupon_code,omitempty"`
	Tip             *decimal.Decimal   `json:"tip,omitempty"`
	PaymentMethod   string             `json:"payment_method,omitempty"`
	// ExpectedTotal lets the client assert the total it displayed; a
	// mismatch fails the request rather than charging a surprise amount.
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
}

type orderLineRequest struct {
	ProductID      uuid.UUID                `json:"product_id" validate:"required"`
	Quantity       int                      `json:"quantity" validate:"required,gt=0"`
	VariantValue   *string                  `json:"variant_value,omitempty"`
	Customizations []cartCustomizationInput `json:"customizations,omitempty" validate:"dive"`
}

// PlaceOrder prices the submitted basket server-side and creates the
// order in pending-payment state.
func PlaceOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.PlaceOrderInput{
			CustomerID:      userID,
			Items:           toOrderLines(payload.Items),
			DeliveryAddress: payload.DeliveryAddress,
			CouponCode:      payload.CouponCode,
			ExpectedTotal:   payload.ExpectedTotal,
		}
		if payload.Tip != nil {
			input.Tip = *payload.Tip
		}
		if payload.PaymentMethod != "" {
			method := enums.PaymentMethod(payload.PaymentMethod)
			if !method.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method"))
				return
			}
			input.PaymentMethod = method
		}

		order, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// ListOrders pages through the caller's orders, newest first.
func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := paginationParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, 0, len(orders))
		for i := range orders {
			items = append(items, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{
			"orders": items,
			"page":   page,
		})
	}
}

func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderTracking returns the tracking timeline in chronological order.
func OrderTracking(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.Track(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		timeline := make([]trackingEventResponse, 0, len(events))
		for _, event := range events {
			timeline = append(timeline, trackingEventResponse{
				Status:    string(event.Status),
				Notes:     event.Notes,
				Location:  event.Location,
				CreatedAt: event.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"tracking": timeline})
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

func CancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// body is optional; cancelling without a reason is allowed
		var payload cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), orderID, userID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func toOrderLines(lines []orderLineRequest) []checkoutsvc.OrderLine {
	out := make([]checkoutsvc.OrderLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, checkoutsvc.OrderLine{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			VariantValue:   line.VariantValue,
			Customizations: toCustomizationChoices(line.Customizations),
		})
	}
	return out
}

func paginationParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}

type orderResponse struct {
	ID                 uuid.UUID            `json:"id"`
	OrderNumber        string               `json:"order_number"`
	StoreID            uuid.UUID            `json:"store_id"`
	Status             string               `json:"status"`
	Subtotal           decimal.Decimal      `json:"subtotal"`
	DeliveryFee        decimal.Decimal      `json:"delivery_fee"`
	Tip                decimal.Decimal      `json:"tip"`
	Discount           decimal.Decimal      `json:"discount"`
	Total              decimal.Decimal      `json:"total"`
	AppliedCoupon      *types.AppliedCoupon `json:"applied_coupon,omitempty"`
	PaymentID          *uuid.UUID           `json:"payment_id,omitempty"`
	PaymentStatus      string               `json:"payment_status"`
	PaymentMethod      string               `json:"payment_method"`
	DeliveryAddress    types.Address        `json:"delivery_address"`
	DeliveryDistanceKM decimal.Decimal      `json:"delivery_distance_km"`
	CancellationReason *string              `json:"cancellation_reason,omitempty"`
	Items              []orderItemResponse  `json:"items"`
	CreatedAt          time.Time            `json:"created_at"`
}

type orderItemResponse struct {
	ID              uuid.UUID                 `json:"id"`
	ProductID       uuid.UUID                 `json:"product_id"`
	ProductName     string                    `json:"product_name"`
	Quantity        int                       `json:"quantity"`
	UnitPrice       decimal.Decimal           `json:"unit_price"`
	SelectedVariant *types.ItemVariant        `json:"selected_variant,omitempty"`
	Customizations  []types.ItemCustomization `json:"customizations,omitempty"`
	TotalPrice      decimal.Decimal           `json:"total_price"`
}

type trackingEventResponse struct {
	Status    string          `json:"status"`
	Notes     *string         `json:"notes,omitempty"`
	Location  *types.Location `json:"location,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			SelectedVariant: item.SelectedVariant,
			Customizations:  item.Customizations,
			TotalPrice:      item.TotalPrice,
		})
	}
	return orderResponse{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		StoreID:            order.StoreID,
		Status:             string(order.Status),
		Subtotal:           order.Subtotal,
		DeliveryFee:        order.DeliveryFee,
		Tip:                order.Tip,
		Discount:           order.Discount,
		Total:              order.Total,
		AppliedCoupon:      order.AppliedCoupon,
		PaymentID:          order.PaymentID,
		PaymentStatus:      string(order.PaymentStatus),
		PaymentMethod:      string(order.PaymentMethod),
		DeliveryAddress:    order.DeliveryAddress,
		DeliveryDistanceKM: order.DeliveryDistanceKM,
		CancellationReason: order.CancellationReason,
		Items:              items,
		CreatedAt:          order.CreatedAt,
	}
}
