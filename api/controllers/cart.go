package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/api/middleware"
	"github.com/hungerdash/hungerdash-backend/api/responses"
	"github.com/hungerdash/hungerdash-backend/api/validators"
	cartsvc "github.com/hungerdash/hungerdash-backend/internal/cart"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// CartFetch returns the caller's active cart, creating nothing: a user
// with no cart gets an empty one back.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

type cartAddItemRequest struct {
	ProductID      uuid.UUID                `json:"product_id" validate:"required"`
	Quantity       int                      `json:"quantity" validate:"required,gt=0"`
	VariantValue   *string                  `json:"variant_value,omitempty"`
	Customizations []cartCustomizationInput `json:"customizations,omitempty" validate:"dive"`
	// ReplaceCart resolves a different-store conflict by starting over
	// with this item.
	ReplaceCart bool `json:"replace_cart,omitempty"`
}

type cartCustomizationInput struct {
	Name   string `json:"name" validate:"required"`
	Option string `json:"option" validate:"required"`
}

// CartAddItem adds a product to the active cart. Items from a second
// store are rejected unless the request opts into replacing the cart.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartAddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := cartsvc.AddItemInput{
			ProductID:      payload.ProductID,
			Quantity:       payload.Quantity,
			VariantValue:   payload.VariantValue,
			Customizations: toCustomizationChoices(payload.Customizations),
		}

		var cart *models.Cart
		if payload.ReplaceCart {
			cart, err = svc.ReplaceWithItem(r.Context(), userID, input)
		} else {
			cart, err = svc.AddItem(r.Context(), userID, input)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(cart))
	}
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.UpdateItemQuantity(r.Context(), userID, itemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParseUUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.RemoveItem(r.Context(), userID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.Clear(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

type cartCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

func CartApplyCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.ApplyCoupon(r.Context(), userID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func CartRemoveCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.RemoveCoupon(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func toCustomizationChoices(inputs []cartCustomizationInput) []cartsvc.CustomizationChoice {
	if len(inputs) == 0 {
		return nil
	}
	choices := make([]cartsvc.CustomizationChoice, 0, len(inputs))
	for _, input := range inputs {
		choices = append(choices, cartsvc.CustomizationChoice{
			Name:   input.Name,
			Option: input.Option,
		})
	}
	return choices
}

type cartResponse struct {
	ID             uuid.UUID            `json:"id"`
	StoreID        *uuid.UUID           `json:"store_id,omitempty"`
	Status         string               `json:"status"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	TotalItems     int                  `json:"total_items"`
	TotalQuantity  int                  `json:"total_quantity"`
	AppliedCoupon  *types.AppliedCoupon `json:"applied_coupon,omitempty"`
	Items          []cartItemResponse   `json:"items"`
	LastActivityAt time.Time            `json:"last_activity_at"`
}

type cartItemResponse struct {
	ID              uuid.UUID                 `json:"id"`
	ProductID       uuid.UUID                 `json:"product_id"`
	ProductName     string                    `json:"product_name"`
	Quantity        int                       `json:"quantity"`
	UnitPrice       decimal.Decimal           `json:"unit_price"`
	DiscountedPrice *decimal.Decimal          `json:"discounted_price,omitempty"`
	SelectedVariant *types.ItemVariant        `json:"selected_variant,omitempty"`
	Customizations  []types.ItemCustomization `json:"customizations,omitempty"`
	TotalPrice      decimal.Decimal           `json:"total_price"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	if cart == nil {
		return cartResponse{}
	}
	items := make([]cartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountedPrice: item.DiscountedPrice,
			SelectedVariant: item.SelectedVariant,
			Customizations:  item.Customizations,
			TotalPrice:      item.TotalPrice,
		})
	}
	return cartResponse{
		ID:             cart.ID,
		StoreID:        cart.StoreID,
		Status:         string(cart.Status),
		Subtotal:       cart.Subtotal,
		TotalItems:     cart.TotalItems,
		TotalQuantity:  cart.TotalQuantity,
		AppliedCoupon:  cart.AppliedCoupon,
		Items:          items,
		LastActivityAt: cart.LastActivityAt,
	}
}
