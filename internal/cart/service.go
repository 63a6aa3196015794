package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/internal/catalog"
	"github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// Service owns the active cart for each user. Every mutation recomputes the
// cart's aggregates before returning it.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error)
	// ReplaceWithItem clears the cart and adds the item; the resolution
	// path for a single-store conflict.
	ReplaceWithItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.Cart, error)
	RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	// MarkConverted stamps the cart when checkout turns it into an order.
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	// ClearActive empties the user's active cart; a reconciliation side
	// effect, so it is a no-op when nothing is left to clear.
	ClearActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	DeleteAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo         Repository
	catalog      catalog.Repository
	coupons      coupons.Service
	abandonAfter time.Duration
	now          func() time.Time
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, catalogRepo catalog.Repository, couponSvc coupons.Service, abandonAfter time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if abandonAfter <= 0 {
		abandonAfter = 24 * time.Hour
	}
	return &service{
		repo:         repo,
		catalog:      catalogRepo,
		coupons:      couponSvc,
		abandonAfter: abandonAfter,
		now:          time.Now,
	}, nil
}

// Get returns the user's active cart, creating one lazily. A stale cart is
// moved to abandoned here rather than by a background job, and a fresh cart
// takes its place.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart != nil && len(cart.Items) > 0 && s.now().Sub(cart.LastActivityAt) > s.abandonAfter {
		if err := s.repo.UpdateCart(ctx, cart.ID, map[string]any{"status": enums.CartStatusAbandoned}); err != nil {
			return nil, err
		}
		cart = nil
	}
	if cart == nil {
		return s.repo.Create(ctx, &models.Cart{
			UserID:         userID,
			Status:         enums.CartStatusActive,
			Subtotal:       decimal.Zero,
			LastActivityAt: s.now(),
		})
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	return s.addItem(ctx, userID, input, false)
}

func (s *service) ReplaceWithItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.Cart, error) {
	return s.addItem(ctx, userID, input, true)
}

func (s *service) addItem(ctx context.Context, userID uuid.UUID, input AddItemInput, replace bool) (*models.Cart, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}

	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.FindProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	if replace && len(cart.Items) > 0 {
		if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
			return nil, err
		}
		cart.Items = nil
		cart.StoreID = nil
	}

	if cart.StoreID != nil && *cart.StoreID != product.StoreID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart holds items from another store").
			WithDetails(map[string]any{
				"conflict":         "different_store",
				"current_store_id": cart.StoreID,
				"new_store_id":     product.StoreID,
			})
	}

	variant, err := resolveVariant(product, input.VariantValue)
	if err != nil {
		return nil, err
	}
	customizations, err := resolveCustomizations(product, input.Customizations)
	if err != nil {
		return nil, err
	}

	unit := product.EffectivePrice()
	if variant != nil {
		unit = unit.Add(variant.PriceModifier)
	}
	for _, c := range customizations {
		unit = unit.Add(c.AdditionalCost)
	}
	unit = unit.Round(2)

	// same product, variant, and customizations merge into one line
	if existing := findMergeTarget(cart.Items, product.ID, variant, customizations); existing != nil {
		qty := existing.Quantity + input.Quantity
		if err := s.repo.UpdateItem(ctx, existing.ID, map[string]any{
			"quantity":    qty,
			"unit_price":  unit,
			"total_price": unit.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		}); err != nil {
			return nil, err
		}
	} else {
		item := &models.CartItem{
			CartID:          cart.ID,
			ProductID:       product.ID,
			StoreID:         product.StoreID,
			ProductName:     product.Name,
			Quantity:        input.Quantity,
			UnitPrice:       unit,
			DiscountedPrice: product.DiscountedPrice,
			SelectedVariant: variant,
			Customizations:  customizations,
			TotalPrice:      unit.Mul(decimal.NewFromInt(int64(input.Quantity))).Round(2),
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, err
		}
	}

	return s.recompute(ctx, cart.ID, userID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	cart, err := s.requireCartWithItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		if err := s.repo.DeleteItem(ctx, itemID); err != nil {
			return nil, err
		}
		return s.recompute(ctx, cart.ID, userID)
	}

	var item *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			item = &cart.Items[i]
			break
		}
	}
	if err := s.repo.UpdateItem(ctx, itemID, map[string]any{
		"quantity":    quantity,
		"total_price": item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	}); err != nil {
		return nil, err
	}
	return s.recompute(ctx, cart.ID, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.requireCartWithItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.recompute(ctx, cart.ID, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCart(ctx, cart.ID, map[string]any{"applied_coupon": nil}); err != nil {
		return nil, err
	}
	return s.recompute(ctx, cart.ID, userID)
}

func (s *service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot apply a coupon to an empty cart")
	}

	res, err := s.coupons.Validate(ctx, coupons.ValidateInput{
		Code:     code,
		UserID:   userID,
		Subtotal: cart.Subtotal,
		StoreID:  *cart.StoreID,
	})
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, res.Reason)
	}

	snapshot := &types.AppliedCoupon{
		CouponID:      res.Coupon.ID,
		Code:          res.Coupon.Code,
		DiscountType:  string(res.Coupon.DiscountType),
		DiscountValue: res.Coupon.DiscountValue,
	}
	if err := s.repo.UpdateCart(ctx, cart.ID, map[string]any{"applied_coupon": snapshot}); err != nil {
		return nil, err
	}
	return s.recompute(ctx, cart.ID, userID)
}

func (s *service) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCart(ctx, cart.ID, map[string]any{"applied_coupon": nil}); err != nil {
		return nil, err
	}
	return s.recompute(ctx, cart.ID, userID)
}

func (s *service) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	now := s.now()
	return s.repo.WithTx(tx).UpdateCart(ctx, cartID, map[string]any{
		"status":       enums.CartStatusConverted,
		"converted_at": &now,
	})
}

func (s *service) ClearActive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	cart, err := repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	if cart == nil {
		return nil
	}
	if err := repo.DeleteItems(ctx, cart.ID); err != nil {
		return err
	}
	return repo.UpdateCart(ctx, cart.ID, map[string]any{
		"store_id":       nil,
		"subtotal":       decimal.Zero,
		"total_items":    0,
		"total_quantity": 0,
		"applied_coupon": nil,
	})
}

func (s *service) DeleteAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteAbandonedBefore(ctx, cutoff)
}

// recompute refreshes the cart's derived fields from its items and returns
// the reloaded cart.
func (s *service) recompute(ctx context.Context, cartID, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.ID != cartID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}

	subtotal := decimal.Zero
	quantity := 0
	var storeID *uuid.UUID
	for i := range cart.Items {
		subtotal = subtotal.Add(cart.Items[i].TotalPrice)
		quantity += cart.Items[i].Quantity
		storeID = &cart.Items[i].StoreID
	}
	subtotal = subtotal.Round(2)

	updates := map[string]any{
		"subtotal":         subtotal,
		"total_items":      len(cart.Items),
		"total_quantity":   quantity,
		"store_id":         storeID,
		"last_activity_at": s.now(),
	}
	if len(cart.Items) == 0 && cart.AppliedCoupon != nil {
		updates["applied_coupon"] = nil
		cart.AppliedCoupon = nil
	}
	if err := s.repo.UpdateCart(ctx, cart.ID, updates); err != nil {
		return nil, err
	}

	cart.Subtotal = subtotal
	cart.TotalItems = len(cart.Items)
	cart.TotalQuantity = quantity
	cart.StoreID = storeID
	cart.LastActivityAt = s.now()
	return cart, nil
}

func (s *service) requireCartWithItem(ctx context.Context, userID, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return cart, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func resolveVariant(product *models.Product, value *string) (*types.ItemVariant, error) {
	if value == nil {
		return nil, nil
	}
	for i := range product.Variants {
		if product.Variants[i].Value == *value {
			v := product.Variants[i]
			return &v, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product variant")
}

func resolveCustomizations(product *models.Product, choices []CustomizationChoice) ([]types.ItemCustomization, error) {
	if len(choices) == 0 {
		return nil, nil
	}
	out := make([]types.ItemCustomization, 0, len(choices))
	for _, choice := range choices {
		found := false
		for i := range product.Customizations {
			c := product.Customizations[i]
			if c.Name == choice.Name && c.Option == choice.Option {
				out = append(out, c)
				found = true
				break
			}
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unknown customization %q", choice.Name))
		}
	}
	return out, nil
}

func findMergeTarget(items []models.CartItem, productID uuid.UUID, variant *types.ItemVariant, customizations []types.ItemCustomization) *models.CartItem {
	for i := range items {
		item := &items[i]
		if item.ProductID != productID {
			continue
		}
		if !sameVariant(item.SelectedVariant, variant) {
			continue
		}
		if !sameCustomizations(item.Customizations, customizations) {
			continue
		}
		return item
	}
	return nil
}

func sameVariant(a, b *types.ItemVariant) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Value == b.Value
}

func sameCustomizations(a, b []types.ItemCustomization) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
	for _, ca := range a {
		found := false
		for i, cb := range b {
			if !matched[i] && ca.Name == cb.Name && ca.Option == cb.Option {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
