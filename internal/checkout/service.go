package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/internal/cart"
	"github.com/hungerdash/hungerdash-backend/internal/catalog"
	"github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/internal/delivery"
	"github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/internal/pricing"
	"github.com/hungerdash/hungerdash-backend/pkg/config"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartConverter interface {
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// OrderLine identifies one requested item. Prices are resolved from the
// catalog; any client-sent price is discarded.
type OrderLine struct {
	ProductID      uuid.UUID
	Quantity       int
	VariantValue   *string
	Customizations []cart.CustomizationChoice
}

// PlaceOrderInput is everything checkout trusts from the client: what to
// buy, where to deliver, and intent fields. ExpectedTotal, when present, is
// only compared against the server total, never used for pricing.
type PlaceOrderInput struct {
	CustomerID      uuid.UUID
	Items           []OrderLine
	DeliveryAddress types.Address
	CouponCode      *string
	Tip             decimal.Decimal
	PaymentMethod   enums.PaymentMethod
	ExpectedTotal   *decimal.Decimal
}

// Service turns a priced basket into a placed order.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

type service struct {
	catalog  catalog.Repository
	coupons  coupons.Service
	delivery delivery.Service
	cartRepo cart.Repository
	carts    cartConverter
	orders   orders.Repository
	engine   *pricing.Engine
	tx       txRunner
	cfg      config.CheckoutConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service with the required dependencies.
func NewService(
	catalogRepo catalog.Repository,
	couponSvc coupons.Service,
	deliverySvc delivery.Service,
	cartRepo cart.Repository,
	carts cartConverter,
	ordersRepo orders.Repository,
	engine *pricing.Engine,
	tx txRunner,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if deliverySvc == nil {
		return nil, fmt.Errorf("delivery service required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart converter required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("pricing engine required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		catalog:  catalogRepo,
		coupons:  couponSvc,
		delivery: deliverySvc,
		cartRepo: cartRepo,
		carts:    carts,
		orders:   ordersRepo,
		engine:   engine,
		tx:       tx,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// PlaceOrder prices the basket server-side, validates the coupon, and
// writes the order with all price components frozen. The payment is opened
// separately; the order starts placed/pending.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	store, lines, err := s.resolveBasket(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	settings, err := s.delivery.PricingSettings(ctx)
	if err != nil {
		return nil, err
	}

	// first pass without the coupon: the subtotal the coupon is checked
	// against must itself be server-computed
	base, err := s.engine.Compute(lines, store.Location, input.DeliveryAddress.Location, nil, input.Tip, settings)
	if err != nil {
		return nil, err
	}

	var terms *pricing.CouponTerms
	var snapshot *types.AppliedCoupon
	if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
		terms, snapshot, err = s.validateCoupon(ctx, *input.CouponCode, input.CustomerID, store, base.Subtotal)
		if err != nil {
			return nil, err
		}
	}

	result := base
	if terms != nil {
		result, err = s.engine.Compute(lines, store.Location, input.DeliveryAddress.Location, terms, input.Tip, settings)
		if err != nil {
			return nil, err
		}
		snapshot.DiscountApplied = result.Discount
	}

	if input.ExpectedTotal != nil && !input.ExpectedTotal.Equal(result.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order total does not match the server-computed total").
			WithDetails(map[string]any{
				"conflict":     "amount_mismatch",
				"server_total": result.Total.StringFixed(2),
			})
	}

	order := &models.Order{
		OrderNumber:        s.newOrderNumber(),
		CustomerID:         input.CustomerID,
		StoreID:            store.ID,
		Status:             enums.OrderStatusPlaced,
		Subtotal:           result.Subtotal,
		DeliveryFee:        result.DeliveryFee,
		Tip:                result.Tip,
		Discount:           result.Discount,
		Total:              result.Total,
		AppliedCoupon:      snapshot,
		PaymentStatus:      enums.PaymentStatusPending,
		PaymentMethod:      input.PaymentMethod,
		DeliveryAddress:    input.DeliveryAddress,
		DeliveryDistanceKM: result.DistanceKM,
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = enums.PaymentMethodCard
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		catalogRepo := s.catalog.WithTx(tx)

		created, err := ordersRepo.Create(ctx, order)
		if err != nil {
			return err
		}
		order = created

		items := make([]models.OrderItem, 0, len(result.Items))
		for _, priced := range result.Items {
			productID, err := uuid.Parse(priced.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "priced item carries a bad product id")
			}
			items = append(items, models.OrderItem{
				OrderID:         order.ID,
				ProductID:       productID,
				ProductName:     priced.ProductName,
				Quantity:        priced.Quantity,
				UnitPrice:       priced.UnitPrice,
				SelectedVariant: priced.SelectedVariant,
				Customizations:  priced.Customizations,
				TotalPrice:      priced.TotalPrice,
			})
			if err := catalogRepo.DecrementInventory(ctx, productID, priced.Quantity); err != nil {
				return err
			}
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return err
		}
		if err := ordersRepo.AppendTracking(ctx, &models.OrderTrackingEvent{
			OrderID: order.ID,
			Status:  enums.OrderStatusPlaced,
		}); err != nil {
			return err
		}

		activeCart, err := s.cartRepo.WithTx(tx).FindActiveByUser(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if activeCart != nil {
			if err := s.carts.MarkConverted(ctx, tx, activeCart.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, fmt.Sprintf("order %s placed, total %s", order.OrderNumber, order.Total.StringFixed(2)))
	return s.orders.FindByID(ctx, order.ID)
}

// resolveBasket loads and verifies every product, enforces the single-store
// rule, and builds the pricing input with catalog-authoritative prices.
func (s *service) resolveBasket(ctx context.Context, requested []OrderLine) (*models.Store, []pricing.LineItem, error) {
	ids := make([]uuid.UUID, 0, len(requested))
	for _, line := range requested {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.FindProducts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var storeID uuid.UUID
	lines := make([]pricing.LineItem, 0, len(requested))
	for _, line := range requested {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %s not found", line.ProductID))
		}
		if storeID == uuid.Nil {
			storeID = product.StoreID
		} else if product.StoreID != storeID {
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "all order items must come from one store").
				WithDetails(map[string]any{"conflict": "different_store"})
		}

		variant, err := resolveVariant(product, line.VariantValue)
		if err != nil {
			return nil, nil, err
		}
		customizations, err := resolveCustomizations(product, line.Customizations)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, pricing.LineItem{
			ProductID:       product.ID.String(),
			ProductName:     product.Name,
			BasePrice:       product.EffectivePrice(),
			SelectedVariant: variant,
			Customizations:  customizations,
			Quantity:        line.Quantity,
		})
	}

	store, err := s.catalog.FindStore(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}
	return store, lines, nil
}

func (s *service) validateCoupon(
	ctx context.Context,
	code string,
	userID uuid.UUID,
	store *models.Store,
	subtotal decimal.Decimal,
) (*pricing.CouponTerms, *types.AppliedCoupon, error) {
	result, err := s.coupons.Validate(ctx, coupons.ValidateInput{
		Code:          code,
		UserID:        userID,
		Subtotal:      subtotal,
		StoreID:       store.ID,
		StoreCategory: store.Category,
	})
	if err != nil {
		return nil, nil, err
	}
	if !result.Valid {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, result.Reason)
	}

	coupon := result.Coupon
	terms := &pricing.CouponTerms{
		Type:        coupon.DiscountType,
		Value:       coupon.DiscountValue,
		MaxDiscount: coupon.MaxDiscountAmount,
	}
	snapshot := &types.AppliedCoupon{
		CouponID:      coupon.ID,
		Code:          coupon.Code,
		DiscountType:  string(coupon.DiscountType),
		DiscountValue: coupon.DiscountValue,
	}
	return terms, snapshot, nil
}

func (s *service) newOrderNumber() string {
	prefix := strings.TrimSpace(s.cfg.OrderNumberPrefix)
	if prefix == "" {
		prefix = "HD"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return fmt.Sprintf("%s-%s-%s", prefix, s.now().Format("20060102"), suffix)
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

func resolveCustomizations(product *models.Product, choices []cart.CustomizationChoice) ([]types.ItemCustomization, error) {
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
