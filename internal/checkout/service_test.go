package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hungerdash/hungerdash-backend/internal/cart"
	"github.com/hungerdash/hungerdash-backend/internal/catalog"
	"github.com/hungerdash/hungerdash-backend/internal/coupons"
	"github.com/hungerdash/hungerdash-backend/internal/orders"
	"github.com/hungerdash/hungerdash-backend/internal/pricing"
	"github.com/hungerdash/hungerdash-backend/pkg/config"
	"github.com/hungerdash/hungerdash-backend/pkg/db/models"
	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/pagination"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	testStoreLoc    = types.Location{Latitude: -33.9249, Longitude: 18.4241}
	testDeliveryLoc = types.Location{Latitude: -33.8960, Longitude: 18.4520}
)

type stubCatalog struct {
	store        *models.Store
	products     map[uuid.UUID]models.Product
	decremented  map[uuid.UUID]int
	decrementErr error
}

func (s *stubCatalog) WithTx(tx *gorm.DB) catalog.Repository { return s }

func (s *stubCatalog) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := s.products[id]; ok {
		return &p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubCatalog) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCatalog) FindStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	if s.store != nil && s.store.ID == id {
		return s.store, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
}

func (s *stubCatalog) DecrementInventory(ctx context.Context, productID uuid.UUID, qty int) error {
	if s.decrementErr != nil {
		return s.decrementErr
	}
	if s.decremented == nil {
		s.decremented = map[uuid.UUID]int{}
	}
	s.decremented[productID] += qty
	return nil
}

type stubCoupons struct {
	result *coupons.ValidationResult
	inputs []coupons.ValidateInput
}

func (s *stubCoupons) Validate(ctx context.Context, input coupons.ValidateInput) (*coupons.ValidationResult, error) {
	s.inputs = append(s.inputs, input)
	return s.result, nil
}

func (s *stubCoupons) Consume(ctx context.Context, tx *gorm.DB, input coupons.ConsumeInput) error {
	return nil
}

func (s *stubCoupons) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	return coupon, nil
}

func (s *stubCoupons) Update(ctx context.Context, id string, updates map[string]any) error {
	return nil
}

func (s *stubCoupons) Deactivate(ctx context.Context, id string) error     { return nil }
func (s *stubCoupons) ListActive(ctx context.Context) ([]models.Coupon, error) { return nil, nil }
func (s *stubCoupons) List(ctx context.Context) ([]models.Coupon, error)       { return nil, nil }

func (s *stubCoupons) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}

type stubDelivery struct {
	settings *pricing.Settings
}

func (s *stubDelivery) ActiveSettings(ctx context.Context) (*models.DeliverySettings, error) {
	return nil, nil
}

func (s *stubDelivery) PricingSettings(ctx context.Context) (*pricing.Settings, error) {
	return s.settings, nil
}

func (s *stubDelivery) ReplaceSettings(ctx context.Context, settings *models.DeliverySettings) (*models.DeliverySettings, error) {
	return settings, nil
}

func (s *stubDelivery) QuoteCharge(ctx context.Context, distanceKM, subtotal decimal.Decimal) (*pricing.Quote, error) {
	return nil, nil
}

type stubCartRepo struct {
	cart      *models.Cart
	converted []uuid.UUID
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.cart != nil && s.cart.UserID == userID {
		return s.cart, nil
	}
	return nil, nil
}

func (s *stubCartRepo) Create(ctx context.Context, c *models.Cart) (*models.Cart, error) {
	return c, nil
}

func (s *stubCartRepo) UpdateCart(ctx context.Context, cartID uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubCartRepo) CreateItem(ctx context.Context, item *models.CartItem) error    { return nil }
func (s *stubCartRepo) UpdateItem(ctx context.Context, id uuid.UUID, u map[string]any) error {
	return nil
}
func (s *stubCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error  { return nil }
func (s *stubCartRepo) DeleteItems(ctx context.Context, cartID uuid.UUID) error { return nil }
func (s *stubCartRepo) DeleteAbandonedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubCartRepo) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	s.converted = append(s.converted, cartID)
	return nil
}

type memOrders struct {
	order    *models.Order
	items    []models.OrderItem
	tracking []models.OrderTrackingEvent
}

func (m *memOrders) WithTx(tx *gorm.DB) orders.Repository { return m }

func (m *memOrders) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	m.order = order
	return order, nil
}

func (m *memOrders) CreateItems(ctx context.Context, items []models.OrderItem) error {
	m.items = append(m.items, items...)
	return nil
}

func (m *memOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if m.order == nil || m.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *m.order
	copied.Items = m.items
	return &copied, nil
}

func (m *memOrders) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, *pagination.Page, error) {
	return nil, &pagination.Page{}, nil
}

func (m *memOrders) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (m *memOrders) AppendTracking(ctx context.Context, event *models.OrderTrackingEvent) error {
	m.tracking = append(m.tracking, *event)
	return nil
}

func (m *memOrders) FindTracking(ctx context.Context, orderID uuid.UUID) ([]models.OrderTrackingEvent, error) {
	return m.tracking, nil
}

func (m *memOrders) ConfirmPaid(ctx context.Context, id uuid.UUID) (bool, error) { return false, nil }
func (m *memOrders) ClaimCouponConsumption(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}
func (m *memOrders) SetPaymentOutcome(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	svc      Service
	catalog  *stubCatalog
	coupons  *stubCoupons
	cartRepo *stubCartRepo
	orders   *memOrders
	store    *models.Store
	burger   uuid.UUID
	fries    uuid.UUID
	customer uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := &models.Store{ID: uuid.New(), Name: "Burger Joint", Location: testStoreLoc, IsActive: true}
	burger := models.Product{
		ID:      uuid.New(),
		StoreID: store.ID,
		Name:    "Classic Burger",
		Price:   dec("100.00"),
		Variants: []types.ItemVariant{
			{Name: "Size", Value: "large", PriceModifier: dec("20.00")},
		},
		Customizations: []types.ItemCustomization{
			{Name: "Extra Cheese", Option: "yes", AdditionalCost: dec("2.50")},
		},
		IsActive: true,
	}
	fries := models.Product{
		ID:       uuid.New(),
		StoreID:  store.ID,
		Name:     "Fries",
		Price:    dec("50.00"),
		IsActive: true,
	}

	catalogStub := &stubCatalog{
		store: store,
		products: map[uuid.UUID]models.Product{
			burger.ID: burger,
			fries.ID:  fries,
		},
	}
	couponStub := &stubCoupons{}
	deliveryStub := &stubDelivery{settings: &pricing.Settings{
		Tiers: []types.DistanceTier{
			{MaxDistanceKM: dec("5"), Charge: dec("30.00")},
			{MaxDistanceKM: dec("15"), Charge: dec("55.00")},
		},
		MaxDistanceKM: dec("15"),
	}}
	cartRepo := &stubCartRepo{}
	ordersRepo := &memOrders{}

	engine := pricing.NewEngine(pricing.Defaults{
		DeliveryFee:           dec("35.00"),
		FreeDeliveryThreshold: dec("500.00"),
	})
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(catalogStub, couponStub, deliveryStub, cartRepo, cartRepo,
		ordersRepo, engine, passthroughTx{}, config.CheckoutConfig{OrderNumberPrefix: "HD"}, logg)
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		catalog:  catalogStub,
		coupons:  couponStub,
		cartRepo: cartRepo,
		orders:   ordersRepo,
		store:    store,
		burger:   burger.ID,
		fries:    fries.ID,
		customer: uuid.New(),
	}
}

func TestPlaceOrderSnapshotsServerPricing(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	order, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.burger, Quantity: 2},
		},
		DeliveryAddress: types.Address{Street: "1 Long St", City: "Cape Town", Location: testDeliveryLoc},
		Tip:             dec("10.00"),
	})
	require.NoError(t, err)

	// 2 x 100 = 200 subtotal, 30 fee (first tier), 10 tip
	require.True(t, order.Subtotal.Equal(dec("200.00")))
	require.True(t, order.DeliveryFee.Equal(dec("30.00")))
	require.True(t, order.Total.Equal(dec("240.00")))
	require.Equal(t, enums.OrderStatusPlaced, order.Status)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Contains(t, order.OrderNumber, "HD-")

	require.Len(t, order.Items, 1)
	require.True(t, order.Items[0].UnitPrice.Equal(dec("100.00")))
	require.True(t, order.Items[0].TotalPrice.Equal(dec("200.00")))

	require.Len(t, fx.orders.tracking, 1)
	require.Equal(t, enums.OrderStatusPlaced, fx.orders.tracking[0].Status)
	require.Equal(t, 2, fx.catalog.decremented[fx.burger])
}

func TestPlaceOrderResolvesVariantAndCustomizations(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	large := "large"

	order, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{
				ProductID:    fx.burger,
				Quantity:     1,
				VariantValue: &large,
				Customizations: []cart.CustomizationChoice{
					{Name: "Extra Cheese", Option: "yes"},
				},
			},
		},
		DeliveryAddress: types.Address{Street: "1 Long St", City: "Cape Town", Location: testDeliveryLoc},
	})
	require.NoError(t, err)

	// 100 + 20 variant + 2.50 customization
	require.True(t, order.Items[0].UnitPrice.Equal(dec("122.50")))
	require.NotNil(t, order.Items[0].SelectedVariant)
	require.Equal(t, "large", order.Items[0].SelectedVariant.Value)
}

func TestPlaceOrderRejectsUnknownVariant(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	bogus := "mega"

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.burger, Quantity: 1, VariantValue: &bogus},
		},
		DeliveryAddress: types.Address{Location: testDeliveryLoc},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestPlaceOrderRejectsMixedStores(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	otherStore := models.Product{
		ID:       uuid.New(),
		StoreID:  uuid.New(),
		Name:     "Sushi",
		Price:    dec("80.00"),
		IsActive: true,
	}
	fx.catalog.products[otherStore.ID] = otherStore

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.burger, Quantity: 1},
			{ProductID: otherStore.ID, Quantity: 1},
		},
		DeliveryAddress: types.Address{Location: testDeliveryLoc},
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.Equal(t, pkgerrors.CodeConflict, appErr.Code())
}

func TestPlaceOrderAppliesValidatedCoupon(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	couponID := uuid.New()
	fx.coupons.result = &coupons.ValidationResult{
		Valid: true,
		Coupon: &models.Coupon{
			ID:            couponID,
			Code:          "SAVE50",
			DiscountType:  enums.DiscountTypeFixed,
			DiscountValue: dec("50.00"),
		},
	}
	code := "SAVE50"

	order, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.burger, Quantity: 2},
		},
		DeliveryAddress: types.Address{Location: testDeliveryLoc},
		CouponCode:      &code,
	})
	require.NoError(t, err)

	require.True(t, order.Discount.Equal(dec("50.00")))
	require.True(t, order.Total.Equal(dec("180.00")))
	require.NotNil(t, order.AppliedCoupon)
	require.Equal(t, couponID, order.AppliedCoupon.CouponID)
	require.True(t, order.AppliedCoupon.DiscountApplied.Equal(dec("50.00")))
	require.False(t, order.CouponConsumed)

	// validated against the server-computed subtotal
	require.Len(t, fx.coupons.inputs, 1)
	require.True(t, fx.coupons.inputs[0].Subtotal.Equal(dec("200.00")))
}

func TestPlaceOrderRejectsInvalidCoupon(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.coupons.result = &coupons.ValidationResult{Valid: false, Reason: "coupon has expired"}
	code := "OLD"

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.burger, Quantity: 1},
		},
		DeliveryAddress: types.Address{Location: testDeliveryLoc},
		CouponCode:      &code,
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	require.Contains(t, appErr.Error(), "expired")
}

func TestPlaceOrderAmountMismatchConflicts(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	expected := dec("199.99")

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.burger, Quantity: 2},
		},
		DeliveryAddress: types.Address{Location: testDeliveryLoc},
		ExpectedTotal:   &expected,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	require.Nil(t, fx.orders.order)
}

func TestPlaceOrderOutOfRangeIsHardError(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	// roughly 100km north of the store
	farAway := types.Location{Latitude: -33.0, Longitude: 18.4241}

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.burger, Quantity: 1},
		},
		DeliveryAddress: types.Address{Location: farAway},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeOutOfRange, pkgerrors.As(err).Code())
}

func TestPlaceOrderConvertsActiveCart(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.cartRepo.cart = &models.Cart{ID: uuid.New(), UserID: fx.customer, Status: enums.CartStatusActive}

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: fx.fries, Quantity: 1},
		},
		DeliveryAddress: types.Address{Location: testDeliveryLoc},
	})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{fx.cartRepo.cart.ID}, fx.cartRepo.converted)
}

func TestPlaceOrderRejectsEmptyAndNonPositive(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{CustomerID: fx.customer})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items:      []OrderLine{{ProductID: fx.burger, Quantity: 0}},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: fx.customer,
		Items: []OrderLine{
			{ProductID: uuid.New(), Quantity: 1},
		},
		DeliveryAddress: types.Address{Location: testDeliveryLoc},
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
