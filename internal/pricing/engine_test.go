package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	// Cape Town CBD and a point roughly 4 km north-east.
	storeLoc    = types.Location{Latitude: -33.9249, Longitude: 18.4241}
	deliveryLoc = types.Location{Latitude: -33.8960, Longitude: 18.4520}
)

func testSettings() *Settings {
	return &Settings{
		Tiers: []types.DistanceTier{
			{MaxDistanceKM: dec("5"), Charge: dec("30")},
			{MaxDistanceKM: dec("7"), Charge: dec("35")},
		},
		MaxDistanceKM: dec("7"),
	}
}

func testEngine() *Engine {
	return NewEngine(Defaults{
		DeliveryFee:           dec("30"),
		FreeDeliveryThreshold: dec("500"),
	})
}

func TestComputeBasicOrder(t *testing.T) {
	t.Parallel()

	res, err := testEngine().Compute(
		[]LineItem{{ProductName: "Burger", BasePrice: dec("100"), Quantity: 2}},
		storeLoc, deliveryLoc, nil, dec("10"), testSettings(),
	)
	require.NoError(t, err)

	require.True(t, res.Subtotal.Equal(dec("200")), "subtotal %s", res.Subtotal)
	require.True(t, res.DeliveryFee.Equal(dec("30")), "fee %s", res.DeliveryFee)
	require.True(t, res.Discount.IsZero())
	require.True(t, res.Total.Equal(dec("240")), "total %s", res.Total)
}

func TestComputeFreeDeliveryOverThreshold(t *testing.T) {
	t.Parallel()

	res, err := testEngine().Compute(
		[]LineItem{{ProductName: "Burger", BasePrice: dec("100"), Quantity: 6}},
		storeLoc, deliveryLoc, nil, dec("10"), testSettings(),
	)
	require.NoError(t, err)

	require.True(t, res.Subtotal.Equal(dec("600")))
	require.True(t, res.DeliveryFee.IsZero(), "fee should be waived above the threshold, got %s", res.DeliveryFee)
	require.True(t, res.Total.Equal(res.Subtotal.Add(res.Tip)))
}

func TestComputePercentageCouponCapped(t *testing.T) {
	t.Parallel()

	maxDiscount := dec("50")
	res, err := testEngine().Compute(
		[]LineItem{{ProductName: "Platter", BasePrice: dec("1000"), Quantity: 1}},
		storeLoc, deliveryLoc,
		&CouponTerms{Type: enums.DiscountTypePercentage, Value: dec("10"), MaxDiscount: &maxDiscount},
		decimal.Zero, testSettings(),
	)
	require.NoError(t, err)
	require.True(t, res.Discount.Equal(dec("50")), "discount %s", res.Discount)
}

func TestComputeFixedCouponNeverExceedsSubtotal(t *testing.T) {
	t.Parallel()

	res, err := testEngine().Compute(
		[]LineItem{{ProductName: "Coffee", BasePrice: dec("25"), Quantity: 1}},
		storeLoc, deliveryLoc,
		&CouponTerms{Type: enums.DiscountTypeFixed, Value: dec("40")},
		decimal.Zero, testSettings(),
	)
	require.NoError(t, err)
	require.True(t, res.Discount.Equal(dec("25")))
	require.False(t, res.Total.IsNegative())
}

func TestComputeFreeDeliveryCoupon(t *testing.T) {
	t.Parallel()

	res, err := testEngine().Compute(
		[]LineItem{{ProductName: "Burger", BasePrice: dec("100"), Quantity: 1}},
		storeLoc, deliveryLoc,
		&CouponTerms{Type: enums.DiscountTypeFreeDelivery, Value: decimal.Zero},
		decimal.Zero, testSettings(),
	)
	require.NoError(t, err)
	require.True(t, res.DeliveryFee.IsZero())
	require.True(t, res.Discount.IsZero(), "free delivery acts on the fee, not the discount line")
}

func TestComputeOutOfRangeFails(t *testing.T) {
	t.Parallel()

	// ~11 km away, schedule tops out at 7 km.
	farAway := types.Location{Latitude: -33.8300, Longitude: 18.4800}
	_, err := testEngine().Compute(
		[]LineItem{{ProductName: "Burger", BasePrice: dec("100"), Quantity: 1}},
		storeLoc, farAway, nil, decimal.Zero, testSettings(),
	)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeOutOfRange, pkgerrors.As(err).Code())
}

func TestQuoteChargeOutOfRangeIsSoft(t *testing.T) {
	t.Parallel()

	q := testEngine().QuoteCharge(dec("8"), dec("100"), testSettings())
	require.False(t, q.CanDeliver)
	require.True(t, q.Charge.IsZero())
}

func TestComputeRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	for _, qty := range []int{0, -1} {
		_, err := testEngine().Compute(
			[]LineItem{{ProductName: "Burger", BasePrice: dec("100"), Quantity: qty}},
			storeLoc, deliveryLoc, nil, decimal.Zero, testSettings(),
		)
		require.Error(t, err)
		require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	}
}

func TestComputeVariantAndCustomizationPricing(t *testing.T) {
	t.Parallel()

	res, err := testEngine().Compute(
		[]LineItem{{
			ProductName:     "Pizza",
			BasePrice:       dec("90"),
			SelectedVariant: &types.ItemVariant{Name: "Size", Value: "Large", PriceModifier: dec("20")},
			Customizations: []types.ItemCustomization{
				{Name: "Extra cheese", Option: "yes", AdditionalCost: dec("12.50")},
			},
			Quantity: 2,
		}},
		storeLoc, deliveryLoc, nil, decimal.Zero, testSettings(),
	)
	require.NoError(t, err)
	require.True(t, res.Items[0].UnitPrice.Equal(dec("122.50")))
	require.True(t, res.Subtotal.Equal(dec("245")))
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	items := []LineItem{
		{ProductName: "Burger", BasePrice: dec("89.99"), Quantity: 3},
		{ProductName: "Chips", BasePrice: dec("24.50"), Quantity: 2},
	}
	first, err := testEngine().Compute(items, storeLoc, deliveryLoc, nil, dec("7.25"), testSettings())
	require.NoError(t, err)
	second, err := testEngine().Compute(items, storeLoc, deliveryLoc, nil, dec("7.25"), testSettings())
	require.NoError(t, err)

	require.True(t, first.Total.Equal(second.Total))
	require.True(t, first.Subtotal.Equal(second.Subtotal))
	require.True(t, first.DeliveryFee.Equal(second.DeliveryFee))
}

func TestComputeTotalInvariant(t *testing.T) {
	t.Parallel()

	maxDiscount := dec("75")
	cases := []struct {
		name   string
		items  []LineItem
		coupon *CouponTerms
		tip    decimal.Decimal
	}{
		{"plain", []LineItem{{BasePrice: dec("149.99"), Quantity: 2}}, nil, dec("15")},
		{"percentage", []LineItem{{BasePrice: dec("333.33"), Quantity: 3}},
			&CouponTerms{Type: enums.DiscountTypePercentage, Value: dec("15"), MaxDiscount: &maxDiscount}, decimal.Zero},
		{"fixed", []LineItem{{BasePrice: dec("42"), Quantity: 1}},
			&CouponTerms{Type: enums.DiscountTypeFixed, Value: dec("10")}, dec("5.50")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := testEngine().Compute(tc.items, storeLoc, deliveryLoc, tc.coupon, tc.tip, testSettings())
			require.NoError(t, err)
			want := res.Subtotal.Add(res.DeliveryFee).Add(res.Tip).Sub(res.Discount).Round(2)
			require.True(t, res.Total.Equal(want), "total %s != %s", res.Total, want)
			require.False(t, res.Total.IsNegative())
		})
	}
}

func TestDistanceTierMonotonicity(t *testing.T) {
	t.Parallel()

	e := testEngine()
	settings := testSettings()
	prev := decimal.Zero
	for _, d := range []string{"1", "3", "5", "6", "7"} {
		q := e.QuoteCharge(dec(d), dec("100"), settings)
		require.True(t, q.CanDeliver, "distance %s should be deliverable", d)
		require.True(t, q.Charge.GreaterThanOrEqual(prev), "charge should not decrease with distance")
		prev = q.Charge
	}
	require.False(t, e.QuoteCharge(dec("7.001"), dec("100"), settings).CanDeliver)
}

func TestComputeFallsBackToDefaultFee(t *testing.T) {
	t.Parallel()

	res, err := testEngine().Compute(
		[]LineItem{{ProductName: "Burger", BasePrice: dec("100"), Quantity: 1}},
		storeLoc, deliveryLoc, nil, decimal.Zero, nil,
	)
	require.NoError(t, err)
	require.True(t, res.DeliveryFee.Equal(dec("30")))
}

func TestDistanceKM(t *testing.T) {
	t.Parallel()

	// Same point is zero distance.
	require.True(t, DistanceKM(storeLoc, storeLoc).IsZero())

	// 1 degree of latitude is ~111 km.
	north := types.Location{Latitude: storeLoc.Latitude + 1, Longitude: storeLoc.Longitude}
	d := DistanceKM(storeLoc, north)
	require.True(t, d.GreaterThan(dec("110")) && d.LessThan(dec("112")), "got %s", d)
}
