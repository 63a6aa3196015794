package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/enums"
	pkgerrors "github.com/hungerdash/hungerdash-backend/pkg/errors"
	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

// LineItem is one cart line with server-trusted prices. Client-submitted
// price fields never reach this package.
type LineItem struct {
	ProductID       string
	ProductName     string
	BasePrice       decimal.Decimal
	SelectedVariant *types.ItemVariant
	Customizations  []types.ItemCustomization
	Quantity        int
}

// CouponTerms is the discount-relevant slice of a validated coupon.
type CouponTerms struct {
	Type        enums.DiscountType
	Value       decimal.Decimal
	MaxDiscount *decimal.Decimal
}

// PricedItem is one input line with its resolved unit and total price.
type PricedItem struct {
	LineItem
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Result carries every server-computed price component for an order.
type Result struct {
	Items       []PricedItem
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Tip         decimal.Decimal
	Total       decimal.Decimal
	DistanceKM  decimal.Decimal
}

// Quote is the soft-failure shape used by the delivery-charge preview.
type Quote struct {
	DistanceKM decimal.Decimal
	Charge     decimal.Decimal
	CanDeliver bool
}

// Defaults supplies the fallbacks applied when no delivery settings row is
// active.
type Defaults struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
}

// Settings is the active fee schedule. Nil means "use defaults".
type Settings struct {
	Tiers                 []types.DistanceTier
	MaxDistanceKM         decimal.Decimal
	FreeDeliveryThreshold *decimal.Decimal
}

// Engine computes order pricing. It is pure: no I/O, deterministic for
// fixed inputs, safe to call for both preview and checkout.
type Engine struct {
	defaults Defaults
}

func NewEngine(defaults Defaults) *Engine {
	return &Engine{defaults: defaults}
}

// Compute prices a checkout. Every intermediate value is rounded to 2
// decimals in a fixed order: per item, then subtotal, fee, discount, total.
// A delivery distance beyond the schedule is a hard failure here; the
// preview path uses QuoteCharge instead.
func (e *Engine) Compute(
	items []LineItem,
	storeLoc, deliveryLoc types.Location,
	coupon *CouponTerms,
	tip decimal.Decimal,
	settings *Settings,
) (*Result, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no items to price")
	}
	if tip.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip cannot be negative")
	}

	priced := make([]PricedItem, 0, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d: quantity must be a positive integer", i))
		}
		unit := unitPrice(it)
		line := unit.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		priced = append(priced, PricedItem{LineItem: it, UnitPrice: unit, TotalPrice: line})
		subtotal = subtotal.Add(line)
	}
	subtotal = subtotal.Round(2)

	distance := DistanceKM(storeLoc, deliveryLoc)
	fee, ok := e.deliveryFee(distance, subtotal, coupon, settings)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfRange, "delivery address is outside the delivery range")
	}

	discount := couponDiscount(coupon, subtotal)

	tip = tip.Round(2)
	total := subtotal.Add(fee).Add(tip).Sub(discount).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Result{
		Items:       priced,
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Discount:    discount,
		Tip:         tip,
		Total:       total,
		DistanceKM:  distance,
	}, nil
}

// QuoteCharge resolves the delivery fee for a distance without failing: an
// out-of-range distance comes back as CanDeliver=false with a zero charge.
func (e *Engine) QuoteCharge(distance, subtotal decimal.Decimal, settings *Settings) Quote {
	fee, ok := e.deliveryFee(distance, subtotal, nil, settings)
	if !ok {
		return Quote{DistanceKM: distance, Charge: decimal.Zero, CanDeliver: false}
	}
	return Quote{DistanceKM: distance, Charge: fee, CanDeliver: true}
}

// unitPrice resolves one line's unit price: base product price plus the
// selected variant's modifier plus customization costs, rounded before the
// quantity multiplication.
func unitPrice(it LineItem) decimal.Decimal {
	unit := it.BasePrice
	if it.SelectedVariant != nil {
		unit = unit.Add(it.SelectedVariant.PriceModifier)
	}
	for _, c := range it.Customizations {
		unit = unit.Add(c.AdditionalCost)
	}
	return unit.Round(2)
}

// deliveryFee selects the cheapest tier covering the distance. The second
// return is false when the distance exceeds every tier.
func (e *Engine) deliveryFee(distance, subtotal decimal.Decimal, coupon *CouponTerms, settings *Settings) (decimal.Decimal, bool) {
	threshold := e.defaults.FreeDeliveryThreshold
	if settings != nil && settings.FreeDeliveryThreshold != nil {
		threshold = *settings.FreeDeliveryThreshold
	}
	freeByCoupon := coupon != nil && coupon.Type == enums.DiscountTypeFreeDelivery
	freeByThreshold := threshold.IsPositive() && subtotal.GreaterThan(threshold)

	if settings == nil || len(settings.Tiers) == 0 {
		if freeByCoupon || freeByThreshold {
			return decimal.Zero, true
		}
		return e.defaults.DeliveryFee.Round(2), true
	}

	if distance.GreaterThan(settings.MaxDistanceKM) {
		return decimal.Zero, false
	}

	// smallest covering tier wins
	var best *types.DistanceTier
	for i := range settings.Tiers {
		tier := settings.Tiers[i]
		if tier.MaxDistanceKM.GreaterThanOrEqual(distance) {
			if best == nil || tier.MaxDistanceKM.LessThan(best.MaxDistanceKM) {
				best = &settings.Tiers[i]
			}
		}
	}
	if best == nil {
		return decimal.Zero, false
	}
	fee := best.Charge
	if freeByCoupon || freeByThreshold {
		return decimal.Zero, true
	}
	return fee.Round(2), true
}

// couponDiscount computes the subtotal discount. Free-delivery coupons act
// on the fee, not here, so their discount amount is zero.
func couponDiscount(coupon *CouponTerms, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	switch coupon.Type {
	case enums.DiscountTypePercentage:
		d := subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100)).Round(2)
		if coupon.MaxDiscount != nil && d.GreaterThan(*coupon.MaxDiscount) {
			d = coupon.MaxDiscount.Round(2)
		}
		return d
	case enums.DiscountTypeFixed:
		d := coupon.Value.Round(2)
		if d.GreaterThan(subtotal) {
			d = subtotal
		}
		if d.IsNegative() {
			d = decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}
