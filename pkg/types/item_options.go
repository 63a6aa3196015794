package types

import "github.com/shopspring/decimal"

// ItemVariant is the buyer-selected product variant snapshot.
type ItemVariant struct {
	Name          string          `json:"name"`
	Value         string          `json:"value"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// ItemCustomization is a single add-on selected for a line item.
type ItemCustomization struct {
	Name           string          `json:"name"`
	Option         string          `json:"option"`
	AdditionalCost decimal.Decimal `json:"additional_cost"`
}
