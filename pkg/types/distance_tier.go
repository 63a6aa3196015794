package types

import "github.com/shopspring/decimal"

// DistanceTier maps a delivery radius to its charge. Tiers are stored ordered
// by MaxDistanceKM ascending; the smallest tier covering the actual distance
// wins.
type DistanceTier struct {
	MaxDistanceKM decimal.Decimal `json:"max_distance_km"`
	Charge        decimal.Decimal `json:"charge"`
}
