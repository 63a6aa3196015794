package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/hungerdash/hungerdash-backend/pkg/types"
)

const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance between two coordinates in
// kilometres, rounded to 3 decimals.
func DistanceKM(from, to types.Location) decimal.Decimal {
	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dLat := (to.Latitude - from.Latitude) * math.Pi / 180
	dLng := (to.Longitude - from.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return decimal.NewFromFloat(earthRadiusKM * c).Round(3)
}
