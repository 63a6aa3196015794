package types

import (
	"encoding/json"
	"fmt"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// locationAlias avoids recursion inside UnmarshalJSON.
type locationAlias Location

type geoJSONPoint struct {
	Coordinates []float64 `json:"coordinates"`
}

// UnmarshalJSON accepts either `{"latitude":..,"longitude":..}` or the
// GeoJSON-style `{"coordinates":[lng,lat]}` that delivery clients send.
func (l *Location) UnmarshalJSON(data []byte) error {
	var geo geoJSONPoint
	if err := json.Unmarshal(data, &geo); err == nil && len(geo.Coordinates) == 2 {
		l.Longitude = geo.Coordinates[0]
		l.Latitude = geo.Coordinates[1]
		return nil
	}

	var alias locationAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	*l = Location(alias)
	return nil
}

// Valid reports whether the coordinates are inside WGS84 bounds.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// IsZero reports whether both coordinates are unset.
func (l Location) IsZero() bool {
	return l.Latitude == 0 && l.Longitude == 0
}
