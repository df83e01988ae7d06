// Package geo estimates distances and travel times between coordinates.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// ErrInvalidPoint is returned when a coordinate is outside the WGS84 range.
var ErrInvalidPoint = errors.New("geo: invalid coordinate")

// Point describes a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Validate rejects NaN and out-of-range coordinates.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return fmt.Errorf("%w: NaN component", ErrInvalidPoint)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range", ErrInvalidPoint, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range", ErrInvalidPoint, p.Lon)
	}
	return nil
}

// PointFrom builds a Point from nullable columns. Both values must be present.
func PointFrom(lat, lon *float64) (*Point, bool) {
	if lat == nil || lon == nil {
		return nil, false
	}
	return &Point{Lat: *lat, Lon: *lon}, true
}

// DistanceKm returns the great-circle distance in kilometres between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h just past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

func toRadians(v float64) float64 {
	return v * math.Pi / 180
}
