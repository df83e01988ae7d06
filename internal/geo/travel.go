package geo

import (
	"math"
	"time"
)

// TravelEstimator converts a straight-line distance into an approximate
// door-to-door travel time. Implementations must be monotonic: a longer
// distance never yields a shorter estimate.
type TravelEstimator interface {
	EstimateMinutes(distanceKm float64) int
}

// Default parameters for DrivingEstimator.
const (
	DefaultAverageSpeedKph = 50.0
	DefaultRoadFactor      = 1.3
	DefaultFixedOverhead   = 5 * time.Minute
)

// DrivingEstimator approximates driving time from great-circle distance.
// It is not a routing-service call: the straight line is stretched by
// RoadFactor, driven at AverageSpeedKph, plus FixedOverhead for parking
// and loading in.
type DrivingEstimator struct {
	AverageSpeedKph float64
	RoadFactor      float64
	FixedOverhead   time.Duration
}

// NewDrivingEstimator returns an estimator, replacing non-positive values with defaults.
func NewDrivingEstimator(speedKph, roadFactor float64, overhead time.Duration) DrivingEstimator {
	if speedKph <= 0 {
		speedKph = DefaultAverageSpeedKph
	}
	if roadFactor < 1 {
		roadFactor = DefaultRoadFactor
	}
	if overhead < 0 {
		overhead = DefaultFixedOverhead
	}
	return DrivingEstimator{AverageSpeedKph: speedKph, RoadFactor: roadFactor, FixedOverhead: overhead}
}

// EstimateMinutes implements TravelEstimator.
func (e DrivingEstimator) EstimateMinutes(distanceKm float64) int {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		distanceKm = 0
	}
	speed := e.AverageSpeedKph
	if speed <= 0 {
		speed = DefaultAverageSpeedKph
	}
	factor := e.RoadFactor
	if factor < 1 {
		factor = 1
	}

	driving := distanceKm * factor / speed * 60
	return int(math.Ceil(driving + e.FixedOverhead.Minutes()))
}
