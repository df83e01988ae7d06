package app

import (
	"github.com/charlesng35/gigbook/internal/events"
	"github.com/charlesng35/gigbook/internal/geo"
	"github.com/charlesng35/gigbook/internal/policy"
)

// CancellationPolicyConfig converts the cancellation section into policy parameters.
func (c BookingConfig) CancellationPolicyConfig() policy.CancellationConfig {
	return policy.CancellationConfig{
		LateWindow:         c.Cancellation.LateWindow,
		SuspensionLength:   c.Cancellation.SuspensionLength,
		FrequencyThreshold: c.Cancellation.FrequencyThreshold,
		FrequencyWindow:    c.Cancellation.FrequencyWindow,
	}
}

// Estimator builds the travel-time estimator used by the candidate matcher.
func (c MatchingConfig) Estimator() geo.DrivingEstimator {
	return geo.NewDrivingEstimator(c.Travel.AverageSpeedKph, c.Travel.RoadFactor, c.Travel.FixedOverhead)
}

// DispatcherOptions converts the events section into dispatcher options.
func (c EventsConfig) DispatcherOptions() []events.Option {
	return []events.Option{
		events.WithMaxAttempts(c.MaxAttempts),
		events.WithBackoff(c.BaseBackoff, c.MaxBackoff),
	}
}
