package app

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

// Validate reports every setting that would make the booking engine behave
// incorrectly. All problems are returned together.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "server.port %d out of range", c.Server.Port)
	check(c.Server.RateLimit.Requests >= 0, "server.rate_limit.requests must not be negative")
	check(c.Server.RateLimit.Requests == 0 || c.Server.RateLimit.Window > 0,
		"server.rate_limit.window must be positive when requests are limited")

	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", "postgres", "postgresql", "mysql":
	default:
		check(false, "database.driver %q is not supported", c.Database.Driver)
	}

	cancel := c.Booking.Cancellation
	check(cancel.LateWindow > 0, "booking.cancellation.late_window must be positive")
	check(cancel.SuspensionLength > 0, "booking.cancellation.suspension_length must be positive")
	check(cancel.FrequencyThreshold >= 0, "booking.cancellation.frequency_threshold must not be negative")
	check(cancel.FrequencyThreshold == 0 || cancel.FrequencyWindow > 0,
		"booking.cancellation.frequency_window must be positive when the frequency rule is enabled")

	travel := c.Matching.Travel
	check(travel.AverageSpeedKph > 0, "matching.travel.average_speed_kph must be positive")
	check(travel.RoadFactor >= 1, "matching.travel.road_factor must be at least 1")
	check(travel.FixedOverhead >= 0, "matching.travel.fixed_overhead must not be negative")

	check(c.Events.MaxAttempts >= 1, "events.max_attempts must be at least 1")
	check(c.Events.BatchSize >= 1, "events.batch_size must be at least 1")
	check(c.Events.MaxBackoff == 0 || c.Events.MaxBackoff >= c.Events.BaseBackoff,
		"events.max_backoff must not be shorter than events.base_backoff")

	if c.Maintenance.Enabled {
		schedules := [][2]string{
			{"maintenance.redelivery_schedule", c.Maintenance.RedeliverySchedule},
			{"maintenance.notification_schedule", c.Maintenance.NotificationSchedule},
			{"maintenance.cache_schedule", c.Maintenance.CacheSchedule},
		}
		for _, s := range schedules {
			spec := strings.TrimSpace(s[1])
			if spec == "" {
				continue
			}
			if _, err := cron.ParseStandard(spec); err != nil {
				check(false, "%s %q: %v", s[0], spec, err)
			}
		}
	}

	return errs
}
