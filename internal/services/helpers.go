package services

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/charlesng35/gigbook/internal/geo"
	"github.com/charlesng35/gigbook/internal/models"
	apperrors "github.com/charlesng35/gigbook/pkg/errors"
)

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func normaliseStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// coordinates validates an optional coordinate pair: both or neither.
func coordinates(lat, lon *float64) (*float64, *float64, error) {
	if lat == nil && lon == nil {
		return nil, nil, nil
	}
	if lat == nil || lon == nil {
		return nil, nil, apperrors.Invalid("latitude and longitude must be provided together")
	}
	if err := (geo.Point{Lat: *lat, Lon: *lon}).Validate(); err != nil {
		return nil, nil, apperrors.Invalid(err.Error())
	}
	la, lo := *lat, *lon
	return &la, &lo, nil
}

// suspensionViolation renders an active suspension as a POLICY_VIOLATION error.
func suspensionViolation(s *models.Suspension, now time.Time) *apperrors.AppError {
	remaining := s.EndsAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return apperrors.ErrPolicyViolation.
		WithMessage("musician is suspended from new bookings").
		WithDetails(map[string]any{
			"musician_id":       s.MusicianID,
			"reason":            s.Reason,
			"suspended_until":   s.EndsAt.UTC().Format(time.RFC3339),
			"remaining_seconds": remaining.Seconds(),
		})
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func clampLimit(limit, fallback, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return fallback
	}
	return limit
}
