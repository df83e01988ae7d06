// Package matching selects eligible musicians for a gig role.
package matching

import (
	"sort"
	"strings"

	"github.com/charlesng35/gigbook/internal/geo"
)

// Role is the part of a gig role the matcher looks at.
type Role struct {
	Instrument string
	// Location is the gig location; nil when the gig has no coordinates.
	Location *geo.Point
}

// Profile is a snapshot of a musician's matching attributes.
type Profile struct {
	MusicianID     string
	Instruments    []string
	Location       *geo.Point
	SearchRadiusKm float64
}

// Candidate is an eligible profile with its distance to the gig when known.
type Candidate struct {
	Profile       Profile
	DistanceKm    *float64
	TravelMinutes *int
}

// Matcher filters and orders musician profiles for a role.
type Matcher struct {
	estimator geo.TravelEstimator
}

// NewMatcher builds a matcher. A nil estimator falls back to the default driving estimate.
func NewMatcher(estimator geo.TravelEstimator) *Matcher {
	if estimator == nil {
		estimator = geo.NewDrivingEstimator(0, 0, geo.DefaultFixedOverhead)
	}
	return &Matcher{estimator: estimator}
}

// Match returns the profiles eligible for role, nearest first.
//
// A profile is kept when it plays the role's instrument and, if both the gig and
// the musician have coordinates, the gig lies within the musician's search radius.
// Profiles with a missing coordinate on either side are kept without a distance
// and sort after every profile with a known distance, in input order.
func (m *Matcher) Match(role Role, profiles []Profile) []Candidate {
	instrument := NormalizeInstrument(role.Instrument)
	if instrument == "" {
		return []Candidate{}
	}

	candidates := make([]Candidate, 0, len(profiles))
	for _, profile := range profiles {
		if !plays(profile.Instruments, instrument) {
			continue
		}

		candidate := Candidate{Profile: profile}
		if role.Location != nil && profile.Location != nil {
			distance := geo.DistanceKm(*role.Location, *profile.Location)
			if distance > profile.SearchRadiusKm {
				continue
			}
			minutes := m.estimator.EstimateMinutes(distance)
			candidate.DistanceKm = &distance
			candidate.TravelMinutes = &minutes
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].DistanceKm, candidates[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	return candidates
}

// NormalizeInstrument lower-cases and trims an instrument name for comparison.
func NormalizeInstrument(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NormalizeInstruments normalises and de-duplicates an instrument list, preserving order.
func NormalizeInstruments(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		normalized := NormalizeInstrument(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// Plays reports whether instruments contains instrument, ignoring case.
func Plays(instruments []string, instrument string) bool {
	return plays(instruments, NormalizeInstrument(instrument))
}

func plays(instruments []string, normalized string) bool {
	for _, candidate := range instruments {
		if NormalizeInstrument(candidate) == normalized {
			return true
		}
	}
	return false
}
