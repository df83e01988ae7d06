package matching

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gigbook/internal/geo"
)

var (
	venue     = &geo.Point{Lat: 36.1627, Lon: -86.7816} // Nashville
	franklin  = &geo.Point{Lat: 35.9251, Lon: -86.8689} // ~27 km
	murfrees  = &geo.Point{Lat: 35.8456, Lon: -86.3903} // ~50 km
	knoxville = &geo.Point{Lat: 35.9606, Lon: -83.9207} // ~260 km
)

func ids(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Profile.MusicianID)
	}
	return out
}

func TestMatchFiltersByInstrument(t *testing.T) {
	m := NewMatcher(nil)
	profiles := []Profile{
		{MusicianID: "drummer", Instruments: []string{"drums"}, Location: franklin, SearchRadiusKm: 100},
		{MusicianID: "bassist", Instruments: []string{"Bass", "keys"}, Location: franklin, SearchRadiusKm: 100},
		{MusicianID: "nobody", Instruments: nil, SearchRadiusKm: 100},
	}

	got := m.Match(Role{Instrument: " bass ", Location: venue}, profiles)
	require.Equal(t, []string{"bassist"}, ids(got))

	for _, c := range got {
		require.True(t, Plays(c.Profile.Instruments, "bass"))
	}
}

func TestMatchExcludesOnlyWhenDistanceKnownAndOutsideRadius(t *testing.T) {
	m := NewMatcher(nil)
	profiles := []Profile{
		{MusicianID: "far", Instruments: []string{"sax"}, Location: knoxville, SearchRadiusKm: 100},
		{MusicianID: "far-wide-radius", Instruments: []string{"sax"}, Location: knoxville, SearchRadiusKm: 300},
		{MusicianID: "no-coords", Instruments: []string{"sax"}, SearchRadiusKm: 1},
		{MusicianID: "near", Instruments: []string{"sax"}, Location: franklin, SearchRadiusKm: 40},
	}

	got := m.Match(Role{Instrument: "sax", Location: venue}, profiles)
	require.Equal(t, []string{"near", "far-wide-radius", "no-coords"}, ids(got))
	require.Nil(t, got[2].DistanceKm)
	require.Nil(t, got[2].TravelMinutes)
	require.NotNil(t, got[0].TravelMinutes)
}

func TestMatchGigWithoutCoordinatesIncludesEveryone(t *testing.T) {
	m := NewMatcher(nil)
	profiles := []Profile{
		{MusicianID: "a", Instruments: []string{"guitar"}, Location: knoxville, SearchRadiusKm: 1},
		{MusicianID: "b", Instruments: []string{"guitar"}, Location: franklin, SearchRadiusKm: 1},
	}

	got := m.Match(Role{Instrument: "guitar"}, profiles)
	require.Equal(t, []string{"a", "b"}, ids(got))
	for _, c := range got {
		require.Nil(t, c.DistanceKm)
	}
}

func TestMatchSortsAscendingWithUnknownLastStable(t *testing.T) {
	m := NewMatcher(nil)
	profiles := []Profile{
		{MusicianID: "unknown-1", Instruments: []string{"keys"}, SearchRadiusKm: 50},
		{MusicianID: "murfreesboro", Instruments: []string{"keys"}, Location: murfrees, SearchRadiusKm: 80},
		{MusicianID: "unknown-2", Instruments: []string{"keys"}, SearchRadiusKm: 50},
		{MusicianID: "franklin", Instruments: []string{"keys"}, Location: franklin, SearchRadiusKm: 80},
		{MusicianID: "venue", Instruments: []string{"keys"}, Location: venue, SearchRadiusKm: 80},
	}

	got := m.Match(Role{Instrument: "keys", Location: venue}, profiles)
	require.Equal(t, []string{"venue", "franklin", "murfreesboro", "unknown-1", "unknown-2"}, ids(got))
	require.InDelta(t, 0, *got[0].DistanceKm, 1e-9)
	require.Less(t, *got[1].DistanceKm, *got[2].DistanceKm)
	require.LessOrEqual(t, *got[1].TravelMinutes, *got[2].TravelMinutes)
}

func TestMatchEmptyInstrumentReturnsNothing(t *testing.T) {
	m := NewMatcher(nil)
	got := m.Match(Role{Instrument: "  "}, []Profile{{MusicianID: "x", Instruments: []string{""}}})
	require.Empty(t, got)
}

type fixedEstimator int

func (f fixedEstimator) EstimateMinutes(float64) int { return int(f) }

func TestMatchUsesInjectedEstimator(t *testing.T) {
	m := NewMatcher(fixedEstimator(42))
	got := m.Match(Role{Instrument: "voice", Location: venue}, []Profile{
		{MusicianID: "singer", Instruments: []string{"voice"}, Location: franklin, SearchRadiusKm: 50},
	})
	require.Len(t, got, 1)
	require.Equal(t, 42, *got[0].TravelMinutes)
}

func TestNormalizeInstruments(t *testing.T) {
	require.Equal(t, []string{"bass", "drums"}, NormalizeInstruments([]string{" Bass", "bass", "", "DRUMS"}))
	require.Empty(t, NormalizeInstruments(nil))
}
