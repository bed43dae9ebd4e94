package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestHaversineDistanceKm(t *testing.T) {
	// Bengaluru to Chennai is roughly 290 km as the crow flies.
	d, ok := HaversineDistanceKm(f(12.9716), f(77.5946), f(13.0827), f(80.2707))
	require.True(t, ok)
	assert.Equal(t, "290.2", d)
}

func TestHaversineDistanceKm_Symmetric(t *testing.T) {
	points := [][2]float64{{12.9716, 77.5946}, {47.6062, -122.3321}, {-33.8688, 151.2093}, {0, 0}}
	for _, a := range points {
		for _, b := range points {
			ab, ok1 := HaversineDistanceKm(f(a[0]), f(a[1]), f(b[0]), f(b[1]))
			ba, ok2 := HaversineDistanceKm(f(b[0]), f(b[1]), f(a[0]), f(a[1]))
			require.True(t, ok1)
			require.True(t, ok2)
			assert.Equal(t, ab, ba)
		}
	}
}

func TestHaversineDistanceKm_SamePoint(t *testing.T) {
	d, ok := HaversineDistanceKm(f(47.6), f(-122.3), f(47.6), f(-122.3))
	require.True(t, ok)
	assert.Equal(t, "0.0", d)
}

func TestHaversineDistanceKm_MissingCoordinate(t *testing.T) {
	_, ok := HaversineDistanceKm(nil, f(1), f(2), f(3))
	assert.False(t, ok)
	assert.Equal(t, UnknownDistance, DistanceLabel(f(1), f(2), nil, f(3)))
	assert.Equal(t, "0.0 km", DistanceLabel(f(1), f(2), f(1), f(2)))
}
