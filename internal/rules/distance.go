// File: internal/rules/distance.go
package rules

import (
	"math"
	"strconv"
)

const earthRadiusKm = 6371.0

// UnknownDistance is displayed when a distance cannot be computed.
const UnknownDistance = "Unknown"

// HaversineDistanceKm returns the great-circle distance between two points,
// formatted with one decimal place. It returns false when any coordinate is
// missing.
func HaversineDistanceKm(lat1, lon1, lat2, lon2 *float64) (string, bool) {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return "", false
	}
	return strconv.FormatFloat(HaversineKm(*lat1, *lon1, *lat2, *lon2), 'f', 1, 64), true
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceLabel formats the distance between two optional points for display,
// as "12.3 km" or UnknownDistance.
func DistanceLabel(fromLat, fromLng, toLat, toLng *float64) string {
	d, ok := HaversineDistanceKm(fromLat, fromLng, toLat, toLng)
	if !ok {
		return UnknownDistance
	}
	return d + " km"
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
