package geofence

import "math"

// earthRadius is the mean Earth radius in meters.
const earthRadius = 6371008.8

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RadiusMeters converts a session location range into a verification radius.
// The range is an area, so the circle-area formula is inverted:
// r = sqrt(range * 1e6 / pi).
func RadiusMeters(locationRange float64) float64 {
	if !ValidRange(locationRange) {
		return 0
	}
	return math.Sqrt((locationRange * 1_000_000) / math.Pi)
}

// ValidRange reports whether a location range can define a geofence.
func ValidRange(locationRange float64) bool {
	return locationRange > 0 && !math.IsInf(locationRange, 0) && !math.IsNaN(locationRange)
}

// Distance returns the planar distance in meters between two points using an
// equirectangular projection around their mean latitude. Only accurate for
// short distances.
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	x := dLon * math.Cos((lat1+lat2)/2)
	y := lat2 - lat1
	return math.Sqrt(x*x+y*y) * earthRadius
}

// IsWithinGeofence tests point against the circle around center derived from
// locationRange. The boundary counts as inside.
func IsWithinGeofence(point, center Point, locationRange float64) bool {
	if !ValidRange(locationRange) {
		return false
	}
	return Distance(point, center) <= RadiusMeters(locationRange)
}
