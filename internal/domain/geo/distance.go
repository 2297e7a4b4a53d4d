package geo

import "math"

// EarthRadiusKM is the mean Earth radius used by all distance computations.
const EarthRadiusKM = 6371.0

// DistanceKM returns the haversine great-circle distance between a and b in kilometers,
// rounded to 2 decimal places.
func DistanceKM(a, b Point) float64 {
	return Round2(haversineKM(a, b))
}

// IsWithinRadius reports whether point lies within radiusMeters of center (inclusive).
func IsWithinRadius(point, center Point, radiusMeters float64) bool {
	return DistanceKM(point, center)*1000 <= radiusMeters
}

// SegmentKM returns the unrounded haversine distance in kilometers. Running totals accumulate
// these so that many short segments are not lost to rounding.
func SegmentKM(a, b Point) float64 {
	return haversineKM(a, b)
}

// DistanceMeters returns the unrounded haversine distance in meters.
// Used where two-decimal kilometers would be too coarse (geofence reporting).
func DistanceMeters(a, b Point) float64 {
	return haversineKM(a, b) * 1000
}

// Round2 rounds v to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func haversineKM(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKM * c
}
