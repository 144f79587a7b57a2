package events

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a latitude/longitude box that fully contains the circle
// of radiusMeters around the center. Discovery queries use it to prefilter
// with the (latitude, longitude) index before the exact haversine check.
func BoundingBox(center Point, radiusMeters float64) Box {
	latDelta := radiusMeters / earthRadiusMeters * 180 / math.Pi

	// Longitude degrees shrink with latitude; clamp near the poles where the
	// box degenerates to the full longitude range.
	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	lngDelta := 180.0
	if cosLat > 1e-9 {
		lngDelta = latDelta / cosLat
	}

	box := Box{
		MinLat: center.Latitude - latDelta,
		MaxLat: center.Latitude + latDelta,
		MinLng: center.Longitude - lngDelta,
		MaxLng: center.Longitude + lngDelta,
	}
	if box.MinLat < -90 {
		box.MinLat = -90
	}
	if box.MaxLat > 90 {
		box.MaxLat = 90
	}
	if box.MinLng < -180 {
		box.MinLng = -180
	}
	if box.MaxLng > 180 {
		box.MaxLng = 180
	}
	return box
}
