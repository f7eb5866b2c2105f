package geo

import "math"

const earthRadiusKm = 6371

// Coordinate is a bare lat/lng pair used by the pure distance helpers.
type Coordinate struct {
	Lat float64
	Lng float64
}

// HaversineKm returns the great-circle distance between two coordinates
// in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// TotalDistanceKm sums the haversine distance over consecutive pairs.
// Zero or one point yields 0.
func TotalDistanceKm(points []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1].Lat, points[i-1].Lng, points[i].Lat, points[i].Lng)
	}
	return total
}

// BearingDeg returns the initial compass bearing from one coordinate to
// another, in degrees normalized to [0, 360).
func BearingDeg(from, to Coordinate) float64 {
	lat1 := toRad(from.Lat)
	lat2 := toRad(to.Lat)
	dLng := toRad(to.Lng - from.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
