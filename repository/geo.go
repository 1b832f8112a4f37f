package repository

import "math"

// earthRadiusKm matches the radius used to convert $centerSphere distances.
const earthRadiusKm = 6378.1

const kmPerDegreeLat = math.Pi * earthRadiusKm / 180

// haversineKm returns the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// rect is a {min, max} lng/lat rectangle.
type rect [2][2]float64

// envelopes returns lng/lat rectangles that together contain every point
// within the radius. A circle crossing the antimeridian is split in two; near
// the poles the longitude range widens to the whole globe.
func (n NearFilter) envelopes() []rect {
	dLat := n.RadiusKm / kmPerDegreeLat
	dLng := 180.0
	if c := math.Cos(n.Lat * math.Pi / 180); c > 1e-6 {
		dLng = math.Min(180, dLat/c)
	}
	minLat, maxLat := math.Max(-90, n.Lat-dLat), math.Min(90, n.Lat+dLat)
	if dLng >= 180 {
		return []rect{{{-180, minLat}, {180, maxLat}}}
	}

	lo, hi := n.Lng-dLng, n.Lng+dLng
	out := []rect{{{math.Max(-180, lo), minLat}, {math.Min(180, hi), maxLat}}}
	if lo < -180 {
		out = append(out, rect{{lo + 360, minLat}, {180, maxLat}})
	}
	if hi > 180 {
		out = append(out, rect{{-180, minLat}, {hi - 360, maxLat}})
	}
	return out
}

func (n NearFilter) contains(lng, lat float64) bool {
	return haversineKm(n.Lat, n.Lng, lat, lng) <= n.RadiusKm
}

func (b BoxFilter) contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// Normalize orders the corners so Min <= Max on both axes.
func (b BoxFilter) Normalize() BoxFilter {
	if b.MinLng > b.MaxLng {
		b.MinLng, b.MaxLng = b.MaxLng, b.MinLng
	}
	if b.MinLat > b.MaxLat {
		b.MinLat, b.MaxLat = b.MaxLat, b.MinLat
	}
	return b
}
