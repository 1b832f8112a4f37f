package controllers

import (
	"strconv"
	"strings"

	"civictrack/repository"
	"civictrack/services"
)

func parseFloats(raw string, n int) ([]float64, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// parseNear reads near=lat,lng,radiusKm.
func parseNear(raw string) (*repository.NearFilter, error) {
	v, ok := parseFloats(raw, 3)
	if !ok {
		return nil, &services.ValidationError{Field: "near", Reason: "expected lat,lng,radiusKm"}
	}
	return &repository.NearFilter{Lat: v[0], Lng: v[1], RadiusKm: v[2]}, nil
}

// parseBox reads bbox=lng1,lat1,lng2,lat2.
func parseBox(raw string) (*repository.BoxFilter, error) {
	v, ok := parseFloats(raw, 4)
	if !ok {
		return nil, &services.ValidationError{Field: "bbox", Reason: "expected lng1,lat1,lng2,lat2"}
	}
	box := repository.BoxFilter{MinLng: v[0], MinLat: v[1], MaxLng: v[2], MaxLat: v[3]}.Normalize()
	return &box, nil
}
