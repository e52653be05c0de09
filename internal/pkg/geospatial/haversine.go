package geospatial

import (
	"fmt"
	"math"

	"github.com/samirrijal/fuelroute/internal/core/domain"
)

const (
	earthRadiusMiles = 3958.8
	metersPerMile    = 1609.344
)

// ValidatePoint checks that p is a valid WGS 84 coordinate.
func ValidatePoint(p domain.GeoPoint) error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v: %w", p.Lat, domain.ErrInvalidCoordinate)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v: %w", p.Lng, domain.ErrInvalidCoordinate)
	}
	return nil
}

// DistanceMiles calculates the great-circle distance in miles between two points.
func DistanceMiles(p1, p2 domain.GeoPoint) (float64, error) {
	if err := ValidatePoint(p1); err != nil {
		return 0, err
	}
	if err := ValidatePoint(p2); err != nil {
		return 0, err
	}
	return Haversine(p1.Lat, p1.Lng, p2.Lat, p2.Lng), nil
}

// Haversine calculates the great-circle distance in miles between two points.
// Inputs are not validated.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// MetersToMiles converts a provider distance in meters to miles.
func MetersToMiles(m float64) float64 {
	return m / metersPerMile
}

// DegreeBox returns the box [lat ± halfWidth, lng ± halfWidth].
//
// The half-width is in degrees on both axes, so the box narrows in miles
// along longitude as latitude grows (≈35 mi each way at 45°N for 0.5°).
func DegreeBox(center domain.GeoPoint, halfWidthDegrees float64) domain.Bounds {
	return domain.Bounds{
		MinLat: center.Lat - halfWidthDegrees,
		MinLng: center.Lng - halfWidthDegrees,
		MaxLat: center.Lat + halfWidthDegrees,
		MaxLng: center.Lng + halfWidthDegrees,
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// PathMiles returns the summed great-circle length of a polyline.
func PathMiles(points []domain.GeoPoint) (float64, error) {
	var total float64
	for i := 1; i < len(points); i++ {
		d, err := DistanceMiles(points[i-1], points[i])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}
