package usecases

import "github.com/samirrijal/fuelroute/internal/core/domain"

// EstimateCost prices a trip's fuel over its selected stops.
//
// Each stop pays for the gallons burned on the leg that led to it, except the
// last stop, which pays for everything still unaccounted for (the final leg
// to the destination plus any rounding drift). Returns 0 for no stops; the
// caller decides how a single-tank trip is priced.
func EstimateCost(totalGallons, milesPerGallon float64, stops []domain.SelectedStop) float64 {
	if len(stops) == 0 || milesPerGallon <= 0 {
		return 0
	}

	remaining := totalGallons
	var total float64
	for i, stop := range stops {
		gallons := stop.DistanceFromPreviousMiles / milesPerGallon
		if i == len(stops)-1 {
			gallons = remaining
		}
		total += gallons * stop.Price.Dollars()
		remaining -= gallons
	}
	return total
}
