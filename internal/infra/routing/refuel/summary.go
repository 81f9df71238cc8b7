package refuel

import "fuelstop/internal/domain/entity"

// Summarize aggregates plan over route. Total gallons is the fuel the trip burns,
// and the average price spreads the money spent over that volume.
func Summarize(route *entity.SimplifiedRoute, plan entity.FuelPlan, mpg float64) entity.TripSummary {
	meters := route.TotalDistance()
	miles := meters / MetersPerMile

	summary := entity.TripSummary{
		TotalDistanceMeters: meters,
		TotalDistanceMiles:  miles,
		Stops:               plan,
	}
	if mpg > 0 {
		summary.TotalFuelGallons = miles / mpg
	}

	for _, stop := range plan {
		summary.PurchasedGallons += stop.Gallons
		summary.TotalFuelCost += stop.Cost()
	}

	if summary.TotalFuelGallons > 0 {
		summary.AveragePricePaid = summary.TotalFuelCost / summary.TotalFuelGallons
	}

	return summary
}
