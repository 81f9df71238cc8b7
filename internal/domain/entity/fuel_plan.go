package entity

// Candidate is a station projected onto the route.
type Candidate struct {
	StationID           string
	DeviationMeters     float64 // Distance from the station to the closest point of the route.
	RoutePositionMeters float64 // Cumulative route distance at the projection foot.
}

// ScoredCandidate is a candidate that survived the deviation filter. Lower Score is better.
type ScoredCandidate struct {
	Candidate
	Station Station
	Score   float64
}

// FuelStop is one refuelling event of a plan.
type FuelStop struct {
	StationID           string
	Name                string
	City                string
	State               string
	Lat                 float64
	Lon                 float64
	RoutePositionMeters float64
	DeviationMeters     float64
	Gallons             float64 // Gallons bought at this stop, always > 0.
	Price               float64 // Price per gallon paid.
}

// Cost returns the amount spent at this stop.
func (s FuelStop) Cost() float64 {
	return s.Gallons * s.Price
}

// FuelPlan is the ordered stop sequence; positions are strictly increasing.
type FuelPlan []FuelStop

// TripSummary aggregates a plan over its route.
type TripSummary struct {
	TotalDistanceMeters float64
	TotalDistanceMiles  float64
	TotalFuelGallons    float64 // Fuel burned over the whole route.
	PurchasedGallons    float64 // Fuel bought along the way.
	TotalFuelCost       float64
	AveragePricePaid    float64
	Stops               FuelPlan
}
