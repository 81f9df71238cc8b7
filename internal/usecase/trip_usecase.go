package usecase

import (
	"context"

	"fuelstop/internal/domain/entity"
)

// PlanConfig carries the per-request planner options. Zero values fall back to
// the configured defaults, except for the weights where only an absent value does,
// so a request can switch a scoring term off with 0.
type PlanConfig struct {
	MaxDeviationKm      float64  `json:"max_deviation_km" validate:"gte=0"`
	TankRangeMiles      float64  `json:"tank_range_miles" validate:"gte=0"`
	MPG                 float64  `json:"mpg" validate:"gte=0"`
	PriceWeight         *float64 `json:"price_weight,omitempty" validate:"omitnil,gte=0"`
	DeviationWeight     *float64 `json:"deviation_weight,omitempty" validate:"omitnil,gte=0"`
	InitialFuelFraction float64  `json:"initial_fuel_fraction" validate:"gte=0,lte=1"`
}

// TripRequest asks for a fuel plan between two locations. A location is either a
// "lat,lon" pair or a free text US address.
type TripRequest struct {
	Origin      string     `json:"origin" validate:"required,max=256"`
	Destination string     `json:"destination" validate:"required,max=256"`
	Config      PlanConfig `json:"config"`
}

// RouteSummary is the aggregate part of a plan response.
type RouteSummary struct {
	Origin             string  `json:"origin"`
	Destination        string  `json:"destination"`
	TotalDistanceMiles float64 `json:"total_distance_miles"`
	TotalFuelGallons   float64 `json:"total_fuel_gallons"`
	PurchasedGallons   float64 `json:"purchased_gallons"`
	TotalFuelCost      float64 `json:"total_fuel_cost"`
	AveragePricePaid   float64 `json:"average_price_paid"`
	CatalogVersion     uint64  `json:"catalog_version"`
}

// StopView is one fuel stop as returned to clients.
type StopView struct {
	StationID   string  `json:"station_id"`
	Name        string  `json:"name"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	RouteMile   float64 `json:"route_mile"`
	DeviationKm float64 `json:"deviation_km"`
	Gallons     float64 `json:"gallons"`
	Price       float64 `json:"price_per_gallon"`
	Cost        float64 `json:"cost"`
}

// TripPlanResult is the outcome of a successful plan.
type TripPlanResult struct {
	RouteSummary RouteSummary        `json:"route_summary"`
	Stops        []StopView          `json:"stops"`
	MapURL       string              `json:"map_url,omitempty"`
	Route        []entity.RoutePoint `json:"route,omitempty"`

	// Summary is the unrounded aggregate the response was built from.
	Summary entity.TripSummary `json:"-"`
}

// TripUsecase defines the fuel stop planning use case
type TripUsecase interface {
	// ComputeRoutePlan routes origin to destination and picks the cheapest feasible
	// set of fuel stops along the way. No partial plan is returned on error.
	ComputeRoutePlan(ctx context.Context, req *TripRequest) (*TripPlanResult, error)
}
