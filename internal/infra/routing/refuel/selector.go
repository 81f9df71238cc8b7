package refuel

import (
	"cmp"
	"math"
	"slices"

	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"
	"fuelstop/internal/errors"
)

const (
	MetersPerMile = 1609.344

	// rangeEpsilon absorbs rounding when a gap equals the tank range exactly.
	rangeEpsilon = 1e-6
)

// Vehicle describes the truck the plan is made for.
type Vehicle struct {
	TankRangeMeters     float64 // Distance covered on a full tank.
	MPG                 float64 // Miles per gallon.
	InitialFuelFraction float64 // Tank level at the origin in (0, 1]; zero means full.
}

func (v Vehicle) validate() error {
	if !(v.TankRangeMeters > 0) || math.IsInf(v.TankRangeMeters, 0) {
		return errors.Errorf("tank range must be positive, got %v", v.TankRangeMeters)
	}
	if !(v.MPG > 0) || math.IsInf(v.MPG, 0) {
		return errors.Errorf("mpg must be positive, got %v", v.MPG)
	}
	if v.InitialFuelFraction < 0 || v.InitialFuelFraction > 1 {
		return errors.Errorf("initial fuel fraction must be within [0, 1], got %v", v.InitialFuelFraction)
	}

	return nil
}

func (v Vehicle) initialFuel() float64 {
	if v.InitialFuelFraction == 0 {
		return v.TankRangeMeters
	}

	return v.InitialFuelFraction * v.TankRangeMeters
}

func (v Vehicle) gallons(meters float64) float64 {
	return meters / MetersPerMile / v.MPG
}

// SelectStops chooses where to refuel and how much to buy so the truck reaches
// totalMeters at minimum cost without its tank running dry.
//
// Fuel is divisible and tracked as remaining range in meters. The origin holds the
// initial fuel and cannot sell any. At every node the truck looks for the first
// strictly cheaper station within one tank and buys just enough to reach it; if
// none exists it buys just enough to finish when the destination is in range, and
// otherwise fills up and moves to the cheapest station in range, preferring the
// farthest and then the least deviating one on price ties. Taking the farthest of
// equally priced stations keeps equal-cost plans to the fewest stops. Visits where
// nothing is bought are not part of the plan.
func SelectStops(candidates []entity.ScoredCandidate, totalMeters float64, v Vehicle) (entity.FuelPlan, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}

	nodes := slices.Clone(candidates)
	slices.SortStableFunc(nodes, compareByPosition)

	if err := checkFeasible(nodes, totalMeters, v); err != nil {
		return nil, err
	}

	tank := v.TankRangeMeters
	plan := entity.FuelPlan{}

	cur := -1 // origin
	pos := 0.0
	fuel := v.initialFuel()
	price := 0.0 // fuel already on board costs nothing extra

	for {
		// The origin cannot sell fuel, so its reach is what is on board.
		reach := tank
		if cur < 0 {
			reach = fuel
		}
		limit := pos + reach + rangeEpsilon

		if next := firstCheaper(nodes, cur, price, limit); next >= 0 {
			d := nodes[next].RoutePositionMeters - pos
			plan = buy(plan, nodes, cur, d-fuel, v)
			fuel = max(fuel, d) - d
			cur, pos, price = next, nodes[next].RoutePositionMeters, nodes[next].Station.RetailPrice

			continue
		}

		if totalMeters <= limit {
			plan = buy(plan, nodes, cur, (totalMeters-pos)-fuel, v)

			return plan, nil
		}

		next := cheapestInRange(nodes, cur, pos, limit)
		if next < 0 {
			// Unreachable after checkFeasible; kept so a bug cannot loop forever.
			return nil, domainerrors.NewInfeasibleRouteError(pos, totalMeters, tank)
		}

		plan = buy(plan, nodes, cur, reach-fuel, v)
		d := nodes[next].RoutePositionMeters - pos
		fuel = reach - d
		cur, pos, price = next, nodes[next].RoutePositionMeters, nodes[next].Station.RetailPrice
	}
}

// checkFeasible walks origin, every candidate and the destination in route order
// and reports the first gap the truck cannot cover.
func checkFeasible(nodes []entity.ScoredCandidate, totalMeters float64, v Vehicle) error {
	prev := 0.0
	reach := v.initialFuel()

	for _, n := range nodes {
		p := n.RoutePositionMeters
		if p-prev > reach+rangeEpsilon {
			return domainerrors.NewInfeasibleRouteError(prev, p, reach)
		}
		prev = p
		reach = v.TankRangeMeters
	}

	if totalMeters-prev > reach+rangeEpsilon {
		return domainerrors.NewInfeasibleRouteError(prev, totalMeters, reach)
	}

	return nil
}

func firstCheaper(nodes []entity.ScoredCandidate, cur int, price, limit float64) int {
	for j := cur + 1; j < len(nodes) && nodes[j].RoutePositionMeters <= limit; j++ {
		if cur >= 0 && nodes[j].Station.RetailPrice < price {
			return j
		}
	}

	return -1
}

func cheapestInRange(nodes []entity.ScoredCandidate, cur int, pos, limit float64) int {
	best := -1
	for j := cur + 1; j < len(nodes) && nodes[j].RoutePositionMeters <= limit; j++ {
		// A station level with the origin can be the first stop; elsewhere it is the current one.
		if cur >= 0 && nodes[j].RoutePositionMeters <= pos {
			continue
		}
		if best < 0 || preferAsNextStop(nodes[j], nodes[best]) {
			best = j
		}
	}

	return best
}

// preferAsNextStop reports whether a beats b: cheaper, then farther, then closer to the road.
func preferAsNextStop(a, b entity.ScoredCandidate) bool {
	if a.Station.RetailPrice != b.Station.RetailPrice {
		return a.Station.RetailPrice < b.Station.RetailPrice
	}
	if a.RoutePositionMeters != b.RoutePositionMeters {
		return a.RoutePositionMeters > b.RoutePositionMeters
	}

	return a.DeviationMeters < b.DeviationMeters
}

func buy(plan entity.FuelPlan, nodes []entity.ScoredCandidate, at int, meters float64, v Vehicle) entity.FuelPlan {
	if at < 0 || meters <= rangeEpsilon {
		return plan
	}

	n := nodes[at]

	return append(plan, entity.FuelStop{
		StationID:           n.StationID,
		Name:                n.Station.Name,
		City:                n.Station.City,
		State:               n.Station.State,
		Lat:                 n.Station.Lat,
		Lon:                 n.Station.Lon,
		RoutePositionMeters: n.RoutePositionMeters,
		DeviationMeters:     n.DeviationMeters,
		Gallons:             v.gallons(meters),
		Price:               n.Station.RetailPrice,
	})
}

func compareByPosition(a, b entity.ScoredCandidate) int {
	return cmp.Or(
		cmp.Compare(a.RoutePositionMeters, b.RoutePositionMeters),
		cmp.Compare(a.Station.RetailPrice, b.Station.RetailPrice),
		cmp.Compare(a.Score, b.Score),
		cmp.Compare(a.DeviationMeters, b.DeviationMeters),
		cmp.Compare(a.StationID, b.StationID),
	)
}
