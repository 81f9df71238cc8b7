// Package geometry simplifies route polylines and projects points onto them.
package geometry

import (
	"math"
	"sort"

	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/simplify"
)

// DefaultSimplifyTolerance is the Douglas-Peucker tolerance in meters.
const DefaultSimplifyTolerance = 25.0

// metersPerDegree is the length of one degree of latitude on the orb sphere.
const metersPerDegree = orb.EarthRadius * math.Pi / 180

// Preprocess validates a raw polyline, simplifies it and attaches cumulative distances.
//
// Simplification runs on a sinusoidal plane centred on the route's mean longitude,
// where x = R*dLon*cos(lat) and y = R*lat in meters. Scale is exact along parallels
// and meridians; shear grows away from the central meridian, so the tolerance is an
// approximation of the true perpendicular distance for very long east-west routes.
// A non-positive tolerance keeps every point. The first and last points are always kept.
func Preprocess(points []entity.RoutePoint, toleranceMeters float64) (*entity.SimplifiedRoute, error) {
	if len(points) < 2 {
		return nil, domainerrors.NewInvalidRouteError("route needs at least 2 points, got %d", len(points))
	}

	for i, p := range points {
		if !p.Valid() {
			return nil, domainerrors.NewInvalidRouteError("point %d (%v, %v) is outside valid coordinate range", i, p.Lat, p.Lon)
		}
	}

	kept := simplifyIndices(points, toleranceMeters)

	route := &entity.SimplifiedRoute{
		Points:             make([]entity.RoutePoint, len(kept)),
		CumulativeDistance: make([]float64, len(kept)),
	}

	total := 0.0
	for i, idx := range kept {
		route.Points[i] = points[idx]
		if i > 0 {
			total += geo.DistanceHaversine(points[kept[i-1]].Point(), points[idx].Point())
		}
		route.CumulativeDistance[i] = total
	}

	return route, nil
}

// simplifyIndices returns the indices of the points retained by Douglas-Peucker.
func simplifyIndices(points []entity.RoutePoint, toleranceMeters float64) []int {
	all := make([]int, len(points))
	for i := range all {
		all[i] = i
	}
	if toleranceMeters <= 0 || len(points) <= 2 {
		return all
	}

	centre := meanLongitude(points)
	planar := make(orb.LineString, len(points))
	for i, p := range points {
		planar[i] = toSinusoidal(p, centre)
	}

	reduced := simplify.DouglasPeucker(toleranceMeters).LineString(planar.Clone())

	// Douglas-Peucker only drops points, so a forward walk recovers the indices.
	kept := make([]int, 0, len(reduced))
	j := 0
	for i, p := range planar {
		if j < len(reduced) && p == reduced[j] {
			kept = append(kept, i)
			j++
		}
	}

	if kept[0] != 0 {
		kept = append([]int{0}, kept...)
	}
	if last := len(points) - 1; kept[len(kept)-1] != last {
		kept = append(kept, last)
	}

	return kept
}

func toSinusoidal(p entity.RoutePoint, centreLon float64) orb.Point {
	phi := p.Lat * math.Pi / 180

	return orb.Point{
		normalizeLonDelta(p.Lon-centreLon) * metersPerDegree * math.Cos(phi),
		p.Lat * metersPerDegree,
	}
}

func meanLongitude(points []entity.RoutePoint) float64 {
	var sinSum, cosSum float64
	for _, p := range points {
		lambda := p.Lon * math.Pi / 180
		sinSum += math.Sin(lambda)
		cosSum += math.Cos(lambda)
	}

	return math.Atan2(sinSum, cosSum) * 180 / math.Pi
}

// normalizeLonDelta wraps a longitude difference into [-180, 180].
func normalizeLonDelta(d float64) float64 {
	for d > 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}

	return d
}

// PositionAt returns the point at the given cumulative distance along route,
// clamped to its endpoints.
func PositionAt(route *entity.SimplifiedRoute, meters float64) entity.RoutePoint {
	n := route.Len()
	if n == 0 {
		return entity.RoutePoint{}
	}
	if meters <= 0 {
		return route.Points[0]
	}
	if meters >= route.TotalDistance() {
		return route.Points[n-1]
	}

	// First vertex strictly beyond meters; the segment ends there.
	end := sort.Search(n, func(i int) bool { return route.CumulativeDistance[i] > meters })
	start := end - 1
	span := route.CumulativeDistance[end] - route.CumulativeDistance[start]
	if span == 0 {
		return route.Points[start]
	}

	f := (meters - route.CumulativeDistance[start]) / span
	a, b := route.Points[start], route.Points[end]

	return entity.RoutePoint{
		Lat: a.Lat + f*(b.Lat-a.Lat),
		Lon: a.Lon + f*normalizeLonDelta(b.Lon-a.Lon),
	}
}
