package entity

import (
	"iter"
	"math"

	"github.com/paulmach/orb"
)

// RoutePoint is a single vertex of a route polyline.
type RoutePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the vertex as an orb point (lon, lat).
func (p RoutePoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Valid reports whether the coordinate is finite and inside WGS84 bounds.
func (p RoutePoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}

	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// RoutePointFromOrb converts an orb point (lon, lat) into a RoutePoint.
func RoutePointFromOrb(p orb.Point) RoutePoint {
	return RoutePoint{Lat: p.Lat(), Lon: p.Lon()}
}

// SimplifiedRoute is a reduced polyline with cumulative distances in meters.
// CumulativeDistance has the same length as Points, starts at zero and never decreases.
type SimplifiedRoute struct {
	Points             []RoutePoint
	CumulativeDistance []float64
}

// TotalDistance returns the route length in meters.
func (r *SimplifiedRoute) TotalDistance() float64 {
	if len(r.CumulativeDistance) == 0 {
		return 0
	}

	return r.CumulativeDistance[len(r.CumulativeDistance)-1]
}

// Len returns the number of retained points.
func (r *SimplifiedRoute) Len() int {
	return len(r.Points)
}

// All yields (cumulative distance, point) pairs from origin to destination.
// The sequence is finite and can be ranged over any number of times.
func (r *SimplifiedRoute) All() iter.Seq2[float64, RoutePoint] {
	return func(yield func(float64, RoutePoint) bool) {
		for i, p := range r.Points {
			if !yield(r.CumulativeDistance[i], p) {
				return
			}
		}
	}
}

// LineString returns the route as an orb line string.
func (r *SimplifiedRoute) LineString() orb.LineString {
	ls := make(orb.LineString, len(r.Points))
	for i, p := range r.Points {
		ls[i] = p.Point()
	}

	return ls
}

// RouteGeometry is a driving route returned by a route provider.
type RouteGeometry struct {
	Points          []RoutePoint
	DistanceMeters  float64 // Provider-reported length, 0 when unknown.
	DurationSeconds float64
}
