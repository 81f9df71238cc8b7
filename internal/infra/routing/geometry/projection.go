package geometry

import (
	"context"
	"math"

	"fuelstop/internal/domain/entity"
	"fuelstop/internal/errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/sync/errgroup"
)

const (
	// tieEpsilon is the distance in meters under which two segments count as equally close.
	tieEpsilon = 1e-9

	DefaultBatchSize = 256
	DefaultWorkers   = 4
)

// SegmentTable is a flat, column-oriented view of a route's segments.
// Segment i runs from route point i to route point i+1. Each segment gets its own
// equirectangular frame scaled at its mid latitude; foot points are mapped back to
// lat/lon and measured with the haversine distance.
type SegmentTable struct {
	startLat []float64
	startLon []float64
	dx       []float64 // east component in meters
	dy       []float64 // north component in meters
	kx       []float64 // meters per degree of longitude
	lenSq    []float64
	offset   []float64 // cumulative distance at the segment start
	arcLen   []float64 // haversine length of the segment
	midpoint []orb.Point
	total    float64
}

// Projection is the closest point of a route to a query point.
type Projection struct {
	DeviationMeters     float64
	RoutePositionMeters float64
	Segment             int
}

// Query is a point to project together with the segments worth testing.
// A nil Segments slice tests every segment.
type Query struct {
	Point    orb.Point
	Segments []int
}

// BatchOptions controls ProjectBatch parallelism.
type BatchOptions struct {
	BatchSize int
	Workers   int
}

// NewSegmentTable builds the segment columns for route.
func NewSegmentTable(route *entity.SimplifiedRoute) *SegmentTable {
	n := max(route.Len()-1, 0)
	t := &SegmentTable{
		startLat: make([]float64, n),
		startLon: make([]float64, n),
		dx:       make([]float64, n),
		dy:       make([]float64, n),
		kx:       make([]float64, n),
		lenSq:    make([]float64, n),
		offset:   make([]float64, n),
		arcLen:   make([]float64, n),
		midpoint: make([]orb.Point, n),
		total:    route.TotalDistance(),
	}

	for i := range n {
		a, b := route.Points[i], route.Points[i+1]
		midLat := (a.Lat + b.Lat) / 2
		kx := metersPerDegree * math.Cos(midLat*math.Pi/180)
		dLon := normalizeLonDelta(b.Lon - a.Lon)

		t.startLat[i] = a.Lat
		t.startLon[i] = a.Lon
		t.kx[i] = kx
		t.dx[i] = dLon * kx
		t.dy[i] = (b.Lat - a.Lat) * metersPerDegree
		t.lenSq[i] = t.dx[i]*t.dx[i] + t.dy[i]*t.dy[i]
		t.offset[i] = route.CumulativeDistance[i]
		t.arcLen[i] = route.CumulativeDistance[i+1] - route.CumulativeDistance[i]
		t.midpoint[i] = orb.Point{a.Lon + dLon/2, midLat}
	}

	return t
}

// Len returns the number of segments.
func (t *SegmentTable) Len() int {
	return len(t.offset)
}

// Midpoint returns the midpoint of segment i.
func (t *SegmentTable) Midpoint(i int) orb.Point {
	return t.midpoint[i]
}

// HalfLength returns half the haversine length of segment i in meters.
func (t *SegmentTable) HalfLength(i int) float64 {
	return t.arcLen[i] / 2
}

// Project returns the closest point of the route to p, testing only the given
// segments (all of them when segments is nil). Ties go to the earlier segment.
func (t *SegmentTable) Project(p orb.Point, segments []int) Projection {
	best := Projection{DeviationMeters: math.Inf(1), Segment: -1}

	consider := func(i int) {
		dev, pos := t.projectOnto(p, i)
		if dev < best.DeviationMeters-tieEpsilon ||
			(math.Abs(dev-best.DeviationMeters) <= tieEpsilon && i < best.Segment) {
			best = Projection{DeviationMeters: dev, RoutePositionMeters: pos, Segment: i}
		}
	}

	if segments == nil {
		for i := range t.offset {
			consider(i)
		}
	} else {
		for _, i := range segments {
			consider(i)
		}
	}

	return best
}

func (t *SegmentTable) projectOnto(p orb.Point, i int) (deviation, position float64) {
	kx := t.kx[i]
	px := normalizeLonDelta(p.Lon()-t.startLon[i]) * kx
	py := (p.Lat() - t.startLat[i]) * metersPerDegree

	frac := 0.0
	if t.lenSq[i] > 0 {
		frac = (px*t.dx[i] + py*t.dy[i]) / t.lenSq[i]
		frac = math.Max(0, math.Min(1, frac))
	}

	footLat := t.startLat[i] + frac*t.dy[i]/metersPerDegree
	footLon := t.startLon[i]
	if kx > 0 {
		footLon += frac * t.dx[i] / kx
	}

	deviation = geo.DistanceHaversine(p, orb.Point{footLon, footLat})
	position = math.Min(t.offset[i]+frac*t.arcLen[i], t.total)

	return deviation, position
}

// ProjectBatch projects every query, splitting the work into batches that run
// concurrently. Cancellation is checked between batches; on cancellation no
// partial result is returned.
func (t *SegmentTable) ProjectBatch(ctx context.Context, queries []Query, opts BatchOptions) ([]Projection, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Projection, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < len(queries); lo += batchSize {
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+batchSize, len(queries))

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				results[i] = t.Project(queries[i].Point, queries[i].Segments)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "project candidates")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "project candidates")
	}

	return results, nil
}
