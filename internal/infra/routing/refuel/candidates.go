// Package refuel turns stations near a route into a cost-minimising fuel plan.
package refuel

import (
	"cmp"
	"context"
	"slices"

	"fuelstop/internal/domain/entity"
	"fuelstop/internal/infra/routing/geometry"
	"fuelstop/internal/infra/routing/spatial"
)

// retrievalSlack pads the midpoint search radius to cover the gap between a
// segment's local-plane chord and its great-circle length.
const retrievalSlack = 1.01

// Weights balance price against deviation in the candidate score.
type Weights struct {
	Price     float64
	Deviation float64
}

// DefaultWeights gives price and deviation equal influence.
var DefaultWeights = Weights{Price: 1, Deviation: 1}

// FindCandidates retrieves stations near each route segment from index, projects
// them onto the route and keeps those within maxDeviationMeters. Each station is
// projected only against the segments whose midpoint search returned it.
func FindCandidates(
	ctx context.Context,
	index spatial.Index,
	table *geometry.SegmentTable,
	maxDeviationMeters float64,
	opts geometry.BatchOptions,
) ([]entity.ScoredCandidate, error) {
	if index.Size() == 0 || table.Len() == 0 {
		return []entity.ScoredCandidate{}, nil
	}

	segmentsByStation := make(map[int][]int)
	for seg := range table.Len() {
		radius := table.HalfLength(seg)*retrievalSlack + maxDeviationMeters + 1
		for _, idx := range index.Within(table.Midpoint(seg), radius) {
			segmentsByStation[idx] = append(segmentsByStation[idx], seg)
		}
	}

	stationIdx := make([]int, 0, len(segmentsByStation))
	for idx := range segmentsByStation {
		stationIdx = append(stationIdx, idx)
	}
	slices.Sort(stationIdx)

	queries := make([]geometry.Query, len(stationIdx))
	for i, idx := range stationIdx {
		queries[i] = geometry.Query{
			Point:    index.Station(idx).Point(),
			Segments: segmentsByStation[idx],
		}
	}

	projections, err := table.ProjectBatch(ctx, queries, opts)
	if err != nil {
		return nil, err
	}

	candidates := make([]entity.ScoredCandidate, 0, len(projections))
	for i, proj := range projections {
		if proj.DeviationMeters > maxDeviationMeters {
			continue
		}

		station := index.Station(stationIdx[i])
		candidates = append(candidates, entity.ScoredCandidate{
			Candidate: entity.Candidate{
				StationID:           station.ID,
				DeviationMeters:     proj.DeviationMeters,
				RoutePositionMeters: proj.RoutePositionMeters,
			},
			Station: station,
		})
	}

	return candidates, nil
}

// Score assigns each candidate w.Price*norm(price) + w.Deviation*norm(deviation),
// normalising both terms to [0, 1] over the pool. A pool where every value is
// equal normalises that term to zero. The result is sorted best first.
func Score(candidates []entity.ScoredCandidate, w Weights) []entity.ScoredCandidate {
	scored := slices.Clone(candidates)
	if len(scored) == 0 {
		return scored
	}

	minPrice, maxPrice := scored[0].Station.RetailPrice, scored[0].Station.RetailPrice
	minDev, maxDev := scored[0].DeviationMeters, scored[0].DeviationMeters
	for _, c := range scored[1:] {
		minPrice = min(minPrice, c.Station.RetailPrice)
		maxPrice = max(maxPrice, c.Station.RetailPrice)
		minDev = min(minDev, c.DeviationMeters)
		maxDev = max(maxDev, c.DeviationMeters)
	}

	for i := range scored {
		scored[i].Score = w.Price*normalize(scored[i].Station.RetailPrice, minPrice, maxPrice) +
			w.Deviation*normalize(scored[i].DeviationMeters, minDev, maxDev)
	}

	slices.SortStableFunc(scored, compareByScore)

	return scored
}

func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}

	return (v - lo) / (hi - lo)
}

func compareByScore(a, b entity.ScoredCandidate) int {
	return cmp.Or(
		cmp.Compare(a.Score, b.Score),
		cmp.Compare(a.Station.RetailPrice, b.Station.RetailPrice),
		cmp.Compare(a.DeviationMeters, b.DeviationMeters),
		cmp.Compare(a.RoutePositionMeters, b.RoutePositionMeters),
		cmp.Compare(a.StationID, b.StationID),
	)
}
