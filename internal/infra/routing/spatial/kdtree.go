// Package spatial answers radius queries over the station catalog.
package spatial

import (
	"math"
	"slices"
	"sort"

	"fuelstop/internal/domain/entity"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// chordSlack widens pruning bounds so floating point noise never drops a station
// that the exact haversine check would accept.
const chordSlack = 1e-9

// Index answers radius queries over a fixed station set.
type Index interface {
	// Within returns the indices of all stations whose great-circle distance to
	// point is at most radiusMeters, in ascending index order.
	Within(point orb.Point, radiusMeters float64) []int

	// Station returns the station stored at idx.
	Station(idx int) entity.Station

	// Size returns the number of stations in the index
	Size() int
}

// KDTree is a balanced 3-d tree over stations mapped onto the unit sphere.
// Distances are great-circle (haversine) meters on a sphere of radius orb.EarthRadius;
// pruning uses the chord length equivalent to the query radius, which is monotonic
// in the arc length, and every hit is confirmed with the haversine distance.
// The tree is read-only after Build and safe for concurrent queries.
type KDTree struct {
	stations []entity.Station
	vectors  [][3]float64
	nodes    []kdNode
	root     int32
	byID     map[string]int
}

type kdNode struct {
	station int32
	axis    uint8
	left    int32
	right   int32
}

// Build constructs a balanced tree over stations. The slice is copied.
func Build(stations []entity.Station) *KDTree {
	t := &KDTree{
		stations: slices.Clone(stations),
		vectors:  make([][3]float64, len(stations)),
		nodes:    make([]kdNode, 0, len(stations)),
		root:     -1,
		byID:     make(map[string]int, len(stations)),
	}

	for i, s := range t.stations {
		t.vectors[i] = unitVector(s.Lat, s.Lon)
		t.byID[s.ID] = i
	}

	order := make([]int32, len(stations))
	for i := range order {
		order[i] = int32(i)
	}
	t.root = t.build(order, 0)

	return t
}

func (t *KDTree) build(order []int32, depth int) int32 {
	if len(order) == 0 {
		return -1
	}

	axis := uint8(depth % 3)
	sort.Slice(order, func(a, b int) bool {
		va, vb := t.vectors[order[a]][axis], t.vectors[order[b]][axis]
		if va != vb {
			return va < vb
		}

		return order[a] < order[b]
	})

	mid := len(order) / 2
	nodeIdx := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{station: order[mid], axis: axis})

	left := t.build(order[:mid], depth+1)
	right := t.build(order[mid+1:], depth+1)
	t.nodes[nodeIdx].left = left
	t.nodes[nodeIdx].right = right

	return nodeIdx
}

// Within returns the indices of all stations within radiusMeters of point.
func (t *KDTree) Within(point orb.Point, radiusMeters float64) []int {
	if t.root < 0 || radiusMeters < 0 || math.IsNaN(radiusMeters) {
		return []int{}
	}

	q := unitVector(point.Lat(), point.Lon())
	chord := chordLength(radiusMeters) + chordSlack
	chordSq := chord * chord

	hits := make([]int, 0, 8)
	stack := []int32{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := t.nodes[n]
		v := t.vectors[node.station]

		if squaredDistance(q, v) <= chordSq {
			s := t.stations[node.station]
			if geo.DistanceHaversine(point, s.Point()) <= radiusMeters {
				hits = append(hits, int(node.station))
			}
		}

		diff := q[node.axis] - v[node.axis]
		near, far := node.left, node.right
		if diff > 0 {
			near, far = node.right, node.left
		}
		if near >= 0 {
			stack = append(stack, near)
		}
		if far >= 0 && math.Abs(diff) <= chord {
			stack = append(stack, far)
		}
	}

	slices.Sort(hits)

	return hits
}

// Nearest returns the index of the station closest to point, or -1 and false if the tree is empty.
func (t *KDTree) Nearest(point orb.Point) (int, bool) {
	if t.root < 0 {
		return -1, false
	}

	q := unitVector(point.Lat(), point.Lon())
	best, bestSq := int32(-1), math.Inf(1)

	var visit func(n int32)
	visit = func(n int32) {
		if n < 0 {
			return
		}
		node := t.nodes[n]
		v := t.vectors[node.station]

		if d := squaredDistance(q, v); d < bestSq || (d == bestSq && node.station < best) {
			best, bestSq = node.station, d
		}

		diff := q[node.axis] - v[node.axis]
		near, far := node.left, node.right
		if diff > 0 {
			near, far = node.right, node.left
		}
		visit(near)
		if diff*diff <= bestSq {
			visit(far)
		}
	}
	visit(t.root)

	return int(best), true
}

// RadiusQuery returns the IDs of all stations within radiusMeters of point, sorted.
func (t *KDTree) RadiusQuery(point orb.Point, radiusMeters float64) []string {
	hits := t.Within(point, radiusMeters)
	ids := make([]string, len(hits))
	for i, idx := range hits {
		ids[i] = t.stations[idx].ID
	}
	sort.Strings(ids)

	return ids
}

// Station returns the station stored at idx.
func (t *KDTree) Station(idx int) entity.Station {
	return t.stations[idx]
}

// Lookup returns the station with the given ID.
func (t *KDTree) Lookup(id string) (entity.Station, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return entity.Station{}, false
	}

	return t.stations[idx], true
}

// Size returns the number of stations in the index
func (t *KDTree) Size() int {
	return len(t.stations)
}

// Depth returns the height of the tree, zero when empty.
func (t *KDTree) Depth() int {
	var depth func(n int32) int
	depth = func(n int32) int {
		if n < 0 {
			return 0
		}

		return 1 + max(depth(t.nodes[n].left), depth(t.nodes[n].right))
	}

	return depth(t.root)
}

func unitVector(lat, lon float64) [3]float64 {
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180
	cosPhi := math.Cos(phi)

	return [3]float64{cosPhi * math.Cos(lambda), cosPhi * math.Sin(lambda), math.Sin(phi)}
}

// chordLength converts an arc length in meters to the straight-line distance
// between the two points on the unit sphere.
func chordLength(arcMeters float64) float64 {
	angle := arcMeters / orb.EarthRadius
	if angle >= math.Pi {
		return 2
	}

	return 2 * math.Sin(angle/2)
}

func squaredDistance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]

	return dx*dx + dy*dy + dz*dz
}
