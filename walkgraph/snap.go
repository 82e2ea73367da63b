package walkgraph

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"
)

// roadIndex 道路几何的最近邻索引，仅在吸附amenity时使用一次
type roadIndex struct {
	tree  rtree.RTreeG[RoadID]
	roads []Road
}

func newRoadIndex(roads []Road) *roadIndex {
	idx := &roadIndex{roads: roads}
	for _, r := range roads {
		b := r.Line.Bound()
		idx.tree.Insert([2]float64(b.Min), [2]float64(b.Max), r.ID)
	}
	return idx
}

// nearest returns the road whose polyline is closest to p.
// Box distances bound polyline distances from below, so the first item
// yielded by Nearby is the exact nearest road.
func (idx *roadIndex) nearest(p orb.Point) (RoadID, bool) {
	var best RoadID
	found := false
	idx.tree.Nearby(
		func(min, max [2]float64, id RoadID, item bool) float64 {
			if item {
				return planar.DistanceFrom(idx.roads[id].Line, p)
			}
			return boxDistance(min, max, p)
		},
		func(_, _ [2]float64, id RoadID, _ float64) bool {
			best = id
			found = true
			return false
		},
	)
	return best, found
}

func boxDistance(min, max [2]float64, p orb.Point) float64 {
	dx := math.Max(0, math.Max(min[0]-p[0], p[0]-max[0]))
	dy := math.Max(0, math.Max(min[1]-p[1], p[1]-max[1]))
	return math.Hypot(dx, dy)
}

// snapAmenities 将每个amenity挂到距离最近的道路上
// 没有道路时不做任何事，这些amenity永远不可达
func snapAmenities(roads []Road, amenities []Amenity) int {
	if len(roads) == 0 {
		return 0
	}
	idx := newRoadIndex(roads)
	snapped := 0
	for _, a := range amenities {
		r, ok := idx.nearest(a.Point)
		if !ok {
			log.Warnf("amenity %d (%s) not snapped", a.ID, a.SourceRef())
			continue
		}
		roads[r].Amenities = append(roads[r].Amenities, a.ID)
		snapped++
	}
	return snapped
}
