package walkgraph

import (
	"context"
	"fmt"
	"time"

	"git.fiblab.net/sim/walkshed/walkgraph/algo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// 默认步行速度（m/s）
const DefaultWalkSpeed = 1.34

type options struct {
	walkSpeed float64
}

type Option func(*options)

// WithWalkSpeed sets the constant walking speed in meters per second.
// Non-positive values are ignored.
func WithWalkSpeed(speed float64) Option {
	return func(o *options) {
		if speed > 0 {
			o.walkSpeed = speed
		}
	}
}

// Graph is the immutable pedestrian network with its indexes.
// All query methods are safe for concurrent use.
type Graph struct {
	intersections []Intersection
	roads         []Road
	amenities     []Amenity
	mercator      *Mercator
	boundary      orb.Polygon // 平面坐标
	snapped       int
	speed         float64

	intersectionIndex *intersectionIndex
	routeIndex        *routeIndex
	// 用于可达性搜索与A*参考路径
	search *algo.SearchGraph[IntersectionID, RoadID]
}

type walkHeuristics struct {
	speed float64
}

func (h walkHeuristics) HeuristicEuclidean(p1 orb.Point, p2 orb.Point) float64 {
	return planar.Distance(p1, p2) / h.speed
}

// New builds a Graph from OSM XML or PBF bytes.
func New(ctx context.Context, input []byte, opts ...Option) (*Graph, error) {
	o := options{walkSpeed: DefaultWalkSpeed}
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	net, err := scrapeOSM(ctx, input)
	if err != nil {
		return nil, err
	}
	g := &Graph{
		intersections: net.intersections,
		roads:         net.roads,
		amenities:     net.amenities,
		mercator:      net.mercator,
		boundary:      net.boundary,
		speed:         o.walkSpeed,
	}
	g.snapped = snapAmenities(g.roads, g.amenities)
	log.Infof("Snapped %d of %d amenities to roads", g.snapped, len(g.amenities))

	if g.intersectionIndex, err = newIntersectionIndex(g.intersections); err != nil {
		return nil, err
	}
	if err = g.initSearchGraph(); err != nil {
		return nil, err
	}
	if g.routeIndex, err = newRouteIndex(g.intersections, g.roads, g.speed); err != nil {
		return nil, err
	}
	log.Infof("Graph built in %v", time.Since(start))
	return g, nil
}

func (g *Graph) initSearchGraph() error {
	g.search = algo.NewSearchGraph[IntersectionID, RoadID](walkHeuristics{speed: g.speed})
	for _, i := range g.intersections {
		if id := g.search.InitNode(i.Point, i.ID); id != int(i.ID) {
			return fmt.Errorf("%w: search node %d for intersection %d", ErrInternal, id, i.ID)
		}
	}
	for _, r := range g.roads {
		if _, err := g.Intersection(r.Src); err != nil {
			return fmt.Errorf("road %d: %w", r.ID, err)
		}
		if _, err := g.Intersection(r.Dst); err != nil {
			return fmt.Errorf("road %d: %w", r.ID, err)
		}
		cost := g.cost(&r)
		g.search.InitEdge(int(r.Src), int(r.Dst), cost, r.ID)
		if r.Src != r.Dst {
			g.search.InitEdge(int(r.Dst), int(r.Src), cost, r.ID)
		}
	}
	return nil
}

// 道路通行时间（秒）
func (g *Graph) cost(r *Road) float64 {
	return r.Length / g.speed
}

func (g *Graph) Road(id RoadID) (*Road, error) {
	if id < 0 || int(id) >= len(g.roads) {
		return nil, fmt.Errorf("%w: road %d out of range", ErrInternal, id)
	}
	return &g.roads[id], nil
}

func (g *Graph) Intersection(id IntersectionID) (*Intersection, error) {
	if id < 0 || int(id) >= len(g.intersections) {
		return nil, fmt.Errorf("%w: intersection %d out of range", ErrInternal, id)
	}
	return &g.intersections[id], nil
}

func (g *Graph) Amenity(id AmenityID) (*Amenity, error) {
	if id < 0 || int(id) >= len(g.amenities) {
		return nil, fmt.Errorf("%w: amenity %d out of range", ErrInternal, id)
	}
	return &g.amenities[id], nil
}

func (g *Graph) Roads() []Road                 { return g.roads }
func (g *Graph) Intersections() []Intersection { return g.intersections }
func (g *Graph) Amenities() []Amenity          { return g.amenities }
func (g *Graph) WalkSpeed() float64            { return g.speed }
func (g *Graph) Mercator() *Mercator           { return g.mercator }

// Bounds returns [minLon, minLat, maxLon, maxLat] of the covered area.
func (g *Graph) Bounds() [4]float64 {
	b := g.mercator.Bounds
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// InvertedBoundary returns a lon/lat polygon covering the whole world with the
// covered area cut out as a hole.
func (g *Graph) InvertedBoundary() orb.Polygon {
	world := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}.ToPolygon()
	hole := g.mercator.PolygonToWGS84(g.boundary)
	return orb.Polygon{world[0], hole[0]}
}

func (g *Graph) Stats() Stats {
	return Stats{
		Roads:         len(g.roads),
		Intersections: len(g.intersections),
		Amenities:     len(g.amenities),
		Snapped:       g.snapped,
	}
}

// AmenitiesGeoJSON dumps every amenity as a lon/lat point feature.
func (g *Graph) AmenitiesGeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range g.amenities {
		a := &g.amenities[i]
		f := geojson.NewFeature(g.mercator.ToWGS84(a.Point))
		f.Properties["amenity_kind"] = a.Kind
		f.Properties["osm_id"] = a.SourceRef()
		if a.Name != nil {
			f.Properties["name"] = *a.Name
		} else {
			f.Properties["name"] = nil
		}
		fc.Append(f)
	}
	return fc
}

// 经纬度点映射到最近的路口
func (g *Graph) nearestIntersection(lonlat orb.Point) (IntersectionID, bool) {
	return g.intersectionIndex.nearest(g.mercator.ToPlanar(lonlat))
}

// findEdge 连接两个路口的最短道路
func (g *Graph) findEdge(from, to IntersectionID) (*Road, error) {
	i, err := g.Intersection(from)
	if err != nil {
		return nil, err
	}
	var best *Road
	for _, rid := range i.Roads {
		r, err := g.Road(rid)
		if err != nil {
			return nil, err
		}
		if r.OtherSide(from) != to {
			continue
		}
		if best == nil || r.Length < best.Length {
			best = r
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no road between intersections %d and %d", ErrInternal, from, to)
	}
	return best, nil
}
