package walkgraph

import (
	"fmt"
	"sync"
	"time"

	"github.com/LdDl/ch"
	"github.com/paulmach/orb"
)

// routeIndex 预处理的收缩层次图，顶点标签即IntersectionID
// ch库的查询会修改内部状态，所有查询需持有mu
type routeIndex struct {
	mu    sync.Mutex
	graph *ch.Graph
}

func newRouteIndex(intersections []Intersection, roads []Road, speed float64) (*routeIndex, error) {
	idx := &routeIndex{}
	if len(intersections) == 0 {
		return idx, nil
	}
	g := &ch.Graph{}
	for _, i := range intersections {
		if err := g.CreateVertex(int64(i.ID)); err != nil {
			return nil, fmt.Errorf("%w: create vertex %d: %v", ErrInternal, i.ID, err)
		}
	}
	// 平行道路只保留最短的一条
	type pair struct{ from, to IntersectionID }
	weights := make(map[pair]float64)
	order := make([]pair, 0, 2*len(roads))
	for _, r := range roads {
		if r.Src == r.Dst {
			continue
		}
		w := r.Length / speed
		for _, p := range []pair{{r.Src, r.Dst}, {r.Dst, r.Src}} {
			if old, ok := weights[p]; !ok {
				weights[p] = w
				order = append(order, p)
			} else if w < old {
				weights[p] = w
			}
		}
	}
	for _, p := range order {
		if err := g.AddEdge(int64(p.from), int64(p.to), weights[p]); err != nil {
			return nil, fmt.Errorf("%w: add edge %d->%d: %v", ErrInternal, p.from, p.to, err)
		}
	}
	log.Infof("Preparing contraction hierarchies for %d vertices and %d edges", len(intersections), len(order))
	g.PrepareContractionHierarchies()
	idx.graph = g
	return idx, nil
}

// path returns the intersection sequence and cost in seconds of the shortest
// path from start to end.
func (idx *routeIndex) path(start, end IntersectionID) (nodes []IntersectionID, cost float64, err error) {
	if idx.graph == nil {
		return nil, 0, ErrNoPath
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("shortest path %d->%d panicked: %v", start, end, r)
			nodes, cost, err = nil, 0, fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()
	cost, vertices := idx.graph.ShortestPath(int64(start), int64(end))
	if cost < 0 || len(vertices) == 0 {
		return nil, 0, ErrNoPath
	}
	nodes = make([]IntersectionID, len(vertices))
	for i, v := range vertices {
		nodes[i] = IntersectionID(v)
	}
	return nodes, cost, nil
}

func (g *Graph) endpoints(start, end orb.Point) (IntersectionID, IntersectionID, error) {
	s, ok := g.nearestIntersection(start)
	if !ok {
		return 0, 0, ErrNoPath
	}
	e, ok := g.nearestIntersection(end)
	if !ok {
		return 0, 0, ErrNoPath
	}
	if s == e {
		return 0, 0, ErrIdenticalEndpoints
	}
	return s, e, nil
}

// RouteCost returns the intersections of the shortest walking path between
// two lon/lat points and its cost.
func (g *Graph) RouteCost(start, end orb.Point) ([]IntersectionID, time.Duration, error) {
	s, e, err := g.endpoints(start, end)
	if err != nil {
		return nil, 0, err
	}
	nodes, cost, err := g.routeIndex.path(s, e)
	if err != nil {
		return nil, 0, err
	}
	return nodes, time.Duration(cost * float64(time.Second)), nil
}

// Route returns the road geometries in lon/lat along the shortest walking path
// between two lon/lat points, one line per road.
func (g *Graph) Route(start, end orb.Point) ([]orb.LineString, error) {
	nodes, _, err := g.RouteCost(start, end)
	if err != nil {
		return nil, err
	}
	_, lines, err := g.roadsAlong(nodes)
	return lines, err
}

// roadsAlong 将路口序列还原为道路及其行走方向上的经纬度几何
func (g *Graph) roadsAlong(nodes []IntersectionID) ([]*Road, []orb.LineString, error) {
	roads := make([]*Road, 0, len(nodes))
	lines := make([]orb.LineString, 0, len(nodes))
	for i := 1; i < len(nodes); i++ {
		r, err := g.findEdge(nodes[i-1], nodes[i])
		if err != nil {
			return nil, nil, err
		}
		line := g.mercator.LineStringToWGS84(r.Line)
		// 道路几何与行走方向相反时翻转
		if r.Src != nodes[i-1] {
			line.Reverse()
		}
		roads = append(roads, r)
		lines = append(lines, line)
	}
	return roads, lines, nil
}

// ReferenceRouteCost computes the same cost as RouteCost with a plain A* search
// over the unprocessed graph.
func (g *Graph) ReferenceRouteCost(start, end orb.Point) (time.Duration, error) {
	s, e, err := g.endpoints(start, end)
	if err != nil {
		return 0, err
	}
	path, cost := g.search.ShortestPath(int(s), int(e))
	if path == nil {
		return 0, ErrNoPath
	}
	return time.Duration(cost * float64(time.Second)), nil
}

// RoutesTo routes every person's home to point and concatenates the road
// geometries in person order.
func (g *Graph) RoutesTo(people []Person, point orb.Point) ([]Segment, error) {
	segments := make([]Segment, 0)
	if len(g.intersections) == 0 {
		return segments, nil
	}
	for _, p := range people {
		nodes, _, err := g.RouteCost(orb.Point(p.Home), point)
		if err != nil {
			return nil, fmt.Errorf("route for %s: %w", p.Name, err)
		}
		roads, lines, err := g.roadsAlong(nodes)
		if err != nil {
			return nil, err
		}
		for i, r := range roads {
			segments = append(segments, Segment{Person: p.Name, Road: r.ID, Line: lines[i]})
		}
	}
	return segments, nil
}
