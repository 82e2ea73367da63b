package walkgraph

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

type intersectionLocation struct {
	id IntersectionID
	p  orb.Point
}

func (l intersectionLocation) Point() orb.Point {
	return l.p
}

// intersectionIndex 路口点的最近邻索引，构建后只读，可并发查询
type intersectionIndex struct {
	tree *quadtree.Quadtree
}

func newIntersectionIndex(intersections []Intersection) (*intersectionIndex, error) {
	if len(intersections) == 0 {
		return &intersectionIndex{}, nil
	}
	bound := intersections[0].Point.Bound()
	for _, i := range intersections[1:] {
		bound = bound.Extend(i.Point)
	}
	tree := quadtree.New(bound.Pad(1))
	for _, i := range intersections {
		if err := tree.Add(intersectionLocation{id: i.ID, p: i.Point}); err != nil {
			return nil, fmt.Errorf("%w: index intersection %d: %v", ErrInternal, i.ID, err)
		}
	}
	return &intersectionIndex{tree: tree}, nil
}

// nearest returns the intersection closest to a planar point.
func (idx *intersectionIndex) nearest(p orb.Point) (IntersectionID, bool) {
	if idx.tree == nil {
		return 0, false
	}
	found := idx.tree.Find(p)
	if found == nil {
		return 0, false
	}
	return found.(intersectionLocation).id, true
}
