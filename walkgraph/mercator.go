package walkgraph

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/project"
)

// 经纬度范围过小时的扩展量（度）
const degenerateBoundPadding = 1e-4

// Mercator converts between WGS84 and a local planar space in meters.
// The origin is the north-west corner of Bounds and y grows southward.
// Distances are accurate within a city-sized extract, which is all the
// walking cost model needs.
type Mercator struct {
	Bounds orb.Bound // WGS84
	width  float64
	height float64
}

func NewMercator(bounds orb.Bound) *Mercator {
	if bounds.Max[0]-bounds.Min[0] <= 0 {
		bounds.Min[0] -= degenerateBoundPadding
		bounds.Max[0] += degenerateBoundPadding
	}
	if bounds.Max[1]-bounds.Min[1] <= 0 {
		bounds.Min[1] -= degenerateBoundPadding
		bounds.Max[1] += degenerateBoundPadding
	}
	// 东西向宽度在中间纬度处测量
	midLat := (bounds.Min[1] + bounds.Max[1]) / 2
	return &Mercator{
		Bounds: bounds,
		width:  geo.DistanceHaversine(orb.Point{bounds.Min[0], midLat}, orb.Point{bounds.Max[0], midLat}),
		height: geo.DistanceHaversine(bounds.Min, orb.Point{bounds.Min[0], bounds.Max[1]}),
	}
}

// ToPlanar projects a [lon, lat] point.
func (m *Mercator) ToPlanar(p orb.Point) orb.Point {
	b := m.Bounds
	return orb.Point{
		m.width * (p[0] - b.Min[0]) / (b.Max[0] - b.Min[0]),
		m.height * (b.Max[1] - p[1]) / (b.Max[1] - b.Min[1]),
	}
}

// ToWGS84 is the inverse of ToPlanar.
func (m *Mercator) ToWGS84(p orb.Point) orb.Point {
	b := m.Bounds
	return orb.Point{
		b.Min[0] + p[0]/m.width*(b.Max[0]-b.Min[0]),
		b.Max[1] - p[1]/m.height*(b.Max[1]-b.Min[1]),
	}
}

// project的变换是原地修改的，先复制以保证图中的几何不被改动
func (m *Mercator) LineStringToWGS84(ls orb.LineString) orb.LineString {
	return project.LineString(ls.Clone(), m.ToWGS84)
}

func (m *Mercator) PolygonToWGS84(p orb.Polygon) orb.Polygon {
	return project.Polygon(p.Clone(), m.ToWGS84)
}

func (m *Mercator) LineStringToPlanar(ls orb.LineString) orb.LineString {
	return project.LineString(ls.Clone(), m.ToPlanar)
}

// PlanarBound is the extent of Bounds in planar coordinates.
func (m *Mercator) PlanarBound() orb.Bound {
	return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{m.width, m.height}}
}
