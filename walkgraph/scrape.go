package walkgraph

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/samber/lo"
)

// network is the output of the builder before indexes are attached.
type network struct {
	intersections []Intersection
	roads         []Road
	amenities     []Amenity
	mercator      *Mercator
	boundary      orb.Polygon // 平面坐标
}

type rawWay struct {
	id    osm.WayID
	tags  osm.Tags
	nodes []osm.NodeID
}

type rawOSM struct {
	coords map[osm.NodeID]orb.Point // WGS84
	// 带标签的点，按文件顺序
	taggedNodes []*osm.Node
	ways        []rawWay
}

// IsWalkable reports whether a way with these tags belongs to the pedestrian network.
func IsWalkable(tags osm.Tags) bool {
	return tags.HasTag("highway") &&
		tags.Find("highway") != "proposed" &&
		tags.Find("area") != "yes" &&
		tags.Find("foot") != "no"
}

func isXML(input []byte) bool {
	trimmed := bytes.TrimLeft(input, " \t\r\n\ufeff")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// xml的根元素必须是<osm>，否则不是地图数据
func checkXMLRoot(input []byte) error {
	d := xml.NewDecoder(bytes.NewReader(input))
	for {
		tok, err := d.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInputParse, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "osm" {
				return fmt.Errorf("%w: root element <%s> is not <osm>", ErrInputParse, se.Name.Local)
			}
			return nil
		}
	}
}

// 读取osm.pbf或osm xml
func readOSM(ctx context.Context, input []byte) (*rawOSM, error) {
	if len(bytes.TrimSpace(input)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInputParse)
	}
	var scanner osm.Scanner
	if isXML(input) {
		if err := checkXMLRoot(input); err != nil {
			return nil, err
		}
		scanner = osmxml.New(ctx, bytes.NewReader(input))
	} else {
		scanner = osmpbf.New(ctx, bytes.NewReader(input), runtime.GOMAXPROCS(-1))
	}
	defer scanner.Close()

	raw := &rawOSM{coords: make(map[osm.NodeID]orb.Point)}
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			raw.coords[o.ID] = orb.Point{o.Lon, o.Lat}
			if len(o.Tags) > 0 {
				raw.taggedNodes = append(raw.taggedNodes, o)
			}
		case *osm.Way:
			raw.ways = append(raw.ways, rawWay{
				id:    o.ID,
				tags:  o.Tags,
				nodes: lo.Map(o.Nodes, func(wn osm.WayNode, _ int) osm.NodeID { return wn.ID }),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputParse, err)
	}
	return raw, nil
}

// 去除不存在的点与连续重复的点
func (raw *rawOSM) resolveWay(w rawWay) []osm.NodeID {
	nodes := make([]osm.NodeID, 0, len(w.nodes))
	missing := 0
	for _, id := range w.nodes {
		if _, ok := raw.coords[id]; !ok {
			missing++
			continue
		}
		if len(nodes) > 0 && nodes[len(nodes)-1] == id {
			continue
		}
		nodes = append(nodes, id)
	}
	if missing > 0 {
		log.Warnf("way %d references %d missing nodes, dropped them", w.id, missing)
	}
	return nodes
}

// scrapeOSM 将地图数据转换为路网
// 1. 可步行的way在端点以及被多次使用的点处切分，切分点为路口，相邻切分点之间为道路
// 2. 所有实体（包括不可步行的way）都会被检查是否为amenity
func scrapeOSM(ctx context.Context, input []byte) (*network, error) {
	log.Infof("Parsing %d bytes of OSM data", len(input))
	raw, err := readOSM(ctx, input)
	if err != nil {
		return nil, err
	}

	type walkableWay struct {
		id    osm.WayID
		nodes []osm.NodeID
	}
	walkable := make([]walkableWay, 0)
	resolved := make([][]osm.NodeID, len(raw.ways))
	for i, w := range raw.ways {
		resolved[i] = raw.resolveWay(w)
		if !IsWalkable(w.tags) {
			continue
		}
		if len(resolved[i]) < 2 {
			log.Warnf("way %d has fewer than 2 usable nodes, skipped", w.id)
			continue
		}
		walkable = append(walkable, walkableWay{id: w.id, nodes: resolved[i]})
	}

	// 投影范围：覆盖全部可步行几何
	var bound orb.Bound
	first := true
	extend := func(p orb.Point) {
		if first {
			bound = p.Bound()
			first = false
		} else {
			bound = bound.Extend(p)
		}
	}
	for _, w := range walkable {
		for _, id := range w.nodes {
			extend(raw.coords[id])
		}
	}
	if len(walkable) == 0 {
		log.Warn("no walkable ways in the input, building an empty network")
		// 没有路网时，用amenity的范围保证投影仍然有定义
		for _, n := range raw.taggedNodes {
			extend(raw.coords[n.ID])
		}
	}
	mercator := NewMercator(bound)

	// 统计每个点被可步行way使用的次数
	useCount := make(map[osm.NodeID]int)
	for _, w := range walkable {
		for _, id := range w.nodes {
			useCount[id]++
		}
		// 端点总是切分点
		useCount[w.nodes[0]]++
		useCount[w.nodes[len(w.nodes)-1]]++
	}

	net := &network{
		intersections: make([]Intersection, 0),
		roads:         make([]Road, 0),
		amenities:     make([]Amenity, 0),
		mercator:      mercator,
		boundary:      mercator.PlanarBound().ToPolygon(),
	}
	intersectionOf := make(map[osm.NodeID]IntersectionID)
	getOrInsert := func(id osm.NodeID) IntersectionID {
		if i, ok := intersectionOf[id]; ok {
			return i
		}
		i := IntersectionID(len(net.intersections))
		intersectionOf[id] = i
		net.intersections = append(net.intersections, Intersection{
			ID:    i,
			Point: mercator.ToPlanar(raw.coords[id]),
			Roads: make([]RoadID, 0),
		})
		return i
	}
	for _, w := range walkable {
		src := getOrInsert(w.nodes[0])
		line := orb.LineString{net.intersections[src].Point}
		for _, id := range w.nodes[1:] {
			line = append(line, mercator.ToPlanar(raw.coords[id]))
			if useCount[id] < 2 {
				continue
			}
			dst := getOrInsert(id)
			r := RoadID(len(net.roads))
			net.roads = append(net.roads, Road{
				ID:        r,
				Src:       src,
				Dst:       dst,
				Line:      line,
				Length:    planar.Length(line),
				Amenities: make([]AmenityID, 0),
			})
			net.intersections[src].Roads = append(net.intersections[src].Roads, r)
			if dst != src {
				net.intersections[dst].Roads = append(net.intersections[dst].Roads, r)
			}
			src = dst
			line = orb.LineString{net.intersections[dst].Point}
		}
	}

	// amenity：先点后线，均按文件顺序
	for _, n := range raw.taggedNodes {
		a, ok := NewAmenity(n.Tags, n.ID.FeatureID(), mercator.ToPlanar(raw.coords[n.ID]), AmenityID(len(net.amenities)))
		if ok {
			net.amenities = append(net.amenities, *a)
		}
	}
	for i, w := range raw.ways {
		if len(resolved[i]) == 0 {
			continue
		}
		if _, ok := amenityKind(w.tags); !ok {
			continue
		}
		shape := mercator.LineStringToPlanar(lo.Map(resolved[i], func(id osm.NodeID, _ int) orb.Point {
			return raw.coords[id]
		}))
		a, _ := NewAmenity(w.tags, w.id.FeatureID(), representativePoint(shape), AmenityID(len(net.amenities)))
		net.amenities = append(net.amenities, *a)
	}

	log.Infof("Built %d intersections, %d roads, %d amenities from %d walkable ways",
		len(net.intersections), len(net.roads), len(net.amenities), len(walkable))
	return net, nil
}

// representativePoint 线状实体的代表点：闭合way取面质心，其他取按长度加权的质心
// 几何退化时退回第一个点
func representativePoint(points []orb.Point) orb.Point {
	if len(points) == 1 {
		return points[0]
	}
	var g orb.Geometry = orb.LineString(points)
	if len(points) >= 4 && points[0].Equal(points[len(points)-1]) {
		g = orb.Polygon{orb.Ring(points)}
	}
	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return points[0]
	}
	return c
}
