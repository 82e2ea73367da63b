package walkgraph_test

import (
	"testing"

	"git.fiblab.net/sim/walkshed/walkgraph"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPointNear(t *testing.T, expected [2]float64, actual orb.Point) {
	t.Helper()
	assert.InDelta(t, expected[0], actual[0], 1e-9)
	assert.InDelta(t, expected[1], actual[1], 1e-9)
}

func TestRoute(t *testing.T) {
	g := loadGrid(t)
	lines, err := g.Route(orb.Point(node1), orb.Point(node9))
	require.NoError(t, err)
	// 两横两纵
	require.Len(t, lines, 4)
	assertPointNear(t, node1, lines[0][0])
	last := lines[len(lines)-1]
	assertPointNear(t, node9, last[len(last)-1])
	for i := 1; i < len(lines); i++ {
		prev := lines[i-1]
		assertPointNear(t, prev[len(prev)-1], lines[i][0])
	}

	_, cost, err := g.RouteCost(orb.Point(node1), orb.Point(node9))
	require.NoError(t, err)
	reference, err := g.ReferenceRouteCost(orb.Point(node1), orb.Point(node9))
	require.NoError(t, err)
	assert.InDelta(t, reference.Seconds(), cost.Seconds(), 1e-6)
	road0, err := g.Road(0)
	require.NoError(t, err)
	road6, err := g.Road(6)
	require.NoError(t, err)
	assert.InDelta(t, 2*(road0.Length+road6.Length)/g.WalkSpeed(), cost.Seconds(), 1e-6)
}

func TestRouteSymmetric(t *testing.T) {
	g := loadGrid(t)
	points := []orb.Point{
		orb.Point(node1), orb.Point(node3), orb.Point(node9),
		{-0.0991, 51.5012}, {-0.1002, 51.5019},
	}
	for _, a := range points {
		for _, b := range points {
			_, ab, errAB := g.RouteCost(a, b)
			_, ba, errBA := g.RouteCost(b, a)
			if errAB != nil {
				assert.ErrorIs(t, errBA, walkgraph.ErrIdenticalEndpoints)
				continue
			}
			require.NoError(t, errBA)
			assert.InDelta(t, ab.Seconds(), ba.Seconds(), 1e-6, "%v <-> %v", a, b)
		}
	}
}

func TestRouteSymmetricRoads(t *testing.T) {
	g := loadGrid(t)
	node7 := [2]float64{-0.100, 51.502}
	roadIDs := func(from, to [2]float64) []walkgraph.RoadID {
		segments, err := g.RoutesTo([]walkgraph.Person{{Name: "a", Home: from, MaxTimeMinutes: 10}}, orb.Point(to))
		require.NoError(t, err)
		return lo.Map(segments, func(s walkgraph.Segment, _ int) walkgraph.RoadID { return s.Road })
	}
	for _, c := range []struct {
		from, to [2]float64
		roads    []walkgraph.RoadID
	}{
		{node1, node3, []walkgraph.RoadID{0, 1}},
		{node3, node9, []walkgraph.RoadID{10, 11}},
		{node1, node7, []walkgraph.RoadID{6, 7}},
		{node1, node9, nil},
	} {
		ab := roadIDs(c.from, c.to)
		ba := roadIDs(c.to, c.from)
		if c.roads != nil {
			assert.Equal(t, c.roads, ab)
		}
		assert.Len(t, ab, len(ba))
		assert.Equal(t, ab, lo.Reverse(ba), "%v <-> %v", c.from, c.to)
	}
}

func TestRouteErrors(t *testing.T) {
	g := loadGrid(t)
	_, err := g.Route(orb.Point(node1), orb.Point{-0.1001, 51.5001})
	assert.ErrorIs(t, err, walkgraph.ErrIdenticalEndpoints)

	_, err = g.Route(orb.Point(node1), orb.Point(node11))
	assert.ErrorIs(t, err, walkgraph.ErrNoPath)
	_, err = g.ReferenceRouteCost(orb.Point(node1), orb.Point(node11))
	assert.ErrorIs(t, err, walkgraph.ErrNoPath)
}

func TestRoutesTo(t *testing.T) {
	g := loadGrid(t)
	people := []walkgraph.Person{
		{Name: "a", Home: node1, MaxTimeMinutes: 10},
		{Name: "b", Home: node3, MaxTimeMinutes: 10},
	}
	segments, err := g.RoutesTo(people, orb.Point(node9))
	require.NoError(t, err)
	require.Len(t, segments, 6)
	assert.Equal(t, []string{"a", "a", "a", "a", "b", "b"}, lo.Map(segments, func(s walkgraph.Segment, _ int) string { return s.Person }))
	// 3->6->9
	assert.Equal(t, []walkgraph.RoadID{10, 11}, lo.Map(segments[4:], func(s walkgraph.Segment, _ int) walkgraph.RoadID { return s.Road }))
	assertPointNear(t, node3, segments[4].Line[0])

	segments, err = g.RoutesTo(nil, orb.Point(node9))
	require.NoError(t, err)
	assert.Empty(t, segments)

	_, err = g.RoutesTo(people, orb.Point(node1))
	assert.ErrorIs(t, err, walkgraph.ErrIdenticalEndpoints)
	_, err = g.RoutesTo(people, orb.Point(node11))
	assert.ErrorIs(t, err, walkgraph.ErrNoPath)
}

func TestRouteReversesGeometry(t *testing.T) {
	g := loadGrid(t)
	forward, err := g.Route(orb.Point(node1), orb.Point{-0.099, 51.500})
	require.NoError(t, err)
	backward, err := g.Route(orb.Point{-0.099, 51.500}, orb.Point(node1))
	require.NoError(t, err)
	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assertPointNear(t, node1, forward[0][0])
	assertPointNear(t, node1, backward[0][len(backward[0])-1])
	// 图中的几何不应被修改
	road0, err := g.Road(0)
	require.NoError(t, err)
	assertPointNear(t, node1, g.Mercator().ToWGS84(road0.Line[0]))
}
