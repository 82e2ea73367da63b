package walkgraph_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"git.fiblab.net/sim/walkshed/walkgraph"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReachableSingleRoad(t *testing.T) {
	g, err := walkgraph.New(context.Background(), osmXML(`
		<node id="1" lat="40.0" lon="116.0"/>
		<node id="2" lat="40.0" lon="116.01"/>
		<node id="3" lat="40.0" lon="116.005"><tag k="amenity" v="cafe"/></node>
		<way id="1"><nd ref="1"/><nd ref="2"/><tag k="highway" v="footway"/></way>`))
	require.NoError(t, err)
	r, err := g.Road(0)
	require.NoError(t, err)
	cost := r.Length / g.WalkSpeed()

	above := walkgraph.Person{Name: "a", Home: [2]float64{116.0, 40.0}, MaxTimeMinutes: (cost + 1) / 60}
	reached := g.Reachable(above)
	require.Contains(t, reached, walkgraph.AmenityID(0))
	assert.InDelta(t, cost, reached[0].Seconds(), 1e-6)

	below := above
	below.MaxTimeMinutes = (cost - 1) / 60
	assert.Empty(t, g.Reachable(below))

	zero := above
	zero.MaxTimeMinutes = 0
	assert.Empty(t, g.Reachable(zero))

	// 从另一端出发代价相同
	other := above
	other.Home = [2]float64{116.01, 40.0}
	assert.InDelta(t, cost, g.Reachable(other)[0].Seconds(), 1e-6)
}

func TestReachableGrid(t *testing.T) {
	g := loadGrid(t)
	road0, err := g.Road(0)
	require.NoError(t, err)

	reached := g.Reachable(walkgraph.Person{Name: "a", Home: node1, MaxTimeMinutes: 1})
	assert.ElementsMatch(t, []walkgraph.AmenityID{0}, lo.Keys(reached))
	assert.InDelta(t, road0.Length/g.WalkSpeed(), reached[0].Seconds(), 1e-6)

	reached = g.Reachable(walkgraph.Person{Name: "b", Home: node9, MaxTimeMinutes: 2})
	assert.ElementsMatch(t, []walkgraph.AmenityID{1, 2}, lo.Keys(reached))

	// 不连通的分量中没有amenity
	assert.Empty(t, g.Reachable(walkgraph.Person{Name: "c", Home: node11, MaxTimeMinutes: 60}))
}

func TestReachableMonotone(t *testing.T) {
	g := loadGrid(t)
	var last map[walkgraph.AmenityID]time.Duration
	for minutes := 0.0; minutes <= 10; minutes += 0.25 {
		reached := g.Reachable(walkgraph.Person{Name: "a", Home: node1, MaxTimeMinutes: minutes})
		for id, d := range last {
			require.Contains(t, reached, id, "budget %v", minutes)
			assert.InDelta(t, d.Seconds(), reached[id].Seconds(), 1e-6)
		}
		for _, d := range reached {
			assert.LessOrEqual(t, d.Minutes(), minutes)
		}
		last = reached
	}
	assert.Len(t, last, 3)
}

func TestReachableHugeBudget(t *testing.T) {
	g := loadGrid(t)
	for _, minutes := range []float64{10, 2e5, 1e9, 1e300} {
		p := walkgraph.Person{Name: "a", Home: node1, MaxTimeMinutes: minutes}
		require.NoError(t, p.Validate())
		assert.Len(t, g.Reachable(p), 3, "budget %v", minutes)
		assert.Positive(t, p.Budget())
	}
	pois, err := g.FindPOIs(context.Background(), []walkgraph.Person{
		{Name: "a", Home: node1, MaxTimeMinutes: 1e9},
		{Name: "b", Home: node9, MaxTimeMinutes: 1e12},
	})
	require.NoError(t, err)
	assert.Len(t, pois, 3)
}

func TestFindPOIs(t *testing.T) {
	g := loadGrid(t)
	ctx := context.Background()
	people := []walkgraph.Person{
		{Name: "a", Home: node1, MaxTimeMinutes: 10},
		{Name: "b", Home: node9, MaxTimeMinutes: 10},
	}
	pois, err := g.FindPOIs(ctx, people)
	require.NoError(t, err)
	require.Len(t, pois, 3)
	assert.Equal(t, []string{"node/20", "node/21", "way/109"}, lo.Map(pois, func(p walkgraph.POI, _ int) string { return p.SourceRef }))
	assert.Equal(t, []string{"cafe", "bakery", "school"}, lo.Map(pois, func(p walkgraph.POI, _ int) string { return p.Category }))

	cafe := pois[0]
	require.NotNil(t, cafe.Name)
	assert.Equal(t, "Corner Cafe", *cafe.Name)
	assert.InDelta(t, -0.0995, cafe.Point[0], 1e-9)
	assert.InDelta(t, 51.5001, cafe.Point[1], 1e-9)
	assert.Nil(t, pois[1].Name)
	for _, p := range pois {
		assert.Equal(t, []string{"a", "b"}, lo.Map(p.TimesPerPerson, func(pt walkgraph.PersonTime, _ int) string { return pt.Name }))
	}
	road0, err := g.Road(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(road0.Length/g.WalkSpeed()), cafe.TimesPerPerson[0].Seconds)

	// 两人在2分钟内能到达的amenity不相交
	people[0].MaxTimeMinutes = 2
	people[1].MaxTimeMinutes = 2
	pois, err = g.FindPOIs(ctx, people)
	require.NoError(t, err)
	assert.NotNil(t, pois)
	assert.Empty(t, pois)

	pois, err = g.FindPOIs(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, pois)
	assert.Empty(t, pois)
}

func TestFindPOIsIntersection(t *testing.T) {
	g := loadGrid(t)
	homes := [][2]float64{node1, node3, node9, {-0.0991, 51.5012}}
	for _, minutes := range []float64{1, 2, 3, 5} {
		people := lo.Map(homes, func(h [2]float64, i int) walkgraph.Person {
			return walkgraph.Person{Name: fmt.Sprint(i), Home: h, MaxTimeMinutes: minutes}
		})
		pois, err := g.FindPOIs(context.Background(), people)
		require.NoError(t, err)

		expected := lo.Keys(g.Reachable(people[0]))
		for _, p := range people[1:] {
			reached := g.Reachable(p)
			expected = lo.Filter(expected, func(id walkgraph.AmenityID, _ int) bool {
				_, ok := reached[id]
				return ok
			})
		}
		refs := lo.Map(expected, func(id walkgraph.AmenityID, _ int) string {
			a, err := g.Amenity(id)
			require.NoError(t, err)
			return a.SourceRef()
		})
		assert.ElementsMatch(t, refs, lo.Map(pois, func(p walkgraph.POI, _ int) string { return p.SourceRef }), "budget %v", minutes)
		for _, poi := range pois {
			for i, pt := range poi.TimesPerPerson {
				assert.LessOrEqual(t, float64(pt.Seconds), people[i].MaxTimeMinutes*60)
			}
		}
	}
}

func TestFindPOIsCancelled(t *testing.T) {
	g := loadGrid(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.FindPOIs(ctx, []walkgraph.Person{{Name: "a", Home: node1, MaxTimeMinutes: 10}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPersonValidate(t *testing.T) {
	assert.NoError(t, walkgraph.Person{Name: "a", Home: node1, MaxTimeMinutes: 10}.Validate())
	assert.Error(t, walkgraph.Person{Home: node1, MaxTimeMinutes: 10}.Validate())
	assert.Error(t, walkgraph.Person{Name: "a", Home: [2]float64{200, 0}, MaxTimeMinutes: 10}.Validate())
	assert.Error(t, walkgraph.Person{Name: "a", Home: [2]float64{0, -91}, MaxTimeMinutes: 10}.Validate())
	assert.Error(t, walkgraph.Person{Name: "a", Home: node1, MaxTimeMinutes: -1}.Validate())
	assert.Equal(t, 90*time.Second, walkgraph.Person{MaxTimeMinutes: 1.5}.Budget())
}
