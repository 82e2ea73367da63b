package walkgraph_test

import (
	"testing"

	"git.fiblab.net/sim/walkshed/walkgraph"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAmenity(t *testing.T) {
	ref := osm.NodeID(7).FeatureID()
	p := orb.Point{1, 2}

	a, ok := walkgraph.NewAmenity(osm.Tags{{Key: "amenity", Value: "pharmacy"}, {Key: "name", Value: "Boots"}}, ref, p, 3)
	require.True(t, ok)
	assert.Equal(t, walkgraph.AmenityID(3), a.ID)
	assert.Equal(t, "pharmacy", a.Kind)
	assert.Equal(t, "node/7", a.SourceRef())
	assert.Equal(t, p, a.Point)
	require.NotNil(t, a.Name)
	assert.Equal(t, "Boots", *a.Name)

	// amenity优先于shop
	a, ok = walkgraph.NewAmenity(osm.Tags{{Key: "shop", Value: "books"}, {Key: "amenity", Value: "cafe"}}, ref, p, 0)
	require.True(t, ok)
	assert.Equal(t, "cafe", a.Kind)
	assert.Nil(t, a.Name)

	a, ok = walkgraph.NewAmenity(osm.Tags{{Key: "shop", Value: "books"}}, osm.WayID(9).FeatureID(), p, 0)
	require.True(t, ok)
	assert.Equal(t, "books", a.Kind)
	assert.Equal(t, "way/9", a.SourceRef())

	_, ok = walkgraph.NewAmenity(osm.Tags{{Key: "highway", Value: "footway"}, {Key: "name", Value: "x"}}, ref, p, 0)
	assert.False(t, ok)
	_, ok = walkgraph.NewAmenity(nil, ref, p, 0)
	assert.False(t, ok)
}

func TestIsWalkable(t *testing.T) {
	cases := []struct {
		tags osm.Tags
		want bool
	}{
		{osm.Tags{{Key: "highway", Value: "footway"}}, true},
		{osm.Tags{{Key: "highway", Value: "primary"}, {Key: "foot", Value: "yes"}}, true},
		{osm.Tags{{Key: "highway", Value: "proposed"}}, false},
		{osm.Tags{{Key: "highway", Value: "pedestrian"}, {Key: "area", Value: "yes"}}, false},
		{osm.Tags{{Key: "highway", Value: "motorway"}, {Key: "foot", Value: "no"}}, false},
		{osm.Tags{{Key: "railway", Value: "rail"}}, false},
		{nil, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, walkgraph.IsWalkable(c.tags), "%v", c.tags)
	}
}
