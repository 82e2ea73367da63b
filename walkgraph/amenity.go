package walkgraph

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// NewAmenity returns an Amenity if the tags describe a commercial or service
// feature. The category comes from the amenity tag, falling back to shop.
func NewAmenity(tags osm.Tags, source osm.FeatureID, point orb.Point, id AmenityID) (*Amenity, bool) {
	kind, ok := amenityKind(tags)
	if !ok {
		return nil, false
	}
	a := &Amenity{
		ID:     id,
		Source: source,
		Point:  point,
		Kind:   kind,
	}
	if tags.HasTag("name") {
		name := tags.Find("name")
		a.Name = &name
	}
	return a, true
}

func amenityKind(tags osm.Tags) (string, bool) {
	if tags.HasTag("amenity") {
		return tags.Find("amenity"), true
	}
	if tags.HasTag("shop") {
		return tags.Find("shop"), true
	}
	return "", false
}
