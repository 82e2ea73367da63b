package walkgraph

import (
	"errors"
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

type (
	IntersectionID int
	RoadID         int
	AmenityID      int
)

// Intersection is a junction or way endpoint of the walkable network.
type Intersection struct {
	ID    IntersectionID
	Point orb.Point // 平面坐标
	Roads []RoadID
}

// Road is an undirected walkable segment between two intersections.
type Road struct {
	ID        RoadID
	Src, Dst  IntersectionID
	Line      orb.LineString // 平面坐标，由Src指向Dst
	Length    float64        // 平面长度，单位米
	Amenities []AmenityID
}

// OtherSide returns the endpoint of r opposite to i.
// A self-loop returns i itself.
func (r *Road) OtherSide(i IntersectionID) IntersectionID {
	if r.Src == i {
		return r.Dst
	}
	return r.Src
}

// Amenity is a point-like commercial or service feature.
type Amenity struct {
	ID     AmenityID
	Source osm.FeatureID
	Point  orb.Point // 平面坐标
	Kind   string
	Name   *string
}

// SourceRef is the provenance of the amenity in the form "node/123" or "way/45".
func (a *Amenity) SourceRef() string {
	return fmt.Sprintf("%s/%d", a.Source.Type(), a.Source.Ref())
}

type Person struct {
	Name           string     `json:"name"`
	Home           [2]float64 `json:"home"` // [lon, lat]
	MaxTimeMinutes float64    `json:"maxTimeMinutes"`
}

func (p Person) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Home, validation.By(ValidLonLat)),
		validation.Field(&p.MaxTimeMinutes, validation.Min(0.0), validation.By(finite)),
	)
}

func finite(value any) error {
	if v, ok := value.(float64); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return errors.New("must be a finite number")
	}
	return nil
}

// BudgetSeconds returns the walking time budget of the person in seconds.
func (p Person) BudgetSeconds() float64 {
	return p.MaxTimeMinutes * 60
}

// Budget returns the walking time budget of the person, saturating at the
// largest representable duration.
func (p Person) Budget() time.Duration {
	ns := p.MaxTimeMinutes * float64(time.Minute)
	if ns >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}

// ValidLonLat is an ozzo-validation rule for [lon, lat] pairs.
func ValidLonLat(value any) error {
	var ll [2]float64
	switch v := value.(type) {
	case [2]float64:
		ll = v
	case *[2]float64:
		ll = *v
	default:
		return errors.New("must be a [lon, lat] pair")
	}
	if math.IsNaN(ll[0]) || math.IsNaN(ll[1]) {
		return errors.New("coordinates must be numbers")
	}
	if ll[0] < -180 || ll[0] > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", ll[0])
	}
	if ll[1] < -90 || ll[1] > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", ll[1])
	}
	return nil
}

type PersonTime struct {
	Name    string `json:"name"`
	Seconds uint64 `json:"seconds"`
}

// POI is an amenity reachable by every person of a query.
type POI struct {
	SourceRef      string       `json:"sourceRef"`
	Point          [2]float64   `json:"point"` // [lon, lat]
	Category       string       `json:"category"`
	Name           *string      `json:"name,omitempty"`
	TimesPerPerson []PersonTime `json:"timesPerPerson"`
}

// Segment is one road geometry of a route, in lon/lat.
type Segment struct {
	Person string
	Road   RoadID
	Line   orb.LineString
}

type Stats struct {
	Roads         int `json:"roads"`
	Intersections int `json:"intersections"`
	Amenities     int `json:"amenities"`
	Snapped       int `json:"snapped"`
}
