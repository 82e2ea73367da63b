package main

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"git.fiblab.net/sim/walkshed/walkgraph"
)

type FindPOIsRequest struct {
	People []walkgraph.Person `json:"people"`
}

func (r *FindPOIsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.People),
	)
}

type FindPOIsResponse struct {
	POIs []walkgraph.POI `json:"pois"`
}

type RoutesToRequest struct {
	People []walkgraph.Person `json:"people"`
	Point  [2]float64         `json:"point"` // [lon, lat]
}

func (r *RoutesToRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.People),
		validation.Field(&r.Point, validation.By(walkgraph.ValidLonLat)),
	)
}

type GetBoundsRequest struct{}

type GetBoundsResponse struct {
	Bounds [4]float64 `json:"bounds"` // [minLon, minLat, maxLon, maxLat]
}
