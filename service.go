package main

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/paulmach/orb/geojson"
)

const WalkshedServiceName = "walkshed.v1.WalkshedService"

const (
	WalkshedServiceFindPOIsProcedure  = "/walkshed.v1.WalkshedService/FindPOIs"
	WalkshedServiceRoutesToProcedure  = "/walkshed.v1.WalkshedService/RoutesTo"
	WalkshedServiceGetBoundsProcedure = "/walkshed.v1.WalkshedService/GetBounds"
)

type WalkshedServiceHandler interface {
	FindPOIs(context.Context, *connect.Request[FindPOIsRequest]) (*connect.Response[FindPOIsResponse], error)
	RoutesTo(context.Context, *connect.Request[RoutesToRequest]) (*connect.Response[geojson.FeatureCollection], error)
	GetBounds(context.Context, *connect.Request[GetBoundsRequest]) (*connect.Response[GetBoundsResponse], error)
}

// NewWalkshedServiceHandler builds an HTTP handler serving the service
// procedures with the JSON codec. It returns the path to mount it on.
func NewWalkshedServiceHandler(svc WalkshedServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	findPOIs := connect.NewUnaryHandler(WalkshedServiceFindPOIsProcedure, svc.FindPOIs, opts...)
	routesTo := connect.NewUnaryHandler(WalkshedServiceRoutesToProcedure, svc.RoutesTo, opts...)
	getBounds := connect.NewUnaryHandler(WalkshedServiceGetBoundsProcedure, svc.GetBounds, opts...)
	return "/" + WalkshedServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case WalkshedServiceFindPOIsProcedure:
			findPOIs.ServeHTTP(w, r)
		case WalkshedServiceRoutesToProcedure:
			routesTo.ServeHTTP(w, r)
		case WalkshedServiceGetBoundsProcedure:
			getBounds.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
