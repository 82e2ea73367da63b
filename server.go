package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"connectrpc.com/connect"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/puzpuzpuz/xsync/v3"

	"git.fiblab.net/sim/walkshed/walkgraph"
)

var errNotReady = errors.New("walk graph not loaded")

type WalkshedServer struct {
	source *MapSource
	opts   []walkgraph.Option

	// 当前路网，重建时整体替换
	mu       *xsync.RBMutex
	graph    *walkgraph.Graph
	reloadMu sync.Mutex

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewWalkshedServer(ctx context.Context, source *MapSource, opts ...walkgraph.Option) (*WalkshedServer, error) {
	s := &WalkshedServer{
		source: source,
		opts:   opts,
		mu:     xsync.NewRBMutex(),
		ok:     true,
		cond:   sync.NewCond(&sync.Mutex{}),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload 重新读取地图并构建新的路网，构建成功后替换当前路网
// 构建失败时保留原路网
func (s *WalkshedServer) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	data, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load map from %s: %w", s.source.Path(), err)
	}
	g, err := walkgraph.New(ctx, data, s.opts...)
	if err != nil {
		return fmt.Errorf("failed to build walk graph from %s: %w", s.source.Path(), err)
	}
	s.mu.Lock()
	s.graph = g
	s.mu.Unlock()
	stats := g.Stats()
	log.Infof("Walk graph ready: %d roads, %d intersections, %d amenities (%d snapped)",
		stats.Roads, stats.Intersections, stats.Amenities, stats.Snapped)
	return nil
}

// Graph 当前路网的快照，可能为nil（已关闭）
func (s *WalkshedServer) Graph() *walkgraph.Graph {
	t := s.mu.RLock()
	defer s.mu.RUnlock(t)
	return s.graph
}

func (s *WalkshedServer) Ready() bool {
	s.cond.L.Lock()
	ok := s.ok
	s.cond.L.Unlock()
	return ok && s.Graph() != nil
}

// 暂停-恢复机制
func (s *WalkshedServer) wait() *walkgraph.Graph {
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()
	return s.Graph()
}

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %v", walkgraph.ErrInvalidRequest, err)
}

func (s *WalkshedServer) findPOIs(ctx context.Context, in *FindPOIsRequest) (*FindPOIsResponse, error) {
	g := s.wait()
	if g == nil {
		return nil, errNotReady
	}
	if err := in.Validate(); err != nil {
		return nil, invalidRequest(err)
	}
	log.Debugf("Find POIs for %d people", len(in.People))
	pois, err := g.FindPOIs(ctx, in.People)
	if err != nil {
		return nil, err
	}
	return &FindPOIsResponse{POIs: pois}, nil
}

func (s *WalkshedServer) routesTo(ctx context.Context, in *RoutesToRequest) (*geojson.FeatureCollection, error) {
	g := s.wait()
	if g == nil {
		return nil, errNotReady
	}
	if err := in.Validate(); err != nil {
		return nil, invalidRequest(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debugf("Search routes from %d people to %v", len(in.People), in.Point)
	segments, err := g.RoutesTo(in.People, orb.Point(in.Point))
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	for _, seg := range segments {
		f := geojson.NewFeature(seg.Line)
		f.Properties["person"] = seg.Person
		fc.Append(f)
	}
	return fc, nil
}

func (s *WalkshedServer) getBounds() (*GetBoundsResponse, error) {
	g := s.wait()
	if g == nil {
		return nil, errNotReady
	}
	return &GetBoundsResponse{Bounds: g.Bounds()}, nil
}

func (s *WalkshedServer) FindPOIs(
	ctx context.Context,
	req *connect.Request[FindPOIsRequest],
) (*connect.Response[FindPOIsResponse], error) {
	out, err := s.findPOIs(ctx, req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(out), nil
}

func (s *WalkshedServer) RoutesTo(
	ctx context.Context,
	req *connect.Request[RoutesToRequest],
) (*connect.Response[geojson.FeatureCollection], error) {
	out, err := s.routesTo(ctx, req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(out), nil
}

func (s *WalkshedServer) GetBounds(
	ctx context.Context,
	req *connect.Request[GetBoundsRequest],
) (*connect.Response[GetBoundsResponse], error) {
	out, err := s.getBounds()
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(out), nil
}

// toConnectError 将路网错误映射为connect错误码
func toConnectError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, walkgraph.ErrInvalidRequest):
		code = connect.CodeInvalidArgument
	case errors.Is(err, walkgraph.ErrIdenticalEndpoints):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, walkgraph.ErrNoPath):
		code = connect.CodeNotFound
	case errors.Is(err, errNotReady):
		code = connect.CodeUnavailable
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	default:
		log.Errorf("internal error: %v", err)
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}

// 暂停服务
func (s *WalkshedServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复服务
func (s *WalkshedServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

// 关闭服务，释放路网
func (s *WalkshedServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = nil
}
