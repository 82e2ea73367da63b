package main

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"git.fiblab.net/sim/walkshed/walkgraph"
)

type benchmarkResult struct {
	count    int
	timeCost time.Duration
	success  int32
	mismatch int32
}

// 在路网范围内随机生成人的位置
func randomPeople(e *rand.Rand, bounds [4]float64, n int, maxTimeMinutes float64) []walkgraph.Person {
	people := make([]walkgraph.Person, n)
	for i := range people {
		people[i] = walkgraph.Person{
			Name: string(rune('a' + i%26)),
			Home: [2]float64{
				bounds[0] + e.Float64()*(bounds[2]-bounds[0]),
				bounds[1] + e.Float64()*(bounds[3]-bounds[1]),
			},
			MaxTimeMinutes: e.Float64() * maxTimeMinutes,
		}
	}
	return people
}

func runBenchmark(ctx context.Context, server *WalkshedServer, cfg BenchmarkConfig) benchmarkResult {
	log.Logger.SetLevel(logrus.WarnLevel)
	// 设置随机种子
	e := rand.New(rand.NewSource(cfg.Seed))
	bounds := server.Graph().Bounds()
	// 随机生成cfg.Count组请求，FindPOIs与RoutesTo交替
	findReqs := make([]*connect.Request[FindPOIsRequest], cfg.Count)
	routeReqs := make([]*connect.Request[RoutesToRequest], cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		findReqs[i] = connect.NewRequest(&FindPOIsRequest{
			People: randomPeople(e, bounds, cfg.People, cfg.MaxTimeMinutes),
		})
		target := randomPeople(e, bounds, 1, 0)[0].Home
		routeReqs[i] = connect.NewRequest(&RoutesToRequest{
			People: randomPeople(e, bounds, cfg.People, cfg.MaxTimeMinutes),
			Point:  target,
		})
	}

	var success, mismatch atomic.Int32
	one := func(i int) {
		if _, err := server.FindPOIs(ctx, findReqs[i]); err != nil {
			log.Error("benchmark failed, err:", err)
			return
		}
		if _, err := server.RoutesTo(ctx, routeReqs[i]); err != nil {
			// 随机点落在不连通分量或同一路口属于正常情况
			var ce *connect.Error
			if !errors.As(err, &ce) || ce.Code() == connect.CodeInternal {
				log.Error("benchmark failed, err:", err)
			}
			return
		}
		success.Add(1)
		if cfg.Verify && !verifyRoutes(server, routeReqs[i].Msg) {
			mismatch.Add(1)
		}
	}

	// 开始benchmark
	start := time.Now()
	if cfg.CPU == 1 {
		for i := range findReqs {
			one(i)
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(cfg.CPU)
		var wg sync.WaitGroup
		wg.Add(cfg.Count)
		for i := range findReqs {
			go func(i int) {
				defer wg.Done()
				one(i)
			}(i)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(cfg.CPU)
	log.Error(
		"benchmark finished", "\n",
		"count:", cfg.Count, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(cfg.Count), "\n",
		"success:", success.Load(), "\n",
		"mismatch:", mismatch.Load(), "\n",
	)
	return benchmarkResult{count: cfg.Count, timeCost: timeCost, success: success.Load(), mismatch: mismatch.Load()}
}

// verifyRoutes 收缩层次的路径代价应与A*一致
func verifyRoutes(server *WalkshedServer, req *RoutesToRequest) bool {
	g := server.Graph()
	for _, p := range req.People {
		_, cost, err := g.RouteCost(orb.Point(p.Home), orb.Point(req.Point))
		if err != nil {
			return false
		}
		reference, err := g.ReferenceRouteCost(orb.Point(p.Home), orb.Point(req.Point))
		if err != nil {
			return false
		}
		if math.Abs(cost.Seconds()-reference.Seconds()) > 1e-3 {
			log.Warnf("route cost mismatch for %v -> %v: %v vs %v", p.Home, req.Point, cost, reference)
			return false
		}
	}
	return true
}
