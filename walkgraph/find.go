package walkgraph

import (
	"context"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Reachable returns the walking time from the person's home to every amenity
// reachable within the person's budget.
// A home that cannot be matched to any intersection reaches nothing.
func (g *Graph) Reachable(p Person) map[AmenityID]time.Duration {
	result := make(map[AmenityID]time.Duration)
	start, ok := g.nearestIntersection(orb.Point(p.Home))
	if !ok {
		return result
	}
	// 以浮点秒计算，避免超大预算转换为Duration时溢出
	budget := p.BudgetSeconds()
	g.search.Reachable(int(start), budget, func(_ int, cost float64, rid RoadID) {
		if cost > budget {
			return
		}
		for _, a := range g.roads[rid].Amenities {
			// 点按代价非降序弹出，首次发现即为最小代价
			if _, ok := result[a]; ok {
				continue
			}
			result[a] = time.Duration(cost * float64(time.Second))
		}
	})
	return result
}

// FindPOIs returns the amenities reachable by every person, sorted by amenity
// id, with each person's walking time in input order.
func (g *Graph) FindPOIs(ctx context.Context, people []Person) ([]POI, error) {
	pois := make([]POI, 0)
	if len(people) == 0 || len(g.intersections) == 0 {
		return pois, nil
	}
	results := make([]map[AmenityID]time.Duration, len(people))
	eg, ctx := errgroup.WithContext(ctx)
	for i, p := range people {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = g.Reachable(p)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// 所有人结果的交集
	common := lo.Keys(results[0])
	for _, r := range results[1:] {
		common = lo.Filter(common, func(a AmenityID, _ int) bool {
			_, ok := r[a]
			return ok
		})
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })

	for _, id := range common {
		a, err := g.Amenity(id)
		if err != nil {
			return nil, err
		}
		pois = append(pois, POI{
			SourceRef: a.SourceRef(),
			Point:     [2]float64(g.mercator.ToWGS84(a.Point)),
			Category:  a.Kind,
			Name:      a.Name,
			TimesPerPerson: lo.Map(people, func(p Person, i int) PersonTime {
				return PersonTime{Name: p.Name, Seconds: uint64(results[i][id].Seconds())}
			}),
		})
	}
	return pois, nil
}
