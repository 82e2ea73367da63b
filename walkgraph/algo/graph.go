package algo

import (
	"container/heap"
	"math"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

type node[T any] struct {
	p    orb.Point
	attr T
}

type edge[T any] struct {
	to   int
	v    float64
	attr T
}

// SearchGraph 非负边权的有向图，无向边需要以两条有向边的形式加入
type SearchGraph[NT any, ET any] struct {
	// 邻接表，in node -> out edges
	// 同一对点之间允许存在多条边（例如两条道路连接相同的两个路口）
	// 建图完成后只读，因此可以被多个查询并发使用
	edges [][]edge[ET]
	// 点的位置
	nodes []node[NT]
	// A Star距离预估函数
	h IHeuristics
}

type IHeuristics interface {
	// 必须是可采纳的（不高估真实代价）
	HeuristicEuclidean(orb.Point, orb.Point) float64
}

func NewSearchGraph[NT any, ET any](h IHeuristics) *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		edges: make([][]edge[ET], 0),
		nodes: make([]node[NT], 0),
		h:     h,
	}
}

func (g *SearchGraph[NT, ET]) InitNode(p orb.Point, attr NT) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr})
	g.edges = append(g.edges, make([]edge[ET], 0))
	return len(g.nodes) - 1
}

func (g *SearchGraph[NT, ET]) InitEdge(from, to int, length float64, attr ET) {
	if from >= len(g.edges) || to >= len(g.edges) {
		log.Panicf("edge (%d->%d) references node out of range %d", from, to, len(g.edges))
	}
	if length < 0 {
		log.Panicf("edge (%d->%d) has negative length %v", from, to, length)
	}
	g.edges[from] = append(g.edges[from], edge[ET]{to: to, v: length, attr: attr})
}

type PathItem[NT any, ET any] struct {
	NodeAttr NT
	EdgeAttr ET
}

// 由终点回溯到起点
// cameFrom[v] = (前驱点, 前驱点出边下标)
func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom []cameFromItem, curNode int) []PathItem[NT, ET] {
	pathBeforeReversed := []PathItem[NT, ET]{{NodeAttr: g.nodes[curNode].attr}}
	for cameFrom[curNode].from != -1 {
		c := cameFrom[curNode]
		curNode = c.from
		pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
			NodeAttr: g.nodes[curNode].attr,
			EdgeAttr: g.edges[c.from][c.edge].attr,
		})
	}
	return lo.Reverse(pathBeforeReversed)
}

type cameFromItem struct {
	from int
	edge int
}

// Reachable 从start出发的有界Dijkstra
// 对每个代价不超过limit的已弹出点，对其每条出边调用visit(邻点, 累计代价, 边属性)
// 代价超过limit的点仍标记为已访问但不再扩展：堆按非降序弹出，之后不可能出现更小的代价
func (g *SearchGraph[NT, ET]) Reachable(start int, limit float64, visit func(to int, cost float64, attr ET)) {
	if start < 0 || start >= len(g.nodes) {
		return
	}
	visited := make([]bool, len(g.nodes))
	openSet := make(PriorityQueue, 1)
	openSet[0] = &Item{Value: start, Priority: 0, Index: 0}
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item)
		// 同一个点可能多次入堆，只处理第一次（最小代价）弹出
		if visited[cur.Value] {
			continue
		}
		visited[cur.Value] = true
		if cur.Priority > limit {
			continue
		}
		for _, e := range g.edges[cur.Value] {
			cost := cur.Priority + e.v
			visit(e.to, cost, e.attr)
			if !visited[e.to] {
				heap.Push(&openSet, &Item{Value: e.to, Priority: cost})
			}
		}
	}
}

// A Star算法求最短路，不可达时返回nil与正无穷
func (g *SearchGraph[NT, ET]) ShortestPath(start, end int) ([]PathItem[NT, ET], float64) {
	if start == end {
		return []PathItem[NT, ET]{{NodeAttr: g.nodes[start].attr}}, 0
	}
	n := len(g.nodes)
	cameFrom := make([]cameFromItem, n)
	gScore := make([]float64, n)
	openSetMap := make([]*Item, n) // node -> openSet item
	closed := make([]bool, n)
	for i := range gScore {
		gScore[i] = math.Inf(0)
		cameFrom[i] = cameFromItem{from: -1}
	}
	gScore[start] = .0
	openSet := make(PriorityQueue, 1)
	openSet[0] = &Item{Value: start, Priority: g.h.HeuristicEuclidean(g.nodes[start].p, g.nodes[end].p), Index: 0}
	openSetMap[start] = openSet[0]
	heap.Init(&openSet)
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		openSetMap[cur] = nil
		if cur == end {
			return g.reconstructPath(cameFrom, cur), gScore[cur]
		}
		closed[cur] = true
		for i, e := range g.edges[cur] {
			neighbor := e.to
			if closed[neighbor] {
				continue
			}
			gScoreTentative := gScore[cur] + e.v
			if gScoreTentative < gScore[neighbor] {
				cameFrom[neighbor] = cameFromItem{from: cur, edge: i}
				gScore[neighbor] = gScoreTentative
				fScore := gScoreTentative + g.h.HeuristicEuclidean(g.nodes[neighbor].p, g.nodes[end].p)
				if item := openSetMap[neighbor]; item != nil {
					// 已在堆中的节点，修改其优先级
					item.Priority = fScore
					heap.Fix(&openSet, item.Index)
				} else {
					// 新访问的节点
					item := &Item{Value: neighbor, Priority: fScore}
					heap.Push(&openSet, item)
					openSetMap[neighbor] = item
				}
			}
		}
	}
	return nil, math.Inf(0)
}
