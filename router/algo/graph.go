package algo

import (
	"container/heap"
	"log"
	"math"
	"sort"

	"github.com/fleetmaint/navigation/geo"
	"github.com/samber/lo"
)

type node[T any] struct {
	p    geo.GeoPoint
	attr T
}

type edge[T any] struct {
	to   int
	attr T
}

// 搜索图，构建完成后拓扑不变；边权在搜索时由IEdgeWeight实时给出
type SearchGraph[NT any, ET any] struct {
	// 邻接表，按终点下标升序
	edges [][]edge[ET]
	nodes []node[NT]
}

// A Star启发函数，必须不高于真实代价
type IHeuristics interface {
	HeuristicEuclidean(geo.GeoPoint, geo.GeoPoint) float64
}

// 运行时边权，ok为false表示该边当前不可通行
type IEdgeWeight[ET any] interface {
	GetRuntimeEdgeWeight(ET) (weight float64, ok bool)
}

func NewSearchGraph[NT any, ET any]() *SearchGraph[NT, ET] {
	return &SearchGraph[NT, ET]{
		edges: make([][]edge[ET], 0),
		nodes: make([]node[NT], 0),
	}
}

func (g *SearchGraph[NT, ET]) InitNode(p geo.GeoPoint, attr NT) int {
	g.nodes = append(g.nodes, node[NT]{p: p, attr: attr})
	g.edges = append(g.edges, make([]edge[ET], 0))
	return len(g.nodes) - 1
}

func (g *SearchGraph[NT, ET]) InitEdge(from, to int, attr ET) {
	if from >= len(g.edges) || to >= len(g.edges) {
		log.Panicf("edge (%d,%d) out of range, %d nodes", from, to, len(g.edges))
	}
	out := append(g.edges[from], edge[ET]{to: to, attr: attr})
	sort.SliceStable(out, func(i, j int) bool { return out[i].to < out[j].to })
	g.edges[from] = out
}

func (g *SearchGraph[NT, ET]) NodeCount() int {
	return len(g.nodes)
}

func (g *SearchGraph[NT, ET]) NodeAttr(i int) NT {
	return g.nodes[i].attr
}

type PathItem[NT any, ET any] struct {
	NodeAttr NT
	// 从该点出发到下一点的边，终点处为零值
	EdgeAttr ET
}

func (g *SearchGraph[NT, ET]) reconstructPath(cameFrom map[int]int, via map[int]ET, curNode int) []PathItem[NT, ET] {
	pathBeforeReversed := []PathItem[NT, ET]{{NodeAttr: g.nodes[curNode].attr}}
	for {
		from, ok := cameFrom[curNode]
		if !ok {
			break
		}
		pathBeforeReversed = append(pathBeforeReversed, PathItem[NT, ET]{
			NodeAttr: g.nodes[from].attr,
			EdgeAttr: via[curNode],
		})
		curNode = from
	}
	return lo.Reverse(pathBeforeReversed)
}

func (g *SearchGraph[NT, ET]) ShortestPath(start, end int, h IHeuristics, w IEdgeWeight[ET]) ([]PathItem[NT, ET], float64) {
	return g.ShortestPathAStar(start, end, h, w)
}

// A Star算法求最短路，无通路时返回(nil, +Inf)
// f值相同时下标较小的点先出堆
func (g *SearchGraph[NT, ET]) ShortestPathAStar(start, end int, h IHeuristics, w IEdgeWeight[ET]) ([]PathItem[NT, ET], float64) {
	if start == end {
		return []PathItem[NT, ET]{{NodeAttr: g.nodes[start].attr}}, 0
	}
	endP := g.nodes[end].p
	openSet := make(PriorityQueue, 0, 1)
	openSetMap := make(map[int]*Item, 1) // openSet value -> openSet item
	cameFrom := make(map[int]int, 0)
	via := make(map[int]ET, 0) // 到达该点所经过的边
	gScore := make(map[int]float64, 0)
	gScore[start] = .0
	item := &Item{Value: start, Priority: h.HeuristicEuclidean(g.nodes[start].p, endP)}
	heap.Push(&openSet, item)
	openSetMap[start] = item
	for openSet.Len() > 0 {
		cur := heap.Pop(&openSet).(*Item).Value
		if cur == end {
			return g.reconstructPath(cameFrom, via, cur), gScore[cur]
		}
		for _, e := range g.edges[cur] {
			weight, ok := w.GetRuntimeEdgeWeight(e.attr)
			if !ok {
				continue
			}
			gScoreTentative := gScore[cur] + weight
			gScoreNeighbor, visited := gScore[e.to]
			if !visited {
				gScoreNeighbor = math.Inf(0)
			}
			if gScoreTentative < gScoreNeighbor {
				cameFrom[e.to] = cur
				via[e.to] = e.attr
				gScore[e.to] = gScoreTentative
				fScore := gScoreTentative + h.HeuristicEuclidean(g.nodes[e.to].p, endP)
				if item, ok := openSetMap[e.to]; ok && item.Index >= 0 {
					// 仍在堆中的节点，修改其优先级
					item.Priority = fScore
					heap.Fix(&openSet, item.Index)
				} else {
					// 新访问或已出堆的节点重新入堆
					item := &Item{Value: e.to, Priority: fScore}
					heap.Push(&openSet, item)
					openSetMap[e.to] = item
				}
			}
		}
	}
	return nil, math.Inf(0)
}
