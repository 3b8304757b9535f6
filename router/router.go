// Package router 路径搜索与逐向导航步骤生成
package router

import (
	"fmt"
	"math"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/navierr"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/fleetmaint/navigation/router/algo"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "router")

type Router struct {
	// searchGraph Topo
	// 1. 拓扑中的点为道路图的节点，下标按节点id升序分配
	// 2. 每个路段对应start->end的边，非单行路段另有end->start的边
	// 3. 边权由代价策略在搜索时给出，封闭路段与被过滤的高速公路不可通行
	graph       *roadnet.Graph
	traffic     TrafficReader
	searchGraph *algo.SearchGraph[string, EdgeAttr]
	nodeIndex   map[string]int
}

// 构建路由器，tr为nil时按自由流计算通行时间
func New(graph *roadnet.Graph, tr TrafficReader) *Router {
	if tr == nil {
		tr = freeFlow{graph: graph}
	}
	r := &Router{
		graph:     graph,
		traffic:   tr,
		nodeIndex: make(map[string]int, graph.NodeCount()),
	}
	r.buildSearchGraph()
	return r
}

func (r *Router) buildSearchGraph() {
	g := algo.NewSearchGraph[string, EdgeAttr]()
	for _, id := range r.graph.NodeIDs() {
		n, _ := r.graph.Node(id)
		r.nodeIndex[id] = g.InitNode(n.Position, id)
	}
	for _, id := range r.graph.SegmentIDs() {
		s, _ := r.graph.Segment(id)
		g.InitEdge(r.nodeIndex[s.StartNodeID], r.nodeIndex[s.EndNodeID], EdgeAttr{Segment: s, From: s.StartNodeID})
		if !s.OneWay && s.StartNodeID != s.EndNodeID {
			g.InitEdge(r.nodeIndex[s.EndNodeID], r.nodeIndex[s.StartNodeID], EdgeAttr{Segment: s, From: s.EndNodeID})
		}
	}
	r.searchGraph = g
	log.Infof("search graph built: %d nodes", g.NodeCount())
}

func (r *Router) Graph() *roadnet.Graph {
	return r.graph
}

// 搜索origin到destination的路线
// found为false且err为nil表示两点间无可行路线
func (r *Router) FindRoute(
	origin, destination geo.GeoPoint, policy CostPolicy, opts Options,
) (route *Route, found bool, err error) {
	// panic recover
	defer func() {
		if e := recover(); e != nil {
			route, found = nil, false
			err = fmt.Errorf("panic: FindRoute %v with input origin=%v, destination=%v, policy=%v", e, origin, destination, policy)
			log.Errorln(err)
		}
	}()

	if !origin.Valid() {
		return nil, false, navierr.New(navierr.CodeInvalidCoordinate, "origin %v", origin)
	}
	if !destination.Valid() {
		return nil, false, navierr.New(navierr.CodeInvalidCoordinate, "destination %v", destination)
	}
	if policy == "" {
		policy = PolicyDistance
	}

	// 起终点吸附到最近节点
	startNode, ok := r.graph.NearestNode(origin)
	if !ok {
		return nil, false, nil
	}
	endNode, ok := r.graph.NearestNode(destination)
	if !ok {
		return nil, false, nil
	}

	path, cost := r.searchGraph.ShortestPath(
		r.nodeIndex[startNode.ID], r.nodeIndex[endNode.ID],
		heuristicsFor(policy, r.graph.MaxSpeed()),
		edgeWeight{policy: policy, opts: opts, traffic: r.traffic},
	)
	if math.IsInf(cost, 1) {
		log.Debugf("routing failed, no path between %v and %v", startNode.ID, endNode.ID)
		return nil, false, nil
	}

	nodeIDs := lo.Map(path, func(item algo.PathItem[string, EdgeAttr], _ int) string { return item.NodeAttr })
	edges := lo.Map(path[:len(path)-1], func(item algo.PathItem[string, EdgeAttr], _ int) EdgeAttr { return item.EdgeAttr })
	// 步骤按搜索实际经过的路段生成，节点间的平行路段不会混淆
	steps := buildSteps(startNode.Position, edges, r.travelTime, PhrasesFor(opts.Lang))

	route = &Route{
		ID:             uuid.NewString(),
		Origin:         origin,
		Destination:    destination,
		Policy:         policy,
		Steps:          steps,
		NodeIDs:        nodeIDs,
		RoadSegmentIDs: lo.Map(edges, func(e EdgeAttr, _ int) string { return e.Segment.ID }),
	}
	// 总距离与总时间按实际路段重新累加，与搜索代价无关
	for _, e := range edges {
		route.TotalDistance += e.Segment.Distance()
		route.TotalDuration += r.travelTime(e.Segment.ID)
	}
	route.PathPoints = joinPaths(edges)
	if len(route.PathPoints) == 0 {
		route.PathPoints = []geo.GeoPoint{startNode.Position}
	}
	return route, true, nil
}

func (r *Router) travelTime(segmentID string) float64 {
	t, _ := r.traffic.SegmentTravelTime(segmentID)
	return t
}

// 按行进方向拼接路段折线，去除衔接处的重复点
func joinPaths(edges []EdgeAttr) []geo.GeoPoint {
	points := make([]geo.GeoPoint, 0)
	for _, e := range edges {
		line := e.Segment.OrientedPath(e.From)
		if len(points) > 0 && points[len(points)-1] == line[0] {
			line = line[1:]
		}
		points = append(points, line...)
	}
	return points
}
