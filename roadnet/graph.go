// Package roadnet 道路图：加载后不可变的节点与路段集合
package roadnet

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fleetmaint/navigation/geo"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "roadnet")

var (
	ErrEmptyGraph      = errors.New("road graph has no nodes")
	ErrDuplicateID     = errors.New("duplicated id in road graph")
	ErrUnknownNode     = errors.New("segment refers to unknown node")
	ErrDegenerateShape = errors.New("segment path has less than 2 points")
)

type Graph struct {
	nodes    map[string]*Node
	segments map[string]*RoadSegment
	// 按id升序，保证遍历顺序稳定
	nodeIDs    []string
	segmentIDs []string
	// 图中最高限速（km/h），用于时间启发函数
	maxSpeed float64
}

// 构建道路图并填充节点连接关系与路段长度
// 路段缺少Path时使用两端节点坐标补全
func New(nodes []*Node, segments []*RoadSegment) (*Graph, error) {
	// 空记录直接丢弃
	nodes = lo.Filter(nodes, func(n *Node, _ int) bool { return n != nil })
	segments = lo.Filter(segments, func(s *RoadSegment, _ int) bool { return s != nil })
	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	g := &Graph{
		nodes:    make(map[string]*Node, len(nodes)),
		segments: make(map[string]*RoadSegment, len(segments)),
		maxSpeed: DefaultSpeedLimit,
	}
	for _, n := range nodes {
		if _, ok := g.nodes[n.ID]; ok {
			return nil, fmt.Errorf("%w: node %s", ErrDuplicateID, n.ID)
		}
		n.Connections = nil
		g.nodes[n.ID] = n
	}
	for _, s := range segments {
		if _, ok := g.segments[s.ID]; ok {
			return nil, fmt.Errorf("%w: segment %s", ErrDuplicateID, s.ID)
		}
		start, ok := g.nodes[s.StartNodeID]
		if !ok {
			return nil, fmt.Errorf("%w: segment %s start %s", ErrUnknownNode, s.ID, s.StartNodeID)
		}
		end, ok := g.nodes[s.EndNodeID]
		if !ok {
			return nil, fmt.Errorf("%w: segment %s end %s", ErrUnknownNode, s.ID, s.EndNodeID)
		}
		switch len(s.Path) {
		case 0:
			s.Path = []geo.GeoPoint{start.Position, end.Position}
		case 1:
			return nil, fmt.Errorf("%w: segment %s", ErrDegenerateShape, s.ID)
		}
		if s.RoadType == "" {
			s.RoadType = RoadTypeOther
		}
		s.distance = geo.PolylineLength(s.Path)
		g.segments[s.ID] = s
		start.Connections = append(start.Connections, s.ID)
		if end != start {
			end.Connections = append(end.Connections, s.ID)
		}
		g.maxSpeed = math.Max(g.maxSpeed, s.Speed())
	}
	g.nodeIDs = lo.Keys(g.nodes)
	sort.Strings(g.nodeIDs)
	g.segmentIDs = lo.Keys(g.segments)
	sort.Strings(g.segmentIDs)
	for _, n := range g.nodes {
		sort.Strings(n.Connections)
	}
	log.Debugf("road graph built: %d nodes, %d segments", len(g.nodes), len(g.segments))
	return g, nil
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) Segment(id string) (*RoadSegment, bool) {
	s, ok := g.segments[id]
	return s, ok
}

// 按id升序的全部节点id
func (g *Graph) NodeIDs() []string {
	return g.nodeIDs
}

// 按id升序的全部路段id
func (g *Graph) SegmentIDs() []string {
	return g.segmentIDs
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (g *Graph) SegmentCount() int {
	return len(g.segments)
}

// 图中最高限速（km/h）
func (g *Graph) MaxSpeed() float64 {
	return g.maxSpeed
}

// 距离给定点最近的节点
// 线性扫描全部节点，适用于数千节点规模；更大的图应替换为空间索引
func (g *Graph) NearestNode(p geo.GeoPoint) (*Node, bool) {
	var best *Node
	bestD := math.Inf(1)
	for _, id := range g.nodeIDs {
		n := g.nodes[id]
		if d := geo.Distance(p, n.Position); d < bestD {
			best, bestD = n, d
		}
	}
	return best, best != nil
}

// 连接a、b两点的路段，不区分方向
func (g *Graph) SegmentBetween(a, b string) (*RoadSegment, bool) {
	n, ok := g.nodes[a]
	if !ok {
		return nil, false
	}
	for _, sid := range n.Connections {
		s := g.segments[sid]
		if (s.StartNodeID == a && s.EndNodeID == b) || (s.StartNodeID == b && s.EndNodeID == a) {
			return s, true
		}
	}
	return nil, false
}

// 节点的全部邻接关系（不考虑单行限制）
func (g *Graph) Neighbors(nodeID string) []Neighbor {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	return lo.Map(n.Connections, func(sid string, _ int) Neighbor {
		return Neighbor{NodeID: g.segments[sid].Other(nodeID), SegmentID: sid}
	})
}

// 与指定路段共享端点的其他路段
func (g *Graph) AdjacentSegments(segmentID string) []string {
	s, ok := g.segments[segmentID]
	if !ok {
		return nil
	}
	ids := append(append([]string{}, g.nodes[s.StartNodeID].Connections...), g.nodes[s.EndNodeID].Connections...)
	return lo.Filter(lo.Uniq(ids), func(id string, _ int) bool { return id != segmentID })
}

// 距离给定点最近的路段及其距离（单位：米）
func (g *Graph) NearestSegment(p geo.GeoPoint) (*RoadSegment, float64) {
	var best *RoadSegment
	bestD := math.Inf(1)
	for _, id := range g.segmentIDs {
		s := g.segments[id]
		if d := geo.DistanceToPolyline(p, s.Path); d < bestD {
			best, bestD = s, d
		}
	}
	return best, bestD
}

// 节点的外包框
func (g *Graph) Bounds() (min, max geo.GeoPoint) {
	min = geo.GeoPoint{Lat: math.Inf(1), Lng: math.Inf(1)}
	max = geo.GeoPoint{Lat: math.Inf(-1), Lng: math.Inf(-1)}
	for _, n := range g.nodes {
		min.Lat = math.Min(min.Lat, n.Position.Lat)
		min.Lng = math.Min(min.Lng, n.Position.Lng)
		max.Lat = math.Max(max.Lat, n.Position.Lat)
		max.Lng = math.Max(max.Lng, n.Position.Lng)
	}
	return
}
