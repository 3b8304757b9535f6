package router

import (
	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/fleetmaint/navigation/traffic"
)

// 主干道折扣系数，未列出的道路等级为1
var mainRoadDiscount = map[roadnet.RoadType]float64{
	roadnet.RoadTypeHighway:   0.7,
	roadnet.RoadTypePrimary:   0.8,
	roadnet.RoadTypeSecondary: 0.9,
}

// 最小折扣，启发函数需乘以该值以保持可采纳
const minDiscount = 0.7

func discountOf(t roadnet.RoadType) float64 {
	if d, ok := mainRoadDiscount[t]; ok {
		return d
	}
	return 1
}

// 路由读取路况的接口，traffic.Model实现了该接口
type TrafficReader interface {
	LevelOf(segmentID string) traffic.Level
	SegmentTravelTime(segmentID string) (float64, bool)
}

// 无路况输入时按限速自由流计算
type freeFlow struct {
	graph *roadnet.Graph
}

func (f freeFlow) LevelOf(string) traffic.Level {
	return traffic.FreeFlow
}

func (f freeFlow) SegmentTravelTime(segmentID string) (float64, bool) {
	s, ok := f.graph.Segment(segmentID)
	if !ok {
		return 0, false
	}
	return s.Distance() / (s.Speed() / 3.6), true
}

type edgeWeight struct {
	policy  CostPolicy
	opts    Options
	traffic TrafficReader
}

func (w edgeWeight) GetRuntimeEdgeWeight(e EdgeAttr) (float64, bool) {
	s := e.Segment
	if w.opts.AvoidHighways && s.RoadType == roadnet.RoadTypeHighway {
		return 0, false
	}
	if w.traffic.LevelOf(s.ID) == traffic.Closed {
		return 0, false
	}
	switch w.policy {
	case PolicyFastest:
		return w.traffic.SegmentTravelTime(s.ID)
	case PolicyPreferMainRoads:
		return s.Distance() * discountOf(s.RoadType), true
	default:
		return s.Distance(), true
	}
}

// 直线距离启发，scale为每米的最小代价
type DistanceHeuristics struct {
	scale float64
}

func (h DistanceHeuristics) HeuristicEuclidean(p1 geo.GeoPoint, p2 geo.GeoPoint) float64 {
	return geo.Distance(p1, p2) * h.scale
}

// 各策略对应的启发函数
// fastest按路网最高限速换算为时间下界
func heuristicsFor(policy CostPolicy, maxSpeed float64) DistanceHeuristics {
	switch policy {
	case PolicyFastest:
		if maxSpeed <= 0 {
			maxSpeed = roadnet.DefaultSpeedLimit
		}
		return DistanceHeuristics{scale: 1 / (maxSpeed / 3.6)}
	case PolicyPreferMainRoads:
		return DistanceHeuristics{scale: minDiscount}
	default:
		return DistanceHeuristics{scale: 1}
	}
}
