package router

import (
	"fmt"
	"math"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/navierr"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/samber/lo"
)

// 转向角分级阈值（单位：度）
const (
	STRAIGHT_ANGLE = 10
	SLIGHT_ANGLE   = 45
	TURN_ANGLE     = 135
)

// 将节点序列转换为逐向导航步骤
// travelTime为nil时按限速计算时间，phrases为nil时使用韩语
func BuildSteps(
	nodePath []string, graph *roadnet.Graph, travelTime func(segmentID string) float64, phrases PhraseTable,
) ([]RouteStep, error) {
	if len(nodePath) == 0 {
		return nil, navierr.New(navierr.CodeEmptyRoutePoints, "empty node path")
	}
	if travelTime == nil {
		ff := freeFlow{graph: graph}
		travelTime = func(id string) float64 {
			t, _ := ff.SegmentTravelTime(id)
			return t
		}
	}
	if phrases == nil {
		phrases = Korean
	}
	start, ok := graph.Node(nodePath[0])
	if !ok {
		return nil, fmt.Errorf("node %s not found", nodePath[0])
	}
	edges := make([]EdgeAttr, 0, len(nodePath)-1)
	for i := 0; i+1 < len(nodePath); i++ {
		s, ok := segmentFor(graph, nodePath[i], nodePath[i+1])
		if !ok {
			return nil, fmt.Errorf("no segment between %s and %s", nodePath[i], nodePath[i+1])
		}
		edges = append(edges, EdgeAttr{Segment: s, From: nodePath[i]})
	}
	return buildSteps(start.Position, edges, travelTime, phrases), nil
}

// a到b之间可通行的最短路段，无可通行路段时退化为任意连接路段
func segmentFor(graph *roadnet.Graph, a, b string) (*roadnet.RoadSegment, bool) {
	var best *roadnet.RoadSegment
	for _, nb := range graph.Neighbors(a) {
		if nb.NodeID != b {
			continue
		}
		s, _ := graph.Segment(nb.SegmentID)
		if !s.Traversable(a) {
			continue
		}
		if best == nil || s.Distance() < best.Distance() {
			best = s
		}
	}
	if best != nil {
		return best, true
	}
	return graph.SegmentBetween(a, b)
}

func buildSteps(origin geo.GeoPoint, edges []EdgeAttr, travelTime func(string) float64, phrases PhraseTable) []RouteStep {
	firstName := ""
	if len(edges) > 0 {
		firstName = edges[0].Segment.Metadata.Name
	}
	steps := []RouteStep{{
		Maneuver:       ManeuverStart,
		Instruction:    phrases.Instruction(ManeuverStart, firstName),
		RoadName:       firstName,
		StartPoint:     origin,
		EndPoint:       origin,
		RoadSegmentIDs: []string{},
	}}
	end := origin
	var cur *RouteStep
	var prevLine []geo.GeoPoint
	prevTag := ""
	for _, e := range edges {
		line := e.Segment.OrientedPath(e.From)
		name := e.Segment.Metadata.Name
		tag := e.Segment.Metadata.Maneuver
		m := ManeuverContinue
		if t, ok := taggedManeuvers[tag]; ok {
			// 连续带同一标注的路段视为同一动作
			if tag != prevTag {
				m = t
			}
		} else if prevLine != nil {
			m = classify(prevLine, line)
		}
		// 动作变化或道路名变化时开始新的一步
		if cur == nil || m != ManeuverContinue || name != cur.RoadName {
			if cur != nil {
				steps = append(steps, *cur)
			}
			cur = &RouteStep{
				Maneuver:       m,
				Instruction:    phrases.Instruction(m, name),
				RoadName:       name,
				StartPoint:     line[0],
				RoadSegmentIDs: []string{},
			}
		}
		cur.Distance += e.Segment.Distance()
		cur.Duration += travelTime(e.Segment.ID)
		cur.EndPoint = line[len(line)-1]
		cur.RoadSegmentIDs = append(cur.RoadSegmentIDs, e.Segment.ID)
		end = cur.EndPoint
		prevLine, prevTag = line, tag
	}
	if cur != nil {
		steps = append(steps, *cur)
	}
	return append(steps, RouteStep{
		Maneuver:       ManeuverFinish,
		Instruction:    phrases.Instruction(ManeuverFinish, ""),
		StartPoint:     end,
		EndPoint:       end,
		RoadSegmentIDs: []string{},
	})
}

// 由进入方向与驶出方向判断转向
// 方向取经纬度差值的二维向量，点积求夹角，叉积符号区分左右
func classify(in, out []geo.GeoPoint) Maneuver {
	a := direction(in[len(in)-2], in[len(in)-1])
	b := direction(out[0], out[1])
	na, nb := math.Hypot(a[0], a[1]), math.Hypot(b[0], b[1])
	if na == 0 || nb == 0 {
		return ManeuverContinue
	}
	cos := (a[0]*b[0] + a[1]*b[1]) / (na * nb)
	angle := math.Acos(math.Max(-1, math.Min(1, cos))) * 180 / math.Pi
	left := a[0]*b[1]-a[1]*b[0] >= 0
	switch {
	case angle < STRAIGHT_ANGLE:
		return ManeuverContinue
	case angle < SLIGHT_ANGLE:
		return lo.Ternary(left, ManeuverSlightLeft, ManeuverSlightRight)
	case angle < TURN_ANGLE:
		return lo.Ternary(left, ManeuverTurnLeft, ManeuverTurnRight)
	default:
		return lo.Ternary(left, ManeuverSharpLeft, ManeuverSharpRight)
	}
}

func direction(from, to geo.GeoPoint) [2]float64 {
	return [2]float64{to.Lng - from.Lng, to.Lat - from.Lat}
}
