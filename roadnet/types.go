package roadnet

import (
	"github.com/fleetmaint/navigation/geo"
)

// 道路等级
type RoadType string

const (
	RoadTypeHighway     RoadType = "highway"
	RoadTypePrimary     RoadType = "primary"
	RoadTypeSecondary   RoadType = "secondary"
	RoadTypeTertiary    RoadType = "tertiary"
	RoadTypeResidential RoadType = "residential"
	RoadTypeService     RoadType = "service"
	RoadTypeOther       RoadType = "other"
)

// 未标注限速时使用的默认速度（单位：km/h）
const DefaultSpeedLimit = 60.0

// 路口或道路端点
type Node struct {
	ID       string       `json:"id" bson:"id"`
	Position geo.GeoPoint `json:"position" bson:"position"`
	// 与该点相连的路段id，由Graph在构建时填充
	Connections []string `json:"-" bson:"-"`
}

type SegmentMetadata struct {
	Name string `json:"name,omitempty" bson:"name,omitempty"`
	// 数据源给出的拥堵提示，取值与traffic.Level的数值一致
	TrafficLevel *float64 `json:"trafficLevel,omitempty" bson:"traffic_level,omitempty"`
	// 显式标注的动作：merge, exit, roundabout, uturn
	Maneuver string `json:"maneuver,omitempty" bson:"maneuver,omitempty"`
}

// 道路路段，Path至少包含两个点
type RoadSegment struct {
	ID          string          `json:"id" bson:"id"`
	StartNodeID string          `json:"startNodeId" bson:"start_node_id"`
	EndNodeID   string          `json:"endNodeId" bson:"end_node_id"`
	Path        []geo.GeoPoint  `json:"path" bson:"path"`
	RoadType    RoadType        `json:"roadType" bson:"road_type"`
	SpeedLimit  float64         `json:"speedLimit,omitempty" bson:"speed_limit,omitempty"` // km/h，0表示未标注
	OneWay      bool            `json:"oneWay" bson:"one_way"`
	Metadata    SegmentMetadata `json:"metadata" bson:"metadata"`

	// 由Path推导，加载后Path不再变化
	distance float64
}

// 路段长度（单位：米）
func (s *RoadSegment) Distance() float64 {
	return s.distance
}

// 有效限速（单位：km/h）
func (s *RoadSegment) Speed() float64 {
	if s.SpeedLimit > 0 {
		return s.SpeedLimit
	}
	return DefaultSpeedLimit
}

// 路段另一端的节点id
func (s *RoadSegment) Other(nodeID string) string {
	if s.StartNodeID == nodeID {
		return s.EndNodeID
	}
	return s.StartNodeID
}

// 从指定节点出发的行进方向是否被单行限制允许
func (s *RoadSegment) Traversable(fromNodeID string) bool {
	return !s.OneWay || s.StartNodeID == fromNodeID
}

// 按行进方向返回的折线，fromNodeID为终点时返回反向拷贝
func (s *RoadSegment) OrientedPath(fromNodeID string) []geo.GeoPoint {
	if fromNodeID == s.StartNodeID || fromNodeID != s.EndNodeID {
		return s.Path
	}
	reversed := make([]geo.GeoPoint, len(s.Path))
	for i, p := range s.Path {
		reversed[len(s.Path)-1-i] = p
	}
	return reversed
}

// 邻接关系
type Neighbor struct {
	NodeID    string
	SegmentID string
}
