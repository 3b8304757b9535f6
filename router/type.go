package router

import (
	"fmt"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/roadnet"
)

// 代价策略
type CostPolicy string

const (
	// 仅按物理长度
	PolicyDistance CostPolicy = "distance"
	// 按当前路况下的通行时间
	PolicyFastest CostPolicy = "fastest"
	// 按道路等级折算后的长度
	PolicyPreferMainRoads CostPolicy = "preferMainRoads"
)

func ParseCostPolicy(s string) (CostPolicy, error) {
	switch p := CostPolicy(s); p {
	case PolicyDistance, PolicyFastest, PolicyPreferMainRoads:
		return p, nil
	case "":
		return PolicyDistance, nil
	default:
		return "", fmt.Errorf("unknown cost policy %q", s)
	}
}

type Options struct {
	// 不经过高速公路
	AvoidHighways bool `json:"avoidHighways"`
	// 导航提示语言，为空时使用韩语
	Lang string `json:"lang,omitempty"`
}

// 搜索图中的边：路段及其行进方向
type EdgeAttr struct {
	Segment *roadnet.RoadSegment
	From    string
}

type RouteStep struct {
	Maneuver       Maneuver     `json:"maneuver"`
	Instruction    string       `json:"instruction"`
	RoadName       string       `json:"roadName,omitempty"`
	Distance       float64      `json:"distance"` // m
	Duration       float64      `json:"duration"` // s
	StartPoint     geo.GeoPoint `json:"startPoint"`
	EndPoint       geo.GeoPoint `json:"endPoint"`
	RoadSegmentIDs []string     `json:"roadSegmentIds"`
}

// 一次搜索的结果，生成后不再修改
type Route struct {
	ID             string         `json:"id"`
	Origin         geo.GeoPoint   `json:"origin"`
	Destination    geo.GeoPoint   `json:"destination"`
	Policy         CostPolicy     `json:"policy"`
	TotalDistance  float64        `json:"totalDistance"` // m
	TotalDuration  float64        `json:"totalDuration"` // s
	Steps          []RouteStep    `json:"steps"`
	PathPoints     []geo.GeoPoint `json:"pathPoints"`
	RoadSegmentIDs []string       `json:"roadSegmentIds"`
	NodeIDs        []string       `json:"nodeIds"`
}
