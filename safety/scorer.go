package safety

import (
	"fmt"
	"math"
	"sort"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/navierr"
	"github.com/samber/lo"
)

const (
	// 路线附近没有任何安全事件时的评分
	BaselineScore = 90.0
	// 评分失败时返回的中性分数
	NeutralScore = 50.0
	// 默认的路线搜索半径（单位：米）
	DefaultRouteRadius = 200.0

	safetyWeight  = 0.7
	trafficWeight = 0.3
	// 交通评分缺失时视为中性
	neutralTrafficScore = 90.0
)

// 路况质量评分来源，traffic.Model实现了该接口
type RouteScorer interface {
	RouteScore(segmentIDs []string) float64
}

type FactorType string

const (
	FactorAccidentProneArea FactorType = "ACCIDENT_PRONE_AREA"
	FactorRiskFactor        FactorType = "RISK_FACTOR"
	FactorTraffic           FactorType = "TRAFFIC"
)

// 评分的组成项，Impact为对总分的影响
type Factor struct {
	Type        FactorType `json:"type"`
	Count       int        `json:"count"`
	Impact      float64    `json:"impact"`
	Description string     `json:"description"`
}

type Score struct {
	Score        float64  `json:"score"`
	SafetyScore  float64  `json:"safetyScore"`
	TrafficScore float64  `json:"trafficScore"`
	EventCount   int      `json:"eventCount"`
	Factors      []Factor `json:"factors"`
}

type Scorer struct {
	catalogue *Catalogue
	traffic   RouteScorer
	// 路线搜索半径（单位：米）
	Radius float64
}

// traffic为nil时交通评分按中性处理
func NewScorer(catalogue *Catalogue, traffic RouteScorer) *Scorer {
	return &Scorer{catalogue: catalogue, traffic: traffic, Radius: DefaultRouteRadius}
}

func ValidateRoutePoints(points []geo.GeoPoint) error {
	if len(points) == 0 {
		return navierr.New(navierr.CodeEmptyRoutePoints, "route has no points")
	}
	for i, p := range points {
		if !p.Valid() {
			return navierr.New(navierr.CodeInvalidCoordinate, "route point %d %v", i, p)
		}
	}
	return nil
}

func (s *Scorer) trafficScore(segmentIDs []string) float64 {
	if s.traffic == nil {
		return neutralTrafficScore
	}
	return s.traffic.RouteScore(segmentIDs)
}

// 路线安全评分（0~100）
// 任何内部错误都返回中性分数并记录日志
func (s *Scorer) ScoreRoute(points []geo.GeoPoint, segmentIDs []string) (score Score) {
	// panic recover
	defer func() {
		if e := recover(); e != nil {
			log.Errorf("panic: ScoreRoute %v with %d points", e, len(points))
			score = neutral()
		}
	}()
	if err := ValidateRoutePoints(points); err != nil {
		log.Warnf("score route: %v", err)
		return neutral()
	}

	events := s.catalogue.FindAlongRoute(points, s.Radius)
	hazards := s.catalogue.HazardsAlongRoute(points, s.Radius)
	incidents := len(events) + len(hazards)

	safety := BaselineScore
	if incidents > 0 {
		km := math.Max(geo.PolylineLength(points)/1000, 1)
		safety = 100 - math.Min(float64(incidents)/km*5, 40)
	}
	traffic := s.trafficScore(segmentIDs)
	score = Score{
		Score:        lo.Clamp(safetyWeight*safety+trafficWeight*traffic, 0, 100),
		SafetyScore:  safety,
		TrafficScore: traffic,
		EventCount:   incidents,
		Factors: []Factor{
			{
				Type:        FactorAccidentProneArea,
				Count:       len(events),
				Impact:      -math.Min(float64(len(events))*5, 25),
				Description: fmt.Sprintf("%d accident-prone areas along the route", len(events)),
			},
			{
				Type:        FactorRiskFactor,
				Count:       len(hazards),
				Impact:      -math.Min(float64(len(hazards))*2, 15),
				Description: fmt.Sprintf("%d risk factors along the route", len(hazards)),
			},
			{
				Type:        FactorTraffic,
				Impact:      (traffic - neutralTrafficScore) * trafficWeight,
				Description: fmt.Sprintf("traffic quality %.0f", traffic),
			},
		},
	}
	return score
}

func neutral() Score {
	return Score{Score: NeutralScore, SafetyScore: NeutralScore, TrafficScore: neutralTrafficScore, Factors: []Factor{}}
}

// 路线附近最危险的n个点
// 按严重程度降序、到路线距离升序排序，坐标保留5位小数后去重
func (s *Scorer) DangerousPoints(points []geo.GeoPoint, n int) (result []DangerousPoint) {
	defer func() {
		if e := recover(); e != nil {
			log.Errorf("panic: DangerousPoints %v with %d points", e, len(points))
			result = []DangerousPoint{}
		}
	}()
	if err := ValidateRoutePoints(points); err != nil || n <= 0 {
		log.Warnf("dangerous points with invalid input n=%d: %v", n, err)
		return []DangerousPoint{}
	}
	candidates := lo.Map(s.catalogue.FindAlongRoute(points, s.Radius), func(e *SafetyEvent, _ int) DangerousPoint {
		return DangerousPoint{
			Event:    e,
			Location: e.Location,
			Severity: e.Severity,
			Distance: geo.DistanceToPolyline(e.Location, points),
		}
	})
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Event.ID < b.Event.ID
	})
	candidates = lo.UniqBy(candidates, func(p DangerousPoint) [2]float64 {
		return [2]float64{round5(p.Location.Lat), round5(p.Location.Lng)}
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
