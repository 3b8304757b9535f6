package main

import (
	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/router"
	"github.com/fleetmaint/navigation/safety"
	"github.com/fleetmaint/navigation/traffic"
)

const NavigationServiceName = "fleetmaint.navigation.v1.NavigationService"

const (
	FindRouteProcedure          = "/" + NavigationServiceName + "/FindRoute"
	ScoreRouteProcedure         = "/" + NavigationServiceName + "/ScoreRoute"
	FindSafetyNearProcedure     = "/" + NavigationServiceName + "/FindSafetyNear"
	GetTrafficLevelProcedure    = "/" + NavigationServiceName + "/GetTrafficLevel"
	EstimateTravelTimeProcedure = "/" + NavigationServiceName + "/EstimateTravelTime"
	UpdateTrafficProcedure      = "/" + NavigationServiceName + "/UpdateTraffic"
)

type FindRouteRequest struct {
	Origin        geo.GeoPoint `json:"origin"`
	Destination   geo.GeoPoint `json:"destination"`
	Policy        string       `json:"policy,omitempty"`
	AvoidHighways bool         `json:"avoidHighways,omitempty"`
	Lang          string       `json:"lang,omitempty"`
	// 返回的危险点数量，0表示不返回
	DangerousPoints int `json:"dangerousPoints,omitempty"`
}

type FindRouteResponse struct {
	Found           bool                    `json:"found"`
	Route           *router.Route           `json:"route,omitempty"`
	Safety          *safety.Score           `json:"safety,omitempty"`
	DangerousPoints []safety.DangerousPoint `json:"dangerousPoints,omitempty"`
}

type ScoreRouteRequest struct {
	Points          []geo.GeoPoint `json:"points"`
	SegmentIDs      []string       `json:"segmentIds,omitempty"`
	DangerousPoints int            `json:"dangerousPoints,omitempty"`
}

type ScoreRouteResponse struct {
	Score           safety.Score            `json:"score"`
	DangerousPoints []safety.DangerousPoint `json:"dangerousPoints,omitempty"`
}

type FindSafetyNearRequest struct {
	Point  geo.GeoPoint `json:"point"`
	Radius float64      `json:"radius"`
}

type FindSafetyNearResponse struct {
	Events []*safety.SafetyEvent `json:"events"`
}

type GetTrafficLevelRequest struct {
	SegmentIDs []string `json:"segmentIds"`
}

type GetTrafficLevelResponse struct {
	Levels map[string]traffic.Level `json:"levels"`
	Info   traffic.RouteInfo        `json:"info"`
}

type EstimateTravelTimeRequest struct {
	SegmentIDs []string `json:"segmentIds"`
}

type EstimateTravelTimeResponse struct {
	Seconds float64 `json:"seconds"`
}

type UpdateTrafficRequest struct{}

type UpdateTrafficResponse struct {
	Updated bool `json:"updated"`
}
