package traffic

import (
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/samber/lo"
)

type EventType string

const (
	EventAccident     EventType = "accident"
	EventConstruction EventType = "construction"
	EventClosure      EventType = "closure"
	EventWeather      EventType = "weather"
	EventPublic       EventType = "event"
	EventOther        EventType = "other"
)

var eventTypes = []EventType{EventAccident, EventConstruction, EventClosure, EventWeather, EventPublic, EventOther}

// 有时效的交通事件
type Event struct {
	ID            string       `json:"id"`
	Location      geo.GeoPoint `json:"location"`
	RoadSegmentID string       `json:"roadSegmentId"`
	Type          EventType    `json:"type"`
	Description   string       `json:"description"`
	StartTime     time.Time    `json:"startTime"`
	EndTime       *time.Time   `json:"endTime,omitempty"`
	// 1~3
	Severity         int      `json:"severity"`
	AffectedSegments []string `json:"affectedSegments"`
}

func (e *Event) Expired(now time.Time) bool {
	return e.EndTime != nil && e.EndTime.Before(now)
}

// 事件是否影响给定路段集合中的任意一个
func (e *Event) Touches(segments map[string]struct{}) bool {
	if _, ok := segments[e.RoadSegmentID]; ok {
		return true
	}
	return lo.SomeBy(e.AffectedSegments, func(id string) bool {
		_, ok := segments[id]
		return ok
	})
}

func clampSeverity(s int) int {
	return lo.Clamp(s, 1, 3)
}
