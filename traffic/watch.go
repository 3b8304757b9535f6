package traffic

import (
	"math"
	"sync"
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/samber/lo"
)

const (
	// 平均拥堵变化超过该值才视为显著变化
	significantLevelDelta = 0.2

	DefaultWatchInterval = 30 * time.Second
)

// 监听对象在某一时刻的路况摘要
type Snapshot struct {
	AverageLevel   float64 `json:"averageLevel"`
	WorstLevel     Level   `json:"worstLevel"`
	WorstSegmentID string  `json:"worstSegmentId"`
	EventCount     int     `json:"eventCount"`
}

type Change struct {
	Previous Snapshot `json:"previous"`
	Current  Snapshot `json:"current"`
}

// 是否为需要通知的显著变化，过滤微小波动
func (c Change) Significant() bool {
	return math.Abs(c.Current.AverageLevel-c.Previous.AverageLevel) > significantLevelDelta ||
		c.Current.WorstLevel != c.Previous.WorstLevel ||
		c.Current.EventCount != c.Previous.EventCount
}

// 轮询订阅，Cancel可重复调用
type Subscription struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
}

// 订阅的轮询协程已退出
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (m *Model) watch(interval time.Duration, snapshot func() Snapshot, fn func(Change)) *Subscription {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	sub := &Subscription{stop: make(chan struct{}), done: make(chan struct{})}
	baseline := snapshot()
	go func() {
		defer close(sub.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sub.stop:
				return
			case <-ticker.C:
				change := Change{Previous: baseline, Current: snapshot()}
				if !change.Significant() {
					continue
				}
				// 基线只在通知后前移，缓慢漂移累积到阈值后仍会触发
				baseline = change.Current
				fn(change)
			}
		}
	}()
	return sub
}

// 监听一条路线上的路况变化
func (m *Model) WatchRoute(segmentIDs []string, interval time.Duration, fn func(Change)) *Subscription {
	ids := append([]string{}, segmentIDs...)
	return m.watch(interval, func() Snapshot {
		info := m.RouteInfo(ids)
		return Snapshot{
			AverageLevel:   info.AverageLevel,
			WorstLevel:     info.WorstLevel,
			WorstSegmentID: info.WorstSegmentID,
			EventCount:     len(info.Events),
		}
	}, fn)
}

// 监听区域内的路况变化，只统计严重程度不低于minSeverity的事件
func (m *Model) WatchArea(center geo.GeoPoint, radius float64, minSeverity int, interval time.Duration, fn func(Change)) *Subscription {
	ids := m.segmentsWithin(center, radius)
	return m.watch(interval, func() Snapshot {
		info := m.RouteInfo(ids)
		count := lo.CountBy(m.Events(), func(e *Event) bool {
			return e.Severity >= minSeverity && geo.Distance(center, e.Location) <= radius
		})
		return Snapshot{
			AverageLevel:   info.AverageLevel,
			WorstLevel:     info.WorstLevel,
			WorstSegmentID: info.WorstSegmentID,
			EventCount:     count,
		}
	}, fn)
}
