// Package traffic 路况模型：维护路段拥堵等级与有时效的交通事件，并周期性更新
package traffic

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "traffic")

const (
	// 无路段时的中性路况评分
	NeutralRouteScore = 90.0
)

type Model struct {
	graph  *roadnet.Graph
	source Source
	conn   Connectivity
	now    func() time.Time

	// 路段id -> 拥堵等级，缺省为FreeFlow
	levels *xsync.MapOf[string, Level]
	// 保护events
	mu     *xsync.RBMutex
	events []*Event

	// 正在更新中，重入的调用直接返回false
	updating atomic.Bool
}

type Option func(*Model)

func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func WithConnectivity(c Connectivity) Option {
	return func(m *Model) { m.conn = c }
}

func NewModel(graph *roadnet.Graph, source Source, opts ...Option) *Model {
	m := &Model{
		graph:  graph,
		source: source,
		conn:   AlwaysOnline,
		now:    time.Now,
		levels: xsync.NewMapOf[string, Level](),
		mu:     xsync.NewRBMutex(),
	}
	for _, o := range opts {
		o(m)
	}
	// 使用地图数据中的拥堵提示初始化
	for _, id := range graph.SegmentIDs() {
		s, _ := graph.Segment(id)
		if hint := s.Metadata.TrafficLevel; hint != nil {
			if l := LevelFromValue(*hint); l != FreeFlow {
				m.levels.Store(id, l)
			}
		}
	}
	return m
}

func (m *Model) LevelOf(segmentID string) Level {
	if l, ok := m.levels.Load(segmentID); ok {
		return l
	}
	return FreeFlow
}

func (m *Model) SetLevel(segmentID string, level Level) {
	if level == FreeFlow {
		m.levels.Delete(segmentID)
		return
	}
	m.levels.Store(segmentID, level)
}

// 非畅通路段的等级快照
func (m *Model) Levels() map[string]Level {
	out := make(map[string]Level, m.levels.Size())
	m.levels.Range(func(id string, l Level) bool {
		out[id] = l
		return true
	})
	return out
}

// 用快照覆盖当前等级，未知路段被忽略
func (m *Model) Restore(levels map[string]Level) {
	m.levels.Clear()
	for id, l := range levels {
		if _, ok := m.graph.Segment(id); ok {
			m.SetLevel(id, l)
		}
	}
}

// 当前有效事件的拷贝
func (m *Model) Events() []*Event {
	t := m.mu.RLock()
	defer m.mu.RUnlock(t)
	return append([]*Event{}, m.events...)
}

// 接入外部事件：吸附到最近路段，并按严重程度升级该路段及相邻路段
func (m *Model) InjectEvent(e *Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartTime.IsZero() {
		e.StartTime = m.now()
	}
	e.Severity = clampSeverity(e.Severity)
	if _, ok := m.graph.Segment(e.RoadSegmentID); !ok {
		s, d := m.graph.NearestSegment(e.Location)
		if s == nil {
			log.Warnf("drop traffic event %s: no road segment to snap to", e.ID)
			return
		}
		log.Debugf("snap traffic event %s to segment %s (%.1fm)", e.ID, s.ID, d)
		e.RoadSegmentID = s.ID
	}
	target := severityLevel(e.Severity)
	if e.Type == EventClosure {
		target = Closed
	}
	m.escalate(e.RoadSegmentID, target)
	neighborTarget := target - 1
	if target == Closed {
		neighborTarget = VeryHeavy
	}
	neighbors := m.graph.AdjacentSegments(e.RoadSegmentID)
	for _, id := range neighbors {
		m.escalate(id, neighborTarget)
	}
	e.AffectedSegments = lo.Uniq(append(append(e.AffectedSegments, e.RoadSegmentID), neighbors...))

	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

// 只升不降
func (m *Model) escalate(segmentID string, target Level) {
	m.levels.Compute(segmentID, func(old Level, loaded bool) (Level, bool) {
		if loaded && old >= target {
			return old, false
		}
		return target, false
	})
}

// 执行一轮路况更新，返回是否完成了更新
// 正在更新或网络不可达时直接返回false且不修改状态
func (m *Model) Update(ctx context.Context) bool {
	if !m.updating.CompareAndSwap(false, true) {
		log.Debug("traffic update already in flight")
		return false
	}
	defer m.updating.Store(false)

	if !m.conn.Reachable(ctx) {
		log.Warn("network unreachable, skip traffic update")
		return false
	}
	feed, err := m.source.Poll(ctx, m)
	if err != nil {
		log.Errorf("poll traffic source: %v", err)
		return false
	}
	// 有效事件影响的路段只接受升级
	held := heldSegments(m.Events())
	for _, u := range feed.Levels {
		if _, ok := m.graph.Segment(u.SegmentID); !ok {
			continue
		}
		if _, ok := held[u.SegmentID]; ok && u.Level < m.LevelOf(u.SegmentID) {
			continue
		}
		m.SetLevel(u.SegmentID, u.Level)
	}
	for _, e := range feed.Events {
		m.InjectEvent(e)
	}
	expired := m.expireEvents()
	log.Debugf("traffic updated: %d level changes, %d new events, %d expired",
		len(feed.Levels), len(feed.Events), expired)
	return true
}

// 移除过期事件，并对其影响路段做部分恢复
func (m *Model) expireEvents() int {
	now := m.now()
	var expired, active []*Event
	m.mu.Lock()
	for _, e := range m.events {
		if e.Expired(now) {
			expired = append(expired, e)
		} else {
			active = append(active, e)
		}
	}
	m.events = active
	m.mu.Unlock()

	// 仍被其他有效事件影响的路段保持当前等级
	held := heldSegments(active)
	for _, e := range expired {
		for _, id := range e.AffectedSegments {
			if _, ok := held[id]; ok {
				continue
			}
			m.SetLevel(id, decayed(m.LevelOf(id), e.Severity))
		}
	}
	return len(expired)
}

func heldSegments(events []*Event) map[string]struct{} {
	held := make(map[string]struct{})
	for _, e := range events {
		held[e.RoadSegmentID] = struct{}{}
		for _, id := range e.AffectedSegments {
			held[id] = struct{}{}
		}
	}
	return held
}

type RouteInfo struct {
	// 非封闭路段拥堵数值的算术平均
	AverageLevel   float64  `json:"averageLevel"`
	WorstLevel     Level    `json:"worstLevel"`
	WorstSegmentID string   `json:"worstSegmentId"`
	Events         []*Event `json:"events"`
}

func (m *Model) RouteInfo(segmentIDs []string) RouteInfo {
	info := RouteInfo{WorstLevel: FreeFlow}
	sum, count := .0, 0
	for _, id := range segmentIDs {
		l := m.LevelOf(id)
		if info.WorstSegmentID == "" || l > info.WorstLevel {
			info.WorstLevel = l
			info.WorstSegmentID = id
		}
		if l == Closed {
			continue
		}
		sum += l.Value()
		count++
	}
	if count > 0 {
		info.AverageLevel = sum / float64(count)
	}
	set := lo.Associate(segmentIDs, func(id string) (string, struct{}) { return id, struct{}{} })
	info.Events = lo.Filter(m.Events(), func(e *Event, _ int) bool { return e.Touches(set) })
	return info
}

// 单个路段的预计通行时间（单位：秒），封闭或未知路段返回false
func (m *Model) SegmentTravelTime(segmentID string) (float64, bool) {
	s, ok := m.graph.Segment(segmentID)
	if !ok {
		return 0, false
	}
	l := m.LevelOf(segmentID)
	if l == Closed {
		return 0, false
	}
	speed := s.Speed() / 3.6 * l.SpeedFactor()
	return s.Distance() / speed, true
}

// 路段序列的预计通行时间（单位：秒），封闭路段不计时间
func (m *Model) EstimateTravelTime(segmentIDs []string) float64 {
	return lo.SumBy(segmentIDs, func(id string) float64 {
		t, _ := m.SegmentTravelTime(id)
		return t
	})
}

// 路况质量评分（0~100）
func (m *Model) RouteScore(segmentIDs []string) float64 {
	if len(segmentIDs) == 0 {
		return NeutralRouteScore
	}
	info := m.RouteInfo(segmentIDs)
	score := 100 - info.AverageLevel*50 - math.Min(float64(len(info.Events))*5, 20)
	if info.WorstLevel == Closed {
		score -= 30
	}
	return lo.Clamp(score, 0, 100)
}

// 与圆形区域相交的路段id
func (m *Model) segmentsWithin(center geo.GeoPoint, radius float64) []string {
	return lo.Filter(m.graph.SegmentIDs(), func(id string, _ int) bool {
		s, _ := m.graph.Segment(id)
		return geo.DistanceToPolyline(center, s.Path) <= radius
	})
}
