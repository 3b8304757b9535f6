package safety

import (
	"math"
	"sort"
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
)

// 沿路线检查的采样步长（单位：米）
const RouteSampleStride = 500.0

type Catalogue struct {
	now          func() time.Time
	expiration   time.Duration
	fullGeometry bool

	mu      *xsync.RBMutex
	events  []*SafetyEvent
	hazards []*Hazard
}

type Option func(*Catalogue)

func WithClock(now func() time.Time) Option {
	return func(c *Catalogue) { c.now = now }
}

// 线与面按完整几何计算距离，默认只取第一个坐标
func WithFullGeometry(enabled bool) Option {
	return func(c *Catalogue) { c.fullGeometry = enabled }
}

func WithExpiration(d time.Duration) Option {
	return func(c *Catalogue) { c.expiration = d }
}

func NewCatalogue(records []SafetyDataPoint, opts ...Option) *Catalogue {
	c := &Catalogue{
		now:        time.Now,
		expiration: DefaultExpiration,
		mu:         xsync.NewRBMutex(),
	}
	for _, o := range opts {
		o(c)
	}
	c.Replace(records)
	return c
}

// 用新的记录集合替换目录内容
// 无法解析坐标的记录被丢弃，事故多发区域记录生成安全事件
func (c *Catalogue) Replace(records []SafetyDataPoint) {
	now := c.now()
	events := make([]*SafetyEvent, 0)
	hazards := make([]*Hazard, 0)
	dropped := 0
	for i := range records {
		d := records[i]
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		anchor, shape, ok := resolve(&d)
		if !ok {
			dropped++
			log.Debugf("drop safety record %s without location", d.ID)
			continue
		}
		if !d.AccidentProne() {
			hazards = append(hazards, &Hazard{Source: &d, Location: anchor, shape: shape})
			continue
		}
		// 有效期从事件生成时起算，RegisteredAt只保留在Source上
		events = append(events, &SafetyEvent{
			ID:             d.ID,
			Source:         &d,
			Location:       anchor,
			Severity:       severityOf(&d),
			CreatedAt:      now,
			ExpirationDate: now.Add(c.expiration),
			shape:          shape,
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	sort.Slice(hazards, func(i, j int) bool { return hazards[i].Source.ID < hazards[j].Source.ID })
	if dropped > 0 {
		log.Warnf("%d of %d safety records dropped without resolvable location", dropped, len(records))
	}
	c.mu.Lock()
	c.events, c.hazards = events, hazards
	c.mu.Unlock()
	log.Infof("safety catalogue loaded: %d events, %d hazards", len(events), len(hazards))
}

func severityOf(d *SafetyDataPoint) int {
	if d.Severity > 0 {
		return lo.Clamp(d.Severity, 1, 3)
	}
	switch {
	case d.AccidentCount >= 10 || d.CasualtyCount >= 10:
		return 3
	case d.AccidentCount >= 5 || d.CasualtyCount >= 5:
		return 2
	default:
		return 1
	}
}

// 当前有效的全部事件
func (c *Catalogue) Events() []*SafetyEvent {
	c.prune()
	t := c.mu.RLock()
	defer c.mu.RUnlock(t)
	return append([]*SafetyEvent{}, c.events...)
}

func (c *Catalogue) Hazards() []*Hazard {
	t := c.mu.RLock()
	defer c.mu.RUnlock(t)
	return append([]*Hazard{}, c.hazards...)
}

// 移除过期事件，查询时惰性执行
func (c *Catalogue) prune() {
	now := c.now()
	t := c.mu.RLock()
	expired := lo.ContainsBy(c.events, func(e *SafetyEvent) bool { return e.Expired(now) })
	c.mu.RUnlock(t)
	if !expired {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	before := len(c.events)
	c.events = lo.Filter(c.events, func(e *SafetyEvent, _ int) bool { return !e.Expired(now) })
	log.Debugf("pruned %d expired safety events", before-len(c.events))
}

// 点到几何的距离（单位：米）
func (c *Catalogue) distance(p geo.GeoPoint, anchor geo.GeoPoint, shape orb.Geometry) float64 {
	if !c.fullGeometry {
		return geo.Distance(p, anchor)
	}
	switch v := shape.(type) {
	case orb.LineString:
		return geo.DistanceToPolyline(p, toGeo(v))
	case orb.Polygon:
		if planar.PolygonContains(v, p.Orb()) {
			return 0
		}
		best := math.Inf(1)
		for _, ring := range v {
			best = math.Min(best, geo.DistanceToPolyline(p, toGeo(orb.LineString(ring))))
		}
		return best
	default:
		return geo.Distance(p, anchor)
	}
}

func toGeo(line orb.LineString) []geo.GeoPoint {
	return lo.Map(line, func(p orb.Point, _ int) geo.GeoPoint { return geo.FromOrb(p) })
}

// 半径范围内的有效事件，按距离升序
func (c *Catalogue) FindNear(p geo.GeoPoint, radius float64) (events []*SafetyEvent) {
	defer func() {
		if e := recover(); e != nil {
			log.Errorf("panic: FindNear %v with point=%v radius=%v", e, p, radius)
			events = []*SafetyEvent{}
		}
	}()
	if !p.Valid() || radius < 0 {
		log.Warnf("find near with invalid input point=%v radius=%v", p, radius)
		return []*SafetyEvent{}
	}
	c.prune()
	t := c.mu.RLock()
	defer c.mu.RUnlock(t)
	type hit struct {
		e *SafetyEvent
		d float64
	}
	hits := make([]hit, 0)
	for _, e := range c.events {
		if d := c.distance(p, e.Location, e.shape); d <= radius {
			hits = append(hits, hit{e, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })
	return lo.Map(hits, func(h hit, _ int) *SafetyEvent { return h.e })
}

// 沿路线按固定步长采样后查询，结果按首次命中顺序去重
func (c *Catalogue) FindAlongRoute(points []geo.GeoPoint, radius float64) (result []*SafetyEvent) {
	defer func() {
		if e := recover(); e != nil {
			log.Errorf("panic: FindAlongRoute %v with %d points", e, len(points))
			result = []*SafetyEvent{}
		}
	}()
	result = make([]*SafetyEvent, 0)
	seen := make(map[string]struct{})
	for _, s := range geo.Sample(points, RouteSampleStride) {
		for _, e := range c.FindNear(s, radius) {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			result = append(result, e)
		}
	}
	return result
}

// 沿路线的风险因素记录，按采样点去重
func (c *Catalogue) HazardsAlongRoute(points []geo.GeoPoint, radius float64) []*Hazard {
	samples := geo.Sample(points, RouteSampleStride)
	t := c.mu.RLock()
	defer c.mu.RUnlock(t)
	return lo.Filter(c.hazards, func(h *Hazard, _ int) bool {
		return lo.ContainsBy(samples, func(s geo.GeoPoint) bool {
			return c.distance(s, h.Location, h.shape) <= radius
		})
	})
}
