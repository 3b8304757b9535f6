package traffic

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/google/uuid"
)

type LevelUpdate struct {
	SegmentID string `json:"segmentId"`
	Level     Level  `json:"level"`
}

// 一次拉取得到的路况数据
type Feed struct {
	Levels []LevelUpdate `json:"levels"`
	Events []*Event      `json:"events"`
}

type LevelReader interface {
	LevelOf(segmentID string) Level
}

// 路况数据源
type Source interface {
	Poll(ctx context.Context, current LevelReader) (Feed, error)
}

// 模拟数据源：随机扰动约20%路段的拥堵等级，并以小概率生成新事件
type SimulatedSource struct {
	graph *roadnet.Graph
	// 每轮被扰动的路段比例
	PerturbRatio float64
	// 每轮生成新事件的概率
	EventProbability float64

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewSimulatedSource(graph *roadnet.Graph, seed int64) *SimulatedSource {
	return &SimulatedSource{
		graph:            graph,
		PerturbRatio:     0.2,
		EventProbability: 0.1,
		rnd:              rand.New(rand.NewSource(seed)),
		now:              time.Now,
	}
}

func (s *SimulatedSource) Poll(ctx context.Context, current LevelReader) (Feed, error) {
	if err := ctx.Err(); err != nil {
		return Feed{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	feed := Feed{}
	for _, id := range s.graph.SegmentIDs() {
		if s.rnd.Float64() >= s.PerturbRatio {
			continue
		}
		level := current.LevelOf(id)
		if level == Closed {
			// 封闭路段只随事件结束而恢复
			continue
		}
		level += Level(s.rnd.Intn(3) - 1)
		if level < FreeFlow {
			level = FreeFlow
		}
		if level > VeryHeavy {
			level = VeryHeavy
		}
		feed.Levels = append(feed.Levels, LevelUpdate{SegmentID: id, Level: level})
	}
	if s.graph.SegmentCount() > 0 && s.rnd.Float64() < s.EventProbability {
		feed.Events = append(feed.Events, s.randomEvent())
	}
	return feed, nil
}

func (s *SimulatedSource) randomEvent() *Event {
	sw, ne := s.graph.Bounds()
	location := geo.GeoPoint{
		Lat: sw.Lat + s.rnd.Float64()*(ne.Lat-sw.Lat),
		Lng: sw.Lng + s.rnd.Float64()*(ne.Lng-sw.Lng),
	}
	start := s.now()
	end := start.Add(time.Duration(15+s.rnd.Intn(106)) * time.Minute)
	eventType := eventTypes[s.rnd.Intn(len(eventTypes))]
	severity := 1 + s.rnd.Intn(3)
	return &Event{
		ID:          uuid.NewString(),
		Location:    location,
		Type:        eventType,
		Description: fmt.Sprintf("simulated %s (severity %d)", eventType, severity),
		StartTime:   start,
		EndTime:     &end,
		Severity:    severity,
	}
}

// 按顺序回放预设数据的数据源，耗尽后返回空数据
type FixtureSource struct {
	mu    sync.Mutex
	feeds []Feed
}

func NewFixtureSource(feeds ...Feed) *FixtureSource {
	return &FixtureSource{feeds: feeds}
}

func (s *FixtureSource) Push(feed Feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds = append(s.feeds, feed)
}

func (s *FixtureSource) Poll(ctx context.Context, _ LevelReader) (Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.feeds) == 0 {
		return Feed{}, nil
	}
	feed := s.feeds[0]
	s.feeds = s.feeds[1:]
	return feed, nil
}
