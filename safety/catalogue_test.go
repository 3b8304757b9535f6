package safety_test

import (
	"testing"
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/safety"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accidentProne(id string, lat, lng float64, severity int) safety.SafetyDataPoint {
	return safety.SafetyDataPoint{
		ID:            id,
		MajorCategory: safety.CategoryAccidentProneArea,
		X:             lo.ToPtr(lng),
		Y:             lo.ToPtr(lat),
		Severity:      severity,
	}
}

func ids(events []*safety.SafetyEvent) []string {
	return lo.Map(events, func(e *safety.SafetyEvent, _ int) string { return e.ID })
}

func TestCatalogueLoad(t *testing.T) {
	c := safety.NewCatalogue([]safety.SafetyDataPoint{
		accidentProne("a", 37.5, 127.0, 2),
		{ID: "wkt", MajorCategory: safety.CategoryAccidentProneArea, Geometry: "POINT(127.001 37.5)", AccidentCount: 12},
		{ID: "no-location", MajorCategory: safety.CategoryAccidentProneArea},
		{ID: "bad-wkt", MajorCategory: safety.CategoryAccidentProneArea, Geometry: "POINT(1"},
		{ID: "out-of-range", MajorCategory: safety.CategoryAccidentProneArea, X: lo.ToPtr(200.0), Y: lo.ToPtr(37.5)},
		{ID: "hazard", MajorCategory: "ICY_ROAD", Geometry: "POINT(127.002 37.5)"},
	})
	assert.Equal(t, []string{"a", "wkt"}, ids(c.Events()))
	require.Len(t, c.Hazards(), 1)
	assert.Equal(t, "hazard", c.Hazards()[0].Source.ID)

	events := c.Events()
	assert.Equal(t, 2, events[0].Severity)
	// 事故数推算严重程度
	assert.Equal(t, 3, events[1].Severity)
	assert.Equal(t, geo.GeoPoint{Lat: 37.5, Lng: 127.001}, events[1].Location)
	assert.Equal(t, events[0].CreatedAt.Add(safety.DefaultExpiration), events[0].ExpirationDate)
}

func TestFindNear(t *testing.T) {
	c := safety.NewCatalogue([]safety.SafetyDataPoint{
		accidentProne("near", 37.5, 127.0, 1),
		accidentProne("nearer", 37.5, 127.0005, 1),
		accidentProne("far", 37.6, 127.0, 1),
	})
	p := geo.GeoPoint{Lat: 37.5, Lng: 127.0006}
	assert.Equal(t, []string{"nearer", "near"}, ids(c.FindNear(p, 100)))
	assert.Empty(t, c.FindNear(p, 1))
	assert.Empty(t, c.FindNear(geo.GeoPoint{Lat: 100}, 100))
	assert.Empty(t, c.FindNear(p, -1))
}

func TestFindAlongRoute(t *testing.T) {
	route := []geo.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.018}}
	c := safety.NewCatalogue([]safety.SafetyDataPoint{
		accidentProne("first", 0.0005, 0.005, 1),
		accidentProne("second", 0.0005, 0.0135, 1),
		accidentProne("end", 0, 0.0181, 1),
		accidentProne("off-route", 0.01, 0.009, 1),
	})
	found := ids(c.FindAlongRoute(route, 200))
	assert.ElementsMatch(t, []string{"first", "second", "end"}, found)
	assert.Len(t, lo.Uniq(found), len(found))
	assert.Empty(t, c.FindAlongRoute(nil, 200))
}

func TestLazyExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	// 登记日期早于有效期，不影响新生成的事件
	registered := now.Add(-3 * 365 * 24 * time.Hour)
	old := accidentProne("old", 37.5, 127.0, 1)
	old.RegisteredAt = &registered
	c := safety.NewCatalogue([]safety.SafetyDataPoint{
		accidentProne("fresh", 37.5, 127.0, 1),
		old,
	}, safety.WithClock(func() time.Time { return now }))

	p := geo.GeoPoint{Lat: 37.5, Lng: 127.0}
	assert.Equal(t, []string{"fresh", "old"}, ids(c.FindNear(p, 10)))
	events := c.Events()
	require.Len(t, events, 2)
	assert.Equal(t, now, events[1].CreatedAt)
	assert.Equal(t, now.Add(safety.DefaultExpiration), events[1].ExpirationDate)
	assert.Equal(t, registered, *events[1].Source.RegisteredAt)

	now = now.Add(89 * 24 * time.Hour)
	assert.Len(t, c.FindNear(p, 10), 2)

	now = now.Add(2 * 24 * time.Hour)
	assert.Empty(t, c.FindNear(p, 10))
	assert.Empty(t, c.Events())
}

func TestQueriesFailSoft(t *testing.T) {
	var c *safety.Catalogue
	p := geo.GeoPoint{Lat: 37.5, Lng: 127.0}
	assert.NotPanics(t, func() {
		events := c.FindNear(p, 100)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	})
	assert.NotPanics(t, func() {
		events := c.FindAlongRoute([]geo.GeoPoint{p, {Lat: 37.51, Lng: 127.0}}, 100)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	})
}

func TestFullGeometry(t *testing.T) {
	records := []safety.SafetyDataPoint{
		{ID: "line", MajorCategory: safety.CategoryAccidentProneArea, Geometry: "LINESTRING(127 37, 127.01 37)"},
		{ID: "area", MajorCategory: safety.CategoryAccidentProneArea, Geometry: "POLYGON((0 0, 0.01 0, 0.01 0.01, 0 0.01, 0 0))"},
	}
	anchored := safety.NewCatalogue(records)
	full := safety.NewCatalogue(records, safety.WithFullGeometry(true))

	alongLine := geo.GeoPoint{Lat: 37.0005, Lng: 127.008}
	assert.Empty(t, anchored.FindNear(alongLine, 100))
	assert.Equal(t, []string{"line"}, ids(full.FindNear(alongLine, 100)))

	inside := geo.GeoPoint{Lat: 0.005, Lng: 0.005}
	assert.Empty(t, anchored.FindNear(inside, 100))
	assert.Equal(t, []string{"area"}, ids(full.FindNear(inside, 0)))
}
