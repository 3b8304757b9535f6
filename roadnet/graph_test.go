package roadnet_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a --s1-- b --s2(one way b->c)-- c
func lineGraph(t *testing.T) *roadnet.Graph {
	nodes := []*roadnet.Node{
		{ID: "a", Position: geo.GeoPoint{Lat: 0, Lng: 0}},
		{ID: "b", Position: geo.GeoPoint{Lat: 0, Lng: 0.01}},
		{ID: "c", Position: geo.GeoPoint{Lat: 0, Lng: 0.02}},
	}
	segments := []*roadnet.RoadSegment{
		{ID: "s1", StartNodeID: "a", EndNodeID: "b", RoadType: roadnet.RoadTypePrimary},
		{
			ID: "s2", StartNodeID: "b", EndNodeID: "c", OneWay: true,
			Path: []geo.GeoPoint{{Lat: 0, Lng: 0.01}, {Lat: 0.001, Lng: 0.015}, {Lat: 0, Lng: 0.02}},
		},
	}
	g, err := roadnet.New(nodes, segments)
	require.NoError(t, err)
	return g
}

func TestGraphBuild(t *testing.T) {
	g := lineGraph(t)
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.SegmentCount())
	assert.Equal(t, []string{"a", "b", "c"}, g.NodeIDs())

	b, ok := g.Node("b")
	require.True(t, ok)
	assert.Equal(t, []string{"s1", "s2"}, b.Connections)

	s1, _ := g.Segment("s1")
	assert.Len(t, s1.Path, 2)
	assert.InDelta(t, geo.Distance(geo.GeoPoint{}, geo.GeoPoint{Lng: 0.01}), s1.Distance(), 1e-9)
	s2, _ := g.Segment("s2")
	assert.Greater(t, s2.Distance(), s1.Distance())
	assert.Equal(t, roadnet.RoadTypeOther, s2.RoadType)
	assert.Equal(t, roadnet.DefaultSpeedLimit, s2.Speed())
}

func TestGraphBuildErrors(t *testing.T) {
	_, err := roadnet.New(nil, nil)
	assert.ErrorIs(t, err, roadnet.ErrEmptyGraph)

	nodes := []*roadnet.Node{{ID: "a"}, {ID: "a"}}
	_, err = roadnet.New(nodes, nil)
	assert.ErrorIs(t, err, roadnet.ErrDuplicateID)

	nodes = []*roadnet.Node{{ID: "a"}}
	_, err = roadnet.New(nodes, []*roadnet.RoadSegment{{ID: "s", StartNodeID: "a", EndNodeID: "x"}})
	assert.ErrorIs(t, err, roadnet.ErrUnknownNode)

	nodes = []*roadnet.Node{{ID: "a"}, {ID: "b"}}
	_, err = roadnet.New(nodes, []*roadnet.RoadSegment{{ID: "s", StartNodeID: "a", EndNodeID: "b", Path: []geo.GeoPoint{{}}}})
	assert.ErrorIs(t, err, roadnet.ErrDegenerateShape)
}

func TestNearestNode(t *testing.T) {
	g := lineGraph(t)
	n, ok := g.NearestNode(geo.GeoPoint{Lat: 0.0001, Lng: 0.0098})
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)
	n, _ = g.NearestNode(geo.GeoPoint{Lat: 10, Lng: 10})
	assert.Equal(t, "c", n.ID)
}

func TestSegmentBetweenAndNeighbors(t *testing.T) {
	g := lineGraph(t)
	s, ok := g.SegmentBetween("b", "a")
	require.True(t, ok)
	assert.Equal(t, "s1", s.ID)
	s, ok = g.SegmentBetween("c", "b")
	require.True(t, ok)
	assert.Equal(t, "s2", s.ID)
	_, ok = g.SegmentBetween("a", "c")
	assert.False(t, ok)

	assert.Equal(t, []roadnet.Neighbor{{NodeID: "a", SegmentID: "s1"}, {NodeID: "c", SegmentID: "s2"}}, g.Neighbors("b"))
	assert.Nil(t, g.Neighbors("zzz"))
	assert.Equal(t, []string{"s2"}, g.AdjacentSegments("s1"))
}

func TestOneWayAndOrientation(t *testing.T) {
	g := lineGraph(t)
	s2, _ := g.Segment("s2")
	assert.True(t, s2.Traversable("b"))
	assert.False(t, s2.Traversable("c"))
	rev := s2.OrientedPath("c")
	assert.Equal(t, s2.Path[2], rev[0])
	assert.Equal(t, s2.Path[0], rev[2])
	assert.Equal(t, s2.Path, s2.OrientedPath("b"))
}

func TestNearestSegment(t *testing.T) {
	g := lineGraph(t)
	s, d := g.NearestSegment(geo.GeoPoint{Lat: 0.0012, Lng: 0.015})
	assert.Equal(t, "s2", s.ID)
	assert.Less(t, d, 50.0)
}

func TestLoadFromFile(t *testing.T) {
	ds := roadnet.Dataset{
		Nodes: []*roadnet.Node{
			{ID: "a", Position: geo.GeoPoint{Lat: 37.5, Lng: 127.0}},
			{ID: "b", Position: geo.GeoPoint{Lat: 37.51, Lng: 127.0}},
		},
		Segments: []*roadnet.RoadSegment{
			{ID: "ab", StartNodeID: "a", EndNodeID: "b", SpeedLimit: 80, Metadata: roadnet.SegmentMetadata{Name: "테헤란로"}},
		},
	}
	data, err := json.Marshal(ds)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	g, err := roadnet.LoadFromFile(path)
	require.NoError(t, err)
	s, ok := g.Segment("ab")
	require.True(t, ok)
	assert.Equal(t, "테헤란로", s.Metadata.Name)
	assert.Equal(t, 80.0, g.MaxSpeed())

	_, err = roadnet.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFromFileSkipsNullRecords(t *testing.T) {
	data := `{
		"nodes": [null, {"id": "a", "position": {"lat": 0, "lng": 0}}, {"id": "b", "position": {"lat": 0, "lng": 0.01}}],
		"segments": [null, {"id": "ab", "startNodeId": "a", "endNodeId": "b"}]
	}`
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	g, err := roadnet.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, []string{"ab"}, g.SegmentIDs())

	_, err = roadnet.New([]*roadnet.Node{nil}, nil)
	assert.ErrorIs(t, err, roadnet.ErrEmptyGraph)
}
