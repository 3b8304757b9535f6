package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/fleetmaint/navigation/safety"
	"github.com/fleetmaint/navigation/traffic"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySnapshots struct {
	mu     sync.Mutex
	levels map[string]traffic.Level
	saved  int
}

func (s *memorySnapshots) Save(_ context.Context, levels map[string]traffic.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = levels
	s.saved++
	return nil
}

func (s *memorySnapshots) Load(context.Context) (map[string]traffic.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels, nil
}

type testEnv struct {
	graph     *roadnet.Graph
	model     *traffic.Model
	source    *traffic.FixtureSource
	snapshots *memorySnapshots
	server    *NavigationServer
	http      *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	g, err := roadnet.Grid(3, 3, 1000, geo.GeoPoint{})
	require.NoError(t, err)
	source := traffic.NewFixtureSource()
	model := traffic.NewModel(g, source)
	n11, _ := g.Node("n1_1")
	catalogue := safety.NewCatalogue([]safety.SafetyDataPoint{{
		ID:            "center",
		MajorCategory: safety.CategoryAccidentProneArea,
		X:             lo.ToPtr(n11.Position.Lng),
		Y:             lo.ToPtr(n11.Position.Lat),
		Severity:      3,
	}})
	snapshots := &memorySnapshots{}
	server := NewNavigationServer(g, model, catalogue, snapshots)
	mux := http.NewServeMux()
	server.Mount(mux)
	mux.Handle("/ws/traffic", &trafficStream{model: model})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testEnv{graph: g, model: model, source: source, snapshots: snapshots, server: server, http: srv}
}

func client[Req, Res any](env *testEnv, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](env.http.Client(), env.http.URL+procedure, connect.WithCodec(jsonCodec{}))
}

func (env *testEnv) pos(id string) geo.GeoPoint {
	n, _ := env.graph.Node(id)
	return n.Position
}

func TestFindRouteRPC(t *testing.T) {
	env := newTestEnv(t)
	c := client[FindRouteRequest, FindRouteResponse](env, FindRouteProcedure)
	res, err := c.CallUnary(context.Background(), connect.NewRequest(&FindRouteRequest{
		Origin:          env.pos("n0_0"),
		Destination:     env.pos("n2_2"),
		DangerousPoints: 3,
	}))
	require.NoError(t, err)
	require.True(t, res.Msg.Found)
	route := res.Msg.Route
	assert.InDelta(t, 4000, route.TotalDistance, 1e-3)
	assert.Len(t, route.RoadSegmentIDs, 4)
	require.NotNil(t, res.Msg.Safety)
	assert.GreaterOrEqual(t, res.Msg.Safety.Score, 0.0)
	assert.LessOrEqual(t, res.Msg.Safety.Score, 100.0)
	if lo.Contains(route.NodeIDs, "n1_1") {
		require.Len(t, res.Msg.DangerousPoints, 1)
		assert.Equal(t, "center", res.Msg.DangerousPoints[0].Event.ID)
	}
	// 韩语提示
	assert.True(t, strings.HasSuffix(route.Steps[0].Instruction, "출발하세요"))
}

func TestFindRouteRPCLocalized(t *testing.T) {
	env := newTestEnv(t)
	c := client[FindRouteRequest, FindRouteResponse](env, FindRouteProcedure)
	req := connect.NewRequest(&FindRouteRequest{Origin: env.pos("n0_0"), Destination: env.pos("n0_2")})
	req.Header().Set("Accept-Language", "en-US")
	res, err := c.CallUnary(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Depart on 가로0", res.Msg.Route.Steps[0].Instruction)
	assert.Equal(t, "You have arrived at your destination", res.Msg.Route.Steps[len(res.Msg.Route.Steps)-1].Instruction)
}

func TestFindRouteRPCErrors(t *testing.T) {
	env := newTestEnv(t)
	c := client[FindRouteRequest, FindRouteResponse](env, FindRouteProcedure)

	_, err := c.CallUnary(context.Background(), connect.NewRequest(&FindRouteRequest{
		Origin:      geo.GeoPoint{Lat: 120},
		Destination: env.pos("n0_0"),
	}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	var ce *connect.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "INVALID_COORDINATE", ce.Meta().Get("x-error-code"))
	assert.Equal(t, "좌표가 올바르지 않습니다", ce.Message())

	_, err = c.CallUnary(context.Background(), connect.NewRequest(&FindRouteRequest{
		Origin:      env.pos("n0_0"),
		Destination: env.pos("n0_1"),
		Policy:      "scenic",
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestFindRouteRPCNotFound(t *testing.T) {
	env := newTestEnv(t)
	// 封闭n0_0的全部连接
	env.model.SetLevel("h0_0", traffic.Closed)
	env.model.SetLevel("v0_0", traffic.Closed)
	c := client[FindRouteRequest, FindRouteResponse](env, FindRouteProcedure)
	res, err := c.CallUnary(context.Background(), connect.NewRequest(&FindRouteRequest{
		Origin:      env.pos("n0_0"),
		Destination: env.pos("n2_2"),
	}))
	require.NoError(t, err)
	assert.False(t, res.Msg.Found)
	assert.Nil(t, res.Msg.Route)
}

func TestScoreRouteRPC(t *testing.T) {
	env := newTestEnv(t)
	c := client[ScoreRouteRequest, ScoreRouteResponse](env, ScoreRouteProcedure)
	_, err := c.CallUnary(context.Background(), connect.NewRequest(&ScoreRouteRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	res, err := c.CallUnary(context.Background(), connect.NewRequest(&ScoreRouteRequest{
		Points:          []geo.GeoPoint{env.pos("n1_0"), env.pos("n1_1"), env.pos("n1_2")},
		SegmentIDs:      []string{"h1_0", "h1_1"},
		DangerousPoints: 5,
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Msg.Score.EventCount)
	require.Len(t, res.Msg.DangerousPoints, 1)
	assert.Equal(t, 3, res.Msg.DangerousPoints[0].Severity)
}

func TestFindSafetyNearRPC(t *testing.T) {
	env := newTestEnv(t)
	c := client[FindSafetyNearRequest, FindSafetyNearResponse](env, FindSafetyNearProcedure)
	res, err := c.CallUnary(context.Background(), connect.NewRequest(&FindSafetyNearRequest{Point: env.pos("n1_1"), Radius: 50}))
	require.NoError(t, err)
	require.Len(t, res.Msg.Events, 1)
	assert.Equal(t, "center", res.Msg.Events[0].ID)

	_, err = c.CallUnary(context.Background(), connect.NewRequest(&FindSafetyNearRequest{Point: env.pos("n1_1")}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestTrafficRPC(t *testing.T) {
	env := newTestEnv(t)
	env.source.Push(traffic.Feed{Levels: []traffic.LevelUpdate{{SegmentID: "h0_0", Level: traffic.VeryHeavy}}})

	update := client[UpdateTrafficRequest, UpdateTrafficResponse](env, UpdateTrafficProcedure)
	res, err := update.CallUnary(context.Background(), connect.NewRequest(&UpdateTrafficRequest{}))
	require.NoError(t, err)
	assert.True(t, res.Msg.Updated)
	assert.Equal(t, 1, env.snapshots.saved)
	assert.Equal(t, traffic.VeryHeavy, env.snapshots.levels["h0_0"])

	levels := client[GetTrafficLevelRequest, GetTrafficLevelResponse](env, GetTrafficLevelProcedure)
	lres, err := levels.CallUnary(context.Background(), connect.NewRequest(&GetTrafficLevelRequest{SegmentIDs: []string{"h0_0", "h0_1"}}))
	require.NoError(t, err)
	assert.Equal(t, traffic.VeryHeavy, lres.Msg.Levels["h0_0"])
	assert.Equal(t, traffic.FreeFlow, lres.Msg.Levels["h0_1"])
	assert.Equal(t, "h0_0", lres.Msg.Info.WorstSegmentID)

	eta := client[EstimateTravelTimeRequest, EstimateTravelTimeResponse](env, EstimateTravelTimeProcedure)
	eres, err := eta.CallUnary(context.Background(), connect.NewRequest(&EstimateTravelTimeRequest{SegmentIDs: []string{"h0_0", "h0_1"}}))
	require.NoError(t, err)
	// 自由流60s，极度拥堵300s
	assert.InDelta(t, 360, eres.Msg.Seconds, 1e-3)
}

func TestSuspendResume(t *testing.T) {
	env := newTestEnv(t)
	env.server.Suspend()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := env.server.EstimateTravelTime(context.Background(), connect.NewRequest(&EstimateTravelTimeRequest{}))
		assert.NoError(t, err)
	}()
	select {
	case <-done:
		t.Fatal("request served while suspended")
	case <-time.After(50 * time.Millisecond):
	}
	env.server.Resume()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("request not served after resume")
	}
}

func TestTrafficScheduler(t *testing.T) {
	env := newTestEnv(t)
	env.source.Push(traffic.Feed{Levels: []traffic.LevelUpdate{{SegmentID: "v0_0", Level: traffic.Heavy}}})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		runTrafficScheduler(ctx, env.server, 10*time.Millisecond)
	}()
	assert.Eventually(t, func() bool { return env.model.LevelOf("v0_0") == traffic.Heavy }, time.Second, 5*time.Millisecond)
	cancel()
	<-stopped
}

func TestTrafficWebsocket(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(env.http.URL, "http")+"/ws/traffic", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{
		"type":    "watchRoute",
		"payload": map[string]any{"segmentIds": []string{"h0_0", "h0_1"}, "intervalMs": 10},
	}))
	var subscribed struct {
		Type    string `json:"type"`
		Payload struct {
			ID string `json:"id"`
		} `json:"payload"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &subscribed))
	assert.Equal(t, "subscribed", subscribed.Type)
	assert.NotEmpty(t, subscribed.Payload.ID)

	env.model.SetLevel("h0_1", traffic.Closed)
	var change struct {
		Type    string `json:"type"`
		Payload struct {
			ID     string         `json:"id"`
			Change traffic.Change `json:"change"`
		} `json:"payload"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &change))
	assert.Equal(t, "change", change.Type)
	assert.Equal(t, subscribed.Payload.ID, change.Payload.ID)
	assert.Equal(t, traffic.Closed, change.Payload.Change.Current.WorstLevel)
	assert.Equal(t, "h0_1", change.Payload.Change.Current.WorstSegmentID)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "ping"}))
	var pong struct {
		Type string `json:"type"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &pong))
	assert.Equal(t, "pong", pong.Type)
}

func TestBenchmarkRequests(t *testing.T) {
	env := newTestEnv(t)
	reqs := benchmarkRequests(env.server, 20, 1, "distance")
	require.Len(t, reqs, 20)
	r := runBenchmarkRequests(env.server, reqs, 2)
	assert.Equal(t, 20, r.Count)
	assert.Equal(t, int32(20), r.Success)
}

func TestNewPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))
	p, err := NewPath(file)
	require.NoError(t, err)
	assert.Equal(t, file, p.File)

	p, err = NewPath("navigation.graph")
	require.NoError(t, err)
	assert.Equal(t, &Path{DB: "navigation", Coll: "graph"}, p)
	assert.Equal(t, "navigation.graph", p.String())

	p, err = NewPath("")
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewPath("a.b.c")
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	addr := fs.String("redis-addr", "", "")
	count := fs.Int("benchmark.count", 1, "")
	listenAddr := fs.String("listen", "localhost:1", "")

	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("BENCHMARK_COUNT=7\n"), 0o644))
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Cleanup(func() { os.Unsetenv("BENCHMARK_COUNT") })

	require.NoError(t, loadEnv(fs, dotenv))
	assert.Equal(t, "localhost:6379", *addr)
	assert.Equal(t, 7, *count)
	assert.Equal(t, "localhost:1", *listenAddr)

	// 命令行参数优先
	require.NoError(t, fs.Parse([]string{"-redis-addr", "redis:6379"}))
	assert.Equal(t, "redis:6379", *addr)
}
