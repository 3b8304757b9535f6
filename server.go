package main

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"github.com/fleetmaint/navigation/navierr"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/fleetmaint/navigation/router"
	"github.com/fleetmaint/navigation/safety"
	"github.com/fleetmaint/navigation/traffic"
	"github.com/samber/lo"
)

type NavigationServer struct {
	graph     *roadnet.Graph
	router    *router.Router
	traffic   *traffic.Model
	catalogue *safety.Catalogue
	scorer    *safety.Scorer
	// 可为nil，此时不保存路况快照
	snapshots traffic.SnapshotStore

	// 接口开启true或关闭false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewNavigationServer(
	graph *roadnet.Graph,
	model *traffic.Model,
	catalogue *safety.Catalogue,
	snapshots traffic.SnapshotStore,
) *NavigationServer {
	if catalogue == nil {
		catalogue = safety.NewCatalogue(nil)
	}
	return &NavigationServer{
		graph:     graph,
		router:    router.New(graph, model),
		traffic:   model,
		catalogue: catalogue,
		scorer:    safety.NewScorer(catalogue, model),
		snapshots: snapshots,
		ok:        true, cond: sync.NewCond(&sync.Mutex{}),
	}
}

// 注册全部接口
func (s *NavigationServer) Mount(mux *http.ServeMux) {
	opt := connect.WithCodec(jsonCodec{})
	mux.Handle(FindRouteProcedure, connect.NewUnaryHandler(FindRouteProcedure, s.FindRoute, opt))
	mux.Handle(ScoreRouteProcedure, connect.NewUnaryHandler(ScoreRouteProcedure, s.ScoreRoute, opt))
	mux.Handle(FindSafetyNearProcedure, connect.NewUnaryHandler(FindSafetyNearProcedure, s.FindSafetyNear, opt))
	mux.Handle(GetTrafficLevelProcedure, connect.NewUnaryHandler(GetTrafficLevelProcedure, s.GetTrafficLevel, opt))
	mux.Handle(EstimateTravelTimeProcedure, connect.NewUnaryHandler(EstimateTravelTimeProcedure, s.EstimateTravelTime, opt))
	mux.Handle(UpdateTrafficProcedure, connect.NewUnaryHandler(UpdateTrafficProcedure, s.UpdateTraffic, opt))
}

// 暂停-恢复机制
func (s *NavigationServer) wait() {
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()
}

// 请求语言，取Accept-Language的主语言
func langOf(h http.Header) string {
	l := strings.TrimSpace(h.Get("Accept-Language"))
	if len(l) < 2 {
		return navierr.DefaultLang
	}
	return strings.ToLower(l[:2])
}

func (s *NavigationServer) FindRoute(
	ctx context.Context,
	req *connect.Request[FindRouteRequest],
) (*connect.Response[FindRouteResponse], error) {
	s.wait()
	in := req.Msg
	lang := lo.Ternary(in.Lang != "", in.Lang, langOf(req.Header()))
	policy, err := router.ParseCostPolicy(in.Policy)
	if err != nil {
		return nil, navierr.ToConnect(navierr.Wrap(navierr.CodeInvalidArgument, err), lang)
	}
	log.Debugf("search %s route from %v to %v", policy, in.Origin, in.Destination)
	route, found, err := s.router.FindRoute(in.Origin, in.Destination, policy, router.Options{
		AvoidHighways: in.AvoidHighways,
		Lang:          lang,
	})
	if err != nil {
		return nil, navierr.ToConnect(err, lang)
	}
	if !found {
		// 无法找到通路，返回空响应
		return connect.NewResponse(&FindRouteResponse{}), nil
	}
	score := s.scorer.ScoreRoute(route.PathPoints, route.RoadSegmentIDs)
	out := &FindRouteResponse{Found: true, Route: route, Safety: &score}
	if in.DangerousPoints > 0 {
		out.DangerousPoints = s.scorer.DangerousPoints(route.PathPoints, in.DangerousPoints)
	}
	return connect.NewResponse(out), nil
}

func (s *NavigationServer) ScoreRoute(
	ctx context.Context,
	req *connect.Request[ScoreRouteRequest],
) (*connect.Response[ScoreRouteResponse], error) {
	s.wait()
	in := req.Msg
	if err := safety.ValidateRoutePoints(in.Points); err != nil {
		return nil, navierr.ToConnect(err, langOf(req.Header()))
	}
	out := &ScoreRouteResponse{Score: s.scorer.ScoreRoute(in.Points, in.SegmentIDs)}
	if in.DangerousPoints > 0 {
		out.DangerousPoints = s.scorer.DangerousPoints(in.Points, in.DangerousPoints)
	}
	return connect.NewResponse(out), nil
}

func (s *NavigationServer) FindSafetyNear(
	ctx context.Context,
	req *connect.Request[FindSafetyNearRequest],
) (*connect.Response[FindSafetyNearResponse], error) {
	s.wait()
	in := req.Msg
	if !in.Point.Valid() {
		return nil, navierr.ToConnect(navierr.New(navierr.CodeInvalidCoordinate, "point %v", in.Point), langOf(req.Header()))
	}
	if in.Radius <= 0 {
		return nil, navierr.ToConnect(navierr.New(navierr.CodeInvalidArgument, "radius %v", in.Radius), langOf(req.Header()))
	}
	return connect.NewResponse(&FindSafetyNearResponse{
		Events: s.catalogue.FindNear(in.Point, in.Radius),
	}), nil
}

func (s *NavigationServer) GetTrafficLevel(
	ctx context.Context,
	req *connect.Request[GetTrafficLevelRequest],
) (*connect.Response[GetTrafficLevelResponse], error) {
	s.wait()
	ids := req.Msg.SegmentIDs
	return connect.NewResponse(&GetTrafficLevelResponse{
		Levels: lo.Associate(ids, func(id string) (string, traffic.Level) { return id, s.traffic.LevelOf(id) }),
		Info:   s.traffic.RouteInfo(ids),
	}), nil
}

func (s *NavigationServer) EstimateTravelTime(
	ctx context.Context,
	req *connect.Request[EstimateTravelTimeRequest],
) (*connect.Response[EstimateTravelTimeResponse], error) {
	s.wait()
	return connect.NewResponse(&EstimateTravelTimeResponse{
		Seconds: s.traffic.EstimateTravelTime(req.Msg.SegmentIDs),
	}), nil
}

// 立即执行一次路况更新
func (s *NavigationServer) UpdateTraffic(
	ctx context.Context,
	req *connect.Request[UpdateTrafficRequest],
) (*connect.Response[UpdateTrafficResponse], error) {
	s.wait()
	return connect.NewResponse(&UpdateTrafficResponse{Updated: s.updateTraffic(ctx)}), nil
}

func (s *NavigationServer) updateTraffic(ctx context.Context) bool {
	updated := s.traffic.Update(ctx)
	if updated && s.snapshots != nil {
		if err := s.traffic.SaveSnapshot(ctx, s.snapshots); err != nil {
			log.Warnf("save traffic snapshot failed: %v", err)
		}
	}
	return updated
}

// 暂停导航服务
func (s *NavigationServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复导航服务
func (s *NavigationServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}
