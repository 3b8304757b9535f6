package main

import (
	"context"
	"flag"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"
)

var (
	benchmarkCount  = flag.Int("benchmark.count", 1000, "the random routing count for benchmark")
	benchmarkSeed   = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU    = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
	benchmarkPolicy = flag.String("benchmark.policy", "fastest", "the cost policy for benchmark [distance, fastest, preferMainRoads]")
)

type benchmarkResult struct {
	Count    int
	Success  int32
	TimeCost time.Duration
}

// 随机选取节点对，生成路径规划请求
func benchmarkRequests(server *NavigationServer, count int, seed int64, policy string) []*connect.Request[FindRouteRequest] {
	e := rand.New(rand.NewSource(seed))
	ids := server.graph.NodeIDs()
	reqs := make([]*connect.Request[FindRouteRequest], count)
	for i := 0; i < count; i++ {
		start, _ := server.graph.Node(ids[e.Intn(len(ids))])
		end, _ := server.graph.Node(ids[e.Intn(len(ids))])
		reqs[i] = connect.NewRequest(&FindRouteRequest{
			Origin:      start.Position,
			Destination: end.Position,
			Policy:      policy,
		})
	}
	return reqs
}

func runBenchmarkRequests(server *NavigationServer, reqs []*connect.Request[FindRouteRequest], cpu int) benchmarkResult {
	start := time.Now()
	var success atomic.Int32
	find := func(req *connect.Request[FindRouteRequest]) {
		res, err := server.FindRoute(context.Background(), req)
		if err != nil {
			log.Error("benchmark failed, err:", err)
			return
		}
		if res.Msg.Found {
			success.Add(1)
		}
	}
	if cpu <= 1 {
		for _, req := range reqs {
			find(req)
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(cpu)
		var wg sync.WaitGroup
		wg.Add(len(reqs))
		for _, req := range reqs {
			go func(req *connect.Request[FindRouteRequest]) {
				defer wg.Done()
				find(req)
			}(req)
		}
		wg.Wait()
	}
	return benchmarkResult{
		Count:    len(reqs),
		Success:  success.Load(),
		TimeCost: time.Since(start) * time.Duration(max(cpu, 1)),
	}
}

func runBenchmark(server *NavigationServer) {
	logrus.SetLevel(logrus.WarnLevel)
	reqs := benchmarkRequests(server, *benchmarkCount, *benchmarkSeed, *benchmarkPolicy)
	r := runBenchmarkRequests(server, reqs, *benchmarkCPU)
	log.Warn(
		"benchmark finished", "\n",
		"count:", r.Count, "\n",
		"time:", r.TimeCost, "\n",
		"avg:", r.TimeCost/time.Duration(max(r.Count, 1)), "\n",
		"success:", r.Success, "\n",
	)
}
