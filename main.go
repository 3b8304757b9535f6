package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetmaint/navigation/geo"
	"github.com/fleetmaint/navigation/navierr"
	"github.com/fleetmaint/navigation/roadnet"
	"github.com/fleetmaint/navigation/safety"
	"github.com/fleetmaint/navigation/traffic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var log = logrus.WithField("module", "server")

var (
	// 配置信息，未在命令行指定时读取同名环境变量（见loadEnv）
	mongoURI     = flag.String("mongo_uri", "", "mongo db uri")
	graphPathStr = flag.String("graph", "", "road graph file or database and collection, empty means a synthetic grid [format: {fspath} or {db}.{col}]")
	gridSize     = flag.Int("grid-size", 20, "size of the synthetic grid when -graph is empty")
	listen       = flag.String("listen", "localhost:52101", "connect listening address")
	logLevel     = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 路况
	trafficInterval = flag.Duration("traffic-interval", time.Minute, "traffic update interval")
	trafficSeed     = flag.Int64("traffic-seed", 0, "seed of the simulated traffic source, 0 means time based")
	probeAddr       = flag.String("probe-addr", "", "tcp address probed before each traffic update, empty means always online")

	// 安全数据
	safetyFeed   = flag.String("safety-feed", "", "safety feed url")
	safetyAPIKey = flag.String("safety-api-key", "", "safety feed api key")
	safetyFile   = flag.String("safety-file", "", "safety records json file, used when -safety-feed is empty")
	fullGeometry = flag.Bool("full-geometry", false, "match line and polygon safety geometries in full instead of their first coordinate")

	// 路况快照与安全数据备份
	redisAddr     = flag.String("redis-addr", "", "redis address, empty means disable")
	redisPassword = flag.String("redis-password", "", "redis password")
	redisDB       = flag.Int("redis-db", 0, "redis db")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "", "pprof listening address, empty means disable")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

const (
	trafficSnapshotKey = "navigation:traffic:levels"
	trafficSnapshotTTL = 24 * time.Hour
	safetyBackupKey    = "navigation:safety:records"
	safetyBackupTTL    = 7 * 24 * time.Hour
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if err := loadEnv(flag.CommandLine); err != nil {
		logrus.Fatalf("invalid environment: %v", err)
	}
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	graph, err := loadGraph(ctx)
	if err != nil {
		log.Fatalf("failed to load road graph: %v", navierr.Wrap(navierr.CodeGraphUnavailable, err))
	}

	var rdb *redis.Client
	if *redisAddr != "" {
		rdb = connectRedis(ctx)
	}

	// 路况模型
	seed := *trafficSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	opts := []traffic.Option{}
	if *probeAddr != "" {
		opts = append(opts, traffic.WithConnectivity(traffic.DialProbe{Addr: *probeAddr, Timeout: 3 * time.Second}))
	}
	model := traffic.NewModel(graph, traffic.NewSimulatedSource(graph, seed), opts...)
	var snapshots traffic.SnapshotStore
	if rdb != nil {
		store := traffic.NewRedisSnapshotStore(rdb, trafficSnapshotKey, trafficSnapshotTTL)
		if err := model.LoadSnapshot(ctx, store); err != nil {
			log.Warnf("load traffic snapshot failed: %v", err)
		}
		snapshots = store
	}

	catalogue := safety.NewCatalogue(loadSafety(ctx, rdb), safety.WithFullGeometry(*fullGeometry))

	// 启动导航服务
	server := NewNavigationServer(graph, model, catalogue, snapshots)

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	if *benchmark {
		// 性能测试
		runBenchmark(server)
		return
	}

	go runTrafficScheduler(ctx, server, *trafficInterval)

	// 启动tcp监听和初始化connect服务端
	mux := http.NewServeMux()
	server.Mount(mux)
	mux.Handle("/ws/traffic", &trafficStream{model: model})

	// 使用HTTP/2 w.o. TLS
	s := &http.Server{
		Addr:    *listen,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// 优雅退出
	// 创建监听退出chan
	signalCh := make(chan os.Signal, 1)
	//监听指定信号 ctrl+c kill
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Info("stopping...")
		go func() {
			<-signalCh
			os.Exit(1) // 强制结束
		}()
		// 停止路况更新
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	log.Infof("server listening at %v", s.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("failed to serve: %v", err)
	}
	if snapshots != nil {
		if err := model.SaveSnapshot(context.Background(), snapshots); err != nil {
			log.Warnf("save traffic snapshot failed: %v", err)
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	log.Info("navigation closes")
}

func loadGraph(ctx context.Context) (*roadnet.Graph, error) {
	graphPath, err := NewPath(*graphPathStr)
	if err != nil {
		return nil, err
	}
	if graphPath == nil {
		log.Warnf("no road graph configured, use a %dx%d synthetic grid", *gridSize, *gridSize)
		return roadnet.Grid(*gridSize, *gridSize, 500, geo.GeoPoint{Lat: 37.5, Lng: 127.0})
	}
	loadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return graphPath.LoadGraph(loadCtx, *mongoURI)
}

// 连接失败时不使用redis
func connectRedis(ctx context.Context) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     *redisAddr,
		Password: *redisPassword,
		DB:       *redisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnf("redis connection failed, snapshots and safety backup disabled: %v", err)
		client.Close()
		return nil
	}
	return client
}

// 加载安全数据，数据源不可用时以空目录启动
func loadSafety(ctx context.Context, rdb *redis.Client) []safety.SafetyDataPoint {
	var loader safety.Loader
	switch {
	case *safetyFeed != "":
		loader = safety.NewAPIClient(*safetyFeed, *safetyAPIKey)
	case *safetyFile != "":
		loader = safety.FileLoader{Path: *safetyFile}
	default:
		log.Info("no safety source configured")
		return nil
	}
	var backup safety.RecordCache
	if rdb != nil {
		backup = safety.NewRedisRecordCache(rdb, safetyBackupKey, safetyBackupTTL)
	}
	records, err := safety.LoadRecords(ctx, loader, backup)
	if err != nil {
		if navierr.CodeOf(err) == navierr.CodeMissingAPIKey {
			log.Fatalf("safety feed: %v", err)
		}
		log.Errorf("safety feed unavailable, start with an empty catalogue: %v", err)
		return nil
	}
	return records
}
