package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/sportmap/internal/backend"
	"github.com/mohammed-shakir/sportmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/sportmap/internal/core/config"
	"github.com/mohammed-shakir/sportmap/internal/core/health"
	"github.com/mohammed-shakir/sportmap/internal/core/httpclient"
	"github.com/mohammed-shakir/sportmap/internal/core/observability"
	"github.com/mohammed-shakir/sportmap/internal/core/router"
	"github.com/mohammed-shakir/sportmap/internal/core/server"
	"github.com/mohammed-shakir/sportmap/internal/events"
	"github.com/mohammed-shakir/sportmap/internal/logger"
	"github.com/mohammed-shakir/sportmap/internal/mapper"
	h3mapper "github.com/mohammed-shakir/sportmap/internal/mapper/h3"
	"github.com/mohammed-shakir/sportmap/internal/metrics"
	"github.com/mohammed-shakir/sportmap/internal/polygonstore"
	"github.com/mohammed-shakir/sportmap/internal/retry"
	"github.com/mohammed-shakir/sportmap/internal/session"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "sportmap",
		Component: "mapsession",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// metrics: dedicated listener when enabled, otherwise collectors stay unregistered
	var opts server.Options
	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)
		opts.Metrics = p.Handler()
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	} else {
		observability.Init(nil, false)
	}
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting map session service",
		"addr", cfg.Addr,
		"version", Version,
		"backend", cfg.BackendURL,
		"retry", cfg.RetryPolicy)

	policy, err := retry.New(cfg.RetryPolicy, cfg, appLog)
	if err != nil {
		appLog.Error("retry policy setup failed", "err", err)
		return 1
	}
	client, err := backend.New(appLog, httpclient.NewOutbound(cfg.FetchTimeout), cfg.BackendURL, policy)
	if err != nil {
		appLog.Error("failed to initialize backend client", "err", err)
		return 1
	}
	api := backend.NewCached(client, cfg.FetchCacheSize, cfg.FetchCacheTTL)

	var agg mapper.Aggregator
	if cfg.HeatmapH3Res >= 0 {
		m, err := h3mapper.New(cfg.HeatmapH3Res)
		if err != nil {
			appLog.Error("invalid heatmap resolution", "res", cfg.HeatmapH3Res, "err", err)
			return 1
		}
		appLog.Info("heatmap aggregation enabled", "res", m.Resolution())
		agg = m
	}

	store := polygonstore.NewMemory()
	if cfg.Redis.Enabled {
		rc, err := redisstore.New(ctx, cfg.Redis.Addr,
			redisstore.WithPoolSize(cfg.Redis.PoolSize),
			redisstore.WithDialTimeout(cfg.Redis.DialTimeout),
			redisstore.WithReadTimeout(cfg.Redis.OpTimeout),
			redisstore.WithWriteTimeout(cfg.Redis.OpTimeout),
		)
		if err != nil {
			appLog.Error("redis connect failed", "addr", cfg.Redis.Addr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		store = polygonstore.New(rc, cfg.Redis.OpTimeout)
		opts.Checks = append(opts.Checks, health.Check{Name: "redis", Pinger: rc})
	}

	var pub events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		k, err := events.NewKafka(cfg.Events.BrokerList(), cfg.Events.Topic, cfg.Events.Queue, appLog)
		if err != nil {
			appLog.Error("kafka producer setup failed", "err", err)
			return 1
		}
		pub = k
	}
	defer func() {
		if err := pub.Close(); err != nil {
			appLog.Warn("events close", "err", err)
		}
	}()

	mgr := session.NewManager(ctx, session.Deps{
		API:         api,
		Store:       store,
		Events:      pub,
		Aggregator:  agg,
		Logger:      appLog,
		CircleSteps: cfg.CircleSteps,
	}, cfg.SessionIdleTTL)
	go mgr.Run(ctx)
	defer mgr.CloseAll()

	handler := server.Handler(appLog, router.New(appLog, mgr, store), opts)
	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
