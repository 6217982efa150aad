package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tour-planning-service/internal/adapters/cache"
	"tour-planning-service/internal/adapters/events"
	"tour-planning-service/internal/adapters/repositories"
	"tour-planning-service/internal/api"
	"tour-planning-service/internal/api/handlers"
	"tour-planning-service/internal/config"
	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/db"
	"tour-planning-service/internal/platform/kv"
	"tour-planning-service/internal/platform/logger"
	"tour-planning-service/internal/platform/metrics"
	"tour-planning-service/internal/ports"
	"tour-planning-service/internal/services"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis or in-memory) behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("load config", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		zap.L().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]handlers.Pinger{}

	var (
		sqlDB  *sql.DB
		rdb    *redis.Client
		repo   ports.TourRepository = repositories.NewMemoryTourRepository()
		paths  ports.PathCache
		broker ports.TransitionBroker = events.NewMemoryBroker()
	)

	if cfg.DatabaseURL != "" {
		sqlDB, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer sqlDB.Close()

		if err := repositories.InitSchema(sqlDB); err != nil {
			log.Fatal("init schema", zap.Error(err))
		}
		repo = repositories.NewPostgresTourRepository(sqlDB)
		paths = cache.NewSQLPathCache(sqlDB)
		health["postgres"] = handlers.PingFunc(sqlDB.PingContext)
	}

	// Redis, when configured, takes over path caching and event fan-out so
	// that several instances share both.
	if cfg.RedisURL != "" {
		rdb, err = kv.Open(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("open redis", zap.Error(err))
		}
		defer rdb.Close()

		paths = cache.NewRedisPathCache(rdb, cfg.PathCacheTTL, log)
		broker = events.NewRedisBroker(rdb, log)
		health["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	if !cfg.PathCacheEnabled {
		paths = nil
	}

	optimizer := services.NewGeneticOptimizer(services.OptimizerConfig(cfg.Optimizer), log)
	factory := func(network *domain.RoadNetwork, networkID string) *services.Planner {
		idx := services.NewShortestPathIndex(network, log)
		idx.Cache = paths
		idx.NetworkID = networkID
		idx.Workers = cfg.Workers

		p := services.NewPlanner(network, idx, optimizer, log)
		p.Publisher = broker
		return p
	}
	workspace := services.NewWorkspace(cfg.PlannerName, factory, repo, log)

	var limiter *rate.Limiter
	if cfg.SearchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SearchRate), cfg.SearchBurst)
	}

	router := api.NewRouter(api.Deps{
		Workspace:     workspace,
		Broker:        broker,
		NetworkPrefix: cfg.NetworkID,
		Health:        health,
		SearchLimiter: limiter,
	})

	// Write timeout covers a full cold tour search on a large network.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("postgres", sqlDB != nil),
			zap.Bool("redis", rdb != nil),
			zap.Bool("path_cache", paths != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}
