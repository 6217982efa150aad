package main

import (
	"context"
	"flag"

	"tour-planning-service/internal/adapters/repositories"
	"tour-planning-service/internal/config"
	"tour-planning-service/internal/platform/db"
	"tour-planning-service/internal/platform/logger"

	"go.uber.org/zap"
)

func main() {
	purge := flag.String("purge-network", "", "delete cached shortest paths of this network id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("load config", zap.Error(err))
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		zap.L().Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer sqlDB.Close()

	log.Info("initializing database schema")
	if err := repositories.InitSchema(sqlDB); err != nil {
		log.Fatal("schema initialization failed", zap.Error(err))
	}
	log.Info("schema ready")

	if *purge != "" {
		n, err := repositories.PurgePathCache(sqlDB, *purge)
		if err != nil {
			log.Fatal("purge path cache failed", zap.Error(err))
		}
		log.Info("path cache purged", zap.String("network_id", *purge), zap.Int64("rows", n))
	}
}
