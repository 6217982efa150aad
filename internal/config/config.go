package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string

	// NetworkID namespaces cached shortest path rows.
	NetworkID string

	// PlannerName keys the persisted tour snapshot.
	PlannerName string

	Workers int

	// PathCacheEnabled turns the Postgres or Redis path cache on.
	PathCacheEnabled bool
	PathCacheTTL     time.Duration

	// SearchRate limits tour searches per second across the service;
	// zero disables the limit.
	SearchRate  float64
	SearchBurst int

	Optimizer Optimizer
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:             Get("PORT", "8080"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		LogLevel:         Get("LOG_LEVEL", "info"),
		NetworkID:        Get("NETWORK_ID", "default"),
		PlannerName:      Get("PLANNER_NAME", "default"),
		Workers:          GetInt("SHORTEST_PATH_WORKERS", runtime.GOMAXPROCS(0)),
		PathCacheEnabled: GetBool("PATH_CACHE_ENABLED", true),
		PathCacheTTL:     GetDuration("PATH_CACHE_TTL", 24*time.Hour),
		SearchRate:       GetFloat("SEARCH_RATE", 0),
		SearchBurst:      GetInt("SEARCH_BURST", 4),
		Optimizer:        DefaultOptimizer(),
	}

	if path := os.Getenv("OPTIMIZER_CONFIG"); path != "" {
		opt, err := LoadOptimizerFile(path, cfg.Optimizer)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg.Optimizer = opt
	}
	cfg.Optimizer = cfg.Optimizer.withEnv()

	if err := cfg.Optimizer.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("load config: SHORTEST_PATH_WORKERS must be positive, got %d", cfg.Workers)
	}

	if cfg.SearchRate < 0 || cfg.SearchBurst < 1 {
		return Config{}, fmt.Errorf("load config: SEARCH_RATE must be >= 0 and SEARCH_BURST >= 1")
	}

	return cfg, nil
}

func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func GetInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func GetFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func GetBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func GetDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
