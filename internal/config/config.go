package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	ServerPort     string
	StoreDriver    string
	DatabaseURL    string
	MigrateOnStart bool
	MatchWindow    time.Duration

	Mongo struct {
		URI      string
		Database string
	}

	LogLevel string
	AppEnv   string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	TrustProxyHeaders  bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "5000"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AppEnv:      getEnv("APP_ENV", "development"),
	}
	cfg.Mongo.URI = os.Getenv("MONGO_URI")
	cfg.Mongo.Database = getEnv("MONGO_DATABASE", "foodaid")

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set")
		}
	case DriverMongo:
		if cfg.Mongo.URI == "" {
			return nil, fmt.Errorf("MONGO_URI must be set")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, memory; got %q", cfg.StoreDriver)
	}

	var err error
	if cfg.MigrateOnStart, err = strconv.ParseBool(getEnv("MIGRATE_ON_START", "true")); err != nil {
		return nil, fmt.Errorf("MIGRATE_ON_START: %w", err)
	}

	if cfg.MatchWindow, err = time.ParseDuration(getEnv("MATCH_WINDOW", "20h")); err != nil {
		return nil, fmt.Errorf("MATCH_WINDOW: %w", err)
	}
	if cfg.MatchWindow <= 0 {
		return nil, fmt.Errorf("MATCH_WINDOW must be positive")
	}

	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}

	if cfg.TrustProxyHeaders, err = strconv.ParseBool(getEnv("TRUST_PROXY_HEADERS", "false")); err != nil {
		return nil, fmt.Errorf("TRUST_PROXY_HEADERS: %w", err)
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
