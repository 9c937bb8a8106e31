package main

import (
	"log/slog"
	"time"

	"notification-prep/internal/infra/stores"
	"notification-prep/internal/pkg/config"
)

// apiConfig holds the settings of the routing summary API.
//
// Environment variables:
//   - API_PORT: 1024-65535 (default: 8080)
//   - GRPC_PORT: 1024-65535 (default: 9090)
//   - API_RATE_LIMIT_RPS: sustained requests per second per tenant, 1-10000 (default: 50)
//   - API_RATE_LIMIT_BURST: 1-10000 (default: 100)
//   - API_REQUEST_TIMEOUT: per request deadline, 1s-2m (default: 30s)
//   - API_MAX_BODY_BYTES: 1KiB-10MiB (default: 1MiB)
//   - STORE_DRIVER: memory or postgres (default: postgres)
//   - STORE_SEED_FILE: YAML seed for the memory driver
//   - DATABASE_URL: postgres DSN
//   - REDIS_URL: shared cache; empty selects the in-process cache
//   - FLAGS_FILE: YAML cache variation file; empty disables per-tenant flags
type apiConfig struct {
	Port           int
	GRPCPort       int
	RateLimitRPS   int
	RateLimitBurst int
	RequestTimeout time.Duration
	MaxBodyBytes   int
	StoreDriver    string
	SeedFile       string
	DatabaseURL    string
	RedisURL       string
	FlagsFile      string
}

func defaultConfig() apiConfig {
	return apiConfig{
		Port:           8080,
		GRPCPort:       9090,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		RequestTimeout: 30 * time.Second,
		MaxBodyBytes:   1 << 20,
		StoreDriver:    stores.DriverPostgres,
	}
}

func validatePort(v int) error      { return config.ValidateIntRange(v, 1024, 65535) }
func validateRate(v int) error      { return config.ValidateIntRange(v, 1, 10000) }
func validateBodyBytes(v int) error { return config.ValidateIntRange(v, 1<<10, 10<<20) }
func validateTimeout(d time.Duration) error {
	return config.ValidateDuration(d, time.Second, 2*time.Minute)
}
func validateStoreDriver(v string) error {
	return config.ValidateOneOf(v, stores.DriverMemory, stores.DriverPostgres)
}
func validateRedisURL(v string) error { return config.ValidateURL(v, "redis", "rediss") }

// loadConfig reads apiConfig from the environment. Invalid values fall back
// to their defaults and are reported through logger and cm.
func loadConfig(logger *slog.Logger, cm *config.ConfigMetrics) apiConfig {
	cfg := defaultConfig()
	l := config.NewLoader(logger, cm)

	cfg.Port = config.Apply(l, "port", config.LoadEnvInt("API_PORT", cfg.Port, validatePort))
	cfg.GRPCPort = config.Apply(l, "grpc_port", config.LoadEnvInt("GRPC_PORT", cfg.GRPCPort, validatePort))
	cfg.RateLimitRPS = config.Apply(l, "rate_limit_rps", config.LoadEnvInt("API_RATE_LIMIT_RPS", cfg.RateLimitRPS, validateRate))
	cfg.RateLimitBurst = config.Apply(l, "rate_limit_burst", config.LoadEnvInt("API_RATE_LIMIT_BURST", cfg.RateLimitBurst, validateRate))
	cfg.RequestTimeout = config.Apply(l, "request_timeout", config.LoadEnvDuration("API_REQUEST_TIMEOUT", cfg.RequestTimeout, validateTimeout))
	cfg.MaxBodyBytes = config.Apply(l, "max_body_bytes", config.LoadEnvInt("API_MAX_BODY_BYTES", cfg.MaxBodyBytes, validateBodyBytes))
	cfg.StoreDriver = config.Apply(l, "store_driver", config.LoadEnvWithFallback("STORE_DRIVER", cfg.StoreDriver, validateStoreDriver))
	cfg.SeedFile = config.LoadEnvString("STORE_SEED_FILE", cfg.SeedFile)
	cfg.DatabaseURL = config.LoadEnvString("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = config.Apply(l, "redis_url", config.LoadEnvWithFallback("REDIS_URL", cfg.RedisURL, validateRedisURL))
	cfg.FlagsFile = config.LoadEnvString("FLAGS_FILE", cfg.FlagsFile)

	l.Finish()
	return cfg
}
