package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	hhttp "notification-prep/internal/handler/http"
	"notification-prep/internal/handler/http/middleware"
	"notification-prep/internal/handler/http/requestid"
	hrouting "notification-prep/internal/handler/http/routing"
	"notification-prep/internal/infra/cache"
	"notification-prep/internal/infra/flags"
	"notification-prep/internal/infra/stores"
	igrpc "notification-prep/internal/interface/grpc"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/tracing"
	"notification-prep/internal/pkg/config"
	"notification-prep/internal/usecase/summary"
)

func main() {
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	shutdownTracing := tracing.InitProvider()
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	cfg := loadConfig(logger, config.NewConfigMetrics("api"))
	logger.Info("api configuration loaded",
		slog.Int("port", cfg.Port),
		slog.Int("rate_limit_rps", cfg.RateLimitRPS),
		slog.Int("rate_limit_burst", cfg.RateLimitBurst),
		slog.Duration("request_timeout", cfg.RequestTimeout),
		slog.String("store_driver", cfg.StoreDriver))

	// Background goroutines live until shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	set, err := stores.Open(ctx, stores.Options{
		Driver:        cfg.StoreDriver,
		DatabaseURL:   cfg.DatabaseURL,
		SeedFile:      cfg.SeedFile,
		StatsInterval: 30 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("failed to open stores", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	components := setupServer(ctx, logger, cfg, set, getVersion())
	runServer(ctx, cancel, logger, cfg, components)
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// serverComponents holds what runServer needs.
type serverComponents struct {
	Handler     http.Handler
	GRPC        *grpc.Server
	RateLimiter *middleware.RateLimiter
}

// setupServer builds the summary service over set and returns the wrapped
// handler.
func setupServer(ctx context.Context, logger *slog.Logger, cfg apiConfig, set *stores.Set, version string) *serverComponents {
	opts := stores.ServiceOptions{Cache: initCache(ctx, logger, cfg.RedisURL)}
	if cfg.FlagsFile != "" {
		src := flags.NewSource(cfg.FlagsFile, logger)
		if err := src.Load(); err != nil {
			logger.Warn("flags load failed, caching disabled", slog.Any("error", err))
		}
		opts.Flags = src
	}
	svc := summary.NewService(set.NewService(opts))

	limiter := middleware.NewRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst)
	mux := setupRoutes(logger, svc, set, limiter, version)

	return &serverComponents{
		Handler:     applyMiddleware(logger, mux, limiter, cfg),
		GRPC:        igrpc.NewServer(svc, logger),
		RateLimiter: limiter,
	}
}

// initCache returns the Redis-backed cache when redisURL is set and the
// in-process cache otherwise.
func initCache(ctx context.Context, logger *slog.Logger, redisURL string) *cache.Cache {
	if redisURL != "" {
		client, err := cache.OpenRedis(ctx, redisURL)
		if err == nil {
			logger.Info("using redis cache")
			return cache.New(cache.NewRedisStore(client, cache.DefaultKeyPrefix))
		}
		logger.Warn("redis unavailable, using in-process cache", slog.Any("error", err))
	}
	store := cache.NewMemoryStore()
	go store.RunSweeper(ctx, time.Minute)
	return cache.New(store)
}

// setupRoutes mounts the API and operational endpoints.
func setupRoutes(logger *slog.Logger, svc hrouting.Summarizer, set *stores.Set, limiter *middleware.RateLimiter, version string) *http.ServeMux {
	mux := http.NewServeMux()
	hrouting.Register(mux, svc, logger)

	mux.Handle("/health", &hhttp.HealthHandler{
		DB:          set.DB,
		Version:     version,
		RateLimiter: limiter,
	})
	mux.Handle("/health/ready", &hhttp.ReadyHandler{DB: set.DB})
	mux.Handle("/health/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())
	return mux
}

// applyMiddleware wraps handler. Order, outermost first:
//  1. Request ID (generates unique ID for request tracking)
//  2. Tracing (extracts the caller's trace context)
//  3. Rate limiting (per tenant, before any work)
//  4. Recovery (catch panics)
//  5. Logging
//  6. Body size limit
//  7. Request timeout
//  8. Metrics
func applyMiddleware(logger *slog.Logger, handler http.Handler, limiter *middleware.RateLimiter, cfg apiConfig) http.Handler {
	return hhttp.Chain(handler,
		requestid.Middleware,
		tracing.Middleware,
		limiter.Middleware,
		hhttp.Recover(logger),
		hhttp.Logging(logger),
		hhttp.LimitRequestBody(int64(cfg.MaxBodyBytes)),
		hhttp.Timeout(cfg.RequestTimeout),
		hhttp.MetricsMiddleware,
	)
}

// runServer serves until SIGINT or SIGTERM, then shuts down gracefully.
func runServer(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, cfg apiConfig, components *serverComponents) {
	go components.RateLimiter.RunCleanup(ctx, time.Minute, 10*time.Minute)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	go func() {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			logger.Error("grpc listen failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("grpc server starting", slog.String("addr", grpcAddr))
		if err := components.GRPC.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server failed", slog.Any("error", err))
		}
	}()

	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	stopGRPC(shutdownCtx, components.GRPC)
	logger.Info("server stopped")
}

// stopGRPC drains in-flight RPCs, forcing a stop when ctx ends first.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}
