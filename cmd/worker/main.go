package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"

	"notification-prep/internal/infra/cache"
	"notification-prep/internal/infra/flags"
	"notification-prep/internal/infra/queue"
	"notification-prep/internal/infra/stores"
	workerPkg "notification-prep/internal/infra/worker"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/tracing"
	"notification-prep/internal/pkg/config"
)

// reconnectDelay is the pause between broker sessions.
const reconnectDelay = 5 * time.Second

func main() {
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.InitProvider()
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("exchange", workerConfig.Exchange),
		slog.String("prepare_queue", workerConfig.PrepareQueue),
		slog.String("route_queue", workerConfig.RouteQueue),
		slog.Int("max_attempts", workerConfig.MaxAttempts),
		slog.Int("concurrency", workerConfig.Concurrency),
		slog.Int("prefetch", workerConfig.Prefetch),
		slog.Duration("process_timeout", workerConfig.ProcessTimeout),
		slog.String("store_driver", workerConfig.StoreDriver),
		slog.Int("health_port", workerConfig.HealthPort))

	set, err := stores.Open(ctx, stores.Options{
		Driver:        workerConfig.StoreDriver,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SeedFile:      config.LoadEnvString("STORE_SEED_FILE", ""),
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

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	healthServer.AddCheck("database", set.Ping)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	prepCache := initCache(ctx, logger, workerConfig, healthServer)

	opts := stores.ServiceOptions{Cache: prepCache, MaxAttempts: workerConfig.MaxAttempts}
	scheduler := cron.New()
	if src := initFlags(logger, workerConfig, workerMetrics, scheduler); src != nil {
		opts.Flags = src
	}
	scheduler.Start()
	defer scheduler.Stop()

	runConsumer(ctx, logger, workerConfig, workerMetrics, healthServer, set, opts)
	logger.Info("worker stopped")
}

// initCache returns the Redis-backed cache when REDIS_URL is set and the
// in-process cache otherwise.
func initCache(ctx context.Context, logger *slog.Logger, cfg *workerPkg.WorkerConfig, health *workerPkg.HealthServer) *cache.Cache {
	if cfg.RedisURL == "" {
		store := cache.NewMemoryStore()
		go store.RunSweeper(ctx, time.Minute)
		logger.Info("using in-process cache")
		return cache.New(store)
	}

	client, err := cache.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, using in-process cache", slog.Any("error", err))
		store := cache.NewMemoryStore()
		go store.RunSweeper(ctx, time.Minute)
		return cache.New(store)
	}
	store := cache.NewRedisStore(client, cache.DefaultKeyPrefix)
	health.AddCheck("cache", store.Ping)
	logger.Info("using redis cache")
	return cache.New(store)
}

// initFlags loads FLAGS_FILE and schedules its reload. It returns nil when no
// file is configured.
func initFlags(logger *slog.Logger, cfg *workerPkg.WorkerConfig, m *workerPkg.WorkerMetrics, c *cron.Cron) *flags.Source {
	if cfg.FlagsFile == "" {
		logger.Info("cache flags disabled")
		return nil
	}
	src := flags.NewSource(cfg.FlagsFile, logger)
	err := src.Load()
	m.RecordFlagsReload(err)
	if err != nil {
		logger.Warn("initial flags load failed, caching disabled until reload", slog.Any("error", err))
	}
	if _, err := src.Schedule(c, cfg.FlagsReloadSchedule, m.RecordFlagsReload); err != nil {
		logger.Error("failed to schedule flags reload", slog.Any("error", err))
	}
	return src
}

// runConsumer holds one broker session at a time until ctx is done. Each
// session dials, declares the topology and consumes the prepare queue.
func runConsumer(
	ctx context.Context,
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	m *workerPkg.WorkerMetrics,
	health *workerPkg.HealthServer,
	set *stores.Set,
	opts stores.ServiceOptions,
) {
	var current atomic.Pointer[amqp.Connection]
	health.AddCheck("broker", func(context.Context) error {
		conn := current.Load()
		if conn == nil || conn.IsClosed() {
			return errors.New("not connected")
		}
		return nil
	})

	topology := queue.Topology{
		Exchange:     cfg.Exchange,
		PrepareQueue: cfg.PrepareQueue,
		RouteQueue:   cfg.RouteQueue,
	}

	for ctx.Err() == nil {
		err := session(ctx, logger, cfg, m, topology, set, opts, func(conn *amqp.Connection) {
			current.Store(conn)
			health.SetReady(conn != nil)
		})
		if ctx.Err() != nil {
			break
		}
		logger.Error("broker session ended, reconnecting",
			slog.Any("error", err),
			slog.Duration("delay", reconnectDelay))

		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}
	health.SetReady(false)
}

func session(
	ctx context.Context,
	logger *slog.Logger,
	cfg *workerPkg.WorkerConfig,
	m *workerPkg.WorkerMetrics,
	topology queue.Topology,
	set *stores.Set,
	opts stores.ServiceOptions,
	connected func(*amqp.Connection),
) error {
	conn, err := queue.Dial(ctx, cfg.AMQPURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		connected(nil)
		_ = conn.Close()
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	err = queue.Declare(ch, topology)
	_ = ch.Close()
	if err != nil {
		return err
	}

	publisher, err := queue.NewPublisher(conn, topology)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	opts.Publisher = publisher
	opts.Requeuer = publisher
	consumer := &queue.Consumer{
		Handler:     set.NewService(opts),
		Observer:    m,
		Logger:      logger,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.ProcessTimeout,
	}
	connected(conn)
	logger.Info("broker session started", slog.String("queue", topology.PrepareQueue))
	return consumer.Run(ctx, conn, topology.PrepareQueue, cfg.Prefetch)
}
