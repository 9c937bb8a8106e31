// Package stores opens the repositories selected by STORE_DRIVER and builds
// the preparation service on top of them.
package stores

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"notification-prep/internal/infra/adapter/persistence/memory"
	"notification-prep/internal/infra/adapter/persistence/postgres"
	"notification-prep/internal/infra/db"
	"notification-prep/internal/infra/provider"
	"notification-prep/internal/repository"
	"notification-prep/internal/resilience/circuitbreaker"
	"notification-prep/internal/usecase/envelope"
	"notification-prep/internal/usecase/prepare"
	"notification-prep/internal/usecase/resolve"
	"notification-prep/internal/usecase/routing"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Options selects and configures a driver.
type Options struct {
	Driver      string
	DatabaseURL string
	// SeedFile is loaded into the memory driver. Ignored by postgres.
	SeedFile string
	// StatsInterval controls pool metric reporting. Zero disables it.
	StatsInterval time.Duration
}

// Set is one implementation of every repository the pipeline reads.
type Set struct {
	EventMaps           repository.EventMapRepository
	Notifications       repository.NotificationRepository
	Brands              repository.BrandRepository
	Configurations      repository.ConfigurationRepository
	Profiles            repository.ProfileRepository
	Preferences         repository.PreferenceRepository
	PreferenceTemplates repository.PreferenceTemplateRepository
	Blobs               repository.BlobRepository

	// DB is nil for the memory driver.
	DB      *sql.DB
	Breaker *circuitbreaker.DBCircuitBreaker
}

// Open builds the Set for opts.Driver. Close must be called on the result.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Set, error) {
	switch opts.Driver {
	case DriverMemory:
		return openMemory(opts, logger)
	case DriverPostgres:
		return openPostgres(ctx, opts, logger)
	default:
		return nil, fmt.Errorf("stores.Open: unknown driver %q", opts.Driver)
	}
}

func openMemory(opts Options, logger *slog.Logger) (*Set, error) {
	s := memory.NewStores()
	if err := s.LoadSeedFile(opts.SeedFile); err != nil {
		return nil, fmt.Errorf("stores.Open: %w", err)
	}
	if opts.SeedFile != "" {
		logger.Info("memory store seeded", slog.String("file", opts.SeedFile))
	}
	return &Set{
		EventMaps:           s.EventMaps,
		Notifications:       s.Notifications,
		Brands:              s.Brands,
		Configurations:      s.Configurations,
		Profiles:            s.Profiles,
		Preferences:         s.Preferences,
		PreferenceTemplates: s.PreferenceTemplates,
		Blobs:               s.Blobs,
	}, nil
}

func openPostgres(ctx context.Context, opts Options, logger *slog.Logger) (*Set, error) {
	conn, err := db.Open(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("stores.Open: %w", err)
	}
	if err := db.MigrateUp(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("stores.Open: migrate: %w", err)
	}
	logger.Info("database migrations applied")

	if opts.StatsInterval > 0 {
		go db.ReportStats(ctx, conn, opts.StatsInterval)
	}

	set := FromDB(conn)
	return set, nil
}

// FromDB builds a postgres Set over conn. Every query goes through a
// database circuit breaker.
func FromDB(conn *sql.DB) *Set {
	cb := circuitbreaker.NewDBCircuitBreaker(conn)
	return &Set{
		EventMaps:           postgres.NewEventMapRepo(cb),
		Notifications:       postgres.NewNotificationRepo(cb),
		Brands:              postgres.NewBrandRepo(cb),
		Configurations:      postgres.NewConfigurationRepo(cb),
		Profiles:            postgres.NewProfileRepo(cb),
		Preferences:         postgres.NewPreferenceRepo(cb),
		PreferenceTemplates: postgres.NewPreferenceTemplateRepo(cb),
		Blobs:               postgres.NewBlobRepo(cb),
		DB:                  conn,
		Breaker:             cb,
	}
}

// Ping reports whether the backing database answers. It always succeeds for
// the memory driver.
func (s *Set) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	if s.Breaker != nil {
		return s.Breaker.PingContext(ctx)
	}
	return s.DB.PingContext(ctx)
}

// Close releases the database pool, if any.
func (s *Set) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// ServiceOptions are the optional collaborators of the preparation service.
type ServiceOptions struct {
	Publisher   envelope.Publisher
	Requeuer    prepare.Requeuer
	Cache       prepare.Cache
	Flags       prepare.FlagSource
	MaxAttempts int
}

// NewService wires the preparation pipeline over s with the built-in
// provider registry.
func (s *Set) NewService(opts ServiceOptions) *prepare.Service {
	return &prepare.Service{
		Events:              resolve.NewEventResolver(s.EventMaps),
		Notifications:       resolve.NewNotificationResolver(s.Notifications),
		Brands:              resolve.NewBrandResolver(s.Brands),
		Configurations:      s.Configurations,
		Profiles:            s.Profiles,
		Preferences:         s.Preferences,
		PreferenceTemplates: s.PreferenceTemplates,
		Engine:              routing.NewEngine(provider.DefaultRegistry()),
		Persister:           envelope.NewPersister(s.Blobs, opts.Publisher),
		Cache:               opts.Cache,
		Flags:               opts.Flags,
		Blobs:               s.Blobs,
		Requeuer:            opts.Requeuer,
		MaxAttempts:         opts.MaxAttempts,
	}
}
