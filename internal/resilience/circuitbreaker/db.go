package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"

	"notification-prep/internal/observability/metrics"
)

// DBCircuitBreaker guards the database handle shared by the postgres stores.
// It satisfies the stores' DBTX interface, so every lookup the pipeline makes
// fails fast while the database is down.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig opens after five consecutive failures and probes again after 30s.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// NewDBCircuitBreaker wraps db with DBConfig.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

// NewDBCircuitBreakerWithConfig wraps db with cfg.
func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

// QueryContext runs a query through the breaker. While open it returns a
// *RejectedError without touching the database.
func (dcb *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	defer observe("query", time.Now())
	var rows *sql.Rows
	err := dcb.cb.Do(func() error {
		var err error
		rows, err = dcb.db.QueryContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecContext runs a statement through the breaker.
func (dcb *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	defer observe("exec", time.Now())
	var res sql.Result
	err := dcb.cb.Do(func() error {
		var err error
		res, err = dcb.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// QueryRowContext is not guarded: *sql.Row defers its error until Scan.
func (dcb *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	defer observe("query_row", time.Now())
	return dcb.db.QueryRowContext(ctx, query, args...)
}

// PingContext pings the database through the breaker.
func (dcb *DBCircuitBreaker) PingContext(ctx context.Context) error {
	defer observe("ping", time.Now())
	return dcb.cb.Do(func() error { return dcb.db.PingContext(ctx) })
}

// State returns the breaker state.
func (dcb *DBCircuitBreaker) State() gobreaker.State {
	return dcb.cb.State()
}

// IsOpen reports whether calls are currently rejected.
func (dcb *DBCircuitBreaker) IsOpen() bool {
	return dcb.cb.IsOpen()
}

// DB returns the unguarded handle, for migrations and pool statistics.
func (dcb *DBCircuitBreaker) DB() *sql.DB {
	return dcb.db
}

func observe(operation string, start time.Time) {
	metrics.RecordQueryDuration(operation, time.Since(start))
}
