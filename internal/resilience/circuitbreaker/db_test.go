package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T, opts ...sqlmock.Option) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestNewDBCircuitBreaker(t *testing.T) {
	db, _ := newMockDB(t)
	dcb := NewDBCircuitBreaker(db)

	assert.Same(t, db, dcb.DB())
	assert.Equal(t, gobreaker.StateClosed, dcb.State())
	assert.Equal(t, "database", dcb.cb.Name())
}

func TestDBCircuitBreaker_QueryContext(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, name FROM brands").
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("b1", "Acme"))

	dcb := NewDBCircuitBreaker(db)
	rows, err := dcb.QueryContext(context.Background(), "SELECT id, name FROM brands WHERE tenant_id = $1", "acme")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var id, name string
	require.NoError(t, rows.Scan(&id, &name))
	assert.Equal(t, "b1", id)
	assert.Equal(t, "Acme", name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_ExecContext(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO event_maps").
		WillReturnResult(sqlmock.NewResult(0, 1))

	dcb := NewDBCircuitBreaker(db)
	res, err := dcb.ExecContext(context.Background(), "INSERT INTO event_maps (tenant_id, event_id) VALUES ($1, $2)", "acme", "welcome")
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_OpensAfterFailures(t *testing.T) {
	db, mock := newMockDB(t)
	dbErr := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT").WillReturnError(dbErr)
	}

	dcb := NewDBCircuitBreaker(db)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := dcb.QueryContext(ctx, "SELECT 1")
		require.ErrorIs(t, err, dbErr)
	}
	require.True(t, dcb.IsOpen())

	// No further expectation: an open breaker must not reach the database.
	_, err := dcb.ExecContext(ctx, "DELETE FROM brands")
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.True(t, rejected.Retryable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_HalfOpenProbe(t *testing.T) {
	db, mock := newMockDB(t)
	cfg := DBConfig()
	cfg.MinRequests = 1
	cfg.MaxRequests = 1
	cfg.Timeout = 20 * time.Millisecond
	dcb := NewDBCircuitBreakerWithConfig(db, cfg)

	mock.ExpectExec("UPDATE").WillReturnError(errors.New("timeout"))
	_, err := dcb.ExecContext(context.Background(), "UPDATE brands SET name = $1", "x")
	require.Error(t, err)
	require.True(t, dcb.IsOpen())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, dcb.State())

	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = dcb.ExecContext(context.Background(), "UPDATE brands SET name = $1", "x")
	require.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, dcb.State())
}

func TestDBCircuitBreaker_PingContext(t *testing.T) {
	db, mock := newMockDB(t, sqlmock.MonitorPingsOption(true))
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	dcb := NewDBCircuitBreaker(db)
	assert.NoError(t, dcb.PingContext(context.Background()))
	assert.Error(t, dcb.PingContext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_QueryRowContext(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT name").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("sendgrid"))

	var name string
	err := NewDBCircuitBreaker(db).
		QueryRowContext(context.Background(), "SELECT name FROM configurations WHERE id = $1", "c1").
		Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "sendgrid", name)
}
