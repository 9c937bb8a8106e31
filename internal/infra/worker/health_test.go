package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHealthServer() *HealthServer {
	return NewHealthServer("localhost:0", slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func get(t *testing.T, h http.Handler, path string) (int, healthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp healthResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestHealthServer_Liveness(t *testing.T) {
	hs := newTestHealthServer()

	code, resp := get(t, hs.Handler(), "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestHealthServer_Readiness(t *testing.T) {
	hs := newTestHealthServer()
	h := hs.Handler()

	code, resp := get(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)

	hs.SetReady(true)
	code, resp = get(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)

	hs.SetReady(false)
	code, _ = get(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealthServer_ReadinessChecks(t *testing.T) {
	hs := newTestHealthServer()
	hs.SetReady(true)
	hs.AddCheck("database", func(context.Context) error { return nil })
	hs.AddCheck("broker", func(context.Context) error { return errors.New("connection closed") })

	code, resp := get(t, hs.Handler(), "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, map[string]string{"database": "ok", "broker": "connection closed"}, resp.Checks)

	hs.AddCheck("broker", func(context.Context) error { return nil })
	code, resp = get(t, hs.Handler(), "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Checks["broker"])
}

func TestHealthServer_Metrics(t *testing.T) {
	globalTestMetrics.DeliveryStarted()
	globalTestMetrics.DeliveryFinished("ack", time.Millisecond)

	rec := httptest.NewRecorder()
	newTestHealthServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "worker_deliveries_total")
}

func TestHealthServer_GracefulShutdown(t *testing.T) {
	hs := newTestHealthServer()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hs.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
