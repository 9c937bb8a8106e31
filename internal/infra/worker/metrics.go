package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"notification-prep/internal/pkg/config"
)

// WorkerMetrics holds the Prometheus metrics of the prepare worker: how its
// configuration was loaded, what happened to each delivery, and how the flag
// file reloads went.
//
// All metrics are registered via promauto, so NewWorkerMetrics may only be
// called once per process.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// DeliveriesTotal counts deliveries by disposition
	// (ack, requeued, reject, retry).
	DeliveriesTotal *prometheus.CounterVec

	// HandleDurationSeconds observes how long a delivery took to handle.
	HandleDurationSeconds prometheus.Histogram

	// InFlight is the number of deliveries currently being handled.
	InFlight prometheus.Gauge

	// LastAckTimestamp is the Unix time of the last acknowledged delivery.
	LastAckTimestamp prometheus.Gauge

	// FlagsReloadsTotal counts flag file reloads by status (success/failure).
	FlagsReloadsTotal *prometheus.CounterVec
}

// NewWorkerMetrics creates and registers the worker metrics.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_deliveries_total",
			Help: "Total number of prepare deliveries by disposition",
		}, []string{"disposition"}),

		HandleDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_delivery_duration_seconds",
			Help:    "Duration of prepare delivery handling in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		InFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_deliveries_in_flight",
			Help: "Number of prepare deliveries currently being handled",
		}),

		LastAckTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_last_ack_timestamp",
			Help: "Unix timestamp of the last acknowledged prepare delivery",
		}),

		FlagsReloadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_flags_reloads_total",
			Help: "Total number of flag file reloads by status",
		}, []string{"status"}),
	}
}

// DeliveryStarted marks a delivery as in flight.
func (m *WorkerMetrics) DeliveryStarted() {
	m.InFlight.Inc()
}

// DeliveryFinished records the outcome of a delivery started with
// DeliveryStarted.
func (m *WorkerMetrics) DeliveryFinished(disposition string, elapsed time.Duration) {
	m.InFlight.Dec()
	m.DeliveriesTotal.WithLabelValues(disposition).Inc()
	m.HandleDurationSeconds.Observe(elapsed.Seconds())
	if disposition == "ack" {
		m.LastAckTimestamp.SetToCurrentTime()
	}
}

// RecordFlagsReload counts a flag file reload.
func (m *WorkerMetrics) RecordFlagsReload(err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.FlagsReloadsTotal.WithLabelValues(status).Inc()
}
