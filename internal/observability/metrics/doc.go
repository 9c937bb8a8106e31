// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the application metrics:
//   - HTTP request metrics (duration, count, size)
//   - Preparation pipeline metrics (outcomes, routing candidates, envelopes,
//     event-map stubs, cache lookups, requeues)
//   - Database query metrics
//
// All metrics are registered with the Prometheus default registry and exposed
// via the /metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	outcome := prepare(ctx, msg)
//	metrics.RecordPreparation(outcome, metrics.ModeDeliver, time.Since(start))
package metrics
