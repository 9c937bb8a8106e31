// Package observability provides the logging, metrics and tracing
// infrastructure shared by the worker and the API.
//
// Subpackages:
//   - logging: structured logging with slog and context propagation
//   - metrics: Prometheus metrics for HTTP, the preparation pipeline and the database
//   - tracing: OpenTelemetry tracer provider, spans and HTTP middleware
package observability
