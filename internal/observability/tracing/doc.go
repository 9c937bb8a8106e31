// Package tracing provides OpenTelemetry tracing integration.
//
// The preparation pipeline opens one span per inbound message with child spans
// for resolution, routing and envelope persistence. The HTTP API is traced by
// Middleware, which continues W3C trace context sent by callers.
//
// Example usage:
//
//	shutdown := tracing.InitProvider()
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.StartSpan(ctx, "prepare.Handle",
//	    attribute.String("tenant.id", tenantID))
//	defer span.End()
package tracing
