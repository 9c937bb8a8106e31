package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"notification-prep/internal/handler/http/requestid"
	"notification-prep/internal/handler/http/responsewriter"
)

// Request headers recorded on server spans.
const (
	TenantHeader = "X-Tenant-ID"
	ScopeHeader  = "X-Scope"
)

// TraceIDHeader is set on every response so callers can find their trace.
const TraceIDHeader = "X-Trace-Id"

// Middleware continues the caller's trace, or starts one, with a server span
// per request. The span carries the tenant, the scope and the request id when
// present; 5xx responses mark it failed.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := GetTracer().Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			),
		)
		defer span.End()

		for header, key := range map[string]string{TenantHeader: "tenant.id", ScopeHeader: "notification.scope"} {
			if v := r.Header.Get(header); v != "" {
				span.SetAttributes(attribute.String(key, v))
			}
		}
		if id := requestid.FromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}
		w.Header().Set(TraceIDHeader, span.SpanContext().TraceID().String())

		rw := responsewriter.Wrap(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		status := rw.StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}
