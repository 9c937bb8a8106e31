// Package logging provides structured logging utilities with context propagation.
//
// Loggers are JSON slog loggers. The pipeline attaches a logger carrying the
// tenant and message ids to the context of every invocation so that
// resolvers and the routing engine log against the same fields.
//
// Example usage:
//
//	logger := logging.WithMessage(logging.NewLogger(), msg.TenantID, msg.MessageID)
//	ctx = logging.WithLogger(ctx, logger)
//	logging.FromContext(ctx).Info("prepared", slog.String("outcome", "ROUTED"))
package logging
