// Package middleware provides interceptors and HTTP middleware for bifrost
// apps.
package middleware

import (
	"log/slog"
	"time"

	"github.com/broady/bifrost"
)

// LoggingInterceptor returns an interceptor that logs every endpoint call
// with its path and duration. Calls carrying a request id (see RequestID)
// are logged with it.
func LoggingInterceptor(logger *slog.Logger) bifrost.UnaryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx bifrost.Context, arg any, next bifrost.HandlerFunc) (any, error) {
		start := time.Now()
		attrs := []any{slog.String("endpoint", ctx.EndpointID())}
		if id, ok := RequestIDFromContext(ctx); ok {
			attrs = append(attrs, slog.String("request_id", id))
		}

		logger.InfoContext(ctx, "call started", attrs...)

		res, err := next(ctx, arg)
		attrs = append(attrs, slog.Duration("duration", time.Since(start)))

		if err != nil {
			logger.ErrorContext(ctx, "call failed", append(attrs, slog.Any("error", err))...)
		} else {
			logger.InfoContext(ctx, "call completed", attrs...)
		}
		return res, err
	}
}
