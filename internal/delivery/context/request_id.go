// Package context carries request-scoped values from the HTTP layer to the usecases.
package context

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// HeaderXRequestID is the header a client may send to correlate its request.
	HeaderXRequestID = "X-Request-Id"

	// AttrRequestID is the log attribute and echo.Context key holding the request ID.
	AttrRequestID = "request_id"
)

type loggerKey struct{}

// GetRequestID returns the ID the request ID middleware stored on c. Outside that
// middleware a fresh UUID is returned so envelopes always carry one.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(AttrRequestID).(string); ok && id != "" {
		return id
	}

	return uuid.New().String()
}

func SetRequestID(c echo.Context, requestID string) {
	c.Set(AttrRequestID, requestID)
}

// WithLogger attaches a request-scoped logger to ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLoggerOrDefault returns the logger attached by WithLogger, or fallback for
// work that did not start from an HTTP request (startup catalog load, CLI).
func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}

	return fallback
}
