package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/recnode/recnode/internal/logging"
)

// HTTPLoggingMiddleware logs requests with a level derived from the response
// status. CORS preflights are demoted to debug to keep logs readable.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path

	next(ctx)

	status := ctx.Status()
	args := []any{
		"method", method,
		"path", path,
		"status", status,
		"duration", time.Since(start),
		"remote_addr", ctx.RemoteAddr(),
	}

	const message = "HTTP request completed"
	switch {
	case method == http.MethodOptions:
		logger.Debug(message, args...)
	case status >= 500:
		logger.Error(message, args...)
	case status >= 400:
		logger.Warn(message, args...)
	default:
		logger.Info(message, args...)
	}
}
