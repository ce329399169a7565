package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/lokal/pkg/api"
)

// Logging returns middleware that emits a structured log entry for each
// processed request with its ID, kind, duration and outcome.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Processor) Processor {
		return ProcessorFunc(func(ctx context.Context, req *api.Request) *api.Response {
			start := time.Now()
			resp := next.Process(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("kind", string(req.Kind)),
				slog.Duration("duration", time.Since(start)),
			}
			if resp != nil && resp.Error != nil {
				attrs = append(attrs,
					slog.String("error_type", string(resp.Error.Type)),
					slog.String("error", resp.Error.Message),
				)
				logger.LogAttrs(ctx, slog.LevelWarn, "request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
			}
			return resp
		})
	}
}
