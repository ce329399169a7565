package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/lokal/pkg/api"
)

// Recovery returns middleware that turns a panic in the wrapped processor
// into a server_error response. The server continues to accept new
// requests after a panic is recovered.
func Recovery() Middleware {
	return func(next Processor) Processor {
		return ProcessorFunc(func(ctx context.Context, req *api.Request) (resp *api.Response) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in request processing", "request_id", req.ID, "panic", r)
					resp = api.Failure(req.ID, api.NewServerError(fmt.Sprintf("internal server error: %v", r)))
				}
			}()
			return next.Process(ctx, req)
		})
	}
}
