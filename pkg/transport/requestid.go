package transport

import (
	"context"

	"github.com/rhuss/lokal/pkg/api"
)

// RequestID returns middleware that gives every request an ID. A request
// without one takes the ID from the context (set by the HTTP adapter from
// the X-Request-ID header) or a newly generated one. The ID is stored in
// the context and can be retrieved with RequestIDFromContext.
func RequestID() Middleware {
	return func(next Processor) Processor {
		return ProcessorFunc(func(ctx context.Context, req *api.Request) *api.Response {
			if req.ID == "" {
				req = req.Clone()
				req.ID = RequestIDFromContext(ctx)
				if req.ID == "" {
					req.ID = api.NewRequestID()
				}
			}
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, req.ID)
			}
			return next.Process(ctx, req)
		})
	}
}
