package transport

import (
	"context"

	"github.com/rhuss/lokal/pkg/api"
)

// Processor runs a request to completion. Implementations never return nil;
// failures are reported through the response.
type Processor interface {
	Process(ctx context.Context, req *api.Request) *api.Response
}

// ProcessorFunc is an adapter that allows using an ordinary function as a
// Processor.
type ProcessorFunc func(ctx context.Context, req *api.Request) *api.Response

// Process calls f(ctx, req).
func (f ProcessorFunc) Process(ctx context.Context, req *api.Request) *api.Response {
	return f(ctx, req)
}
