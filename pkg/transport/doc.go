// Package transport defines the processor interface and middleware chain for
// the lokal HTTP transport layer.
//
// The transport layer bridges external clients and the engine. It decodes
// incoming requests into the types defined in pkg/api, dispatches them to a
// [Processor], and maps the resulting [api.Response] back to the client.
//
// # Middleware
//
// The middleware chain wraps a Processor with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID) and structured logging via log/slog.
//
// # Cancellation
//
// [InFlightRegistry] maps the ids of requests being processed to their
// cancel functions so that a DELETE can stop a request that is still
// running.
package transport
