// Package api defines the request, response and error types shared by the
// lokal engine and its transports.
//
// Core types:
//   - [Request]: a unit of work with a closed [Kind] and loosely typed parameters
//   - [Response]: the single outcome recorded for every processed request
//   - [APIError]: structured error with type, param and message
//
// Parameters arrive as a JSON object and are decoded into a typed payload per
// kind ([GenerateParams], [RAGParams], [ToolCallParams], [MultimodalParams],
// [EnhancedParams]). Decoding failures are returned as invalid_request errors.
package api
