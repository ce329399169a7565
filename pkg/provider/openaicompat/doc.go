// Package openaicompat talks to any OpenAI-compatible server. [Generator]
// calls /v1/chat/completions, [Embedder] calls /v1/embeddings. Backend
// failures are mapped onto the api error taxonomy: network errors and 5xx
// become provider_error, 404 not_found, 400 invalid_request and context
// expiry provider_timeout.
package openaicompat
