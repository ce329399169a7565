// Package engine implements the lokal orchestrator. It validates each
// request, routes it by kind to the generator, the document store, the tool
// registry or the multi-step enhanced workflow, enforces the per-request
// deadline and records every request and response in an append-only
// history from which Status is computed.
package engine
