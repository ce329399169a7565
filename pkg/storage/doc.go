// Package storage defines the persisted record types and the whole-collection
// persister contracts used by the document and context stores.
//
// A save replaces the complete persisted collection and a load returns it in
// the order it was saved. Backends:
//   - memory: in-process snapshots, for tests and ephemeral runs
//   - file: JSON files written via temp file and atomic rename
//   - sqlite: a single embedded database file (modernc.org/sqlite, no cgo)
//   - postgres: pgx connection pool with embedded migrations
//
// Every backend scopes its data by a namespace so several independent
// engines can share one database.
package storage
