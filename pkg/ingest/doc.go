// Package ingest loads files from a directory tree into the document store.
//
// Files are selected with doublestar include and exclude patterns relative
// to the root, optionally split into overlapping sentence chunks, and
// embedded concurrently. Each chunk is stored with "source" (the slash
// separated relative path), "chunk" and "chunks" metadata so that a later
// run can replace the chunks of a changed file. [Ingester.Watch] keeps the
// store in sync with the tree using fsnotify.
package ingest
